package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/statement-flow/internal/model"
)

var batchIDPattern = regexp.MustCompile(`[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`)

// runFlow executes the CLI with a fresh command tree against dbPath.
func runFlow(t *testing.T, dbPath string, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(bytes.NewBufferString("y\n"))
	cmd.SetArgs(append([]string{"--db", dbPath, "--user", "alice", "--log-level", "error"}, args...))

	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestFlowEndToEnd(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	dbPath := filepath.Join(dir, "data", "flow.db")

	taxonomyFile := writeFile(t, dir, "taxonomy.yaml", `
leaves:
  - category1: Mercados
    category2: Supermercado
    category3: REWE
    app_category: Mercado
  - category1: Transporte
    category2: Combustível
    category3: Posto
`)
	rulesFile := writeFile(t, dir, "rules.yaml", `
rules:
  - name: fuel
    key_words: SHELL;ARAL
    category1: Transporte
    category2: Combustível
    category3: Posto
    priority: 700
`)
	statement := writeFile(t, dir, "statement.csv", `Date,Description,Amount,Currency
2024-03-01,REWE SAGT DANKE 4711,-23.45,EUR
2024-03-02,SHELL TANKSTELLE 12,-60.00,EUR
2024-03-04,UNKNOWN MERCHANT XYZ,-9.99,EUR
`)

	_, err := runFlow(t, dbPath, "bootstrap")
	require.NoError(t, err)

	out, err := runFlow(t, dbPath, "taxonomy", "import", taxonomyFile)
	require.NoError(t, err)
	assert.Contains(t, out, "Ensured 2 leaves")

	_, err = runFlow(t, dbPath, "rules", "import", rulesFile)
	require.NoError(t, err)
	_, err = runFlow(t, dbPath, "rules", "add", "REWE", "--target", "Mercados/Supermercado/REWE", "--strict")
	require.NoError(t, err)

	out, err = runFlow(t, dbPath, "rules", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "SHELL;ARAL")
	assert.Contains(t, out, "REWE")

	out, err = runFlow(t, dbPath, "upload", statement)
	require.NoError(t, err)
	batchID := batchIDPattern.FindString(out)
	require.NotEmpty(t, batchID, "upload output should name the batch: %s", out)

	out, err = runFlow(t, dbPath, "commit", batchID)
	require.NoError(t, err)
	assert.Contains(t, out, "Batch committed")

	out, err = runFlow(t, dbPath, "transactions", "--needs-review")
	require.NoError(t, err)
	assert.Contains(t, out, "UNKNOWN MERCHANT XYZ")
	assert.NotContains(t, out, "REWE SAGT DANKE")
	assert.Contains(t, out, "Showing 1 of 3 transactions")

	_, err = runFlow(t, dbPath, "commit", batchID)
	require.Error(t, err)

	out, err = runFlow(t, dbPath, "rollback", batchID)
	require.NoError(t, err)
	assert.Contains(t, out, "3 items returned to pending")

	out, err = runFlow(t, dbPath, "batches", "show", batchID)
	require.NoError(t, err)
	assert.Contains(t, out, "preview")
}

func TestUploadRejectsEmptyFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	dbPath := filepath.Join(dir, "flow.db")

	empty := writeFile(t, dir, "empty.csv", "")
	_, err := runFlow(t, dbPath, "upload", empty)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EMPTY_FILE")
}

func TestCategoryPath(t *testing.T) {
	assert.Equal(t, "Mercados / Supermercado / REWE", categoryPath("Mercados", "Supermercado", "REWE"))
	assert.Equal(t, "OPEN", categoryPath("OPEN", "", ""))
	assert.Empty(t, categoryPath())
}

func TestTransactionRows(t *testing.T) {
	txns := []model.Transaction{
		{
			ID:               7,
			PaymentDate:      time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			Amount:           decimal.RequireFromString("-23.4"),
			Currency:         "EUR",
			DescNorm:         "REWE SAGT DANKE 4711",
			AliasDesc:        "Rewe",
			Category1:        model.ParseCategory1("Mercados"),
			Category2:        "Supermercado",
			Category3:        "REWE",
			ResolutionStatus: model.ResolutionMatched,
			Confidence:       100,
		},
		{
			ID:               8,
			PaymentDate:      time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC),
			Amount:           decimal.RequireFromString("-9.99"),
			Currency:         "EUR",
			DescNorm:         "UNKNOWN MERCHANT",
			Category1:        model.ParseCategory1("OPEN"),
			ResolutionStatus: model.ResolutionFallbackOpen,
			NeedsReview:      true,
		},
	}

	rows := transactionRows(txns)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"7", "2024-03-01", "-23.40 EUR", "Rewe", "Mercados / Supermercado / REWE", "MATCHED", "100", ""}, rows[0])
	assert.Equal(t, "UNKNOWN MERCHANT", rows[1][3])
	assert.Equal(t, "OPEN", rows[1][4])
	assert.Equal(t, "✓", rows[1][7])
}

func TestBatchSummary(t *testing.T) {
	batch := &model.IngestionBatch{
		Filename:      "statement.csv",
		SourceFormat:  model.FormatGenericCSV,
		Status:        model.BatchError,
		ParserVersion: "flow-parser-v1",
		Diagnostics: model.Diagnostics{
			RowsTotal: 0,
			Extra:     map[string]any{"error_code": "NO_ROWS"},
		},
	}

	summary := batchSummary(batch, map[model.ItemStatus]int{})
	assert.Contains(t, summary, "statement.csv")
	assert.Contains(t, summary, "error")
	assert.Contains(t, summary, "NO_ROWS")
}
