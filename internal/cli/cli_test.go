package cli

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/statement-flow/internal/model"
)

func TestConfirmer(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{name: "yes", input: "y\n", want: true},
		{name: "full yes with spaces", input: "  YES  \n", want: true},
		{name: "no", input: "n\n"},
		{name: "empty answer", input: "\n"},
		{name: "end of input", input: ""},
		{name: "yes without newline", input: "y", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			c := NewConfirmer(strings.NewReader(tt.input), &out)

			got, err := c.Confirm(context.Background(), "Roll back batch?")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Contains(t, out.String(), "Roll back batch? [y/N]")
		})
	}
}

func TestConfirmer_Cancelled(t *testing.T) {
	r, w := io.Pipe()
	defer func() { _ = w.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewConfirmer(r, io.Discard).Confirm(ctx, "Continue?")
	assert.ErrorIs(t, err, ErrInputCancelled)
}

func TestRenderTable(t *testing.T) {
	out := RenderTable(
		[]string{"ID", "STATUS"},
		[][]string{{"batch-1", "preview"}, {"b2", "committed"}, {"short"}},
	)

	lines := strings.Split(out, "\n")
	require.GreaterOrEqual(t, len(lines), 4)
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "committed")
	assert.Contains(t, out, "short")
}

func TestKeyValues(t *testing.T) {
	out := KeyValues("Batch", "abc", "New items", "4")
	assert.Equal(t, "Batch:      abc\nNew items:  4", out)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "Supermerc…", Truncate("Supermercado REWE", 10))
	assert.Equal(t, "Übe…", Truncate("Überweisung", 4))
}

func TestProgress_ConcurrentUpdates(t *testing.T) {
	var out syncBuffer
	p := NewProgress(&out, 10, "Committing")

	var wg sync.WaitGroup
	for i := 1; i <= 10; i++ {
		wg.Add(1)
		go func(done int) {
			defer wg.Done()
			p.Update(done, 10)
		}(i)
	}
	wg.Wait()

	p.Update(12, 12)
	p.Finish()
	assert.Equal(t, 12, p.total)
}

func TestFormatBatchStatus(t *testing.T) {
	for _, status := range []model.BatchStatus{
		model.BatchProcessing, model.BatchPreview, model.BatchCommitted, model.BatchRolledBack, model.BatchError,
	} {
		assert.Contains(t, FormatBatchStatus(status), string(status))
	}
	assert.Equal(t, "archived", FormatBatchStatus(model.BatchStatus("archived")))
}

func TestRenderBox(t *testing.T) {
	box := RenderBox("Batch committed", KeyValues("Imported", "3"))
	assert.Contains(t, box, "Batch committed")
	assert.Contains(t, box, "Imported:")
	assert.Contains(t, box, FlowIcon)
}
