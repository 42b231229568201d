// Package fingerprint computes the stable content hashes used for dedup,
// provenance and rule/taxonomy versioning.
package fingerprint

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/Veraticus/statement-flow/internal/model"
)

const (
	separator  = "|"
	dateLayout = "2006-01-02"
)

// Row returns the dedup fingerprint of a normalized row. Only identity-bearing
// fields take part; the amount is fixed to two decimals and the date drops its
// time of day. A missing amount hashes as an empty placeholder.
func Row(row model.NormalizedRow) string {
	amount := ""
	if row.Amount.Valid {
		amount = row.Amount.Decimal.StringFixed(2)
	}
	date := ""
	if !row.Date.IsZero() {
		date = row.Date.Format(dateLayout)
	}

	data := strings.Join([]string{
		string(row.Source),
		row.Key,
		amount,
		date,
		row.Description,
		row.RawDescription,
	}, separator)

	return sum([]byte(data))
}

// RowHash hashes the entire raw payload after stable stringification.
func RowHash(payload any) (string, error) {
	canonical, err := StableStringify(payload)
	if err != nil {
		return "", err
	}
	return sum([]byte(canonical)), nil
}

// StableStringify renders v as JSON with object keys sorted at every depth
// and arrays kept in their original order.
func StableStringify(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode payload: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return "", fmt.Errorf("failed to decode payload: %w", err)
	}

	var b strings.Builder
	writeStable(&b, generic)
	return b.String(), nil
}

func writeStable(b *strings.Builder, v any) {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.Quote(k))
			b.WriteByte(':')
			writeStable(b, val[k])
		}
		b.WriteByte('}')
	case []any:
		b.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				b.WriteByte(',')
			}
			writeStable(b, item)
		}
		b.WriteByte(']')
	case string:
		b.WriteString(strconv.Quote(val))
	case json.Number:
		b.WriteString(val.String())
	case bool:
		b.WriteString(strconv.FormatBool(val))
	case nil:
		b.WriteString("null")
	default:
		fmt.Fprintf(b, "%v", val)
	}
}

// Rules fingerprints the active rule set so commits can record which rules
// produced their categories.
func Rules(rules []model.Rule) string {
	lines := make([]string, 0, len(rules))
	for _, r := range rules {
		if !r.Active {
			continue
		}
		leaf := ""
		if r.LeafID != nil {
			leaf = strconv.FormatInt(*r.LeafID, 10)
		}
		lines = append(lines, strings.Join([]string{
			strconv.FormatInt(r.ID, 10),
			r.KeyWords,
			r.KeyWordsNeg,
			r.Category1,
			r.Category2,
			r.Category3,
			leaf,
			strconv.Itoa(r.Priority),
			strconv.FormatBool(r.Strict),
			string(r.Origin),
		}, separator))
	}
	sort.Strings(lines)
	return sum([]byte(strings.Join(lines, "\n")))
}

// Taxonomy fingerprints the leaf hierarchy.
func Taxonomy(leaves []model.LeafHierarchy) string {
	lines := make([]string, 0, len(leaves))
	for _, l := range leaves {
		app := ""
		if l.AppCategoryID != nil {
			app = strconv.FormatInt(*l.AppCategoryID, 10)
		}
		lines = append(lines, strings.Join([]string{
			strconv.FormatInt(l.LeafID, 10),
			l.Category1,
			l.Category2,
			l.Category3,
			app,
			l.AppCategoryName,
		}, separator))
	}
	sort.Strings(lines)
	return sum([]byte(strings.Join(lines, "\n")))
}

// File hashes raw upload bytes.
func File(data []byte) string {
	return sum(data)
}

func sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
