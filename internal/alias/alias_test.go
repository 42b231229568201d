package alias

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Veraticus/statement-flow/internal/model"
)

func TestResolver_Resolve(t *testing.T) {
	r := NewResolver([]model.AliasAsset{
		{ID: 3, Alias: "Netflix", KeyWords: "NETFLIX"},
		{ID: 1, Alias: "REWE", KeyWords: "REWE;REWE MARKT"},
		{ID: 2, Alias: "Streaming", KeyWords: "NETFLIX;SPOTIFY"},
		{ID: 4, Alias: "", KeyWords: "IGNORED"},
		{ID: 5, Alias: "No keywords", KeyWords: " ; "},
	})

	tests := []struct {
		description string
		want        string
	}{
		{description: "Rewe Markt GmbH Köln", want: "REWE"},
		{description: "NETFLIX.COM 866-579", want: "Streaming"},
		{description: "spotify ab", want: "Streaming"},
		{description: "IGNORED merchant", want: ""},
		{description: "unknown", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Resolve(tt.description))
		})
	}
}

func TestResolver_Nil(t *testing.T) {
	var r *Resolver
	assert.Empty(t, r.Resolve("anything"))
}
