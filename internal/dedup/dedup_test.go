package dedup

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFold(t *testing.T) {
	tests := []struct {
		existing   map[string]bool
		name       string
		input      []string
		wantUnique []bool
	}{
		{
			name:       "all new",
			input:      []string{"a", "b", "c"},
			wantUnique: []bool{true, true, true},
		},
		{
			name:       "duplicate inside the same file keeps the first occurrence",
			input:      []string{"a", "b", "a", "a"},
			wantUnique: []bool{true, true, false, false},
		},
		{
			name:       "seeded fingerprints are duplicates",
			existing:   map[string]bool{"b": true},
			input:      []string{"a", "b"},
			wantUnique: []bool{true, false},
		},
		{
			name:       "false seed entries are ignored",
			existing:   map[string]bool{"a": false},
			input:      []string{"a"},
			wantUnique: []bool{true},
		},
		{
			name:       "empty input",
			input:      nil,
			wantUnique: []bool{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decisions := Fold(NewSeenSet(tt.existing), tt.input)

			got := make([]bool, len(decisions))
			for i, d := range decisions {
				got[i] = d.Unique
				assert.Equal(t, i, d.Index)
				assert.Equal(t, tt.input[i], d.Fingerprint)
			}
			assert.Equal(t, tt.wantUnique, got)
		})
	}
}

func TestFold_SecondPassIsAllDuplicates(t *testing.T) {
	file := []string{"a", "b", "c"}
	seen := NewSeenSet(nil)

	first := Fold(seen, file)
	unique, dups := Counts(first)
	assert.Equal(t, 3, unique)
	assert.Equal(t, 0, dups)

	second := Fold(seen, file)
	unique, dups = Counts(second)
	assert.Equal(t, 0, unique)
	assert.Equal(t, 3, dups)
}

func TestSeenSet_ConcurrentClaim(t *testing.T) {
	seen := NewSeenSet(nil)

	const workers = 16
	const keys = 100

	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := make(map[string]int)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for k := 0; k < keys; k++ {
				fp := fmt.Sprintf("fp-%d", k)
				if seen.Claim(fp) {
					mu.Lock()
					winners[fp]++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	assert.Len(t, winners, keys)
	for fp, n := range winners {
		assert.Equal(t, 1, n, "fingerprint %s claimed more than once", fp)
	}
	assert.Equal(t, keys, seen.Len())
	assert.True(t, seen.Contains("fp-0"))
}
