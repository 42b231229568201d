// Package dedup decides which rows of an upload are new and which repeat a
// fingerprint already seen for the same user and source.
package dedup

import "sync"

// Decision pairs a row's fingerprint with the dedup outcome.
type Decision struct {
	Fingerprint string
	Index       int
	Unique      bool
}

// SeenSet is the set of fingerprints already accepted as unique. It is safe
// for concurrent use.
type SeenSet struct {
	seen map[string]struct{}
	mu   sync.Mutex
}

// NewSeenSet returns a set seeded with previously persisted fingerprints.
func NewSeenSet(existing map[string]bool) *SeenSet {
	s := &SeenSet{seen: make(map[string]struct{}, len(existing))}
	for fp, ok := range existing {
		if ok {
			s.seen[fp] = struct{}{}
		}
	}
	return s
}

// Claim marks fp as seen and reports whether this call was the first to do so.
func (s *SeenSet) Claim(fp string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.seen[fp]; ok {
		return false
	}
	s.seen[fp] = struct{}{}
	return true
}

// Contains reports whether fp has been seen.
func (s *SeenSet) Contains(fp string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen[fp]
	return ok
}

// Len returns the number of fingerprints in the set.
func (s *SeenSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}

// Fold walks the fingerprints in file order. The first occurrence of a
// fingerprint not already in seen is unique; every later occurrence, and any
// fingerprint seeded from earlier imports, is a duplicate.
func Fold(seen *SeenSet, fingerprints []string) []Decision {
	decisions := make([]Decision, len(fingerprints))
	for i, fp := range fingerprints {
		decisions[i] = Decision{
			Index:       i,
			Fingerprint: fp,
			Unique:      seen.Claim(fp),
		}
	}
	return decisions
}

// Counts returns the number of unique and duplicate decisions.
func Counts(decisions []Decision) (unique, duplicates int) {
	for _, d := range decisions {
		if d.Unique {
			unique++
		} else {
			duplicates++
		}
	}
	return unique, duplicates
}
