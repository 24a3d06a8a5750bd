package entity

import (
	"sort"
	"time"
)

// Site is an immutable snapshot of every entry found by one build.
type Site struct {
	ID      string
	BuiltAt time.Time
	Entries []*Entry // created_at descending

	positions map[string]int
}

// NewSite sorts entries by creation time (newest first, stable on ties) and indexes them by slug.
// The caller must not touch entries afterwards.
func NewSite(id string, builtAt time.Time, entries []*Entry) *Site {
	sorted := make([]*Entry, len(entries))
	copy(sorted, entries)

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})

	positions := make(map[string]int, len(sorted))
	for i, e := range sorted {
		positions[e.Slug] = i
	}

	return &Site{
		ID:        id,
		BuiltAt:   builtAt,
		Entries:   sorted,
		positions: positions,
	}
}

func (s *Site) Entry(slug string) (*Entry, bool) {
	idx, ok := s.Position(slug)
	if !ok {
		return nil, false
	}

	return s.Entries[idx], true
}

// Position returns the index of the entry with slug in Entries.
func (s *Site) Position(slug string) (int, bool) {
	if s == nil {
		return 0, false
	}

	idx, ok := s.positions[slug]

	return idx, ok
}

// Tags returns every tag used by any entry, deduplicated and sorted.
func (s *Site) Tags() []string {
	set := make(map[string]struct{})
	for _, e := range s.Entries {
		for _, t := range e.Tags {
			set[t] = struct{}{}
		}
	}

	tags := make([]string, 0, len(set))
	for t := range set {
		tags = append(tags, t)
	}
	sort.Strings(tags)

	return tags
}

func (s *Site) EntriesWithTag(tag string) []*Entry {
	var entries []*Entry
	for _, e := range s.Entries {
		if e.HasTag(tag) {
			entries = append(entries, e)
		}
	}

	return entries
}
