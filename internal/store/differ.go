package store

import (
	"hash/fnv"

	"rssbot/internal/domain/entity"
)

// Fingerprint implements §4.3's "id if present; else hash(title ++ link)"
// rule. It is the only part of an item that survives past one differ pass.
//
// Fingerprints are persisted in the snapshot's hash_list and compared
// against freshly computed values after a reload, so the hash must be
// deterministic across process restarts — FNV-1a, never a per-process
// seeded hash (contrast HashLink, whose values are recomputed on load).
func Fingerprint(item entity.Item) uint64 {
	h := fnv.New64a()
	if item.ID != "" {
		_, _ = h.Write([]byte(item.ID))
		return identityOf(h.Sum64())
	}
	_, _ = h.Write([]byte(item.Title))
	_, _ = h.Write([]byte(item.Link))
	return identityOf(h.Sum64())
}

// Update is the set of FeedUpdate events §4.3's `update` operation produces
// for one poll cycle.
type Update struct {
	NewItems     []entity.Item // new_items_in_source_order
	TitleChanged bool
	NewTitle     string
}

// Any reports whether this Update carries anything delivery needs to act
// on.
func (u Update) Any() bool {
	return len(u.NewItems) > 0 || u.TitleChanged
}

// diffItems implements the Open Question's resolution: "after diffing, new
// fingerprints first, then old fingerprints in prior order, truncated to
// 2 x items_len". window is newest-first; items is the freshly parsed,
// source-ordered item list for this poll.
//
// Returns the items not present in window (in source order, i.e. newest
// first within the new batch) and the rebuilt window.
func diffItems(window []uint64, items []entity.Item) ([]entity.Item, []uint64) {
	seen := make(map[uint64]struct{}, len(window))
	for _, fp := range window {
		seen[fp] = struct{}{}
	}

	var newItems []entity.Item
	var newFingerprints []uint64
	freshlySeen := make(map[uint64]struct{})
	for _, it := range items {
		fp := Fingerprint(it)
		if _, ok := freshlySeen[fp]; ok {
			continue // duplicate fingerprint within the same poll
		}
		freshlySeen[fp] = struct{}{}
		if _, ok := seen[fp]; !ok {
			newItems = append(newItems, it)
			newFingerprints = append(newFingerprints, fp)
		}
	}

	// newFingerprints are by construction absent from window (that's what
	// made them "new"), so appending window after them introduces no
	// duplicates.
	maxSize := 2 * len(items)
	rebuilt := make([]uint64, 0, maxSize)
	rebuilt = append(rebuilt, newFingerprints...)
	for _, fp := range window {
		if len(rebuilt) >= maxSize {
			break
		}
		rebuilt = append(rebuilt, fp)
	}

	return newItems, rebuilt
}
