package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	jsoniter "github.com/json-iterator/go"

	"rssbot/internal/domain/entity"
)

var snapshotJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// snapshotFeed is the on-disk shape of one feed, per §6's persisted-state
// field list.
type snapshotFeed struct {
	Link        string  `json:"link"`
	Title       string  `json:"title"`
	DownTime    *int64  `json:"down_time"` // unix seconds, nullable
	Subscribers []int64 `json:"subscribers"`
	TTL         *int    `json:"ttl"`
	HashList    []uint64 `json:"hash_list"`
}

func toSnapshot(f *entity.Feed) snapshotFeed {
	var downTime *int64
	if f.DownTime != nil {
		ts := f.DownTime.Unix()
		downTime = &ts
	}
	return snapshotFeed{
		Link:        f.Link,
		Title:       f.Title,
		DownTime:    downTime,
		Subscribers: f.SubscriberIDs(),
		TTL:         f.TTL,
		HashList:    append([]uint64(nil), f.HashWindow...),
	}
}

func fromSnapshot(sf snapshotFeed) *entity.Feed {
	f := entity.NewFeed(sf.Link)
	f.Title = sf.Title
	f.TTL = sf.TTL
	f.HashWindow = append([]uint64(nil), sf.HashList...)
	if sf.DownTime != nil {
		t := time.Unix(*sf.DownTime, 0).UTC()
		f.DownTime = &t
	}
	for _, sub := range sf.Subscribers {
		f.Subscribers[sub] = struct{}{}
	}
	return f
}

// save serialises every feed to a single JSON array and atomically
// replaces the database file, per §4.3/§6: write to a temp file in the
// same directory, then rename over the target so readers never observe a
// partial write.
//
// Must be called holding s.mu (see §5: "save() also runs under the
// lock"). Runtime I/O errors are returned to the caller, which (per §7)
// logs and swallows them — the next successful save recovers.
func (s *Store) save() error {
	snapshots := make([]snapshotFeed, 0, len(s.feeds))
	for _, f := range s.feeds {
		snapshots = append(snapshots, toSnapshot(f))
	}

	data, err := snapshotJSON.Marshal(snapshots)
	if err != nil {
		return fmt.Errorf("store: marshal snapshot: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".rssbot-snapshot-*.tmp")
	if err != nil {
		return fmt.Errorf("store: create temp snapshot: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("store: write temp snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("store: sync temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("store: close temp snapshot: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("store: rename temp snapshot: %w", err)
	}
	return nil
}

// Load reconstructs a Store from the snapshot at path, rehashing FeedID
// from each feed's Link and rebuilding the subscriber index by walking its
// Subscribers set (I5). A missing file is not an error: it means a fresh
// database. Feeds whose Subscribers array is empty are dropped (§6: "a
// loader tolerates and drops them"), maintaining I1.
func Load(path string) (*Store, error) {
	s := newEmptyStore(path)

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: read snapshot: %w", err)
	}

	var snapshots []snapshotFeed
	if err := snapshotJSON.Unmarshal(data, &snapshots); err != nil {
		return nil, fmt.Errorf("store: parse snapshot: %w", err)
	}

	for _, sf := range snapshots {
		if len(sf.Subscribers) == 0 {
			continue
		}
		f := fromSnapshot(sf)
		feedID := HashLink(f.Link)
		s.feeds[feedID] = f
		for sub := range f.Subscribers {
			if s.subscribers[sub] == nil {
				s.subscribers[sub] = make(map[uint64]struct{})
			}
			s.subscribers[sub][feedID] = struct{}{}
		}
	}
	return s, nil
}

// Save snapshots the store to disk under the store's own lock, matching
// I4: the file is a linearisation of the in-memory state at some prior
// instant, not a write-ahead log.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save()
}
