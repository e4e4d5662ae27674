// Package entity holds the core data model: feeds and items, normalised
// from whatever format the feed parser ingested.
package entity

import "time"

// Item is a single feed entry. Only its fingerprint survives past one
// differ pass — see Fingerprint in internal/store.
type Item struct {
	Title string
	Link  string
	ID    string
}

// Feed is identified by its subscription URL (Link). FeedID, the 64-bit
// hash of Link, is the key used in every in-memory index; Link itself is
// what gets persisted.
type Feed struct {
	Link      string
	Title     string
	HomeLink  string
	SourceURL string

	// TTL is the feed's declared polling interval in minutes, explicit or
	// derived from sy:updatePeriod/sy:updateFrequency. Nil means absent.
	TTL *int

	// DownTime is the timestamp of the first consecutive fetch failure
	// since the last success. Nil means the feed is currently healthy.
	DownTime *time.Time

	// Subscribers holds the set of subscriber IDs for this feed. A feed
	// with an empty set must not exist in the store (invariant I1).
	Subscribers map[int64]struct{}

	// HashWindow holds recent item fingerprints, newest first, bounded to
	// 2x the item count of the last successful poll (invariant I3).
	HashWindow []uint64
}

// NewFeed builds an empty feed for link, ready to receive its first
// subscriber.
func NewFeed(link string) *Feed {
	return &Feed{
		Link:        link,
		Subscribers: make(map[int64]struct{}),
	}
}

// Clone returns a deep-enough copy safe to hand to a caller outside the
// store's lock: the subscriber set and hash window are copied, TTL/DownTime
// are copied by value through fresh pointers.
func (f *Feed) Clone() *Feed {
	clone := &Feed{
		Link:      f.Link,
		Title:     f.Title,
		HomeLink:  f.HomeLink,
		SourceURL: f.SourceURL,
	}
	if f.TTL != nil {
		ttl := *f.TTL
		clone.TTL = &ttl
	}
	if f.DownTime != nil {
		dt := *f.DownTime
		clone.DownTime = &dt
	}
	clone.Subscribers = make(map[int64]struct{}, len(f.Subscribers))
	for s := range f.Subscribers {
		clone.Subscribers[s] = struct{}{}
	}
	clone.HashWindow = append([]uint64(nil), f.HashWindow...)
	return clone
}

// SubscriberIDs returns the feed's subscribers as a slice, in no particular
// order.
func (f *Feed) SubscriberIDs() []int64 {
	ids := make([]int64, 0, len(f.Subscribers))
	for s := range f.Subscribers {
		ids = append(ids, s)
	}
	return ids
}
