package store

import (
	"log/slog"
	"sync"
	"time"

	"rssbot/internal/domain/entity"
	"rssbot/internal/metrics"
)

// Store is the exclusive-lock-protected subscription store described in
// §4.3/§5: a dual index (feeds by FeedID, subscriber→feed-set) with no
// suspension ever happening while the lock is held. Every mutating
// operation and every read that needs a consistent view takes s.mu for its
// duration.
type Store struct {
	mu          sync.Mutex
	path        string
	feeds       map[uint64]*entity.Feed
	subscribers map[int64]map[uint64]struct{}
	logger      *slog.Logger
}

// New creates an empty store at path and writes its initial (empty)
// snapshot, mirroring the original implementation's Database::create.
// Prefer Load for normal startup — when path does not yet exist it returns
// an empty store without writing a snapshot.
func New(path string) (*Store, error) {
	s := newEmptyStore(path)
	if err := s.Save(); err != nil {
		return nil, err
	}
	return s, nil
}

func newEmptyStore(path string) *Store {
	return &Store{
		path:        path,
		feeds:       make(map[uint64]*entity.Feed),
		subscribers: make(map[int64]map[uint64]struct{}),
		logger:      slog.Default(),
	}
}

// SetLogger attaches logger for subscribe/unsubscribe/prune decision
// logging; a store returned by New or Load logs through slog.Default()
// until then.
func (s *Store) SetLogger(logger *slog.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger = logger
}

// AllFeeds returns a cloned snapshot of every feed currently tracked.
func (s *Store) AllFeeds() []*entity.Feed {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*entity.Feed, 0, len(s.feeds))
	down := 0
	for _, f := range s.feeds {
		out = append(out, f.Clone())
		if f.DownTime != nil {
			down++
		}
	}
	metrics.FeedsTrackedGauge.Set(float64(len(s.feeds)))
	metrics.FeedsDownGauge.Set(float64(down))
	return out
}

// AllSubscribers returns a snapshot of every distinct subscriber ID.
func (s *Store) AllSubscribers() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int64, 0, len(s.subscribers))
	for sub := range s.subscribers {
		out = append(out, sub)
	}
	metrics.SubscribersGauge.Set(float64(len(out)))
	return out
}

// SubscribedFeeds returns the cloned feeds subscriber s is subscribed to,
// and whether the subscriber exists at all.
func (s *Store) SubscribedFeeds(subscriber int64) ([]*entity.Feed, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	feedIDs, ok := s.subscribers[subscriber]
	if !ok {
		return nil, false
	}
	out := make([]*entity.Feed, 0, len(feedIDs))
	for id := range feedIDs {
		if f, ok := s.feeds[id]; ok {
			out = append(out, f.Clone())
		}
	}
	return out, true
}

// IsSubscribed reports whether subscriber is subscribed to link, in O(1).
func (s *Store) IsSubscribed(subscriber int64, link string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	feedIDs, ok := s.subscribers[subscriber]
	if !ok {
		return false
	}
	_, ok = feedIDs[HashLink(link)]
	return ok
}

// Subscribe implements §4.3's subscribe contract: returns true if this
// subscription is new. parsed/items seed the feed on first creation; an
// already-existing feed ignores them (the next scheduled poll will diff it
// normally).
func (s *Store) Subscribe(subscriber int64, link string, parsed *entity.Feed, items []entity.Item) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	feedID := HashLink(link)
	if s.subscribers[subscriber] == nil {
		s.subscribers[subscriber] = make(map[uint64]struct{})
	}
	if _, already := s.subscribers[subscriber][feedID]; already {
		return false
	}
	s.subscribers[subscriber][feedID] = struct{}{}

	f, exists := s.feeds[feedID]
	if !exists {
		f = entity.NewFeed(link)
		f.Title = parsed.Title
		f.HomeLink = parsed.HomeLink
		f.SourceURL = parsed.SourceURL
		f.TTL = parsed.TTL
		fingerprints := make([]uint64, 0, len(items))
		for _, it := range items {
			fingerprints = append(fingerprints, Fingerprint(it))
		}
		f.HashWindow = fingerprints
		s.feeds[feedID] = f
	}
	f.Subscribers[subscriber] = struct{}{}

	s.logger.Info("subscribed", slog.Int64("subscriber", subscriber), slog.String("link", link), slog.Bool("new_feed", !exists))
	if err := s.save(); err != nil {
		s.logger.Error("snapshot save failed after subscribe", slog.Any("error", err))
	}
	return true
}

// Unsubscribe implements §4.3's unsubscribe contract: returns the feed
// record (for the confirmation message) if a subscription was actually
// removed, maintaining I1/I2 by deleting the feed once its subscriber set
// empties and the subscriber entry once its feed set empties.
func (s *Store) Unsubscribe(subscriber int64, link string) (*entity.Feed, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unsubscribeLocked(subscriber, link)
}

func (s *Store) unsubscribeLocked(subscriber int64, link string) (*entity.Feed, bool) {
	feedID := HashLink(link)

	feedIDs, ok := s.subscribers[subscriber]
	if !ok {
		return nil, false
	}
	if _, ok := feedIDs[feedID]; !ok {
		return nil, false
	}
	delete(feedIDs, feedID)
	if len(feedIDs) == 0 {
		delete(s.subscribers, subscriber)
	}

	f, ok := s.feeds[feedID]
	if !ok {
		return nil, false
	}
	delete(f.Subscribers, subscriber)
	removed := f.Clone()
	if len(f.Subscribers) == 0 {
		delete(s.feeds, feedID)
	}

	s.logger.Info("unsubscribed", slog.Int64("subscriber", subscriber), slog.String("link", link))
	if err := s.save(); err != nil {
		s.logger.Error("snapshot save failed after unsubscribe", slog.Any("error", err))
	}
	return removed, true
}

// DeleteSubscriber unsubscribes s from every feed it follows (used by the
// delivery pipeline on `chat_is_unavailable` and by the gardener on
// left/kicked).
func (s *Store) DeleteSubscriber(subscriber int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	feedIDs, ok := s.subscribers[subscriber]
	if !ok {
		return
	}
	links := make([]string, 0, len(feedIDs))
	for feedID := range feedIDs {
		if f, ok := s.feeds[feedID]; ok {
			links = append(links, f.Link)
		}
	}
	for _, link := range links {
		s.unsubscribeLocked(subscriber, link)
	}
}

// UpdateSubscriber implements chat migration: replace `from` with `to`
// everywhere it appears, in both the subscriber index and every feed's
// subscriber set.
func (s *Store) UpdateSubscriber(from, to int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	feedIDs, ok := s.subscribers[from]
	if !ok {
		return
	}
	delete(s.subscribers, from)
	if s.subscribers[to] == nil {
		s.subscribers[to] = make(map[uint64]struct{})
	}
	for feedID := range feedIDs {
		s.subscribers[to][feedID] = struct{}{}
		if f, ok := s.feeds[feedID]; ok {
			delete(f.Subscribers, from)
			f.Subscribers[to] = struct{}{}
		}
	}

	s.logger.Info("subscriber migrated", slog.Int64("from", from), slog.Int64("to", to))
	if err := s.save(); err != nil {
		s.logger.Error("snapshot save failed after migration", slog.Any("error", err))
	}
}

// GetOrUpdateDownTime implements §4.3's get_or_update_down_time: if
// down_time is already set, return the elapsed duration; otherwise set it
// to now and return zero. The second return is false if the feed is gone
// (deleted between dispatch and this call — §4.4's "weak reference"
// semantics).
func (s *Store) GetOrUpdateDownTime(link string) (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.feeds[HashLink(link)]
	if !ok {
		return 0, false
	}
	now := time.Now()
	if f.DownTime != nil {
		return now.Sub(*f.DownTime), true
	}
	f.DownTime = &now
	return 0, true
}

// ResetDownTime clears the failure clock for link, if the feed still
// exists.
func (s *Store) ResetDownTime(link string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.feeds[HashLink(link)]; ok {
		f.DownTime = nil
	}
}

// Update implements §4.3's differ+commit contract: diff the freshly parsed
// feed against the stored hash window, commit the rebuilt window/title/ttl,
// reset the down-time clock, and snapshot if anything changed. The second
// return is false if the feed was deleted while a worker was fetching it
// (§3 "Ownership": the scheduler's weak reference is stale; the caller must
// discard the update silently).
func (s *Store) Update(link string, parsedTitle string, ttl *int, items []entity.Item) (Update, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.feeds[HashLink(link)]
	if !ok {
		return Update{}, false
	}

	newItems, rebuiltWindow := diffItems(f.HashWindow, items)
	f.HashWindow = rebuiltWindow

	var update Update
	if len(newItems) > 0 {
		update.NewItems = newItems
	}
	if parsedTitle != f.Title {
		update.TitleChanged = true
		update.NewTitle = parsedTitle
		f.Title = parsedTitle
	}
	f.TTL = ttl
	f.DownTime = nil

	if update.Any() {
		if err := s.save(); err != nil {
			s.logger.Error("snapshot save failed after update", slog.String("link", link), slog.Any("error", err))
		}
	}
	return update, true
}

// Path returns the snapshot file path the store was opened with.
func (s *Store) Path() string { return s.path }
