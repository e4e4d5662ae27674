// Package scheduler is the per-feed adaptive poller of §4.4: a global
// interval timer enqueues every feed with a delay derived from its TTL,
// dispatch spawns a bounded, globally-throttled worker per due feed, and
// failures feed §4.3's down-time clock before giving up after five days.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"rssbot/internal/delivery"
	"rssbot/internal/domain/entity"
	"rssbot/internal/metrics"
	"rssbot/internal/store"
)

// giveUpAfter is the elapsed continuous-failure duration (§4.4: "5 × 24 ×
// 3600 seconds") after which the scheduler gives up on a feed and notifies
// its subscribers instead of retrying silently forever.
const giveUpAfter = 5 * 24 * time.Hour

// Fetcher pulls and parses one feed, satisfied by *httpfetch.Client.
type Fetcher interface {
	PullFeed(ctx context.Context, url string) (*entity.Feed, []entity.Item, error)
}

// Store is the subset of *store.Store the scheduler needs.
type Store interface {
	AllFeeds() []*entity.Feed
	Update(link, parsedTitle string, ttl *int, items []entity.Item) (store.Update, bool)
	GetOrUpdateDownTime(link string) (time.Duration, bool)
	ResetDownTime(link string)
}

// Config tunes the scheduler per §6's CLI surface.
type Config struct {
	MinInterval          time.Duration // clamp floor and throttle bucket count/period
	MaxInterval          time.Duration // clamp ceiling
	MaxConcurrentFetches int64
}

// Scheduler implements the single logical due-time queue described in
// §4.4, one goroutine-per-due-feed dispatch bounded by a weighted
// semaphore and smoothed by a per-second rate limiter.
type Scheduler struct {
	cfg      Config
	store    Store
	fetcher  Fetcher
	pipeline *delivery.Pipeline
	logger   *slog.Logger

	sem     *semaphore.Weighted
	limiter *rate.Limiter

	queueMu sync.Mutex
	queued  map[string]struct{}

	throttleCounter int64
}

// New builds a Scheduler. minInterval also sizes the throttle bucket count
// and the per-second rate limiter's burst.
func New(cfg Config, st Store, fetcher Fetcher, pipeline *delivery.Pipeline, logger *slog.Logger) *Scheduler {
	bucketCount := int(cfg.MinInterval / time.Second)
	if bucketCount < 1 {
		bucketCount = 1
	}
	return &Scheduler{
		cfg:      cfg,
		store:    st,
		fetcher:  fetcher,
		pipeline: pipeline,
		logger:   logger,
		sem:      semaphore.NewWeighted(cfg.MaxConcurrentFetches),
		limiter:  rate.NewLimiter(rate.Every(time.Second), bucketCount),
		queued:   make(map[string]struct{}),
	}
}

// Run drives the enqueue cycle until ctx is cancelled, ticking every
// MinInterval as §4.4 specifies.
func (s *Scheduler) Run(ctx context.Context) {
	s.enqueueCycle(ctx)

	ticker := time.NewTicker(s.cfg.MinInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.enqueueCycle(ctx)
		}
	}
}

// enqueueCycle enumerates every feed and enqueues the ones not already
// queued or in flight, each with delay = clamp(ttl_seconds, min, max) - 1.
func (s *Scheduler) enqueueCycle(ctx context.Context) {
	feeds := s.store.AllFeeds()
	for _, f := range feeds {
		link := f.Link

		s.queueMu.Lock()
		if _, already := s.queued[link]; already {
			s.queueMu.Unlock()
			continue
		}
		s.queued[link] = struct{}{}
		s.queueMu.Unlock()

		delay := s.dueDelay(f.TTL)
		time.AfterFunc(delay, func() { s.dispatch(ctx, link) })
	}
	metrics.SchedulerQueueDepth.Set(float64(len(feeds)))
}

// dueDelay implements §4.4's clamp(ttl_seconds, min_interval, max_interval) - 1.
// A feed without a known TTL is treated as due at min_interval.
func (s *Scheduler) dueDelay(ttlMinutes *int) time.Duration {
	ttlSeconds := s.cfg.MinInterval
	if ttlMinutes != nil {
		ttlSeconds = time.Duration(*ttlMinutes) * time.Minute
	}
	clamped := clampDuration(ttlSeconds, s.cfg.MinInterval, s.cfg.MaxInterval)
	delay := clamped - time.Second
	if delay < 0 {
		delay = 0
	}
	return delay
}

func clampDuration(d, lo, hi time.Duration) time.Duration {
	if d < lo {
		return lo
	}
	if d > hi {
		return hi
	}
	return d
}

// dispatch runs when a feed becomes due: acquire a throttle slot, pull +
// parse + diff, then deliver. A feed that vanished from the store between
// enqueue and dispatch (unsubscribed while queued) is a silent no-op.
func (s *Scheduler) dispatch(ctx context.Context, link string) {
	defer func() {
		s.queueMu.Lock()
		delete(s.queued, link)
		s.queueMu.Unlock()
	}()

	if err := s.sem.Acquire(ctx, 1); err != nil {
		return
	}
	defer s.sem.Release(1)

	n := s.acquireThrottleBucket()
	defer s.releaseThrottleBucket()

	if n > 0 {
		metrics.SchedulerThrottleSleeps.Inc()
	}
	select {
	case <-time.After(time.Duration(n) * time.Second):
	case <-ctx.Done():
		return
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return
	}

	s.processFeed(ctx, link)
}

// acquireThrottleBucket implements §4.4's "n = (counter++) mod min_interval".
func (s *Scheduler) acquireThrottleBucket() int {
	prev := atomic.AddInt64(&s.throttleCounter, 1) - 1
	bucketCount := int64(s.cfg.MinInterval / time.Second)
	if bucketCount < 1 {
		bucketCount = 1
	}
	return int(prev % bucketCount)
}

func (s *Scheduler) releaseThrottleBucket() {
	atomic.AddInt64(&s.throttleCounter, -1)
}

// processFeed pulls, diffs and (on success) delivers one feed's updates,
// and runs the down-time/5-day give-up bookkeeping on failure (§4.4).
func (s *Scheduler) processFeed(ctx context.Context, link string) {
	start := time.Now()
	parsed, items, err := s.fetcher.PullFeed(ctx, link)
	if err != nil {
		s.handleFetchFailure(ctx, link, err)
		metrics.RecordFeedPoll("error", time.Since(start))
		return
	}

	update, ok := s.store.Update(link, parsed.Title, parsed.TTL, items)
	if !ok {
		return
	}

	outcome := "unchanged"
	if update.Any() {
		outcome = "updated"
		s.deliverUpdate(ctx, link, parsed, update)
	}
	metrics.RecordFeedPoll(outcome, time.Since(start))
}

// handleFetchFailure implements §4.4's failure-handling bullet: update the
// down-time clock, and once it has run for giveUpAfter, reset it and emit
// one give-up notification to every subscriber.
func (s *Scheduler) handleFetchFailure(ctx context.Context, link string, cause error) {
	elapsed, ok := s.store.GetOrUpdateDownTime(link)
	if !ok {
		return
	}
	if elapsed < giveUpAfter {
		s.logger.Debug("feed fetch failed, will retry", slog.String("link", link), slog.Any("error", cause))
		return
	}

	s.store.ResetDownTime(link)

	feeds, found := s.feedByLink(link)
	if !found {
		return
	}
	msg := giveUpMessage(feeds)
	s.pipeline.Deliver(ctx, feeds.SubscriberIDs(), []string{msg})
}

func (s *Scheduler) feedByLink(link string) (*entity.Feed, bool) {
	for _, f := range s.store.AllFeeds() {
		if f.Link == link {
			return f, true
		}
	}
	return nil, false
}

// deliverUpdate formats and sends a feed's update batch: a title-change
// notice, a new-items fan-out (chunked per §4.5), or both.
func (s *Scheduler) deliverUpdate(ctx context.Context, link string, parsed *entity.Feed, update store.Update) {
	feed, ok := s.feedByLink(link)
	if !ok {
		return
	}
	subscribers := feed.SubscriberIDs()

	if update.TitleChanged {
		s.pipeline.Deliver(ctx, subscribers, []string{formatTitleChangeMessage(update.NewTitle)})
	}

	if len(update.NewItems) > 0 {
		header := "<b>" + delivery.EscapeHTML(displayTitle(parsed, feed)) + "</b>"
		messages := delivery.Split(header, update.NewItems, func(item entity.Item) string {
			return formatItemLine(item, parsed, feed)
		})
		s.pipeline.Deliver(ctx, subscribers, messages)
	}
}

func displayTitle(parsed, stored *entity.Feed) string {
	if parsed != nil && parsed.Title != "" {
		return parsed.Title
	}
	return stored.Title
}

func formatItemLine(item entity.Item, parsed, stored *entity.Feed) string {
	title := item.Title
	if title == "" {
		title = displayTitle(parsed, stored)
	}
	link := item.Link
	if link == "" {
		link = stored.Link
	}
	return `<a href="` + delivery.EscapeHTML(link) + `">` + delivery.EscapeHTML(title) + `</a>`
}

func formatTitleChangeMessage(newTitle string) string {
	return "Feed renamed to <b>" + delivery.EscapeHTML(newTitle) + "</b>"
}

func giveUpMessage(f *entity.Feed) string {
	return `<a href="` + delivery.EscapeHTML(f.Link) + `">` + delivery.EscapeHTML(f.Title) +
		`</a> has failed to update for 5 days and may be permanently unreachable. Consider unsubscribing.`
}
