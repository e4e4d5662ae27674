// Package gardener is the daily defensive-cleanup pass of §4.6: for every
// subscriber chat the bot can no longer reach because it has been kicked
// or has left a group/supergroup/channel, drop it from the store. The
// delivery pipeline already prunes on observed send failures; this only
// catches subscribers that simply never triggered a delivery.
package gardener

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/semaphore"

	"rssbot/internal/metrics"
	"rssbot/internal/telegram"
)

// left/kicked are the two tbot/gardener.rs membership statuses that mean
// the bot can no longer post to this chat.
const (
	statusLeft   = "left"
	statusKicked = "kicked"
)

// ChatReader is the subset of telegram.Client the gardener needs.
type ChatReader interface {
	GetChat(ctx context.Context, chatID int64) (telegram.Chat, error)
	GetChatMember(ctx context.Context, chatID int64) (telegram.ChatMember, error)
}

// Store is the subset of subscriber bookkeeping the gardener reads and
// mutates.
type Store interface {
	AllSubscribers() []int64
	DeleteSubscriber(chatID int64)
}

// Gardener runs the periodic scan, checking at most concurrency chats at
// once and bounding a whole pass by scanTimeout.
type Gardener struct {
	client      ChatReader
	store       Store
	logger      *slog.Logger
	sem         *semaphore.Weighted
	scanTimeout time.Duration
}

// New builds a Gardener. concurrency bounds how many subscriber chats are
// checked at once; scanTimeout bounds one whole Run call.
func New(client ChatReader, store Store, logger *slog.Logger, concurrency int, scanTimeout time.Duration) *Gardener {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Gardener{
		client:      client,
		store:       store,
		logger:      logger,
		sem:         semaphore.NewWeighted(int64(concurrency)),
		scanTimeout: scanTimeout,
	}
}

// Run performs one scan over every subscriber, fanning out one goroutine
// per subscriber bounded by the concurrency semaphore — the same
// panic-recovered worker-pool shape the delivery pipeline uses. Errors
// fetching a single chat or its membership are ignored (§4.6 step 3);
// only a confirmed left/kicked status prunes.
func (g *Gardener) Run(ctx context.Context) {
	start := time.Now()

	if g.scanTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.scanTimeout)
		defer cancel()
	}

	var pruned int64
	var wg sync.WaitGroup

	for _, subscriber := range g.store.AllSubscribers() {
		if err := g.sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(subscriber int64) {
			defer wg.Done()
			defer g.sem.Release(1)
			defer func() {
				if r := recover(); r != nil {
					g.logger.Error("gardener worker panicked",
						slog.Int64("subscriber", subscriber),
						slog.Any("panic", r),
						slog.String("stack", string(debug.Stack())))
				}
			}()
			if g.prune(ctx, subscriber) {
				atomic.AddInt64(&pruned, 1)
			}
		}(subscriber)
	}
	wg.Wait()

	g.logger.Info("gardener run complete",
		slog.Int64("pruned", pruned),
		slog.Duration("duration", time.Since(start)))
	metrics.RecordGardenerRun(true, int(pruned))
}

// prune checks one subscriber's chat membership, deleting it if the bot
// has left or been kicked. Returns whether it deleted the subscriber.
func (g *Gardener) prune(ctx context.Context, subscriber int64) bool {
	chat, err := g.client.GetChat(ctx, subscriber)
	if err != nil {
		return false
	}
	if !chat.IsGroupOrChannel {
		return false
	}

	member, err := g.client.GetChatMember(ctx, subscriber)
	if err != nil {
		return false
	}
	if member.Status != statusLeft && member.Status != statusKicked {
		return false
	}

	g.store.DeleteSubscriber(subscriber)
	return true
}

// StartCron schedules Run on the given cron expression/timezone, following
// cmd/worker/main.go's startCronWorker shape. It returns the started
// *cron.Cron so the caller can Stop it during shutdown.
func (g *Gardener) StartCron(ctx context.Context, schedule, timezone string) (*cron.Cron, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		g.logger.Warn("invalid gardener timezone, using UTC", slog.String("timezone", timezone), slog.Any("error", err))
		loc = time.UTC
	}

	c := cron.New(cron.WithLocation(loc))
	_, err = c.AddFunc(schedule, func() { g.Run(ctx) })
	if err != nil {
		return nil, err
	}
	c.Start()
	return c, nil
}
