package delivery

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"rssbot/internal/logging"
	"rssbot/internal/metrics"
)

// maxAttempts is the per-subscriber retry budget (§4.5).
const maxAttempts = 3

// Sender is the subset of the Telegram API the delivery pipeline needs.
// It is satisfied by *telegram.Client; declaring it here (rather than
// depending on the telegram package directly) keeps delivery testable
// with a fake.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, html string) error
}

// Store is the subset of subscriber bookkeeping the pipeline mutates as a
// side effect of observed send failures.
type Store interface {
	DeleteSubscriber(chatID int64)
	UpdateSubscriber(from, to int64)
}

// Pipeline fans a batch of pre-formatted HTML messages out to a list of
// subscribers, one goroutine per subscriber bounded by maxConcurrent,
// following notify/service.go's worker-pool-plus-panic-recovery shape.
// Within one subscriber, retries are synchronous (§5's ordering guarantee);
// across subscribers delivery is unordered.
type Pipeline struct {
	sender     Sender
	store      Store
	logger     *slog.Logger
	workerPool chan struct{}
}

// NewPipeline builds a delivery pipeline bounded to maxConcurrent
// in-flight subscriber deliveries at a time.
func NewPipeline(sender Sender, store Store, logger *slog.Logger, maxConcurrent int) *Pipeline {
	if maxConcurrent <= 0 {
		maxConcurrent = 10
	}
	return &Pipeline{
		sender:     sender,
		store:      store,
		logger:     logger,
		workerPool: make(chan struct{}, maxConcurrent),
	}
}

// Deliver sends messages to every subscriber in subscribers and blocks
// until all deliveries (including their retries) have settled.
func (p *Pipeline) Deliver(ctx context.Context, subscribers []int64, messages []string) {
	if len(messages) == 0 || len(subscribers) == 0 {
		return
	}

	batchID := logging.NewCorrelationID()
	ctx = logging.ContextWithCorrelationID(ctx, batchID)
	var wg sync.WaitGroup
	for _, subscriber := range subscribers {
		subscriber := subscriber
		wg.Add(1)
		p.workerPool <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-p.workerPool }()
			defer func() {
				if r := recover(); r != nil {
					p.logger.Error("panic delivering to subscriber",
						slog.String("batch_id", batchID),
						slog.Int64("subscriber", subscriber),
						slog.Any("panic", r),
						slog.String("stack", string(debug.Stack())))
				}
			}()
			p.deliverOne(ctx, batchID, subscriber, messages)
		}()
	}
	wg.Wait()
}

// deliverOne runs the retry table of §4.5 against a single subscriber,
// re-sending the whole message set on every attempt (the API exposes no
// partial-batch semantics) and retargeting on chat migration.
func (p *Pipeline) deliverOne(ctx context.Context, batchID string, subscriber int64, messages []string) {
	target := subscriber
	start := time.Now()

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := p.sendAll(ctx, target, messages)
		if err == nil {
			metrics.RecordDelivery("sent", time.Since(start))
			return
		}

		o, migratedTo, retryAfter := classify(err)
		switch o {
		case outcomeUnavailable:
			p.store.DeleteSubscriber(target)
			metrics.RecordDelivery("unsubscribed", time.Since(start))
			return
		case outcomeMigrated:
			p.store.UpdateSubscriber(target, migratedTo)
			target = migratedTo
			metrics.RecordDelivery("migrated", time.Since(start))
			continue
		case outcomeRateLimited:
			select {
			case <-time.After(time.Duration(retryAfter) * time.Second):
			case <-ctx.Done():
				metrics.RecordDelivery("failed", time.Since(start))
				return
			}
			metrics.RecordDelivery("retried", time.Since(start))
			continue
		default:
			p.logger.Warn("delivery failed",
				slog.String("batch_id", batchID),
				slog.Int64("subscriber", target),
				slog.Any("error", err))
			metrics.RecordDelivery("failed", time.Since(start))
			return
		}
	}

	p.logger.Warn("delivery exhausted retry budget",
		slog.String("batch_id", batchID),
		slog.Int64("subscriber", target))
	metrics.RecordDelivery("failed", time.Since(start))
}

func (p *Pipeline) sendAll(ctx context.Context, chatID int64, messages []string) error {
	for _, msg := range messages {
		if err := p.sender.SendMessage(ctx, chatID, msg); err != nil {
			return err
		}
	}
	return nil
}
