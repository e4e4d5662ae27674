package delivery

import (
	"context"
	"errors"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rssbot/internal/logging"
)

type fakeSender struct {
	mu    sync.Mutex
	calls map[int64]int
	fail  func(chatID int64, attempt int) error
}

func newFakeSender(fail func(chatID int64, attempt int) error) *fakeSender {
	return &fakeSender{calls: make(map[int64]int), fail: fail}
}

func (f *fakeSender) SendMessage(_ context.Context, chatID int64, _ string) error {
	f.mu.Lock()
	f.calls[chatID]++
	attempt := f.calls[chatID]
	f.mu.Unlock()
	if f.fail == nil {
		return nil
	}
	return f.fail(chatID, attempt)
}

type fakeStore struct {
	mu       sync.Mutex
	deleted  []int64
	migrated map[int64]int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{migrated: make(map[int64]int64)}
}

func (f *fakeStore) DeleteSubscriber(chatID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, chatID)
}

func (f *fakeStore) UpdateSubscriber(from, to int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.migrated[from] = to
}

func TestDeliverSucceedsOnFirstAttempt(t *testing.T) {
	sender := newFakeSender(nil)
	store := newFakeStore()
	p := NewPipeline(sender, store, logging.NewTextLogger(), 4)

	p.Deliver(context.Background(), []int64{1, 2}, []string{"hello"})

	assert.Equal(t, 1, sender.calls[1])
	assert.Equal(t, 1, sender.calls[2])
	assert.Empty(t, store.deleted)
}

func TestDeliverDeletesUnavailableSubscriber(t *testing.T) {
	sender := newFakeSender(func(int64, int) error {
		return errors.New("Forbidden: bot was blocked by the user")
	})
	store := newFakeStore()
	p := NewPipeline(sender, store, logging.NewTextLogger(), 4)

	p.Deliver(context.Background(), []int64{42}, []string{"hello"})

	require.Len(t, store.deleted, 1)
	assert.Equal(t, int64(42), store.deleted[0])
	assert.Equal(t, 1, sender.calls[42])
}

func TestDeliverRetargetsOnMigration(t *testing.T) {
	sender := newFakeSender(func(chatID int64, attempt int) error {
		if chatID == 42 {
			return &tgbotapi.Error{
				Message:            "Bad Request: group chat migrated",
				ResponseParameters: tgbotapi.ResponseParameters{MigrateToChatID: 100},
			}
		}
		return nil
	})
	store := newFakeStore()
	p := NewPipeline(sender, store, logging.NewTextLogger(), 4)

	p.Deliver(context.Background(), []int64{42}, []string{"hello"})

	assert.Equal(t, int64(100), store.migrated[42])
	assert.Equal(t, 1, sender.calls[42])
	assert.Equal(t, 1, sender.calls[100])
}

func TestDeliverStopsAfterOtherError(t *testing.T) {
	sender := newFakeSender(func(int64, int) error {
		return errors.New("boom")
	})
	store := newFakeStore()
	p := NewPipeline(sender, store, logging.NewTextLogger(), 4)

	p.Deliver(context.Background(), []int64{7}, []string{"hello"})

	assert.Equal(t, 1, sender.calls[7])
	assert.Empty(t, store.deleted)
}

func TestDeliverExhaustsRetryBudgetOnPersistentRateLimit(t *testing.T) {
	sender := newFakeSender(func(int64, int) error {
		return &tgbotapi.Error{
			Message:            "Too Many Requests",
			ResponseParameters: tgbotapi.ResponseParameters{RetryAfter: 1},
		}
	})
	store := newFakeStore()
	p := NewPipeline(sender, store, logging.NewTextLogger(), 4)

	p.Deliver(context.Background(), []int64{7}, []string{"hello"})

	assert.Equal(t, maxAttempts, sender.calls[7])
}

func TestDeliverNoopOnEmptyInputs(t *testing.T) {
	sender := newFakeSender(nil)
	store := newFakeStore()
	p := NewPipeline(sender, store, logging.NewTextLogger(), 4)

	p.Deliver(context.Background(), nil, []string{"hello"})
	p.Deliver(context.Background(), []int64{1}, nil)

	assert.Empty(t, sender.calls)
}
