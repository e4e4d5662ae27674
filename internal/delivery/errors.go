package delivery

import (
	"errors"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"rssbot/internal/telegram"
)

// outcome classifies a send failure into the four buckets the retry table
// (§4.5) dispatches on, grounded on utlis.rs's chat_is_unavailable and
// fetcher.rs's inline match on migrate_to_chat_id / retry_after.
type outcome int

const (
	outcomeOther outcome = iota
	outcomeUnavailable
	outcomeMigrated
	outcomeRateLimited
)

// classify inspects a send error and returns which retry-table row applies,
// plus the row's payload: the new chat ID for a migration, or the sleep
// duration (seconds) for a rate limit. The chat-unavailable phrase match
// lives in the telegram package, shared with its circuit breaker's
// expected-response classification.
func classify(err error) (o outcome, migratedTo int64, retryAfterSeconds int) {
	if err == nil {
		return outcomeOther, 0, 0
	}

	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.ResponseParameters.MigrateToChatID != 0 {
			return outcomeMigrated, apiErr.ResponseParameters.MigrateToChatID, 0
		}
		if apiErr.ResponseParameters.RetryAfter != 0 {
			return outcomeRateLimited, 0, apiErr.ResponseParameters.RetryAfter
		}
		if telegram.IsChatUnavailable(apiErr.Message) {
			return outcomeUnavailable, 0, 0
		}
		return outcomeOther, 0, 0
	}

	if telegram.IsChatUnavailable(err.Error()) {
		return outcomeUnavailable, 0, 0
	}
	return outcomeOther, 0, 0
}
