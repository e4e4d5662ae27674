// Package telegram wraps go-telegram-bot-api/telegram-bot-api/v5 behind the
// narrow surface the delivery pipeline (§4.5) and gardener (§4.6) need:
// sending HTML messages and reading chat/membership info.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"rssbot/internal/resilience/circuitbreaker"
)

// ChatMember mirrors the subset of tgbotapi.ChatMember the gardener reads.
type ChatMember struct {
	Status string // "member", "left", "kicked", "administrator", ...
}

// Chat mirrors the subset of tgbotapi.Chat the gardener reads.
type Chat struct {
	ID               int64
	IsGroupOrChannel bool
}

// Client is the bot's handle onto the Telegram Bot API, circuit-broken the
// same way httpfetch.Client protects feed polling — a misbehaving Telegram
// endpoint should not cascade into every delivery and gardener goroutine
// hammering it in lockstep.
type Client struct {
	api     *tgbotapi.BotAPI
	breaker *circuitbreaker.CircuitBreaker
}

// New wraps an already-authenticated bot API handle.
func New(api *tgbotapi.BotAPI) *Client {
	cfg := circuitbreaker.DefaultConfig("telegram-api")
	// Per-recipient responses the delivery retry loop is built to handle
	// (chat migration, retry_after, unreachable chat) arrive as API errors
	// but say nothing about the API host's health. Counting them as breaker
	// failures would let one batch of migrated/kicked chats trip the
	// circuit and cut off delivery to healthy subscribers.
	cfg.IsSuccessful = func(err error) bool {
		return err == nil || IsExpectedAPIResponse(err)
	}
	return &Client{
		api:     api,
		breaker: circuitbreaker.New(cfg),
	}
}

// unavailablePhrases are the response descriptions that mean this chat can
// never be delivered to again, matching utlis.rs's chat_is_unavailable.
var unavailablePhrases = []string{
	"forbidden",
	"chat not found",
	"have no rights",
	"need administrator rights",
}

// IsChatUnavailable reports whether an API error description marks the
// recipient chat as permanently unreachable (bot blocked, chat deleted,
// rights revoked).
func IsChatUnavailable(message string) bool {
	lower := strings.ToLower(message)
	for _, phrase := range unavailablePhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// IsExpectedAPIResponse reports whether err is a per-recipient response the
// caller is expected to act on (migrate the chat, sleep retry_after, drop
// the subscriber) rather than a sign the API host itself is failing.
func IsExpectedAPIResponse(err error) bool {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.ResponseParameters.MigrateToChatID != 0 {
			return true
		}
		if apiErr.ResponseParameters.RetryAfter != 0 {
			return true
		}
		return IsChatUnavailable(apiErr.Message)
	}
	return false
}

// NewWithToken authenticates against the given API base URI (`--api-uri`),
// or the library's default endpoint when apiURI is empty. TLS verification
// is always on here; `--insecure` applies to feed fetching only.
func NewWithToken(token, apiURI string) (*Client, error) {
	var (
		api *tgbotapi.BotAPI
		err error
	)
	if apiURI != "" {
		api, err = tgbotapi.NewBotAPIWithAPIEndpoint(token, apiURI+"bot%s/%s")
	} else {
		api, err = tgbotapi.NewBotAPI(token)
	}
	if err != nil {
		return nil, fmt.Errorf("telegram: authenticate: %w", err)
	}
	return New(api), nil
}

// SendMessage sends one HTML-formatted message, satisfying delivery.Sender.
func (c *Client) SendMessage(ctx context.Context, chatID int64, html string) error {
	msg := tgbotapi.NewMessage(chatID, html)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	_, err := c.breaker.Execute(func() (interface{}, error) {
		return c.api.Send(msg)
	})
	return err
}

// GetChat fetches chat metadata for the gardener's membership scan.
func (c *Client) GetChat(ctx context.Context, chatID int64) (Chat, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.api.GetChat(tgbotapi.ChatInfoConfig{
			ChatConfig: tgbotapi.ChatConfig{ChatID: chatID},
		})
	})
	if err != nil {
		return Chat{}, err
	}
	chat := result.(tgbotapi.Chat)
	return Chat{
		ID:               chat.ID,
		IsGroupOrChannel: chat.IsGroup() || chat.IsSuperGroup() || chat.IsChannel(),
	}, nil
}

// GetChatMember fetches the bot's own membership status in chatID, the
// signal gardener.go acts on (left/kicked => prune).
func (c *Client) GetChatMember(ctx context.Context, chatID int64) (ChatMember, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.api.GetChatMember(tgbotapi.GetChatMemberConfig{
			ChatConfigWithUser: tgbotapi.ChatConfigWithUser{
				ChatID: chatID,
				UserID: c.api.Self.ID,
			},
		})
	})
	if err != nil {
		return ChatMember{}, err
	}
	member := result.(tgbotapi.ChatMember)
	return ChatMember{Status: member.Status}, nil
}
