// Package delivery is the at-least-once message fan-out pipeline of §4.5:
// chunking long updates under Telegram's message cap, and per-recipient
// retry with chat-migration and rate-limit handling.
package delivery

import "strings"

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;", // one pass: replaced text is never rescanned, so no double escaping
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
)

// EscapeHTML escapes the four characters Telegram's HTML parse mode
// requires escaped in text content (§4.5).
func EscapeHTML(s string) string {
	return htmlEscaper.Replace(s)
}
