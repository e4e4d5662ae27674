package delivery

import (
	"strings"
	"unicode/utf16"
)

// MaxMessageLen is Telegram's message length cap, in UTF-16 code units per
// §4.5 — the unit the Bot API itself counts in, so non-BMP characters
// (each two code units) are measured the way the server will measure them.
const MaxMessageLen = 4096

// utf16Len counts s the way Telegram does: one code unit per BMP rune, two
// per rune above U+FFFF.
func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}

// Split implements §4.5's large-message chunking: header is always the
// first line of the first message; each subsequent item's formatted line
// is appended, starting a new message whenever the addition would push the
// current one over MaxMessageLen. Every returned message individually
// respects the cap.
func Split[T any](header string, items []T, format func(T) string) []string {
	messages := []string{header}
	for _, item := range items {
		line := format(item)
		cur := messages[len(messages)-1]
		if cur != "" && utf16Len(cur)+1+utf16Len(line) > MaxMessageLen {
			messages = append(messages, truncateLine(line))
			continue
		}
		if cur == "" {
			messages[len(messages)-1] = truncateLine(line)
		} else {
			messages[len(messages)-1] = cur + "\n" + line
		}
	}
	return messages
}

// truncateLine guards against a single formatted line already exceeding
// the cap (a pathologically long title) by hard-truncating it; Split's
// accumulation logic assumes every individual line fits on its own.
func truncateLine(line string) string {
	if utf16Len(line) <= MaxMessageLen {
		return line
	}
	var b strings.Builder
	budget := MaxMessageLen - 3
	n := 0
	for _, r := range line {
		n += utf16.RuneLen(r)
		if n > budget {
			break
		}
		b.WriteRune(r)
	}
	return b.String() + "..."
}
