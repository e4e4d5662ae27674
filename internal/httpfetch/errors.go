package httpfetch

import "fmt"

// Kind mirrors client.rs's FeedError: the three ways a fetch can fail, each
// with its own user-facing presentation (§7).
type Kind int

const (
	KindNetwork Kind = iota
	KindParse
	KindTooLarge
)

// Error carries Kind plus enough context to render the user-facing string
// §7 requires for TooLarge, and to classify the error for retry/logging
// purposes elsewhere.
type Error struct {
	Kind  Kind
	Limit uint64 // populated when Kind == KindTooLarge
	Err   error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindTooLarge:
		return fmt.Sprintf("feed too large (limit %s)", FormatByteSize(e.Limit))
	case KindParse:
		return fmt.Sprintf("feed parse error: %v", e.Err)
	default:
		return fmt.Sprintf("feed network error: %v", e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// UserFacing renders the localisable string for interactive /sub failures.
func (e *Error) UserFacing() string {
	switch e.Kind {
	case KindTooLarge:
		return fmt.Sprintf("feed exceeds the size limit (%s)", FormatByteSize(e.Limit))
	case KindParse:
		return "could not parse feed"
	default:
		return "network error while fetching feed"
	}
}

func networkErr(err error) *Error { return &Error{Kind: KindNetwork, Err: err} }
func parseErr(err error) *Error   { return &Error{Kind: KindParse, Err: err} }
func tooLargeErr(limit uint64) *Error {
	return &Error{Kind: KindTooLarge, Limit: limit}
}
