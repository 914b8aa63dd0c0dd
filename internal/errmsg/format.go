// Package errmsg provides consistent error formatting for user-facing messages.
package errmsg

import "fmt"

// Op represents an operation that can fail.
type Op string

// Operation constants - grouped by domain.
const (
	// Context operations
	OpContextOpen     Op = "open context"
	OpContextClose    Op = "close context"
	OpContextSnapshot Op = "apply playback snapshot"
	OpContextList     Op = "list contexts"

	// Song operations
	OpSongSkip    Op = "skip song"
	OpSongEdit    Op = "edit song"
	OpSongReset   Op = "reset song edits"
	OpSongLove    Op = "update love status"
	OpSongRetry   Op = "retry scrobble"
	OpSongEnabled Op = "change scrobbling state"

	// Account operations
	OpAuthLink   Op = "link account"
	OpAuthUnlink Op = "unlink account"

	// Retry queue operations
	OpPendingList  Op = "list pending scrobbles"
	OpPendingFlush Op = "submit pending scrobbles"

	// Initialization
	OpInitialize Op = "initialize daemon"
)

// Format creates a user-friendly error message.
func Format(op Op, err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("Failed to %s: %v", op, err)
}

// FormatWith creates an error message with additional context.
func FormatWith(op Op, context string, err error) string {
	if err == nil {
		return ""
	}
	if context == "" {
		return Format(op, err)
	}
	return fmt.Sprintf("Failed to %s '%s': %v", op, context, err)
}
