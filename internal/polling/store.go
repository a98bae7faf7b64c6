// Package polling emulates the relay's signaling semantics over a plain
// HTTP request/response channel, for clients that cannot hold a websocket
// open. Messages are appended to per-(session, type) logs and read back
// with monotonically increasing cursors.
package polling

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrSessionNotFound is returned by Clear for sessions with no logs.
var ErrSessionNotFound = errors.New("session not found")

// Message types accepted by the polling transport.
const (
	TypeOffer     = "offer"
	TypeAnswer    = "answer"
	TypeCandidate = "candidate"
)

// ValidType reports whether t is a known polling message type.
func ValidType(t string) bool {
	return t == TypeOffer || t == TypeAnswer || t == TypeCandidate
}

// MessageLog is the append-only store behind the polling transport. The
// handler owns one instance for the lifetime of the process.
type MessageLog interface {
	// Append adds payload to the (sessionID, msgType) log, creating the
	// log if absent.
	Append(ctx context.Context, sessionID, msgType string, payload json.RawMessage) error

	// After returns all payloads appended strictly after lastIndex and
	// the new cursor value (lastIndex + count returned). Unknown
	// sessions or types yield an empty result, not an error.
	After(ctx context.Context, sessionID, msgType string, lastIndex int) ([]json.RawMessage, int, error)

	// Clear deletes all logs for a session. ErrSessionNotFound if the
	// session had none.
	Clear(ctx context.Context, sessionID string) error
}
