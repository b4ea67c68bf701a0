// Package audit defines the append-only audit event model. One entry is
// written per significant state transition with a free-form JSON payload.
package audit

import "time"

// Well-known event names.
const (
	EventLockConfirmed  = "eth_lock_confirmed"
	EventLockError      = "eth_lock_error"
	EventRoundStarted   = "auction_round_started"
	EventRoundCompleted = "auction_round_completed"
)

// Entry is a single audit row.
type Entry struct {
	ID        string
	Event     string
	Payload   []byte
	CreatedAt time.Time
}
