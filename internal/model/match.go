package model

import (
	"fmt"
	"time"
)

// MatchSource records who confirmed a match.
type MatchSource string

// Match source constants.
const (
	MatchBySystem MatchSource = "system"
	MatchByUser   MatchSource = "user"
)

// ConfirmedMatch is the authoritative, exclusive link between one inbox item
// and one transaction. Creating one is the only way an item reaches done.
type ConfirmedMatch struct {
	ConfirmedAt   time.Time
	InboxItemID   string
	TransactionID string
	ConfirmedBy   MatchSource
	ID            int64
}

// Validate ensures the ConfirmedMatch has valid data.
func (m *ConfirmedMatch) Validate() error {
	if m.InboxItemID == "" {
		return fmt.Errorf("confirmed match inbox item ID is required")
	}
	if m.TransactionID == "" {
		return fmt.Errorf("confirmed match transaction ID is required")
	}
	if m.ConfirmedBy != MatchBySystem && m.ConfirmedBy != MatchByUser {
		return fmt.Errorf("invalid match source: %q", m.ConfirmedBy)
	}
	return nil
}

// MatchEventType identifies an entry in the match audit trail.
type MatchEventType string

// Match event constants.
const (
	EventConfirmed MatchEventType = "confirmed"
	EventUnmatched MatchEventType = "unmatched"
	EventDeclined  MatchEventType = "declined"
)

// MatchEvent is one entry in a transaction's match history.
type MatchEvent struct {
	CreatedAt     time.Time
	InboxItemID   string
	TransactionID string
	Actor         MatchSource
	Type          MatchEventType
	ID            int64
}
