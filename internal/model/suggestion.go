package model

import (
	"fmt"
	"time"
)

// MatchSuggestion is a persisted, disposable candidate match for one inbox
// item. It is never authoritative: every scoring pass for the item replaces
// the previous set wholesale.
type MatchSuggestion struct {
	ScoredAt        time.Time
	TransactionDate time.Time
	ID              string
	InboxItemID     string
	TransactionID   string
	Confidence      float64
	AmountScore     float64
	DateScore       float64
	SimilarityScore float64
}

// Validate ensures the MatchSuggestion has valid data.
func (s *MatchSuggestion) Validate() error {
	if s.InboxItemID == "" {
		return fmt.Errorf("suggestion inbox item ID is required")
	}
	if s.TransactionID == "" {
		return fmt.Errorf("suggestion transaction ID is required")
	}
	if s.Confidence < 0.0 || s.Confidence > 1.0 {
		return fmt.Errorf("confidence must be between 0.0 and 1.0, got %.4f", s.Confidence)
	}
	return nil
}

// MatchSuggestions is a slice of MatchSuggestion that supports sorting.
type MatchSuggestions []MatchSuggestion

// Len implements sort.Interface.
func (s MatchSuggestions) Len() int {
	return len(s)
}

// Less implements sort.Interface - higher confidence first, ties broken by
// the most recent transaction date.
func (s MatchSuggestions) Less(i, j int) bool {
	if s[i].Confidence != s[j].Confidence {
		return s[i].Confidence > s[j].Confidence
	}
	return s[i].TransactionDate.After(s[j].TransactionDate)
}

// Swap implements sort.Interface.
func (s MatchSuggestions) Swap(i, j int) {
	s[i], s[j] = s[j], s[i]
}

// Best returns the highest-confidence suggestion, or nil when empty.
func (s MatchSuggestions) Best() *MatchSuggestion {
	if len(s) == 0 {
		return nil
	}
	best := &s[0]
	for i := 1; i < len(s); i++ {
		if s[i].Confidence > best.Confidence {
			best = &s[i]
		}
	}
	return best
}
