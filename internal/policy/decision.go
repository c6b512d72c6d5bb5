// Package policy maps a scored candidate list to a single matching outcome.
package policy

import (
	"fmt"
	"sort"

	"github.com/ledgerline/reconcile/internal/common"
	"github.com/ledgerline/reconcile/internal/model"
	"github.com/ledgerline/reconcile/internal/score"
)

// Thresholds configures the decision boundaries. They live in configuration,
// not in the scorers, so tuning never touches scoring math.
type Thresholds struct {
	// Suggest is the minimum confidence worth showing a human.
	Suggest float64
	// AutoMatch is the minimum confidence for an unattended match.
	AutoMatch float64
	// Margin is the minimum lead over the runner-up before auto-matching;
	// it keeps the engine from auto-committing on a toss-up.
	Margin float64
	// MaxSuggestions caps how many candidates are kept for review.
	MaxSuggestions int
}

// DefaultThresholds returns the standard decision configuration.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Suggest:        0.5,
		AutoMatch:      0.9,
		Margin:         0.05,
		MaxSuggestions: 3,
	}
}

// Validate ensures the thresholds are coherent.
func (t Thresholds) Validate() error {
	if t.Suggest < 0 || t.Suggest > 1 {
		return fmt.Errorf("%w: suggest threshold must be between 0 and 1, got %v", common.ErrInvalidConfig, t.Suggest)
	}
	if t.AutoMatch < 0 || t.AutoMatch > 1 {
		return fmt.Errorf("%w: auto-match threshold must be between 0 and 1, got %v", common.ErrInvalidConfig, t.AutoMatch)
	}
	if t.Suggest >= t.AutoMatch {
		return fmt.Errorf("%w: suggest threshold %v must be below auto-match threshold %v", common.ErrInvalidConfig, t.Suggest, t.AutoMatch)
	}
	if t.Margin < 0 || t.Margin > 1 {
		return fmt.Errorf("%w: margin must be between 0 and 1, got %v", common.ErrInvalidConfig, t.Margin)
	}
	if t.MaxSuggestions < 1 {
		return fmt.Errorf("%w: max suggestions must be at least 1, got %d", common.ErrInvalidConfig, t.MaxSuggestions)
	}
	return nil
}

// Outcome is the decision for one scoring pass.
type Outcome string

// Outcome constants.
const (
	OutcomeAutoMatch Outcome = "auto_match"
	OutcomeSuggest   Outcome = "suggest"
	OutcomeNoMatch   Outcome = "no_match"
)

// ScoredCandidate pairs a candidate transaction with its score breakdown.
type ScoredCandidate struct {
	Transaction model.Transaction
	Scores      score.Breakdown
}

// Decision is the result of ranking a scored candidate list.
type Decision struct {
	Outcome Outcome
	// Ranked is the full candidate list ordered best-first.
	Ranked []ScoredCandidate
	// Suggestions holds the top candidates when Outcome is suggest, and the
	// single winning candidate when Outcome is auto_match.
	Suggestions []ScoredCandidate
}

// Best returns the top-ranked candidate, or nil when there is none.
func (d Decision) Best() *ScoredCandidate {
	if len(d.Ranked) == 0 {
		return nil
	}
	return &d.Ranked[0]
}

// Decide ranks the scored candidates and picks an outcome. The input slice
// is not mutated; ranking is a fold into a fresh ordered list.
func Decide(t Thresholds, candidates []ScoredCandidate) Decision {
	ranked := rank(candidates)

	if len(ranked) == 0 || ranked[0].Scores.Confidence < t.Suggest {
		return Decision{Outcome: OutcomeNoMatch, Ranked: ranked}
	}

	best := ranked[0]
	if best.Scores.Confidence >= t.AutoMatch {
		margin := best.Scores.Confidence
		if len(ranked) > 1 {
			margin = best.Scores.Confidence - ranked[1].Scores.Confidence
		}
		if margin >= t.Margin {
			return Decision{
				Outcome:     OutcomeAutoMatch,
				Ranked:      ranked,
				Suggestions: ranked[:1],
			}
		}
	}

	n := t.MaxSuggestions
	if n > len(ranked) {
		n = len(ranked)
	}
	suggestions := make([]ScoredCandidate, n)
	copy(suggestions, ranked[:n])

	return Decision{
		Outcome:     OutcomeSuggest,
		Ranked:      ranked,
		Suggestions: suggestions,
	}
}

// rank returns a fresh slice ordered by confidence descending, ties broken
// by the most recent transaction date, then by ID for stability.
func rank(candidates []ScoredCandidate) []ScoredCandidate {
	ranked := make([]ScoredCandidate, len(candidates))
	copy(ranked, candidates)

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Scores.Confidence != ranked[j].Scores.Confidence {
			return ranked[i].Scores.Confidence > ranked[j].Scores.Confidence
		}
		if !ranked[i].Transaction.Date.Equal(ranked[j].Transaction.Date) {
			return ranked[i].Transaction.Date.After(ranked[j].Transaction.Date)
		}
		return ranked[i].Transaction.ID < ranked[j].Transaction.ID
	})

	return ranked
}
