package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/reconcile/internal/model"
	"github.com/ledgerline/reconcile/internal/score"
)

func candidate(id string, date time.Time, confidence float64) ScoredCandidate {
	return ScoredCandidate{
		Transaction: model.Transaction{ID: id, TeamID: "team-1", Date: date},
		Scores:      score.Breakdown{Confidence: confidence},
	}
}

func TestDecide_NoCandidates(t *testing.T) {
	d := Decide(DefaultThresholds(), nil)
	assert.Equal(t, OutcomeNoMatch, d.Outcome)
	assert.Nil(t, d.Best())
	assert.Empty(t, d.Suggestions)
}

func TestDecide_BelowSuggestThreshold(t *testing.T) {
	now := time.Now()
	d := Decide(DefaultThresholds(), []ScoredCandidate{
		candidate("txn-1", now, 0.49),
		candidate("txn-2", now, 0.2),
	})
	assert.Equal(t, OutcomeNoMatch, d.Outcome)
	assert.Empty(t, d.Suggestions)
}

func TestDecide_AutoMatchWithMargin(t *testing.T) {
	now := time.Now()
	d := Decide(DefaultThresholds(), []ScoredCandidate{
		candidate("txn-low", now, 0.40),
		candidate("txn-high", now, 0.95),
	})

	assert.Equal(t, OutcomeAutoMatch, d.Outcome)
	require.Len(t, d.Suggestions, 1)
	assert.Equal(t, "txn-high", d.Suggestions[0].Transaction.ID)
}

func TestDecide_SingleStrongCandidateAutoMatches(t *testing.T) {
	d := Decide(DefaultThresholds(), []ScoredCandidate{
		candidate("txn-1", time.Now(), 0.93),
	})
	assert.Equal(t, OutcomeAutoMatch, d.Outcome)
}

func TestDecide_TossUpFallsBackToSuggest(t *testing.T) {
	now := time.Now()
	d := Decide(DefaultThresholds(), []ScoredCandidate{
		candidate("txn-1", now, 0.95),
		candidate("txn-2", now, 0.93),
	})

	// Both above the auto threshold but inside the margin: never
	// auto-commit on a toss-up.
	assert.Equal(t, OutcomeSuggest, d.Outcome)
	assert.Len(t, d.Suggestions, 2)
}

func TestDecide_SuggestBand(t *testing.T) {
	now := time.Now()
	d := Decide(DefaultThresholds(), []ScoredCandidate{
		candidate("txn-1", now, 0.7645),
	})

	assert.Equal(t, OutcomeSuggest, d.Outcome)
	require.Len(t, d.Suggestions, 1)
	assert.Equal(t, "txn-1", d.Suggestions[0].Transaction.ID)
}

func TestDecide_SuggestionsCappedAndOrdered(t *testing.T) {
	now := time.Now()
	d := Decide(DefaultThresholds(), []ScoredCandidate{
		candidate("txn-1", now, 0.55),
		candidate("txn-2", now, 0.8),
		candidate("txn-3", now, 0.6),
		candidate("txn-4", now, 0.7),
	})

	require.Len(t, d.Suggestions, 3)
	assert.Equal(t, "txn-2", d.Suggestions[0].Transaction.ID)
	assert.Equal(t, "txn-4", d.Suggestions[1].Transaction.ID)
	assert.Equal(t, "txn-3", d.Suggestions[2].Transaction.ID)
}

func TestDecide_TieBrokenByMostRecentDate(t *testing.T) {
	older := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

	d := Decide(DefaultThresholds(), []ScoredCandidate{
		candidate("txn-old", older, 0.8),
		candidate("txn-new", newer, 0.8),
	})

	require.NotNil(t, d.Best())
	assert.Equal(t, "txn-new", d.Best().Transaction.ID)
}

func TestDecide_DoesNotMutateInput(t *testing.T) {
	now := time.Now()
	in := []ScoredCandidate{
		candidate("txn-1", now, 0.3),
		candidate("txn-2", now, 0.9),
	}

	Decide(DefaultThresholds(), in)
	assert.Equal(t, "txn-1", in[0].Transaction.ID)
}

func TestThresholds_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Thresholds)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Thresholds) {}, wantErr: false},
		{name: "suggest above auto", mutate: func(th *Thresholds) { th.Suggest = 0.95 }, wantErr: true},
		{name: "negative margin", mutate: func(th *Thresholds) { th.Margin = -0.1 }, wantErr: true},
		{name: "auto above one", mutate: func(th *Thresholds) { th.AutoMatch = 1.5 }, wantErr: true},
		{name: "zero suggestions", mutate: func(th *Thresholds) { th.MaxSuggestions = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			th := DefaultThresholds()
			tt.mutate(&th)
			err := th.Validate()
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}
