package engine

import "github.com/ledgerline/reconcile/internal/model"

// The lifecycle is a closed transition table. Every mutation of an inbox
// item's status goes through a guarded, conditional write against one of
// these source sets; an operation issued from any other status is rejected
// with InvalidTransition rather than coerced.
var (
	ingestFrom  = []model.InboxStatus{model.StatusNew}
	decideFrom  = []model.InboxStatus{model.StatusAnalyzing}
	confirmFrom = []model.InboxStatus{
		model.StatusSuggestedMatch, model.StatusNoMatch, model.StatusPending,
	}
	retryFrom = []model.InboxStatus{
		model.StatusNoMatch, model.StatusPending,
	}
	archiveFrom = []model.InboxStatus{
		model.StatusNew, model.StatusAnalyzing, model.StatusDone,
		model.StatusSuggestedMatch, model.StatusNoMatch, model.StatusPending,
		model.StatusArchived,
	}
	deleteFrom = []model.InboxStatus{
		model.StatusNew, model.StatusAnalyzing, model.StatusDone,
		model.StatusSuggestedMatch, model.StatusNoMatch, model.StatusPending,
		model.StatusArchived,
	}
)

// allowedFrom returns whether status appears in the given source set.
func allowedFrom(set []model.InboxStatus, status model.InboxStatus) bool {
	for _, s := range set {
		if s == status {
			return true
		}
	}
	return false
}
