package engine

import (
	"context"
	"log/slog"

	"github.com/ledgerline/reconcile/internal/model"
)

// BulkFailure records one item that could not be confirmed during a batch.
type BulkFailure struct {
	ID     string
	Reason string
}

// BulkConfirmResult summarizes a bulk confirmation run.
type BulkConfirmResult struct {
	Failed    []BulkFailure
	Confirmed int
}

// BulkConfirmAutoEligible confirms every suggested_match item whose best
// suggestion clears the auto-match threshold. Items usually end up in this
// position when they were scored before the threshold was lowered, or when
// an operator wants to sweep the review queue. One item's failure never
// aborts the batch.
func (e *MatchEngine) BulkConfirmAutoEligible(ctx context.Context, teamID string) (BulkConfirmResult, error) {
	var result BulkConfirmResult

	// Snapshot the queue first: confirming as we page would shift offsets
	// under the pagination.
	const pageSize = 100
	var queue []model.InboxItem
	for offset := 0; ; offset += pageSize {
		items, err := e.storage.ListInboxItemsByStatus(ctx, teamID,
			[]model.InboxStatus{model.StatusSuggestedMatch}, pageSize, offset)
		if err != nil {
			return result, err
		}
		queue = append(queue, items...)
		if len(items) < pageSize {
			break
		}
	}

	for i := range queue {
		item := &queue[i]
		if err := ctx.Err(); err != nil {
			return result, err
		}

		suggestions, err := e.storage.GetSuggestionsForItem(ctx, item.ID)
		if err != nil {
			result.Failed = append(result.Failed, BulkFailure{ID: item.ID, Reason: err.Error()})
			continue
		}

		best := suggestions.Best()
		if best == nil || best.Confidence < e.config.Thresholds.AutoMatch {
			continue
		}

		if _, err := e.Confirm(ctx, item.ID, best.TransactionID, model.MatchByUser); err != nil {
			slog.Warn("Bulk confirm failed for item",
				"inbox_item_id", item.ID,
				"transaction_id", best.TransactionID,
				"error", err)
			result.Failed = append(result.Failed, BulkFailure{ID: item.ID, Reason: err.Error()})
			continue
		}
		result.Confirmed++
	}

	return result, nil
}

// DiscrepancyQueue pages through the items that found no acceptable match
// and await manual review. Review actions are the ordinary state machine
// primitives: Confirm to resolve, Archive to exclude.
func (e *MatchEngine) DiscrepancyQueue(ctx context.Context, teamID string, limit, offset int) ([]model.InboxItem, error) {
	return e.storage.ListInboxItemsByStatus(ctx, teamID,
		[]model.InboxStatus{model.StatusNoMatch, model.StatusPending}, limit, offset)
}
