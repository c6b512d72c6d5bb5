package engine

import (
	"context"

	"github.com/ledgerline/reconcile/internal/model"
	"github.com/ledgerline/reconcile/internal/retriever"
)

// CandidateRetriever fetches the bounded candidate set for one inbox item.
type CandidateRetriever interface {
	Retrieve(ctx context.Context, item *model.InboxItem) ([]retriever.Candidate, error)
}
