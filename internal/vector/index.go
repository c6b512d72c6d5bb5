// Package vector provides a local, brute-force vector index over stored
// transaction embeddings. It exists so the engine runs without an external
// ANN service; larger deployments can swap in one behind the same interface.
package vector

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/ledgerline/reconcile/internal/model"
	"github.com/ledgerline/reconcile/internal/service"
)

// EmbeddingSource is the slice of storage the index needs.
type EmbeddingSource interface {
	GetTransactionsWithEmbeddings(ctx context.Context, teamID string) ([]model.Transaction, error)
}

// LocalIndex scans a team's stored embeddings and ranks by cosine distance.
type LocalIndex struct {
	storage EmbeddingSource
}

// NewLocalIndex creates a local index backed by the given storage.
func NewLocalIndex(storage EmbeddingSource) *LocalIndex {
	return &LocalIndex{storage: storage}
}

// Nearest returns up to k transactions ordered by ascending cosine distance
// from the query embedding.
func (x *LocalIndex) Nearest(ctx context.Context, teamID string, embedding []float64, k int) ([]service.Neighbor, error) {
	if len(embedding) == 0 {
		return nil, fmt.Errorf("query embedding is empty")
	}
	if k <= 0 {
		k = 20
	}

	transactions, err := x.storage.GetTransactionsWithEmbeddings(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to load embeddings: %w", err)
	}

	neighbors := make([]service.Neighbor, 0, len(transactions))
	for i := range transactions {
		txn := &transactions[i]
		if len(txn.Embedding) != len(embedding) {
			continue
		}
		neighbors = append(neighbors, service.Neighbor{
			TransactionID: txn.ID,
			Distance:      CosineDistance(embedding, txn.Embedding),
		})
	}

	sort.Slice(neighbors, func(i, j int) bool {
		if neighbors[i].Distance != neighbors[j].Distance {
			return neighbors[i].Distance < neighbors[j].Distance
		}
		return neighbors[i].TransactionID < neighbors[j].TransactionID
	})

	if len(neighbors) > k {
		neighbors = neighbors[:k]
	}
	return neighbors, nil
}

// CosineDistance returns 1 minus the cosine similarity of two equal-length
// vectors. A zero vector is treated as maximally distant.
func CosineDistance(a, b []float64) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}
