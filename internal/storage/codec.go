package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Optional decimals and embeddings are stored as TEXT: decimals keep exact
// money values out of floating point, embeddings are JSON arrays.

func encodeDecimal(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func decodeDecimal(ns sql.NullString) (*decimal.Decimal, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(ns.String)
	if err != nil {
		return nil, fmt.Errorf("failed to parse stored amount %q: %w", ns.String, err)
	}
	return &d, nil
}

func encodeEmbedding(v []float64) (any, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode embedding: %w", err)
	}
	return string(data), nil
}

func decodeEmbedding(ns sql.NullString) ([]float64, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	var v []float64
	if err := json.Unmarshal([]byte(ns.String), &v); err != nil {
		return nil, fmt.Errorf("failed to decode stored embedding: %w", err)
	}
	return v, nil
}
