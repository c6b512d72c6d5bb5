// Package score implements the signal scorers and confidence aggregator for
// the reconciliation engine. Every function here is pure: no I/O, no state,
// no dependence on scoring order.
package score

import (
	"github.com/shopspring/decimal"
)

// Score tier boundaries for amount differences.
var (
	exactDiff = decimal.NewFromFloat(0.01)
	closeDiff = decimal.NewFromInt(1)
	nearDiff  = decimal.NewFromInt(5)
)

// AmountSignal carries one side's amount information. Amount and BaseAmount
// are nil when unknown; a missing amount is a neutral signal, never an error.
type AmountSignal struct {
	Amount       *decimal.Decimal
	BaseAmount   *decimal.Decimal
	Currency     string
	BaseCurrency string
}

// AmountScore compares two amount signals and returns a score in [0.3, 1.0],
// or the neutral 0.5 when either amount is missing. Amount alone must never
// veto a match the other signals support, hence the 0.3 floor.
func AmountScore(a, b AmountSignal) float64 {
	if a.Amount == nil || b.Amount == nil {
		return 0.5
	}

	if a.Currency == b.Currency {
		return tieredScore(*a.Amount, *b.Amount, 1.0)
	}

	// Different currencies: prefer a verified comparison in a shared base
	// currency, with a slightly lower ceiling than a native-currency match.
	if a.BaseAmount != nil && b.BaseAmount != nil && a.BaseCurrency == b.BaseCurrency {
		return baseTieredScore(*a.BaseAmount, *b.BaseAmount)
	}

	// No verified conversion available. A raw cross-currency comparison is
	// inherently risky, so the whole score takes a flat 40% penalty.
	return tieredScore(*a.Amount, *b.Amount, 1.0) * 0.6
}

func tieredScore(a, b decimal.Decimal, ceiling float64) float64 {
	diff := a.Sub(b).Abs()

	switch {
	case diff.LessThan(exactDiff):
		return ceiling
	case diff.LessThan(closeDiff):
		return ceiling - 0.05
	case diff.LessThan(nearDiff):
		return ceiling - 0.15
	}

	ratio := diffRatio(diff, a, b)
	return maxFloat(0.3, 1.0-ratio)
}

func baseTieredScore(a, b decimal.Decimal) float64 {
	diff := a.Sub(b).Abs()

	switch {
	case diff.LessThan(exactDiff):
		return 0.98
	case diff.LessThan(closeDiff):
		return 0.92
	case diff.LessThan(nearDiff):
		return 0.82
	}

	ratio := diffRatio(diff, a, b)
	return maxFloat(0.3, 0.9-ratio)
}

// diffRatio returns diff divided by the larger magnitude of the two amounts.
func diffRatio(diff, a, b decimal.Decimal) float64 {
	larger := a.Abs()
	if b.Abs().GreaterThan(larger) {
		larger = b.Abs()
	}
	if larger.IsZero() {
		return 0
	}
	ratio, _ := diff.Div(larger).Float64()
	return ratio
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
