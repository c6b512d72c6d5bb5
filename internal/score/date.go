package score

import (
	"time"

	"github.com/ledgerline/reconcile/internal/model"
)

// DateScore rates how plausible the gap between a document date and a
// transaction date is, in [0,1]. The shape depends on the document kind:
// an expense receipt is paid at or around its own date, while an invoice is
// usually settled on net terms weeks after issue.
func DateScore(itemDate, txnDate time.Time, kind model.DocumentKind) float64 {
	if kind == model.KindInvoice {
		return invoiceDateScore(itemDate, txnDate)
	}
	return expenseDateScore(itemDate, txnDate)
}

func expenseDateScore(itemDate, txnDate time.Time) float64 {
	gap := daysBetween(itemDate, txnDate)
	if gap < 0 {
		gap = -gap
	}

	switch {
	case gap <= 1:
		return 0.99
	case gap <= 3:
		return 0.95
	case gap <= 7:
		return 0.9
	case gap <= 30:
		return maxFloat(0.7, 0.9-0.01*float64(gap-7))
	default:
		return 0.6
	}
}

func invoiceDateScore(itemDate, txnDate time.Time) float64 {
	// Signed: positive when the payment lands after the issue date.
	gap := daysBetween(itemDate, txnDate)

	switch {
	case gap < 0:
		// Advance payment before the issue date happens, but is unusual.
		return 0.85
	case gap <= 6:
		return 0.99
	case gap >= 24 && gap <= 38:
		// Net-30 terms with a few days of settlement slack.
		return 0.98
	case gap >= 55 && gap <= 68:
		return 0.96
	case gap <= 123:
		return maxFloat(0.7, 0.9-0.01*float64(gap-6))
	default:
		return 0.85
	}
}

// daysBetween returns whole calendar days from a to b, ignoring clock time.
func daysBetween(a, b time.Time) int {
	au := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	bu := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(bu.Sub(au).Hours() / 24)
}
