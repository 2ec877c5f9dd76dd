package core

import "time"

type (
	// Summary is the computed overview stored alongside an archived ledger.
	Summary struct {
		Total          Money
		CategoryTotals map[string]Money
		FinalBalances  map[string]Money
		ExpenseCount   int
		ArchivedAt     time.Time
	}

	// Archive is an immutable snapshot of a closed period: the frozen ledger
	// plus its summary, keyed by the ledger's period.
	Archive struct {
		Ledger  Ledger
		Summary Summary
	}
)

// Summarize computes the archive summary for a ledger as of now.
func Summarize(l *Ledger, now time.Time) Summary {
	s := Summary{
		CategoryTotals: make(map[string]Money),
		FinalBalances:  ComputeBalances(l),
		ExpenseCount:   len(l.Expenses),
		ArchivedAt:     now,
	}
	for _, e := range l.Expenses {
		s.Total.Cents += e.Amount.Cents
		cat := s.CategoryTotals[e.Category]
		cat.Cents += e.Amount.Cents
		s.CategoryTotals[e.Category] = cat
	}
	return s
}

// NewArchive freezes the ledger into an immutable archive record.
func NewArchive(l *Ledger, now time.Time) *Archive {
	return &Archive{
		Ledger:  *l.Clone(),
		Summary: Summarize(l, now),
	}
}
