package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"kharcha/internal/core"
)

// TimeLayout is the serialized timestamp form used in archive records and
// the expenses table.
const TimeLayout = "2006-01-02 15:04:05"

type (
	// archiveRecord is the JSON form an archive is frozen into. It is written
	// once at period close and only ever read back whole.
	archiveRecord struct {
		Period    string          `json:"period"`
		Roommates []string        `json:"roommates"`
		Expenses  []expenseRecord `json:"expenses"`
		Summary   summaryRecord   `json:"summary"`
	}

	expenseRecord struct {
		ID            string   `json:"id"`
		Category      string   `json:"category"`
		Description   string   `json:"description"`
		AmountCents   int64    `json:"amount_cents"`
		PaidBy        string   `json:"paid_by"`
		SharedBetween []string `json:"shared_between"`
		Date          string   `json:"date"`
	}

	summaryRecord struct {
		TotalCents     int64            `json:"total_cents"`
		CategoryTotals map[string]int64 `json:"category_totals"`
		FinalBalances  map[string]int64 `json:"final_balances"`
		ExpenseCount   int              `json:"expense_count"`
		ArchivedAt     string           `json:"archived_at"`
	}
)

func encodeArchive(a *core.Archive) ([]byte, error) {
	rec := archiveRecord{
		Period:    a.Ledger.Period.String(),
		Roommates: a.Ledger.Roster,
		Expenses:  make([]expenseRecord, len(a.Ledger.Expenses)),
		Summary: summaryRecord{
			TotalCents:     a.Summary.Total.Cents,
			CategoryTotals: make(map[string]int64, len(a.Summary.CategoryTotals)),
			FinalBalances:  make(map[string]int64, len(a.Summary.FinalBalances)),
			ExpenseCount:   a.Summary.ExpenseCount,
			ArchivedAt:     a.Summary.ArchivedAt.UTC().Format(TimeLayout),
		},
	}
	for i, e := range a.Ledger.Expenses {
		rec.Expenses[i] = expenseRecord{
			ID:            e.ID,
			Category:      e.Category,
			Description:   e.Description,
			AmountCents:   e.Amount.Cents,
			PaidBy:        e.Payer,
			SharedBetween: e.Sharers,
			Date:          e.At.UTC().Format(TimeLayout),
		}
	}
	for cat, m := range a.Summary.CategoryTotals {
		rec.Summary.CategoryTotals[cat] = m.Cents
	}
	for name, m := range a.Summary.FinalBalances {
		rec.Summary.FinalBalances[name] = m.Cents
	}
	return json.Marshal(rec)
}

func decodeArchive(data []byte) (*core.Archive, error) {
	var rec archiveRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal archive record: %w", err)
	}
	period, err := core.ParsePeriodKey(rec.Period)
	if err != nil {
		return nil, fmt.Errorf("archive period: %w", err)
	}
	archivedAt, err := time.Parse(TimeLayout, rec.Summary.ArchivedAt)
	if err != nil {
		return nil, fmt.Errorf("archive timestamp: %w", err)
	}

	a := &core.Archive{
		Ledger: core.Ledger{
			Period:   period,
			Roster:   rec.Roommates,
			Expenses: make([]core.Expense, len(rec.Expenses)),
		},
		Summary: core.Summary{
			Total:          core.Money{Cents: rec.Summary.TotalCents},
			CategoryTotals: make(map[string]core.Money, len(rec.Summary.CategoryTotals)),
			FinalBalances:  make(map[string]core.Money, len(rec.Summary.FinalBalances)),
			ExpenseCount:   rec.Summary.ExpenseCount,
			ArchivedAt:     archivedAt,
		},
	}
	for i, e := range rec.Expenses {
		at, err := time.Parse(TimeLayout, e.Date)
		if err != nil {
			return nil, fmt.Errorf("expense %s timestamp: %w", e.ID, err)
		}
		a.Ledger.Expenses[i] = core.Expense{
			ID:          e.ID,
			Category:    e.Category,
			Description: e.Description,
			Amount:      core.Money{Cents: e.AmountCents},
			Payer:       e.PaidBy,
			Sharers:     e.SharedBetween,
			At:          at,
		}
	}
	for cat, cents := range rec.Summary.CategoryTotals {
		a.Summary.CategoryTotals[cat] = core.Money{Cents: cents}
	}
	for name, cents := range rec.Summary.FinalBalances {
		a.Summary.FinalBalances[name] = core.Money{Cents: cents}
	}
	return a, nil
}
