package report

import (
	"strings"
	"testing"
	"time"

	"kharcha/internal/core"
)

func TestRender(t *testing.T) {
	ledger := core.NewLedger(core.PeriodKey{Year: 2025, Month: 9}, []string{"Ayesha", "Bilal"})
	ledger.Expenses = []core.Expense{
		{
			ID:          "e1",
			Category:    "Rent",
			Description: "september rent",
			Amount:      core.Money{Cents: 90000},
			Payer:       "Ayesha",
			Sharers:     []string{"Ayesha", "Bilal"},
			At:          time.Date(2025, 9, 1, 9, 0, 0, 0, time.UTC),
		},
		{
			ID:          "e2",
			Category:    "Groceries",
			Description: "weekly shop",
			Amount:      core.Money{Cents: 4550},
			Payer:       "Bilal",
			Sharers:     []string{"Ayesha", "Bilal"},
			At:          time.Date(2025, 9, 8, 18, 30, 0, 0, time.UTC),
		},
	}
	archive := core.NewArchive(ledger, time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC))

	got := Render(archive)

	wantLines := []string{
		"Monthly Summary 2025-09",
		"Category-wise Expenses:",
		"Groceries: 45.50",
		"Rent: 900.00",
		"Total: 945.50 (2 expenses)",
		"Per Person Balances:",
		"Ayesha: 427.25 (to receive)",
		"Bilal: 427.25 (to pay)",
		"Detailed Expense Breakdown:",
		"Date: 2025-09-08 18:30:00",
		"Paid by: Bilal",
		"Shared between: Ayesha, Bilal",
	}
	for _, line := range wantLines {
		if !strings.Contains(got, line) {
			t.Errorf("report missing %q\n%s", line, got)
		}
	}

	// Newest expense first in the breakdown.
	first := strings.Index(got, "Date: 2025-09-08")
	second := strings.Index(got, "Date: 2025-09-01")
	if first < 0 || second < 0 || first > second {
		t.Errorf("breakdown not newest-first:\n%s", got)
	}
}

func TestRenderSettledBalance(t *testing.T) {
	ledger := core.NewLedger(core.PeriodKey{Year: 2025, Month: 9}, []string{"Ayesha"})
	archive := core.NewArchive(ledger, time.Now())

	got := Render(archive)
	if !strings.Contains(got, "Ayesha: 0.00 (settled)") {
		t.Errorf("report missing settled line:\n%s", got)
	}
}
