package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"kharcha/internal/core"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	s := New()
	ctx := context.Background()

	l := core.NewLedger(core.PeriodKey{Year: 2025, Month: 9}, []string{"A", "B"})
	l.Expenses = []core.Expense{{
		ID:          "e1",
		Category:    "Food",
		Description: "dinner",
		Amount:      core.Money{Cents: 2000},
		Payer:       "A",
		Sharers:     []string{"A", "B"},
		At:          time.Now().UTC(),
	}}

	if err := s.SaveLedger(ctx, l); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := s.LoadLedger(ctx, l.Period)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got.Expenses) != 1 || got.Expenses[0].ID != "e1" {
		t.Fatalf("unexpected round trip: %+v", got)
	}

	// The store must hand out copies, not the live ledger.
	got.Expenses[0].Description = "mutated"
	again, _ := s.LoadLedger(ctx, l.Period)
	if again.Expenses[0].Description == "mutated" {
		t.Fatal("store leaked a mutable reference")
	}
}

func TestLoadNotFound(t *testing.T) {
	s := New()
	if _, err := s.LoadLedger(context.Background(), core.PeriodKey{Year: 2025, Month: 1}); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestArchiveSwapAndDuplicate(t *testing.T) {
	s := New()
	ctx := context.Background()

	l := core.NewLedger(core.PeriodKey{Year: 2025, Month: 9}, []string{"A", "B"})
	if err := s.SaveLedger(ctx, l); err != nil {
		t.Fatalf("save: %v", err)
	}

	a := core.NewArchive(l, time.Now().UTC())
	fresh := core.NewLedger(l.Period.Next(), l.Roster)
	if err := s.ArchivePeriod(ctx, a, fresh); err != nil {
		t.Fatalf("archive: %v", err)
	}

	if _, err := s.LoadLedger(ctx, l.Period); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("closed ledger should be gone, got %v", err)
	}
	if _, err := s.LoadLedger(ctx, fresh.Period); err != nil {
		t.Errorf("fresh ledger missing: %v", err)
	}
	if _, err := s.GetArchive(ctx, l.Period); err != nil {
		t.Errorf("archive missing: %v", err)
	}

	if err := s.ArchivePeriod(ctx, a, fresh); !errors.Is(err, core.ErrPeriodArchived) {
		t.Fatalf("expected ErrPeriodArchived, got %v", err)
	}
}

func TestGetArchiveCopiesSummaryMaps(t *testing.T) {
	s := New()
	ctx := context.Background()

	l := core.NewLedger(core.PeriodKey{Year: 2025, Month: 9}, []string{"A", "B"})
	l.Expenses = []core.Expense{{
		ID:          "e1",
		Category:    "Food",
		Description: "dinner",
		Amount:      core.Money{Cents: 2000},
		Payer:       "A",
		Sharers:     []string{"A", "B"},
		At:          time.Now().UTC(),
	}}
	if err := s.SaveLedger(ctx, l); err != nil {
		t.Fatalf("save: %v", err)
	}

	a := core.NewArchive(l, time.Now().UTC())
	fresh := core.NewLedger(l.Period.Next(), l.Roster)
	if err := s.ArchivePeriod(ctx, a, fresh); err != nil {
		t.Fatalf("archive: %v", err)
	}

	// Mutating the caller's archive after storing must not reach the store.
	a.Summary.CategoryTotals["Food"] = core.Money{Cents: -1}
	a.Summary.FinalBalances["A"] = core.Money{Cents: -1}

	got, err := s.GetArchive(ctx, l.Period)
	if err != nil {
		t.Fatalf("get archive: %v", err)
	}
	if got.Summary.CategoryTotals["Food"].Cents != 2000 {
		t.Errorf("stored category total = %d, want 2000", got.Summary.CategoryTotals["Food"].Cents)
	}
	if got.Summary.FinalBalances["A"].Cents != 1000 {
		t.Errorf("stored balance[A] = %d, want 1000", got.Summary.FinalBalances["A"].Cents)
	}

	// And mutating a fetched archive must not reach the store either.
	got.Summary.CategoryTotals["Food"] = core.Money{Cents: -2}
	again, err := s.GetArchive(ctx, l.Period)
	if err != nil {
		t.Fatalf("get archive again: %v", err)
	}
	if again.Summary.CategoryTotals["Food"].Cents != 2000 {
		t.Errorf("category total after mutation = %d, want 2000", again.Summary.CategoryTotals["Food"].Cents)
	}
}
