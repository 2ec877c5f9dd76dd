package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"kharcha/internal/amqp"
	"kharcha/internal/core"
	"kharcha/internal/storage/memory"
)

type capturedEvents struct {
	events []*amqp.LedgerEvent
}

func (c *capturedEvents) PublishEvent(_ context.Context, ev *amqp.LedgerEvent) error {
	c.events = append(c.events, ev)
	return nil
}

func newTestService(t *testing.T, roster ...string) (*LedgerService, *memory.Store, *capturedEvents) {
	t.Helper()
	store := memory.New()
	events := &capturedEvents{}
	svc, err := NewLedgerService(context.Background(), store, events, roster)
	if err != nil {
		t.Fatalf("NewLedgerService: %v", err)
	}
	svc.now = func() time.Time {
		return time.Date(2025, 9, 15, 10, 30, 0, 0, time.UTC)
	}
	return svc, store, events
}

func TestAddExpense(t *testing.T) {
	svc, store, events := newTestService(t, "Ayesha", "Bilal")
	ctx := context.Background()

	e, err := svc.AddExpense(ctx, ExpenseInput{
		Category:    "Groceries",
		Description: "weekly shop",
		Amount:      "45.50",
		Payer:       "Ayesha",
		Sharers:     []string{"Ayesha", "Bilal"},
	})
	if err != nil {
		t.Fatalf("AddExpense: %v", err)
	}
	if e.ID == "" {
		t.Error("expected a generated expense ID")
	}
	if e.Amount.Cents != 4550 {
		t.Errorf("amount = %d cents, want 4550", e.Amount.Cents)
	}
	if e.At.IsZero() {
		t.Error("expected a stamped time")
	}

	// The snapshot must be persisted.
	stored, err := store.LoadLedger(ctx, svc.Period())
	if err != nil {
		t.Fatalf("LoadLedger: %v", err)
	}
	if len(stored.Expenses) != 1 || stored.Expenses[0].ID != e.ID {
		t.Errorf("stored expenses = %+v, want the added expense", stored.Expenses)
	}

	if len(events.events) != 1 || events.events[0].Type != amqp.EventExpenseCreated {
		t.Errorf("events = %+v, want one expense_created", events.events)
	}
}

func TestAddExpenseArithmeticAmount(t *testing.T) {
	svc, _, _ := newTestService(t, "Ayesha", "Bilal")

	e, err := svc.AddExpense(context.Background(), ExpenseInput{
		Category:    "Utilities",
		Description: "split electricity",
		Amount:      "120/3+5",
		Payer:       "Bilal",
		Sharers:     []string{"Ayesha", "Bilal"},
	})
	if err != nil {
		t.Fatalf("AddExpense: %v", err)
	}
	if e.Amount.Cents != 4500 {
		t.Errorf("amount = %d cents, want 4500", e.Amount.Cents)
	}
}

func TestAddExpenseRejectsUnknownParticipant(t *testing.T) {
	svc, store, events := newTestService(t, "Ayesha", "Bilal")
	ctx := context.Background()

	_, err := svc.AddExpense(ctx, ExpenseInput{
		Category:    "Groceries",
		Description: "weekly shop",
		Amount:      "20",
		Payer:       "Ayesha",
		Sharers:     []string{"Ayesha", "Dara"},
	})
	if !errors.Is(err, core.ErrUnknownParticipant) {
		t.Fatalf("err = %v, want ErrUnknownParticipant", err)
	}

	stored, err := store.LoadLedger(ctx, svc.Period())
	if err != nil {
		t.Fatalf("LoadLedger: %v", err)
	}
	if len(stored.Expenses) != 0 {
		t.Errorf("rejected expense was persisted: %+v", stored.Expenses)
	}
	if len(events.events) != 0 {
		t.Errorf("rejected expense published events: %+v", events.events)
	}
}

func TestAddExpenseRejectsInvalidInput(t *testing.T) {
	svc, _, _ := newTestService(t, "Ayesha", "Bilal")

	tests := []struct {
		name string
		in   ExpenseInput
		want error
	}{
		{
			name: "zero amount",
			in:   ExpenseInput{Category: "Misc", Description: "x", Amount: "0", Payer: "Ayesha", Sharers: []string{"Bilal"}},
			want: core.ErrInvalidAmount,
		},
		{
			name: "malformed amount",
			in:   ExpenseInput{Category: "Misc", Description: "x", Amount: "ten", Payer: "Ayesha", Sharers: []string{"Bilal"}},
			want: core.ErrInvalidAmount,
		},
		{
			name: "empty category",
			in:   ExpenseInput{Category: " ", Description: "x", Amount: "10", Payer: "Ayesha", Sharers: []string{"Bilal"}},
			want: core.ErrEmptyCategory,
		},
		{
			name: "no sharers",
			in:   ExpenseInput{Category: "Misc", Description: "x", Amount: "10", Payer: "Ayesha"},
			want: core.ErrNoSharers,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.AddExpense(context.Background(), tt.in)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestEditExpense(t *testing.T) {
	svc, _, events := newTestService(t, "Ayesha", "Bilal")
	ctx := context.Background()

	e, err := svc.AddExpense(ctx, ExpenseInput{
		Category:    "Groceries",
		Description: "weekly shop",
		Amount:      "45.50",
		Payer:       "Ayesha",
		Sharers:     []string{"Ayesha", "Bilal"},
	})
	if err != nil {
		t.Fatalf("AddExpense: %v", err)
	}

	got, err := svc.EditExpense(ctx, e.ID, ExpenseInput{
		Category:    "Groceries",
		Description: "weekly shop plus cleaning",
		Amount:      "52.00",
		Payer:       "Bilal",
		Sharers:     []string{"Ayesha", "Bilal"},
	})
	if err != nil {
		t.Fatalf("EditExpense: %v", err)
	}
	if got.ID != e.ID {
		t.Errorf("edit changed expense ID: %s -> %s", e.ID, got.ID)
	}
	if got.Amount.Cents != 5200 || got.Payer != "Bilal" {
		t.Errorf("edited expense = %+v", got)
	}
	if !got.At.Equal(e.At) {
		t.Errorf("edit with zero time replaced timestamp: %v -> %v", e.At, got.At)
	}

	if n := len(events.events); n != 2 || events.events[1].Type != amqp.EventExpenseUpdated {
		t.Errorf("events = %+v, want expense_updated last", events.events)
	}
}

func TestEditExpenseNotFound(t *testing.T) {
	svc, _, _ := newTestService(t, "Ayesha")

	_, err := svc.EditExpense(context.Background(), "missing", ExpenseInput{
		Category:    "Misc",
		Description: "x",
		Amount:      "10",
		Payer:       "Ayesha",
		Sharers:     []string{"Ayesha"},
	})
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestDeleteExpense(t *testing.T) {
	svc, _, _ := newTestService(t, "Ayesha", "Bilal")
	ctx := context.Background()

	e, err := svc.AddExpense(ctx, ExpenseInput{
		Category:    "Groceries",
		Description: "weekly shop",
		Amount:      "45.50",
		Payer:       "Ayesha",
		Sharers:     []string{"Ayesha", "Bilal"},
	})
	if err != nil {
		t.Fatalf("AddExpense: %v", err)
	}

	if err := svc.DeleteExpense(ctx, e.ID); err != nil {
		t.Fatalf("DeleteExpense: %v", err)
	}
	if got := svc.Expenses(); len(got) != 0 {
		t.Errorf("expenses after delete = %+v", got)
	}
	if err := svc.DeleteExpense(ctx, e.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestRosterManagement(t *testing.T) {
	svc, _, _ := newTestService(t, "Ayesha", "Bilal")
	ctx := context.Background()

	if err := svc.AddParticipant(ctx, "Chandra"); err != nil {
		t.Fatalf("AddParticipant: %v", err)
	}
	if err := svc.AddParticipant(ctx, "Chandra"); !errors.Is(err, core.ErrDuplicateParticipant) {
		t.Errorf("duplicate add err = %v, want ErrDuplicateParticipant", err)
	}

	if err := svc.RemoveParticipant(ctx, "Bilal"); err != nil {
		t.Fatalf("RemoveParticipant: %v", err)
	}
	if err := svc.RemoveParticipant(ctx, "Bilal"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("remove absent err = %v, want ErrNotFound", err)
	}

	got := svc.Roster()
	want := []string{"Ayesha", "Chandra"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("roster = %v, want %v", got, want)
	}
}

func TestRemoveParticipantRetainsHistory(t *testing.T) {
	svc, _, _ := newTestService(t, "Ayesha", "Bilal")
	ctx := context.Background()

	if _, err := svc.AddExpense(ctx, ExpenseInput{
		Category:    "Rent",
		Description: "september rent",
		Amount:      "900",
		Payer:       "Ayesha",
		Sharers:     []string{"Ayesha", "Bilal"},
	}); err != nil {
		t.Fatalf("AddExpense: %v", err)
	}
	if err := svc.RemoveParticipant(ctx, "Bilal"); err != nil {
		t.Fatalf("RemoveParticipant: %v", err)
	}

	balances := svc.Balances()
	if balances["Bilal"].Cents != -45000 {
		t.Errorf("Bilal balance = %d cents, want -45000", balances["Bilal"].Cents)
	}

	// But new expenses can no longer involve the removed name.
	_, err := svc.AddExpense(ctx, ExpenseInput{
		Category:    "Misc",
		Description: "x",
		Amount:      "10",
		Payer:       "Bilal",
		Sharers:     []string{"Ayesha"},
	})
	if !errors.Is(err, core.ErrUnknownParticipant) {
		t.Errorf("err = %v, want ErrUnknownParticipant", err)
	}
}

func TestRecordSettlement(t *testing.T) {
	svc, _, events := newTestService(t, "Ayesha", "Bilal")
	ctx := context.Background()

	if _, err := svc.AddExpense(ctx, ExpenseInput{
		Category:    "Rent",
		Description: "september rent",
		Amount:      "900",
		Payer:       "Ayesha",
		Sharers:     []string{"Ayesha", "Bilal"},
	}); err != nil {
		t.Fatalf("AddExpense: %v", err)
	}

	plan := svc.Plan()
	if len(plan) != 1 || plan[0].From != "Bilal" || plan[0].To != "Ayesha" || plan[0].Amount.Cents != 45000 {
		t.Fatalf("plan = %+v", plan)
	}

	e, err := svc.RecordSettlement(ctx, "Bilal", "Ayesha", "450.00")
	if err != nil {
		t.Fatalf("RecordSettlement: %v", err)
	}
	if e.Category != core.CategorySettlement {
		t.Errorf("category = %q, want %q", e.Category, core.CategorySettlement)
	}

	balances := svc.Balances()
	for name, b := range balances {
		if b.Cents != 0 {
			t.Errorf("%s balance = %d cents after full settlement, want 0", name, b.Cents)
		}
	}
	if got := svc.Plan(); len(got) != 0 {
		t.Errorf("plan after settlement = %+v, want empty", got)
	}

	last := events.events[len(events.events)-1]
	if last.Type != amqp.EventSettlementRecorded {
		t.Errorf("last event = %q, want settlement_recorded", last.Type)
	}
}

func TestRecordSettlementSelfPayment(t *testing.T) {
	svc, _, _ := newTestService(t, "Ayesha")

	if _, err := svc.RecordSettlement(context.Background(), "Ayesha", "Ayesha", "10"); err == nil {
		t.Error("expected error for self settlement")
	}
}

func TestCloseMonth(t *testing.T) {
	svc, store, events := newTestService(t, "Ayesha", "Bilal")
	ctx := context.Background()

	if _, err := svc.AddExpense(ctx, ExpenseInput{
		Category:    "Rent",
		Description: "september rent",
		Amount:      "900",
		Payer:       "Ayesha",
		Sharers:     []string{"Ayesha", "Bilal"},
	}); err != nil {
		t.Fatalf("AddExpense: %v", err)
	}

	closed := svc.Period()
	archive, err := svc.CloseMonth(ctx)
	if err != nil {
		t.Fatalf("CloseMonth: %v", err)
	}
	if archive.Ledger.Period != closed {
		t.Errorf("archived period = %s, want %s", archive.Ledger.Period, closed)
	}
	if archive.Summary.Total.Cents != 90000 {
		t.Errorf("archived total = %d cents, want 90000", archive.Summary.Total.Cents)
	}

	// The active ledger moves to the next month, same roster, no expenses.
	if got := svc.Period(); got != closed.Next() {
		t.Errorf("active period = %s, want %s", got, closed.Next())
	}
	if got := svc.Expenses(); len(got) != 0 {
		t.Errorf("fresh ledger has expenses: %+v", got)
	}
	if got := svc.Roster(); len(got) != 2 {
		t.Errorf("fresh roster = %v, want carried over", got)
	}

	// The archive is retrievable and the closed ledger is gone.
	if _, err := svc.Archive(ctx, closed); err != nil {
		t.Errorf("Archive(%s): %v", closed, err)
	}
	if _, err := store.LoadLedger(ctx, closed); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("closed ledger still loadable, err = %v", err)
	}

	last := events.events[len(events.events)-1]
	if last.Type != amqp.EventPeriodArchived || last.Period != closed.String() {
		t.Errorf("last event = %+v, want period_archived for %s", last, closed)
	}
}

func TestCloseMonthDuplicate(t *testing.T) {
	svc, store, _ := newTestService(t, "Ayesha")
	ctx := context.Background()

	closed := svc.Period()
	if _, err := svc.CloseMonth(ctx); err != nil {
		t.Fatalf("CloseMonth: %v", err)
	}

	// Force the active period back to the archived one to simulate a retry.
	svc.mu.Lock()
	svc.ledger = core.NewLedger(closed, []string{"Ayesha"})
	svc.mu.Unlock()
	if err := store.SaveLedger(ctx, core.NewLedger(closed, []string{"Ayesha"})); err != nil {
		t.Fatalf("SaveLedger: %v", err)
	}

	if _, err := svc.CloseMonth(ctx); !errors.Is(err, core.ErrPeriodArchived) {
		t.Errorf("duplicate close err = %v, want ErrPeriodArchived", err)
	}
}

func TestNewLedgerServiceAdoptsActiveAfterClose(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	svc, err := NewLedgerService(ctx, store, nil, []string{"Ayesha", "Bilal"})
	if err != nil {
		t.Fatalf("NewLedgerService: %v", err)
	}
	closed := svc.Period()
	if _, err := svc.AddExpense(ctx, ExpenseInput{
		Category:    "Rent",
		Description: "rent",
		Amount:      "900",
		Payer:       "Ayesha",
		Sharers:     []string{"Ayesha", "Bilal"},
	}); err != nil {
		t.Fatalf("AddExpense: %v", err)
	}
	if _, err := svc.CloseMonth(ctx); err != nil {
		t.Fatalf("CloseMonth: %v", err)
	}
	next := svc.Period()

	// A restart inside the closed month must pick up the seeded next-month
	// ledger, not recreate the archived period as a fresh active one.
	restarted, err := NewLedgerService(ctx, store, nil, []string{"Ayesha", "Bilal"})
	if err != nil {
		t.Fatalf("NewLedgerService after close: %v", err)
	}
	if got := restarted.Period(); got != next {
		t.Errorf("restarted period = %s, want %s", got, next)
	}
	if _, err := store.LoadLedger(ctx, closed); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("restart recreated closed period %s, err = %v", closed, err)
	}
	if periods, err := store.ListPeriods(ctx); err != nil || len(periods) != 1 {
		t.Errorf("active periods after restart = %v (err %v), want just %s", periods, err, next)
	}
}

func TestPeriodBalancesConsistentDuringClose(t *testing.T) {
	svc, _, _ := newTestService(t, "Ayesha", "Bilal")
	ctx := context.Background()

	if _, err := svc.AddExpense(ctx, ExpenseInput{
		Category:    "Rent",
		Description: "rent",
		Amount:      "900",
		Payer:       "Ayesha",
		Sharers:     []string{"Ayesha", "Bilal"},
	}); err != nil {
		t.Fatalf("AddExpense: %v", err)
	}
	closed := svc.Period()

	done := make(chan error, 1)
	go func() {
		_, err := svc.CloseMonth(ctx)
		done <- err
	}()

	// Each snapshot must be internally consistent: the closed period shows
	// the outstanding debt, the fresh one shows all zeros. A mixed pair
	// means the period label and balances were read across the swap.
	for i := 0; i < 100; i++ {
		period, balances := svc.PeriodBalances()
		switch period {
		case closed:
			if balances["Bilal"].Cents != -45000 {
				t.Fatalf("period %s paired with balances %v", period, balances)
			}
		case closed.Next():
			if balances["Bilal"].Cents != 0 {
				t.Fatalf("period %s paired with balances %v", period, balances)
			}
		default:
			t.Fatalf("unexpected period %s", period)
		}
	}
	if err := <-done; err != nil {
		t.Fatalf("CloseMonth: %v", err)
	}

	period, plan := svc.PeriodPlan()
	if period != closed.Next() || len(plan) != 0 {
		t.Errorf("after close: period = %s, plan = %+v", period, plan)
	}
}

func TestNewLedgerServiceLoadsExisting(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	key := core.NewPeriodKey(time.Now())
	existing := core.NewLedger(key, []string{"Dara"})
	existing.Expenses = append(existing.Expenses, core.Expense{
		ID:          "e1",
		Category:    "Misc",
		Description: "carried over",
		Amount:      core.Money{Cents: 1000},
		Payer:       "Dara",
		Sharers:     []string{"Dara"},
		At:          time.Now(),
	})
	if err := store.SaveLedger(ctx, existing); err != nil {
		t.Fatalf("SaveLedger: %v", err)
	}

	svc, err := NewLedgerService(ctx, store, nil, []string{"Ayesha", "Bilal"})
	if err != nil {
		t.Fatalf("NewLedgerService: %v", err)
	}
	if got := svc.Roster(); len(got) != 1 || got[0] != "Dara" {
		t.Errorf("roster = %v, want the stored one", got)
	}
	if got := svc.Expenses(); len(got) != 1 {
		t.Errorf("expenses = %+v, want the stored one", got)
	}
}
