// Package services provides business logic and orchestration for the
// household ledger: expense mutations, roster edits, settlement planning
// and month closing.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"kharcha/internal/amqp"
	"kharcha/internal/core"
	"kharcha/internal/storage"
)

// EventPublisher publishes ledger events after successful mutations.
// A nil publisher disables eventing.
type EventPublisher interface {
	PublishEvent(ctx context.Context, ev *amqp.LedgerEvent) error
}

// ExpenseInput carries the raw fields of an expense create or edit request.
// Amount is the unparsed user text and may be an arithmetic expression
// such as "120/3+5".
type ExpenseInput struct {
	Category    string
	Description string
	Amount      string
	Payer       string
	Sharers     []string
	At          time.Time
}

// LedgerService owns the active ledger for the current period. All access
// goes through its mutex; reads hand out deep copies so callers can never
// alias the live state.
type LedgerService struct {
	mu     sync.Mutex
	store  storage.Store
	events EventPublisher
	ledger *core.Ledger
	now    func() time.Time
}

// NewLedgerService loads the ledger for the current period, creating and
// persisting an empty one seeded with defaultRoster when none is stored.
func NewLedgerService(ctx context.Context, store storage.Store, events EventPublisher, defaultRoster []string) (*LedgerService, error) {
	s := &LedgerService{
		store:  store,
		events: events,
		now:    time.Now,
	}

	key := core.NewPeriodKey(s.now())
	ledger, err := store.LoadLedger(ctx, key)
	if err != nil {
		if !isNotFound(err) {
			return nil, fmt.Errorf("load ledger %s: %w", key, err)
		}
		ledger, err = s.adoptOrCreate(ctx, key, defaultRoster)
		if err != nil {
			return nil, err
		}
	}

	s.ledger = ledger
	return s, nil
}

// adoptOrCreate resolves the active ledger when nothing is stored under the
// current period key. Closing a month mid-month seeds the fresh ledger under
// a future key, so on restart the stored active ledger must be adopted; a
// closed period stays closed and is never recreated as a new active ledger.
func (s *LedgerService) adoptOrCreate(ctx context.Context, key core.PeriodKey, defaultRoster []string) (*core.Ledger, error) {
	active, err := s.store.ListPeriods(ctx)
	if err != nil {
		return nil, fmt.Errorf("list periods: %w", err)
	}
	if n := len(active); n > 0 {
		latest := active[n-1]
		ledger, err := s.store.LoadLedger(ctx, latest)
		if err != nil {
			return nil, fmt.Errorf("load ledger %s: %w", latest, err)
		}
		slog.InfoContext(ctx, "Adopted stored active ledger",
			"component", "ledger_service",
			"period", latest.String())
		return ledger, nil
	}

	archived, err := s.store.ListArchives(ctx)
	if err != nil {
		return nil, fmt.Errorf("list archives: %w", err)
	}
	if n := len(archived); n > 0 && !archived[n-1].Before(key) {
		// The current month is already closed; start the following one.
		key = archived[n-1].Next()
	}

	ledger := core.NewLedger(key, defaultRoster)
	if err := s.store.SaveLedger(ctx, ledger); err != nil {
		return nil, fmt.Errorf("create ledger %s: %w", key, err)
	}
	slog.InfoContext(ctx, "Created new period ledger",
		"component", "ledger_service",
		"period", key.String(),
		"roster_size", len(defaultRoster))
	return ledger, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, core.ErrNotFound)
}

// Period returns the key of the active period.
func (s *LedgerService) Period() core.PeriodKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Period
}

// Snapshot returns a deep copy of the active ledger.
func (s *LedgerService) Snapshot() *core.Ledger {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Clone()
}

// Expenses returns copies of the active period's expenses in insertion order.
func (s *LedgerService) Expenses() []core.Expense {
	return s.Snapshot().Expenses
}

// AddExpense validates the input, assigns a fresh ID and appends the expense
// to the active ledger. The amount may be an arithmetic expression.
func (s *LedgerService) AddExpense(ctx context.Context, in ExpenseInput) (core.Expense, error) {
	e, err := s.buildExpense(in)
	if err != nil {
		return core.Expense{}, err
	}
	e.ID = uuid.New().String()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ledger.CheckMembership(e); err != nil {
		return core.Expense{}, err
	}

	s.ledger.Expenses = append(s.ledger.Expenses, e)
	if err := s.persist(ctx); err != nil {
		return core.Expense{}, err
	}

	s.publish(ctx, amqp.EventExpenseCreated, e.ID)
	slog.InfoContext(ctx, "Expense added",
		"component", "ledger_service",
		"expense_id", e.ID,
		"category", e.Category,
		"amount", e.Amount.String(),
		"payer", e.Payer)
	return e, nil
}

// EditExpense replaces the expense with the given id. The stored timestamp
// is kept when the input carries a zero time.
func (s *LedgerService) EditExpense(ctx context.Context, id string, in ExpenseInput) (core.Expense, error) {
	e, err := s.buildExpense(in)
	if err != nil {
		return core.Expense{}, err
	}
	e.ID = id

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i := range s.ledger.Expenses {
		if s.ledger.Expenses[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return core.Expense{}, fmt.Errorf("expense %s: %w", id, core.ErrNotFound)
	}

	if err := s.ledger.CheckMembership(e); err != nil {
		return core.Expense{}, err
	}
	if e.At.IsZero() {
		e.At = s.ledger.Expenses[idx].At
	}

	s.ledger.Expenses[idx] = e
	if err := s.persist(ctx); err != nil {
		return core.Expense{}, err
	}

	s.publish(ctx, amqp.EventExpenseUpdated, id)
	return e, nil
}

// DeleteExpense removes the expense with the given id.
func (s *LedgerService) DeleteExpense(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i := range s.ledger.Expenses {
		if s.ledger.Expenses[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("expense %s: %w", id, core.ErrNotFound)
	}

	s.ledger.Expenses = append(s.ledger.Expenses[:idx], s.ledger.Expenses[idx+1:]...)
	if err := s.persist(ctx); err != nil {
		return err
	}

	s.publish(ctx, amqp.EventExpenseDeleted, id)
	slog.InfoContext(ctx, "Expense deleted",
		"component", "ledger_service",
		"expense_id", id)
	return nil
}

// Roster returns a copy of the active roster.
func (s *LedgerService) Roster() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.ledger.Roster...)
}

// AddParticipant adds a name to the roster of the active period.
func (s *LedgerService) AddParticipant(ctx context.Context, name string) error {
	if name == "" {
		return fmt.Errorf("participant name: %w", core.ErrEmptyPayer)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ledger.HasParticipant(name) {
		return fmt.Errorf("participant %q: %w", name, core.ErrDuplicateParticipant)
	}

	s.ledger.Roster = append(s.ledger.Roster, name)
	return s.persist(ctx)
}

// RemoveParticipant drops a name from the roster. Expenses that reference
// the name stay in the ledger, so the participant keeps appearing in
// balances until their debts are settled.
func (s *LedgerService) RemoveParticipant(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, n := range s.ledger.Roster {
		if n == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("participant %q: %w", name, core.ErrNotFound)
	}

	s.ledger.Roster = append(s.ledger.Roster[:idx], s.ledger.Roster[idx+1:]...)
	return s.persist(ctx)
}

// Balances computes the current net position of every participant.
func (s *LedgerService) Balances() map[string]core.Money {
	_, balances := s.PeriodBalances()
	return balances
}

// PeriodBalances returns the active period key together with its balances,
// read under one lock so a concurrent month close cannot pair one period's
// label with another period's balances.
func (s *LedgerService) PeriodBalances() (core.PeriodKey, map[string]core.Money) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Period, core.ComputeBalances(s.ledger)
}

// Plan returns the minimal transfer list that settles current balances.
func (s *LedgerService) Plan() []core.Transfer {
	_, plan := s.PeriodPlan()
	return plan
}

// PeriodPlan returns the active period key together with its settlement
// plan, read under one lock.
func (s *LedgerService) PeriodPlan() (core.PeriodKey, []core.Transfer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Period, core.PlanSettlement(core.ComputeBalances(s.ledger))
}

// RecordSettlement records a confirmed payment of amount from the debtor to
// the creditor. It is stored as a settlement expense paid by the debtor and
// shared only by the creditor, which moves both balances toward zero.
func (s *LedgerService) RecordSettlement(ctx context.Context, from, to, amount string) (core.Expense, error) {
	if from == to {
		return core.Expense{}, fmt.Errorf("settlement from %q to itself: %w", from, core.ErrInvalidAmount)
	}

	money, err := core.EvalAmount(amount)
	if err != nil {
		return core.Expense{}, err
	}

	e := core.Expense{
		ID:          uuid.New().String(),
		Category:    core.CategorySettlement,
		Description: fmt.Sprintf("%s paid %s", from, to),
		Amount:      money,
		Payer:       from,
		Sharers:     []string{to},
		At:          s.now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ledger.CheckMembership(e); err != nil {
		return core.Expense{}, err
	}

	s.ledger.Expenses = append(s.ledger.Expenses, e)
	if err := s.persist(ctx); err != nil {
		return core.Expense{}, err
	}

	s.publish(ctx, amqp.EventSettlementRecorded, e.ID)
	slog.InfoContext(ctx, "Settlement recorded",
		"component", "ledger_service",
		"from", from,
		"to", to,
		"amount", money.String())
	return e, nil
}

// CloseMonth archives the active ledger and swaps in a fresh one for the
// next period. The fresh ledger starts in the later of the following
// calendar month and the current month, carries the same roster, and has no
// expenses. Archiving and the swap happen as one storage unit of work, so a
// duplicate close of the same period fails with core.ErrPeriodArchived.
func (s *LedgerService) CloseMonth(ctx context.Context) (*core.Archive, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	archive := core.NewArchive(s.ledger, now)

	nextKey := s.ledger.Period.Next()
	if nowKey := core.NewPeriodKey(now); nextKey.Before(nowKey) {
		nextKey = nowKey
	}
	fresh := core.NewLedger(nextKey, s.ledger.Roster)

	if err := s.store.ArchivePeriod(ctx, archive, fresh); err != nil {
		return nil, fmt.Errorf("archive period %s: %w", s.ledger.Period, err)
	}

	closed := s.ledger.Period
	s.ledger = fresh

	if s.events != nil {
		ev := amqp.NewLedgerEvent(amqp.EventPeriodArchived, closed.String(), "")
		if err := s.events.PublishEvent(ctx, ev); err != nil {
			slog.WarnContext(ctx, "Failed to publish ledger event",
				"component", "ledger_service",
				"type", amqp.EventPeriodArchived,
				"error", err)
		}
	}
	slog.InfoContext(ctx, "Period closed",
		"component", "ledger_service",
		"closed_period", closed.String(),
		"next_period", nextKey.String(),
		"expense_count", archive.Summary.ExpenseCount,
		"total", archive.Summary.Total.String())
	return archive, nil
}

// Archive returns a previously archived period.
func (s *LedgerService) Archive(ctx context.Context, key core.PeriodKey) (*core.Archive, error) {
	return s.store.GetArchive(ctx, key)
}

// ArchivedPeriods lists the keys of all archived periods.
func (s *LedgerService) ArchivedPeriods(ctx context.Context) ([]core.PeriodKey, error) {
	return s.store.ListArchives(ctx)
}

// buildExpense parses and validates the raw input into a domain expense.
func (s *LedgerService) buildExpense(in ExpenseInput) (core.Expense, error) {
	amount, err := core.EvalAmount(in.Amount)
	if err != nil {
		return core.Expense{}, err
	}

	at := in.At
	if at.IsZero() {
		at = s.now()
	}

	e := core.Expense{
		Category:    in.Category,
		Description: in.Description,
		Amount:      amount,
		Payer:       in.Payer,
		Sharers:     append([]string(nil), in.Sharers...),
		At:          at,
	}
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	return e, nil
}

// persist writes the active ledger snapshot. Callers must hold s.mu. When
// the write fails the in-memory mutation stays applied; the error surfaces
// to the caller and the next successful save rewrites the whole snapshot.
func (s *LedgerService) persist(ctx context.Context) error {
	if err := s.store.SaveLedger(ctx, s.ledger); err != nil {
		slog.ErrorContext(ctx, "Failed to persist ledger",
			"component", "ledger_service",
			"period", s.ledger.Period.String(),
			"error", err)
		return fmt.Errorf("save ledger %s: %w", s.ledger.Period, err)
	}
	return nil
}

// publish sends a ledger event. Event publishing is best effort: failures
// are logged and never fail the mutation that triggered them.
func (s *LedgerService) publish(ctx context.Context, eventType, expenseID string) {
	if s.events == nil {
		return
	}
	ev := amqp.NewLedgerEvent(eventType, s.ledger.Period.String(), expenseID)
	if err := s.events.PublishEvent(ctx, ev); err != nil {
		slog.WarnContext(ctx, "Failed to publish ledger event",
			"component", "ledger_service",
			"type", eventType,
			"error", err)
	}
}
