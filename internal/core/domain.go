package core

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// CategorySettlement marks expenses that record a confirmed settlement
// payment. Settlements and expenses share one event log: a settlement is
// stored as an expense paid by the debtor and shared only by the creditor.
const CategorySettlement = "Settlement"

var (
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrEmptyCategory        = errors.New("empty category")
	ErrEmptyDescription     = errors.New("empty description")
	ErrEmptyPayer           = errors.New("empty payer")
	ErrNoSharers            = errors.New("expense must be shared by at least one participant")
	ErrDuplicateSharer      = errors.New("duplicate sharer")
	ErrUnknownParticipant   = errors.New("unknown participant")
	ErrDuplicateParticipant = errors.New("participant already present")
	ErrNotFound             = errors.New("not found")
	ErrPeriodArchived       = errors.New("period already archived")
)

type (
	// PeriodKey identifies one calendar month's ledger.
	PeriodKey struct {
		Year  int
		Month int // 1-12
	}

	// Expense is a single shared cost. Once created it is immutable;
	// edits replace the whole record keyed by ID.
	Expense struct {
		ID          string
		Category    string
		Description string
		Amount      Money
		Payer       string
		Sharers     []string
		At          time.Time
	}

	// Ledger is one period's roster and expense list. Balances are derived,
	// never stored: they are recomputed from the expense list on demand so
	// roster edits cannot leave a stale cache behind.
	Ledger struct {
		Period   PeriodKey
		Roster   []string
		Expenses []Expense
	}
)

// NewPeriodKey returns the period containing t.
func NewPeriodKey(t time.Time) PeriodKey {
	return PeriodKey{Year: t.Year(), Month: int(t.Month())}
}

// ParsePeriodKey parses a "YYYY-MM" key.
func ParsePeriodKey(s string) (PeriodKey, error) {
	parts := strings.Split(strings.TrimSpace(s), "-")
	if len(parts) != 2 {
		return PeriodKey{}, fmt.Errorf("parse period key %q: want YYYY-MM", s)
	}
	year, err := strconv.Atoi(parts[0])
	if err != nil {
		return PeriodKey{}, fmt.Errorf("parse period year %q: %w", parts[0], err)
	}
	month, err := strconv.Atoi(parts[1])
	if err != nil {
		return PeriodKey{}, fmt.Errorf("parse period month %q: %w", parts[1], err)
	}
	k := PeriodKey{Year: year, Month: month}
	if err := k.Validate(); err != nil {
		return PeriodKey{}, err
	}
	return k, nil
}

func (k PeriodKey) Validate() error {
	if k.Year < 1 {
		return fmt.Errorf("invalid period year %d", k.Year)
	}
	if k.Month < 1 || k.Month > 12 {
		return fmt.Errorf("invalid period month %d", k.Month)
	}
	return nil
}

// String renders the key in its storage form, e.g. "2025-09".
func (k PeriodKey) String() string {
	return fmt.Sprintf("%04d-%02d", k.Year, k.Month)
}

// Next returns the following calendar month.
func (k PeriodKey) Next() PeriodKey {
	if k.Month == 12 {
		return PeriodKey{Year: k.Year + 1, Month: 1}
	}
	return PeriodKey{Year: k.Year, Month: k.Month + 1}
}

// Before reports whether k is an earlier month than other.
func (k PeriodKey) Before(other PeriodKey) bool {
	if k.Year != other.Year {
		return k.Year < other.Year
	}
	return k.Month < other.Month
}

func (k PeriodKey) IsZero() bool {
	return k.Year == 0 && k.Month == 0
}

func (e Expense) Validate() error {
	if strings.TrimSpace(e.Category) == "" {
		return ErrEmptyCategory
	}
	if strings.TrimSpace(e.Description) == "" {
		return ErrEmptyDescription
	}
	if len(e.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(e.Payer) == "" {
		return ErrEmptyPayer
	}
	if len(e.Sharers) == 0 {
		return ErrNoSharers
	}
	seen := make(map[string]struct{}, len(e.Sharers))
	for _, name := range e.Sharers {
		if strings.TrimSpace(name) == "" {
			return ErrNoSharers
		}
		if _, ok := seen[name]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateSharer, name)
		}
		seen[name] = struct{}{}
	}
	return nil
}

// clone returns a deep copy so archived snapshots cannot alias live state.
func (e Expense) clone() Expense {
	out := e
	out.Sharers = append([]string(nil), e.Sharers...)
	return out
}

// NewLedger creates an empty active ledger for the period, seeded with the
// given roster.
func NewLedger(period PeriodKey, roster []string) *Ledger {
	return &Ledger{
		Period: period,
		Roster: append([]string(nil), roster...),
	}
}

// HasParticipant reports whether name is on the roster.
func (l *Ledger) HasParticipant(name string) bool {
	for _, n := range l.Roster {
		if n == name {
			return true
		}
	}
	return false
}

// Expense returns the expense with the given id.
func (l *Ledger) Expense(id string) (Expense, bool) {
	for _, e := range l.Expenses {
		if e.ID == id {
			return e.clone(), true
		}
	}
	return Expense{}, false
}

// CheckMembership verifies that the expense's payer and every sharer are on
// the roster. Historical expenses may reference removed participants; the
// check applies only to new or edited records.
func (l *Ledger) CheckMembership(e Expense) error {
	if !l.HasParticipant(e.Payer) {
		return fmt.Errorf("payer %q: %w", e.Payer, ErrUnknownParticipant)
	}
	for _, name := range e.Sharers {
		if !l.HasParticipant(name) {
			return fmt.Errorf("sharer %q: %w", name, ErrUnknownParticipant)
		}
	}
	return nil
}

// Clone returns a deep copy of the ledger.
func (l *Ledger) Clone() *Ledger {
	out := &Ledger{
		Period: l.Period,
		Roster: append([]string(nil), l.Roster...),
	}
	if l.Expenses != nil {
		out.Expenses = make([]Expense, len(l.Expenses))
		for i, e := range l.Expenses {
			out.Expenses[i] = e.clone()
		}
	}
	return out
}
