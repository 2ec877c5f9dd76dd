// Package memory provides an in-memory Store used in tests and as the
// default development backend.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"kharcha/internal/core"
	"kharcha/internal/storage"
)

type Store struct {
	mu       sync.Mutex
	ledgers  map[string]*core.Ledger
	archives map[string]*core.Archive
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		ledgers:  make(map[string]*core.Ledger),
		archives: make(map[string]*core.Archive),
	}
}

func (s *Store) LoadLedger(_ context.Context, key core.PeriodKey) (*core.Ledger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.ledgers[key.String()]
	if !ok {
		return nil, fmt.Errorf("ledger %s: %w", key, core.ErrNotFound)
	}
	return l.Clone(), nil
}

func (s *Store) SaveLedger(_ context.Context, l *core.Ledger) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ledgers[l.Period.String()] = l.Clone()
	return nil
}

func (s *Store) ListPeriods(_ context.Context) ([]core.PeriodKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedKeys(s.ledgers)
}

func (s *Store) ArchivePeriod(_ context.Context, a *core.Archive, fresh *core.Ledger) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := a.Ledger.Period.String()
	if _, ok := s.archives[key]; ok {
		return fmt.Errorf("archive %s: %w", key, core.ErrPeriodArchived)
	}

	s.archives[key] = cloneArchive(a)
	delete(s.ledgers, key)
	s.ledgers[fresh.Period.String()] = fresh.Clone()
	return nil
}

func (s *Store) GetArchive(_ context.Context, key core.PeriodKey) (*core.Archive, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.archives[key.String()]
	if !ok {
		return nil, fmt.Errorf("archive %s: %w", key, core.ErrNotFound)
	}
	return cloneArchive(a), nil
}

// cloneArchive deep-copies an archive so neither side can mutate the other
// through the ledger or the summary maps.
func cloneArchive(a *core.Archive) *core.Archive {
	out := *a
	out.Ledger = *a.Ledger.Clone()
	out.Summary.CategoryTotals = copyMoneyMap(a.Summary.CategoryTotals)
	out.Summary.FinalBalances = copyMoneyMap(a.Summary.FinalBalances)
	return &out
}

func copyMoneyMap(m map[string]core.Money) map[string]core.Money {
	if m == nil {
		return nil
	}
	out := make(map[string]core.Money, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *Store) ListArchives(_ context.Context) ([]core.PeriodKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedKeys(s.archives)
}

func (s *Store) Close() error { return nil }

func sortedKeys[T any](m map[string]T) ([]core.PeriodKey, error) {
	raw := make([]string, 0, len(m))
	for k := range m {
		raw = append(raw, k)
	}
	sort.Strings(raw)
	keys := make([]core.PeriodKey, 0, len(raw))
	for _, r := range raw {
		key, err := core.ParsePeriodKey(r)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}
