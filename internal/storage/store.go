// Package storage provides the keyed-record persistence for ledgers and
// period archives.
package storage

import (
	"context"

	"kharcha/internal/core"
)

// Store is the persistence collaborator injected into the service layer.
// Ledgers are written as whole snapshots after every mutation; archives are
// written once and never updated.
type Store interface {
	// LoadLedger returns the ledger stored under the period key.
	// The error wraps core.ErrNotFound when nothing is stored for the key.
	LoadLedger(ctx context.Context, key core.PeriodKey) (*core.Ledger, error)

	// SaveLedger replaces the stored snapshot for the ledger's period.
	SaveLedger(ctx context.Context, l *core.Ledger) error

	// ListPeriods returns the keys of all stored active ledgers.
	ListPeriods(ctx context.Context) ([]core.PeriodKey, error)

	// ArchivePeriod writes the archive and swaps in the fresh ledger as one
	// unit of work, so a retry can never produce a second archive for the
	// same period. The error wraps core.ErrPeriodArchived when an archive
	// already exists for the key.
	ArchivePeriod(ctx context.Context, a *core.Archive, fresh *core.Ledger) error

	// GetArchive returns the archive stored under the period key.
	GetArchive(ctx context.Context, key core.PeriodKey) (*core.Archive, error)

	// ListArchives returns the keys of all archived periods, oldest first.
	ListArchives(ctx context.Context) ([]core.PeriodKey, error)

	// Close releases any resources held by the store.
	Close() error
}
