package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"kharcha/internal/core"

	_ "modernc.org/sqlite"
)

// SQLiteRepository implements Store on a local SQLite database. Every
// SaveLedger call rewrites the full snapshot for the period in one
// transaction; write volume is human-paced, so simplicity wins over
// incremental updates.
type SQLiteRepository struct {
	db *sql.DB
}

var _ Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) LoadLedger(ctx context.Context, key core.PeriodKey) (*core.Ledger, error) {
	var exists int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM ledgers WHERE period_key = ?", key.String(),
	).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("query ledger %s: %w", key, err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("ledger %s: %w", key, core.ErrNotFound)
	}

	l := &core.Ledger{Period: key}

	rows, err := r.db.QueryContext(ctx,
		"SELECT name FROM roster WHERE period_key = ? ORDER BY name", key.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("query roster %s: %w", key, err)
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan roster name: %w", err)
		}
		l.Roster = append(l.Roster, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate roster: %w", err)
	}

	expRows, err := r.db.QueryContext(ctx,
		`SELECT id, category, description, amount_cents, payer, spent_at
		 FROM expenses WHERE period_key = ? ORDER BY spent_at, id`, key.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("query expenses %s: %w", key, err)
	}
	defer expRows.Close()
	for expRows.Next() {
		var (
			e       core.Expense
			spentAt string
		)
		if err := expRows.Scan(&e.ID, &e.Category, &e.Description, &e.Amount.Cents, &e.Payer, &spentAt); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		e.At, err = time.Parse(TimeLayout, spentAt)
		if err != nil {
			return nil, fmt.Errorf("parse expense %s timestamp: %w", e.ID, err)
		}
		l.Expenses = append(l.Expenses, e)
	}
	if err := expRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}

	for i := range l.Expenses {
		shareRows, err := r.db.QueryContext(ctx,
			"SELECT name FROM expense_shares WHERE expense_id = ? ORDER BY name", l.Expenses[i].ID,
		)
		if err != nil {
			return nil, fmt.Errorf("query expense shares: %w", err)
		}
		for shareRows.Next() {
			var name string
			if err := shareRows.Scan(&name); err != nil {
				shareRows.Close()
				return nil, fmt.Errorf("scan share: %w", err)
			}
			l.Expenses[i].Sharers = append(l.Expenses[i].Sharers, name)
		}
		shareRows.Close()
		if err := shareRows.Err(); err != nil {
			return nil, fmt.Errorf("iterate shares: %w", err)
		}
	}

	return l, nil
}

func (r *SQLiteRepository) SaveLedger(ctx context.Context, l *core.Ledger) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := saveLedgerTx(ctx, tx, l); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit ledger %s: %w", l.Period, err)
	}

	slog.DebugContext(ctx, "Ledger snapshot saved",
		"period", l.Period.String(),
		"roster_size", len(l.Roster),
		"expense_count", len(l.Expenses))
	return nil
}

// saveLedgerTx rewrites the full ledger snapshot inside an open transaction.
func saveLedgerTx(ctx context.Context, tx *sql.Tx, l *core.Ledger) error {
	key := l.Period.String()

	_, err := tx.ExecContext(ctx,
		`INSERT INTO ledgers (period_key, created_at) VALUES (?, ?)
		 ON CONFLICT(period_key) DO NOTHING`,
		key, time.Now().UTC().Format(TimeLayout),
	)
	if err != nil {
		return fmt.Errorf("upsert ledger %s: %w", key, err)
	}

	// Full snapshot replace: expense_shares go via the expenses cascade.
	if _, err := tx.ExecContext(ctx, "DELETE FROM expenses WHERE period_key = ?", key); err != nil {
		return fmt.Errorf("clear expenses %s: %w", key, err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM roster WHERE period_key = ?", key); err != nil {
		return fmt.Errorf("clear roster %s: %w", key, err)
	}

	for _, name := range l.Roster {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO roster (period_key, name) VALUES (?, ?)", key, name,
		); err != nil {
			return fmt.Errorf("insert roster %s/%s: %w", key, name, err)
		}
	}

	for _, e := range l.Expenses {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO expenses (id, period_key, category, description, amount_cents, payer, spent_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			e.ID, key, e.Category, e.Description, e.Amount.Cents, e.Payer, e.At.UTC().Format(TimeLayout),
		)
		if err != nil {
			return fmt.Errorf("insert expense %s: %w", e.ID, err)
		}
		for _, name := range e.Sharers {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO expense_shares (expense_id, name) VALUES (?, ?)", e.ID, name,
			); err != nil {
				return fmt.Errorf("insert expense share %s/%s: %w", e.ID, name, err)
			}
		}
	}

	return nil
}

func (r *SQLiteRepository) ListPeriods(ctx context.Context) ([]core.PeriodKey, error) {
	return r.listKeys(ctx, "SELECT period_key FROM ledgers ORDER BY period_key")
}

func (r *SQLiteRepository) ArchivePeriod(ctx context.Context, a *core.Archive, fresh *core.Ledger) error {
	data, err := encodeArchive(a)
	if err != nil {
		return fmt.Errorf("encode archive %s: %w", a.Ledger.Period, err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	key := a.Ledger.Period.String()

	var exists int
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM archives WHERE period_key = ?", key,
	).Scan(&exists); err != nil {
		return fmt.Errorf("check archive %s: %w", key, err)
	}
	if exists > 0 {
		return fmt.Errorf("archive %s: %w", key, core.ErrPeriodArchived)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO archives (period_key, data, archived_at) VALUES (?, ?, ?)",
		key, string(data), a.Summary.ArchivedAt.UTC().Format(TimeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert archive %s: %w", key, err)
	}

	// Drop the closed active ledger and seed the fresh one in the same
	// transaction, so there is no window where both or neither exist.
	if _, err := tx.ExecContext(ctx, "DELETE FROM ledgers WHERE period_key = ?", key); err != nil {
		return fmt.Errorf("drop closed ledger %s: %w", key, err)
	}
	if err := saveLedgerTx(ctx, tx, fresh); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit archive %s: %w", key, err)
	}

	slog.InfoContext(ctx, "Period archived",
		"period", key,
		"next_period", fresh.Period.String(),
		"total_cents", a.Summary.Total.Cents,
		"expense_count", a.Summary.ExpenseCount)
	return nil
}

func (r *SQLiteRepository) GetArchive(ctx context.Context, key core.PeriodKey) (*core.Archive, error) {
	var data string
	err := r.db.QueryRowContext(ctx,
		"SELECT data FROM archives WHERE period_key = ?", key.String(),
	).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("archive %s: %w", key, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query archive %s: %w", key, err)
	}
	return decodeArchive([]byte(data))
}

func (r *SQLiteRepository) ListArchives(ctx context.Context) ([]core.PeriodKey, error) {
	return r.listKeys(ctx, "SELECT period_key FROM archives ORDER BY period_key")
}

func (r *SQLiteRepository) listKeys(ctx context.Context, query string) ([]core.PeriodKey, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list period keys: %w", err)
	}
	defer rows.Close()

	var keys []core.PeriodKey
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan period key: %w", err)
		}
		key, err := core.ParsePeriodKey(raw)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate period keys: %w", err)
	}
	return keys, nil
}
