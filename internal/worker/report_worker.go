// Package worker turns period-archived events into report files and
// optional spreadsheet exports.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"kharcha/internal/amqp"
	"kharcha/internal/core"
	"kharcha/internal/report"
	"kharcha/internal/sheets"
	"kharcha/internal/storage"
)

// ReportWorker writes one plain-text report per archived period into
// reportDir, named "<period>.txt". Reports are derived data: a period can
// be re-rendered at any time from its archive, so processing is idempotent.
type ReportWorker struct {
	store     storage.Store
	exporter  sheets.ArchiveAppender
	reportDir string
}

func NewReportWorker(store storage.Store, exporter sheets.ArchiveAppender, reportDir string) *ReportWorker {
	return &ReportWorker{
		store:     store,
		exporter:  exporter,
		reportDir: reportDir,
	}
}

// HandleEvent processes one ledger event. Only period_archived events
// produce work; mutation events are acknowledged without action.
func (w *ReportWorker) HandleEvent(ctx context.Context, ev *amqp.LedgerEvent) error {
	if ev.Type != amqp.EventPeriodArchived {
		slog.DebugContext(ctx, "Ignoring event",
			"component", "report_worker",
			"type", ev.Type)
		return nil
	}

	key, err := core.ParsePeriodKey(ev.Period)
	if err != nil {
		return fmt.Errorf("event period %q: %w", ev.Period, err)
	}
	return w.ProcessPeriod(ctx, key)
}

// ProcessPeriod renders and writes the report for one archived period and
// exports its summary when an exporter is configured.
func (w *ReportWorker) ProcessPeriod(ctx context.Context, key core.PeriodKey) error {
	archive, err := w.store.GetArchive(ctx, key)
	if err != nil {
		return fmt.Errorf("get archive %s: %w", key, err)
	}

	if err := w.writeReport(key, report.Render(archive)); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Report written",
		"component", "report_worker",
		"period", key.String(),
		"expense_count", archive.Summary.ExpenseCount,
		"total", archive.Summary.Total.String())

	if w.exporter != nil {
		if err := w.exporter.AppendArchive(ctx, archive); err != nil {
			return fmt.Errorf("export archive %s: %w", key, err)
		}
		slog.InfoContext(ctx, "Archive exported to spreadsheet",
			"component", "report_worker",
			"period", key.String())
	}

	return nil
}

// ProcessMissingReports scans all archived periods and renders any report
// file that does not exist yet. Called on startup and on a rescan ticker so
// events lost while the worker was down still produce reports.
func (w *ReportWorker) ProcessMissingReports(ctx context.Context) error {
	keys, err := w.store.ListArchives(ctx)
	if err != nil {
		return fmt.Errorf("list archives: %w", err)
	}

	var processed int
	for _, key := range keys {
		if _, err := os.Stat(w.reportPath(key)); err == nil {
			continue
		}
		if err := w.ProcessPeriod(ctx, key); err != nil {
			slog.ErrorContext(ctx, "Failed to process archived period",
				"component", "report_worker",
				"period", key.String(),
				"error", err)
			continue
		}
		processed++
	}

	if processed > 0 {
		slog.InfoContext(ctx, "Backfilled missing reports",
			"component", "report_worker",
			"count", processed)
	}
	return nil
}

func (w *ReportWorker) reportPath(key core.PeriodKey) string {
	return filepath.Join(w.reportDir, key.String()+".txt")
}

func (w *ReportWorker) writeReport(key core.PeriodKey, content string) error {
	if err := os.MkdirAll(w.reportDir, 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	path := w.reportPath(key)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write report %s: %w", path, err)
	}
	return nil
}
