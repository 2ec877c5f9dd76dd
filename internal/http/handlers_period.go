package http

import (
	"net/http"
	"strings"
	"time"

	"kharcha/internal/core"
	"kharcha/internal/report"
)

type summaryResponse struct {
	Total          string            `json:"total"`
	TotalCents     int64             `json:"total_cents"`
	CategoryTotals map[string]string `json:"category_totals"`
	FinalBalances  []balanceEntry    `json:"final_balances"`
	ExpenseCount   int               `json:"expense_count"`
	ArchivedAt     string            `json:"archived_at"`
}

type archiveResponse struct {
	Period   string            `json:"period"`
	Roster   []string          `json:"roster"`
	Expenses []expenseResponse `json:"expenses"`
	Summary  summaryResponse   `json:"summary"`
}

func toArchiveResponse(a *core.Archive) archiveResponse {
	categoryTotals := make(map[string]string, len(a.Summary.CategoryTotals))
	for category, total := range a.Summary.CategoryTotals {
		categoryTotals[category] = total.String()
	}

	expenses := make([]expenseResponse, 0, len(a.Ledger.Expenses))
	for _, e := range a.Ledger.Expenses {
		expenses = append(expenses, toExpenseResponse(e))
	}

	return archiveResponse{
		Period:   a.Ledger.Period.String(),
		Roster:   a.Ledger.Roster,
		Expenses: expenses,
		Summary: summaryResponse{
			Total:          a.Summary.Total.String(),
			TotalCents:     a.Summary.Total.Cents,
			CategoryTotals: categoryTotals,
			FinalBalances:  toBalanceEntries(a.Summary.FinalBalances),
			ExpenseCount:   a.Summary.ExpenseCount,
			ArchivedAt:     a.Summary.ArchivedAt.UTC().Format(time.RFC3339),
		},
	}
}

func (s *Server) handlePeriod(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"period": s.ledger.Period().String(),
		"roster": s.ledger.Roster(),
	})
}

func (s *Server) handleClosePeriod(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, "POST")
		return
	}

	archive, err := s.ledger.CloseMonth(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toArchiveResponse(archive))
}

func (s *Server) handleArchives(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}

	keys, err := s.ledger.ArchivedPeriods(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		out = append(out, key.String())
	}
	writeJSON(w, http.StatusOK, map[string]any{"periods": out})
}

func (s *Server) handleArchiveByKey(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/archives/")
	wantReport := false
	if trimmed, ok := strings.CutSuffix(rest, "/report"); ok {
		rest = trimmed
		wantReport = true
	}
	if rest == "" || strings.Contains(rest, "/") {
		http.NotFound(w, r)
		return
	}

	key, err := core.ParsePeriodKey(rest)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	if wantReport {
		s.serveArchiveReport(w, r, key)
		return
	}

	archive, err := s.ledger.Archive(r.Context(), key)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toArchiveResponse(archive))
}

func (s *Server) serveArchiveReport(w http.ResponseWriter, r *http.Request, key core.PeriodKey) {
	if cached, ok := s.reportCache.Get(key.String()); ok {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(cached))
		return
	}

	archive, err := s.ledger.Archive(r.Context(), key)
	if err != nil {
		writeError(w, r, err)
		return
	}

	rendered := report.Render(archive)
	s.reportCache.Set(key.String(), rendered)

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(rendered))
}
