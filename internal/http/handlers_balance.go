package http

import (
	"net/http"
	"sort"

	"kharcha/internal/core"
)

type balanceEntry struct {
	Name        string `json:"name"`
	Amount      string `json:"amount"`
	AmountCents int64  `json:"amount_cents"`
	Status      string `json:"status"`
}

type transferResponse struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Amount      string `json:"amount"`
	AmountCents int64  `json:"amount_cents"`
}

type settlementRequest struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

func toBalanceEntries(balances map[string]core.Money) []balanceEntry {
	names := make([]string, 0, len(balances))
	for name := range balances {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]balanceEntry, 0, len(names))
	for _, name := range names {
		b := balances[name]
		status := "to receive"
		switch {
		case b.Cents < 0:
			status = "to pay"
		case b.Cents == 0:
			status = "settled"
		}
		out = append(out, balanceEntry{
			Name:        name,
			Amount:      b.String(),
			AmountCents: b.Cents,
			Status:      status,
		})
	}
	return out
}

func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}

	period, balances := s.ledger.PeriodBalances()
	writeJSON(w, http.StatusOK, map[string]any{
		"period":   period.String(),
		"balances": toBalanceEntries(balances),
	})
}

func (s *Server) handleSettlementPlan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}

	period, plan := s.ledger.PeriodPlan()
	out := make([]transferResponse, 0, len(plan))
	for _, t := range plan {
		out = append(out, transferResponse{
			From:        t.From,
			To:          t.To,
			Amount:      t.Amount.String(),
			AmountCents: t.Amount.Cents,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"period":    period.String(),
		"transfers": out,
	})
}

func (s *Server) handleRecordSettlement(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, "POST")
		return
	}

	var req settlementRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.From == "" || req.To == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "from and to are required"})
		return
	}

	e, err := s.ledger.RecordSettlement(r.Context(), req.From, req.To, req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toExpenseResponse(e))
}
