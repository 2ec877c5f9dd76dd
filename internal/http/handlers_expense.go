package http

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"kharcha/internal/core"
	"kharcha/internal/services"
	"kharcha/internal/storage"
)

type expenseRequest struct {
	Category    string   `json:"category"`
	Description string   `json:"description"`
	Amount      string   `json:"amount"`
	PaidBy      string   `json:"paid_by"`
	SharedBy    []string `json:"shared_between"`
	Date        string   `json:"date,omitempty"`
}

type expenseResponse struct {
	ID          string   `json:"id"`
	Category    string   `json:"category"`
	Description string   `json:"description"`
	Amount      string   `json:"amount"`
	AmountCents int64    `json:"amount_cents"`
	PaidBy      string   `json:"paid_by"`
	SharedBy    []string `json:"shared_between"`
	Date        string   `json:"date"`
}

func toExpenseResponse(e core.Expense) expenseResponse {
	return expenseResponse{
		ID:          e.ID,
		Category:    e.Category,
		Description: e.Description,
		Amount:      e.Amount.String(),
		AmountCents: e.Amount.Cents,
		PaidBy:      e.Payer,
		SharedBy:    e.Sharers,
		Date:        e.At.Format(storage.TimeLayout),
	}
}

func (req expenseRequest) toInput() (services.ExpenseInput, error) {
	in := services.ExpenseInput{
		Category:    req.Category,
		Description: req.Description,
		Amount:      req.Amount,
		Payer:       req.PaidBy,
		Sharers:     req.SharedBy,
	}
	if req.Date != "" {
		at, err := time.Parse(storage.TimeLayout, req.Date)
		if err != nil {
			return services.ExpenseInput{}, fmt.Errorf("parse date %q: want %s", req.Date, storage.TimeLayout)
		}
		in.At = at
	}
	return in, nil
}

func (s *Server) handleExpenses(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		expenses := s.ledger.Expenses()
		out := make([]expenseResponse, 0, len(expenses))
		for _, e := range expenses {
			out = append(out, toExpenseResponse(e))
		}
		writeJSON(w, http.StatusOK, out)

	case http.MethodPost:
		var req expenseRequest
		if !decodeBody(w, r, &req) {
			return
		}
		in, err := req.toInput()
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		e, err := s.ledger.AddExpense(r.Context(), in)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, toExpenseResponse(e))

	default:
		methodNotAllowed(w, "GET, POST")
	}
}

func (s *Server) handleExpenseByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/expenses/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodPut:
		var req expenseRequest
		if !decodeBody(w, r, &req) {
			return
		}
		in, err := req.toInput()
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		e, err := s.ledger.EditExpense(r.Context(), id, in)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toExpenseResponse(e))

	case http.MethodDelete:
		if err := s.ledger.DeleteExpense(r.Context(), id); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		methodNotAllowed(w, "PUT, DELETE")
	}
}
