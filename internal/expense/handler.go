package expense

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/ayush/expense-tracker/internal/httputil"
	"github.com/ayush/expense-tracker/internal/middleware"
	"github.com/ayush/expense-tracker/internal/models"
	"github.com/ayush/expense-tracker/internal/store"
	"github.com/ayush/expense-tracker/internal/validate"
)

// Handler holds expense HTTP handlers. All routes sit behind
// middleware.RequireAuth.
type Handler struct {
	ledger *Ledger
	log    *logrus.Logger
}

func NewHandler(ledger *Ledger, log *logrus.Logger) *Handler {
	return &Handler{ledger: ledger, log: log}
}

func owner(r *http.Request) string {
	id, _ := middleware.AccountID(r.Context())
	return id
}

// describe prefers the description field and falls back to name.
func describe(req models.ExpenseRequest) *string {
	if req.Description != nil {
		return req.Description
	}
	return req.Name
}

// writeErr maps ledger errors to responses.
func (h *Handler) writeErr(w http.ResponseWriter, r *http.Request, op string, err error) {
	var verr *validate.Error
	switch {
	case errors.As(err, &verr):
		httputil.WriteValidation(w, err)
	case errors.Is(err, store.ErrNotFound):
		httputil.WriteError(w, http.StatusNotFound, "Expense not found")
	case errors.Is(err, store.ErrUnknownOwner):
		httputil.WriteError(w, http.StatusNotFound, "Account not found")
	default:
		h.log.WithError(err).WithFields(logrus.Fields{
			"op":         op,
			"account_id": owner(r),
		}).Error("expense operation failed")
		httputil.WriteInternal(w)
	}
}

// Create records a new expense for the caller.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.ExpenseRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteValidation(w, err)
		return
	}

	in := NewExpense{Amount: req.Amount}
	if d := describe(req); d != nil {
		in.Description = *d
	}
	if req.Date != nil {
		in.Date = *req.Date
	}
	if req.Category != nil {
		in.Category = *req.Category
	}

	e, err := h.ledger.Create(r.Context(), owner(r), in)
	if err != nil {
		h.writeErr(w, r, "create", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, e)
}

// List returns the caller's expenses.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	expenses, err := h.ledger.List(r.Context(), owner(r))
	if err != nil {
		h.writeErr(w, r, "list", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, expenses)
}

// Update applies a partial change to one of the caller's expenses.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var req models.ExpenseRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteValidation(w, err)
		return
	}

	patch := models.ExpensePatch{
		Description: describe(req),
		Amount:      req.Amount,
		Category:    req.Category,
	}
	if req.Date != nil {
		d, err := validate.Date(*req.Date)
		if err != nil {
			httputil.WriteValidation(w, validate.Fail("date", err.Error()))
			return
		}
		patch.Date = &d
	}

	e, err := h.ledger.Update(r.Context(), chi.URLParam(r, "id"), owner(r), patch)
	if err != nil {
		h.writeErr(w, r, "update", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.UpdateResponse{
		Message: "Expense updated successfully",
		Expense: *e,
	})
}

// Delete removes one of the caller's expenses.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.ledger.Delete(r.Context(), chi.URLParam(r, "id"), owner(r)); err != nil {
		h.writeErr(w, r, "delete", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Total returns the sum of the caller's expenses.
func (h *Handler) Total(w http.ResponseWriter, r *http.Request) {
	total, err := h.ledger.Total(r.Context(), owner(r))
	if err != nil {
		h.writeErr(w, r, "total", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.TotalResponse{TotalExpense: total.StringFixed(2)})
}
