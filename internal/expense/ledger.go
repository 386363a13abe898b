// Package expense implements the per-account expense ledger and its HTTP
// handlers.
package expense

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/ayush/expense-tracker/internal/models"
	"github.com/ayush/expense-tracker/internal/store"
	"github.com/ayush/expense-tracker/internal/validate"
)

// Store is the persistence the ledger needs. Update and Delete must match on
// id and owner in a single operation.
type Store interface {
	CreateExpense(ctx context.Context, e *models.Expense) error
	ListExpensesByOwner(ctx context.Context, ownerID string) ([]models.Expense, error)
	UpdateExpense(ctx context.Context, id, ownerID string, patch models.ExpensePatch) (*models.Expense, error)
	DeleteExpense(ctx context.Context, id, ownerID string) error
	TotalByOwner(ctx context.Context, ownerID string) (decimal.Decimal, error)
}

// NewExpense is the validated-on-create input of Create.
type NewExpense struct {
	Description string
	Amount      *decimal.Decimal
	Date        string
	Category    string
}

// Ledger scopes every expense operation to the calling account.
type Ledger struct {
	store   Store
	timeout time.Duration
	log     *logrus.Logger
}

func NewLedger(s Store, timeout time.Duration, log *logrus.Logger) *Ledger {
	return &Ledger{store: s, timeout: timeout, log: log}
}

func (l *Ledger) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, l.timeout)
}

// Create validates in and records it for owner.
func (l *Ledger) Create(ctx context.Context, owner string, in NewExpense) (*models.Expense, error) {
	description := strings.TrimSpace(in.Description)
	category := strings.TrimSpace(in.Category)

	var c validate.Collector
	c.Check("description", validate.Description(description))
	if in.Amount == nil {
		c.Add("amount", "is required")
	} else {
		c.Check("amount", validate.Amount(*in.Amount))
	}
	date, err := validate.Date(in.Date)
	c.Check("date", err)
	c.Check("category", validate.Category(category))
	if err := c.Err(); err != nil {
		return nil, err
	}

	e := &models.Expense{
		ID:          uuid.NewString(),
		OwnerID:     owner,
		Description: description,
		Amount:      *in.Amount,
		Date:        date,
		Category:    category,
		CreatedAt:   time.Now().UTC(),
	}

	sctx, cancel := l.withTimeout(ctx)
	defer cancel()
	if err := l.store.CreateExpense(sctx, e); err != nil {
		return nil, err
	}

	l.log.WithFields(logrus.Fields{"account_id": owner, "expense_id": e.ID}).Info("expense created")
	return e, nil
}

// List returns owner's expenses in insertion order, never nil.
func (l *Ledger) List(ctx context.Context, owner string) ([]models.Expense, error) {
	sctx, cancel := l.withTimeout(ctx)
	defer cancel()

	expenses, err := l.store.ListExpensesByOwner(sctx, owner)
	if err != nil {
		return nil, err
	}
	if expenses == nil {
		expenses = []models.Expense{}
	}
	return expenses, nil
}

// Update applies patch to expense id when owner owns it. An expense that
// does not exist and one owned by someone else both yield store.ErrNotFound.
func (l *Ledger) Update(ctx context.Context, id, owner string, patch models.ExpensePatch) (*models.Expense, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, store.ErrNotFound
	}

	var c validate.Collector
	if patch.Empty() {
		c.Add("body", "at least one field must be provided")
	}
	if patch.Description != nil {
		d := strings.TrimSpace(*patch.Description)
		patch.Description = &d
		c.Check("description", validate.Description(d))
	}
	if patch.Amount != nil {
		c.Check("amount", validate.Amount(*patch.Amount))
	}
	if patch.Category != nil {
		cat := strings.TrimSpace(*patch.Category)
		patch.Category = &cat
		c.Check("category", validate.Category(cat))
	}
	if err := c.Err(); err != nil {
		return nil, err
	}

	sctx, cancel := l.withTimeout(ctx)
	defer cancel()
	e, err := l.store.UpdateExpense(sctx, id, owner, patch)
	if err != nil {
		return nil, err
	}

	l.log.WithFields(logrus.Fields{"account_id": owner, "expense_id": id}).Info("expense updated")
	return e, nil
}

// Delete removes expense id when owner owns it.
func (l *Ledger) Delete(ctx context.Context, id, owner string) error {
	if _, err := uuid.Parse(id); err != nil {
		return store.ErrNotFound
	}

	sctx, cancel := l.withTimeout(ctx)
	defer cancel()
	if err := l.store.DeleteExpense(sctx, id, owner); err != nil {
		return err
	}

	l.log.WithFields(logrus.Fields{"account_id": owner, "expense_id": id}).Info("expense deleted")
	return nil
}

// Total sums owner's expenses; zero when there are none.
func (l *Ledger) Total(ctx context.Context, owner string) (decimal.Decimal, error) {
	sctx, cancel := l.withTimeout(ctx)
	defer cancel()
	return l.store.TotalByOwner(sctx, owner)
}
