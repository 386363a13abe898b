package models

import (
	"bytes"
	"encoding/json"
	"reflect"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the wire and storage format of Expense.Date.
const DateLayout = "2006-01-02"

// Expense is a single spending record owned by one account.
type Expense struct {
	ID          string
	OwnerID     string
	Description string
	Amount      decimal.Decimal
	Date        time.Time // calendar date, UTC midnight
	Category    string
	CreatedAt   time.Time
}

type expenseJSON struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Description string    `json:"description"`
	Amount      string    `json:"amount"`
	Date        string    `json:"date"`
	Category    string    `json:"category"`
	CreatedAt   time.Time `json:"created_at"`
}

// MarshalJSON renders the amount with two decimals and the date without a time.
func (e Expense) MarshalJSON() ([]byte, error) {
	return json.Marshal(expenseJSON{
		ID:          e.ID,
		UserID:      e.OwnerID,
		Description: e.Description,
		Amount:      e.Amount.StringFixed(2),
		Date:        e.Date.Format(DateLayout),
		Category:    e.Category,
		CreatedAt:   e.CreatedAt,
	})
}

// ExpensePatch carries the fields of a partial update. Nil fields are left
// unchanged.
type ExpensePatch struct {
	Description *string
	Amount      *decimal.Decimal
	Date        *time.Time
	Category    *string
}

// Empty reports whether the patch changes nothing.
func (p ExpensePatch) Empty() bool {
	return p.Description == nil && p.Amount == nil && p.Date == nil && p.Category == nil
}

// ExpenseRequest is the JSON body for POST /api/expenses and PUT
// /api/expenses/{id}. Name is accepted as an alias of Description.
type ExpenseRequest struct {
	Description *string          `json:"description"`
	Name        *string          `json:"name"`
	Amount      *decimal.Decimal `json:"amount"`
	Date        *string          `json:"date"`
	Category    *string          `json:"category"`
}

// UnmarshalJSON accepts the amount as a JSON number or a numeric string. An
// unparsable amount is reported as a *json.UnmarshalTypeError on "amount".
func (r *ExpenseRequest) UnmarshalJSON(b []byte) error {
	type plain ExpenseRequest
	aux := struct {
		*plain
		Amount json.RawMessage `json:"amount"`
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}

	r.Amount = nil
	if len(aux.Amount) == 0 || bytes.Equal(aux.Amount, []byte("null")) {
		return nil
	}
	var d decimal.Decimal
	if err := d.UnmarshalJSON(aux.Amount); err != nil {
		return &json.UnmarshalTypeError{
			Value: string(aux.Amount),
			Type:  reflect.TypeOf(d),
			Field: "amount",
		}
	}
	r.Amount = &d
	return nil
}

// UpdateResponse confirms a successful PUT.
type UpdateResponse struct {
	Message string  `json:"message"`
	Expense Expense `json:"expense"`
}

// TotalResponse is the body of GET /api/expense.
type TotalResponse struct {
	TotalExpense string `json:"totalExpense"`
}
