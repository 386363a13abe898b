// Package validate checks request fields and collects per-field failures
// into a single error.
package validate

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ayush/expense-tracker/internal/models"
)

// FieldError describes one invalid field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is returned when one or more fields fail validation.
type Error struct {
	Fields []FieldError
}

func (e *Error) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Collector accumulates field errors.
type Collector struct {
	fields []FieldError
}

func (c *Collector) Add(field, message string) {
	c.fields = append(c.fields, FieldError{Field: field, Message: message})
}

// Check records err under field when it is non-nil.
func (c *Collector) Check(field string, err error) {
	if err != nil {
		c.Add(field, err.Error())
	}
}

// Err returns nil when nothing was recorded.
func (c *Collector) Err() error {
	if len(c.fields) == 0 {
		return nil
	}
	return &Error{Fields: c.fields}
}

// Fail builds an Error for a single field.
func Fail(field, message string) error {
	return &Error{Fields: []FieldError{{Field: field, Message: message}}}
}

const (
	MaxDescriptionLen = 255
	MaxCategoryLen    = 64
	MinPasswordLen    = 6
	MaxPasswordLen    = 72 // bcrypt input limit
)

var (
	maxAmount  = decimal.RequireFromString("99999999.99")
	usernameRe = regexp.MustCompile(`^[A-Za-z0-9]{3,50}$`)
)

// Amount must be positive, fit NUMERIC(10,2) and carry at most two decimals.
func Amount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("must be a positive number")
	}
	if amount.GreaterThan(maxAmount) {
		return fmt.Errorf("must not exceed %s", maxAmount.StringFixed(2))
	}
	if !amount.Equal(amount.Round(2)) {
		return fmt.Errorf("must have at most two decimal places")
	}
	return nil
}

// Date parses a YYYY-MM-DD calendar date.
func Date(s string) (time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return time.Time{}, fmt.Errorf("is required")
	}
	d, err := time.Parse(models.DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("must be a valid date in YYYY-MM-DD format")
	}
	return d, nil
}

// Description must be non-empty after trimming.
func Description(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("is required")
	}
	if len(s) > MaxDescriptionLen {
		return fmt.Errorf("must be at most %d characters", MaxDescriptionLen)
	}
	return nil
}

// Category is optional free text with a length cap.
func Category(s string) error {
	if len(s) > MaxCategoryLen {
		return fmt.Errorf("must be at most %d characters", MaxCategoryLen)
	}
	return nil
}

func Username(s string) error {
	if !usernameRe.MatchString(s) {
		return fmt.Errorf("must be 3-50 alphanumeric characters")
	}
	return nil
}

func Email(s string) error {
	if s == "" {
		return fmt.Errorf("is required")
	}
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s || !strings.Contains(s[strings.LastIndex(s, "@")+1:], ".") {
		return fmt.Errorf("must be a valid email address")
	}
	return nil
}

func Password(s string) error {
	if len(s) < MinPasswordLen {
		return fmt.Errorf("must be at least %d characters long", MinPasswordLen)
	}
	if len(s) > MaxPasswordLen {
		return fmt.Errorf("must be at most %d bytes long", MaxPasswordLen)
	}
	return nil
}
