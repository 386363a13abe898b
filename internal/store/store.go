package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/ayush/expense-tracker/internal/config"
	"github.com/ayush/expense-tracker/internal/models"
)

var (
	// ErrNotFound is returned when a row does not exist or is not owned by
	// the caller.
	ErrNotFound          = errors.New("not found")
	ErrDuplicateUsername = errors.New("username already exists")
	ErrDuplicateEmail    = errors.New("email already exists")
	// ErrUnknownOwner is returned when an expense references a missing account.
	ErrUnknownOwner = errors.New("owner account does not exist")
)

// Store is the full persistence surface used by the service. Backends
// enforce uniqueness and ownership inside the database.
type Store interface {
	CreateAccount(ctx context.Context, a *models.Account) error
	GetAccountByID(ctx context.Context, id string) (*models.Account, error)
	GetAccountByUsername(ctx context.Context, username string) (*models.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*models.Account, error)

	CreateExpense(ctx context.Context, e *models.Expense) error
	ListExpensesByOwner(ctx context.Context, ownerID string) ([]models.Expense, error)
	UpdateExpense(ctx context.Context, id, ownerID string, patch models.ExpensePatch) (*models.Expense, error)
	DeleteExpense(ctx context.Context, id, ownerID string) error
	TotalByOwner(ctx context.Context, ownerID string) (decimal.Decimal, error)

	Migrate(ctx context.Context) error
	Close() error
}

// Open connects to the backend selected by cfg.StoreDriver and migrates it.
func Open(ctx context.Context, cfg *config.Config, log *logrus.Logger) (Store, error) {
	var (
		s   Store
		err error
	)
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		s, err = OpenPostgres(ctx, cfg.PostgresDSN)
	case config.DriverSQLite:
		s, err = OpenSQLite(cfg.SQLitePath)
	case config.DriverMongo:
		s, err = OpenMongo(ctx, cfg.MongoURI, cfg.MongoDB)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
	if err != nil {
		return nil, fmt.Errorf("%s connect: %w", cfg.StoreDriver, err)
	}

	if err := s.Migrate(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("%s migrate: %w", cfg.StoreDriver, err)
	}

	log.WithField("driver", cfg.StoreDriver).Info("store ready")
	return s, nil
}

// toCents converts a validated two-decimal amount to integer cents.
func toCents(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}

func fromCents(c int64) decimal.Decimal {
	return decimal.New(c, -2)
}

// Nil patch fields become SQL NULL so COALESCE keeps the stored value.

func optString(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func optAmount(p *decimal.Decimal) any {
	if p == nil {
		return nil
	}
	return p.StringFixed(2)
}

func optDate(p *time.Time) any {
	if p == nil {
		return nil
	}
	return *p
}
