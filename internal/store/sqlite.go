package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/ayush/expense-tracker/internal/models"
)

// SQLiteStore keeps accounts and expenses in an embedded SQLite database.
// Amounts are stored as integer cents.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens path (":memory:" allowed) with foreign keys enforced.
func OpenSQLite(path string) (*SQLiteStore, error) {
	memory := path == ":memory:"

	dsn := path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	if !memory {
		dsn += "&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if memory {
		// each connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS accounts (
			id            TEXT PRIMARY KEY,
			username      TEXT NOT NULL UNIQUE,
			email         TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			created_at    TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS expenses (
			id           TEXT PRIMARY KEY,
			owner_id     TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
			description  TEXT NOT NULL,
			amount_cents INTEGER NOT NULL CHECK (amount_cents > 0),
			date         TEXT NOT NULL,
			category     TEXT NOT NULL DEFAULT '',
			created_at   TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS expenses_owner_id_idx ON expenses (owner_id)`,
	}
	for _, m := range migrations {
		if _, err := s.db.ExecContext(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

// constraintFailure reports whether err is a SQLite constraint violation
// and returns its message.
func constraintFailure(err error) (string, bool) {
	var se *sqlite.Error
	if !errors.As(err, &se) || se.Code()&0xff != sqlite3.SQLITE_CONSTRAINT {
		return "", false
	}
	return se.Error(), true
}

func (s *SQLiteStore) CreateAccount(ctx context.Context, a *models.Account) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts (id, username, email, password_hash, created_at) VALUES (?, ?, ?, ?, ?)`,
		a.ID, a.Username, a.Email, a.PasswordHash, a.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		if msg, ok := constraintFailure(err); ok {
			switch {
			case strings.Contains(msg, "accounts.username"):
				return ErrDuplicateUsername
			case strings.Contains(msg, "accounts.email"):
				return ErrDuplicateEmail
			}
		}
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

func (s *SQLiteStore) getAccount(ctx context.Context, column, value string) (*models.Account, error) {
	var (
		a       models.Account
		created string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash, created_at FROM accounts WHERE `+column+` = ?`, value,
	).Scan(&a.ID, &a.Username, &a.Email, &a.PasswordHash, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get account by %s: %w", column, err)
	}
	if a.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	return &a, nil
}

func (s *SQLiteStore) GetAccountByID(ctx context.Context, id string) (*models.Account, error) {
	return s.getAccount(ctx, "id", id)
}

func (s *SQLiteStore) GetAccountByUsername(ctx context.Context, username string) (*models.Account, error) {
	return s.getAccount(ctx, "username", username)
}

func (s *SQLiteStore) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	return s.getAccount(ctx, "email", email)
}

const sqliteExpenseColumns = `id, owner_id, description, amount_cents, date, category, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteExpense(row rowScanner) (*models.Expense, error) {
	var (
		e             models.Expense
		cents         int64
		date, created string
	)
	if err := row.Scan(&e.ID, &e.OwnerID, &e.Description, &cents, &date, &e.Category, &created); err != nil {
		return nil, err
	}
	var err error
	if e.Date, err = time.Parse(models.DateLayout, date); err != nil {
		return nil, fmt.Errorf("parse date: %w", err)
	}
	if e.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	e.Amount = fromCents(cents)
	return &e, nil
}

func (s *SQLiteStore) CreateExpense(ctx context.Context, e *models.Expense) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO expenses (`+sqliteExpenseColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.OwnerID, e.Description, toCents(e.Amount), e.Date.Format(models.DateLayout), e.Category,
		e.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		if msg, ok := constraintFailure(err); ok && strings.Contains(msg, "FOREIGN KEY") {
			return ErrUnknownOwner
		}
		return fmt.Errorf("create expense: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListExpensesByOwner(ctx context.Context, ownerID string) ([]models.Expense, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteExpenseColumns+` FROM expenses WHERE owner_id = ? ORDER BY rowid`, ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	expenses := []models.Expense{}
	for rows.Next() {
		e, err := scanSQLiteExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		expenses = append(expenses, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return expenses, nil
}

func (s *SQLiteStore) UpdateExpense(ctx context.Context, id, ownerID string, patch models.ExpensePatch) (*models.Expense, error) {
	var cents, date any
	if patch.Amount != nil {
		cents = toCents(*patch.Amount)
	}
	if patch.Date != nil {
		date = patch.Date.Format(models.DateLayout)
	}

	row := s.db.QueryRowContext(ctx,
		`UPDATE expenses SET
			description  = COALESCE(?, description),
			amount_cents = COALESCE(?, amount_cents),
			date         = COALESCE(?, date),
			category     = COALESCE(?, category)
		 WHERE id = ? AND owner_id = ?
		 RETURNING `+sqliteExpenseColumns,
		optString(patch.Description), cents, date, optString(patch.Category), id, ownerID,
	)
	e, err := scanSQLiteExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update expense: %w", err)
	}
	return e, nil
}

func (s *SQLiteStore) DeleteExpense(ctx context.Context, id, ownerID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) TotalByOwner(ctx context.Context, ownerID string) (decimal.Decimal, error) {
	var cents int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount_cents), 0) FROM expenses WHERE owner_id = ?`, ownerID,
	).Scan(&cents)
	if err != nil {
		return decimal.Zero, fmt.Errorf("total expenses: %w", err)
	}
	return fromCents(cents), nil
}
