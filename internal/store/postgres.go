package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/ayush/expense-tracker/internal/models"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// pgConflict maps constraint violations to store errors, or returns nil when
// err is not one this package knows.
func pgConflict(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return nil
	}
	switch {
	case pgErr.Code == pgUniqueViolation && pgErr.ConstraintName == "accounts_username_key":
		return ErrDuplicateUsername
	case pgErr.Code == pgUniqueViolation && pgErr.ConstraintName == "accounts_email_key":
		return ErrDuplicateEmail
	case pgErr.Code == pgForeignKeyViolation && pgErr.ConstraintName == "expenses_owner_id_fkey":
		return ErrUnknownOwner
	}
	return nil
}

// PostgresStore handles accounts and expenses against PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// OpenPostgres creates and pings a connection pool.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return NewPostgresStore(pool), nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// Migrate creates the tables if they don't exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS accounts (
			id            UUID PRIMARY KEY,
			username      VARCHAR(50)  NOT NULL,
			email         VARCHAR(255) NOT NULL,
			password_hash VARCHAR(255) NOT NULL,
			created_at    TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
			CONSTRAINT accounts_username_key UNIQUE (username),
			CONSTRAINT accounts_email_key UNIQUE (email)
		)`,
		`CREATE TABLE IF NOT EXISTS expenses (
			id          UUID PRIMARY KEY,
			owner_id    UUID          NOT NULL,
			description VARCHAR(255)  NOT NULL,
			amount      NUMERIC(10,2) NOT NULL CHECK (amount > 0),
			date        DATE          NOT NULL,
			category    VARCHAR(64)   NOT NULL DEFAULT '',
			created_at  TIMESTAMPTZ   NOT NULL DEFAULT NOW(),
			CONSTRAINT expenses_owner_id_fkey FOREIGN KEY (owner_id) REFERENCES accounts(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS expenses_owner_id_idx ON expenses (owner_id, created_at)`,
	}
	for _, m := range migrations {
		if _, err := s.pool.Exec(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresStore) CreateAccount(ctx context.Context, a *models.Account) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO accounts (id, username, email, password_hash, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		a.ID, a.Username, a.Email, a.PasswordHash, a.CreatedAt,
	)
	if err != nil {
		if mapped := pgConflict(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

func (s *PostgresStore) getAccount(ctx context.Context, column, value string) (*models.Account, error) {
	var a models.Account
	err := s.pool.QueryRow(ctx,
		`SELECT id, username, email, password_hash, created_at FROM accounts WHERE `+column+` = $1`, value,
	).Scan(&a.ID, &a.Username, &a.Email, &a.PasswordHash, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get account by %s: %w", column, err)
	}
	return &a, nil
}

func (s *PostgresStore) GetAccountByID(ctx context.Context, id string) (*models.Account, error) {
	return s.getAccount(ctx, "id", id)
}

func (s *PostgresStore) GetAccountByUsername(ctx context.Context, username string) (*models.Account, error) {
	return s.getAccount(ctx, "username", username)
}

func (s *PostgresStore) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	return s.getAccount(ctx, "email", email)
}

const pgExpenseColumns = `id, owner_id, description, amount::text, date, category, created_at`

func scanPgExpense(row pgx.Row) (*models.Expense, error) {
	var (
		e      models.Expense
		amount string
	)
	if err := row.Scan(&e.ID, &e.OwnerID, &e.Description, &amount, &e.Date, &e.Category, &e.CreatedAt); err != nil {
		return nil, err
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	e.Amount = d
	return &e, nil
}

func (s *PostgresStore) CreateExpense(ctx context.Context, e *models.Expense) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO expenses (id, owner_id, description, amount, date, category, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.OwnerID, e.Description, e.Amount.StringFixed(2), e.Date, e.Category, e.CreatedAt,
	)
	if err != nil {
		if mapped := pgConflict(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("create expense: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListExpensesByOwner(ctx context.Context, ownerID string) ([]models.Expense, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+pgExpenseColumns+` FROM expenses WHERE owner_id = $1 ORDER BY created_at, id`, ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	expenses := []models.Expense{}
	for rows.Next() {
		e, err := scanPgExpense(rows)
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

// UpdateExpense applies patch and checks ownership in one statement.
func (s *PostgresStore) UpdateExpense(ctx context.Context, id, ownerID string, patch models.ExpensePatch) (*models.Expense, error) {
	row := s.pool.QueryRow(ctx,
		`UPDATE expenses SET
			description = COALESCE($3, description),
			amount      = COALESCE($4::numeric, amount),
			date        = COALESCE($5::date, date),
			category    = COALESCE($6, category)
		 WHERE id = $1 AND owner_id = $2
		 RETURNING `+pgExpenseColumns,
		id, ownerID, optString(patch.Description), optAmount(patch.Amount), optDate(patch.Date), optString(patch.Category),
	)
	e, err := scanPgExpense(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update expense: %w", err)
	}
	return e, nil
}

func (s *PostgresStore) DeleteExpense(ctx context.Context, id, ownerID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM expenses WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) TotalByOwner(ctx context.Context, ownerID string) (decimal.Decimal, error) {
	var total string
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0)::text FROM expenses WHERE owner_id = $1`, ownerID,
	).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("total expenses: %w", err)
	}
	return decimal.NewFromString(total)
}
