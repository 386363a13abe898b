package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/ayush/expense-tracker/internal/config"
	"github.com/ayush/expense-tracker/internal/logging"
	"github.com/ayush/expense-tracker/internal/models"
)

type SQLiteStoreSuite struct {
	suite.Suite
	store *SQLiteStore
	ctx   context.Context
}

func (s *SQLiteStoreSuite) SetupTest() {
	st, err := OpenSQLite(":memory:")
	s.Require().NoError(err)
	s.ctx = context.Background()
	s.Require().NoError(st.Migrate(s.ctx))
	s.store = st
}

func (s *SQLiteStoreSuite) TearDownTest() {
	s.store.Close()
}

func TestSQLiteStoreSuite(t *testing.T) {
	suite.Run(t, new(SQLiteStoreSuite))
}

func (s *SQLiteStoreSuite) account(username string) *models.Account {
	a := &models.Account{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "$2a$04$hash",
		CreatedAt:    time.Now().UTC(),
	}
	s.Require().NoError(s.store.CreateAccount(s.ctx, a))
	return a
}

func (s *SQLiteStoreSuite) expense(owner, description, amount, date string) *models.Expense {
	d, err := time.Parse(models.DateLayout, date)
	s.Require().NoError(err)
	e := &models.Expense{
		ID:          uuid.NewString(),
		OwnerID:     owner,
		Description: description,
		Amount:      decimal.RequireFromString(amount),
		Date:        d,
		Category:    "food",
		CreatedAt:   time.Now().UTC(),
	}
	s.Require().NoError(s.store.CreateExpense(s.ctx, e))
	return e
}

func (s *SQLiteStoreSuite) TestAccountRoundTrip() {
	a := s.account("alice")

	byName, err := s.store.GetAccountByUsername(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal(a.ID, byName.ID)
	s.Equal("$2a$04$hash", byName.PasswordHash)

	byEmail, err := s.store.GetAccountByEmail(s.ctx, "alice@example.com")
	s.Require().NoError(err)
	s.Equal(a.ID, byEmail.ID)

	byID, err := s.store.GetAccountByID(s.ctx, a.ID)
	s.Require().NoError(err)
	s.Equal("alice", byID.Username)
}

func (s *SQLiteStoreSuite) TestAccountNotFound() {
	_, err := s.store.GetAccountByUsername(s.ctx, "nobody")
	s.ErrorIs(err, ErrNotFound)

	_, err = s.store.GetAccountByID(s.ctx, uuid.NewString())
	s.ErrorIs(err, ErrNotFound)
}

func (s *SQLiteStoreSuite) TestDuplicateUsername() {
	s.account("alice")

	err := s.store.CreateAccount(s.ctx, &models.Account{
		ID: uuid.NewString(), Username: "alice", Email: "other@example.com",
		PasswordHash: "x", CreatedAt: time.Now(),
	})
	s.ErrorIs(err, ErrDuplicateUsername)
}

func (s *SQLiteStoreSuite) TestDuplicateEmail() {
	s.account("alice")

	err := s.store.CreateAccount(s.ctx, &models.Account{
		ID: uuid.NewString(), Username: "bob", Email: "alice@example.com",
		PasswordHash: "x", CreatedAt: time.Now(),
	})
	s.ErrorIs(err, ErrDuplicateEmail)
}

func (s *SQLiteStoreSuite) TestConcurrentRegistrationOneWins() {
	const n = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		ok   int
		dups int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.store.CreateAccount(s.ctx, &models.Account{
				ID: uuid.NewString(), Username: "carol", Email: uuid.NewString() + "@example.com",
				PasswordHash: "x", CreatedAt: time.Now(),
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, ErrDuplicateUsername):
				dups++
			}
		}()
	}
	wg.Wait()

	s.Equal(1, ok)
	s.Equal(n-1, dups)
}

func (s *SQLiteStoreSuite) TestListInInsertionOrder() {
	a := s.account("alice")
	b := s.account("bob")
	first := s.expense(a.ID, "coffee", "3.50", "2024-01-01")
	second := s.expense(a.ID, "lunch", "12.00", "2024-01-02")
	s.expense(b.ID, "rent", "900.00", "2024-01-01")

	list, err := s.store.ListExpensesByOwner(s.ctx, a.ID)
	s.Require().NoError(err)
	s.Require().Len(list, 2)
	s.Equal(first.ID, list[0].ID)
	s.Equal(second.ID, list[1].ID)
	s.Equal("3.50", list[0].Amount.StringFixed(2))
	s.Equal("2024-01-01", list[0].Date.Format(models.DateLayout))
	s.Equal(a.ID, list[0].OwnerID)
}

func (s *SQLiteStoreSuite) TestListEmptyIsNotNil() {
	a := s.account("alice")

	list, err := s.store.ListExpensesByOwner(s.ctx, a.ID)
	s.Require().NoError(err)
	s.NotNil(list)
	s.Empty(list)
}

func (s *SQLiteStoreSuite) TestPartialUpdate() {
	a := s.account("alice")
	e := s.expense(a.ID, "coffee", "3.50", "2024-01-01")

	amount := decimal.RequireFromString("4.00")
	updated, err := s.store.UpdateExpense(s.ctx, e.ID, a.ID, models.ExpensePatch{Amount: &amount})
	s.Require().NoError(err)
	s.Equal("4.00", updated.Amount.StringFixed(2))
	s.Equal("coffee", updated.Description)
	s.Equal("2024-01-01", updated.Date.Format(models.DateLayout))
	s.Equal("food", updated.Category)

	desc := "espresso"
	date := time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC)
	updated, err = s.store.UpdateExpense(s.ctx, e.ID, a.ID, models.ExpensePatch{Description: &desc, Date: &date})
	s.Require().NoError(err)
	s.Equal("espresso", updated.Description)
	s.Equal("2024-02-03", updated.Date.Format(models.DateLayout))
	s.Equal("4.00", updated.Amount.StringFixed(2))
}

func (s *SQLiteStoreSuite) TestUpdateByOtherOwnerIsNotFound() {
	a := s.account("alice")
	b := s.account("bob")
	e := s.expense(a.ID, "coffee", "3.50", "2024-01-01")

	amount := decimal.RequireFromString("1.00")
	_, err := s.store.UpdateExpense(s.ctx, e.ID, b.ID, models.ExpensePatch{Amount: &amount})
	s.ErrorIs(err, ErrNotFound)

	list, err := s.store.ListExpensesByOwner(s.ctx, a.ID)
	s.Require().NoError(err)
	s.Require().Len(list, 1)
	s.Equal("3.50", list[0].Amount.StringFixed(2))
}

func (s *SQLiteStoreSuite) TestUpdateMissing() {
	a := s.account("alice")
	desc := "x"
	_, err := s.store.UpdateExpense(s.ctx, uuid.NewString(), a.ID, models.ExpensePatch{Description: &desc})
	s.ErrorIs(err, ErrNotFound)
}

func (s *SQLiteStoreSuite) TestDelete() {
	a := s.account("alice")
	b := s.account("bob")
	e := s.expense(a.ID, "coffee", "3.50", "2024-01-01")

	s.ErrorIs(s.store.DeleteExpense(s.ctx, e.ID, b.ID), ErrNotFound)

	s.Require().NoError(s.store.DeleteExpense(s.ctx, e.ID, a.ID))
	s.ErrorIs(s.store.DeleteExpense(s.ctx, e.ID, a.ID), ErrNotFound)

	list, err := s.store.ListExpensesByOwner(s.ctx, a.ID)
	s.Require().NoError(err)
	s.Empty(list)
}

func (s *SQLiteStoreSuite) TestTotal() {
	a := s.account("alice")
	b := s.account("bob")

	total, err := s.store.TotalByOwner(s.ctx, a.ID)
	s.Require().NoError(err)
	s.Equal("0.00", total.StringFixed(2))

	s.expense(a.ID, "lunch", "12.50", "2024-01-01")
	s.expense(a.ID, "snack", "7.25", "2024-01-02")
	s.expense(b.ID, "rent", "900.00", "2024-01-01")

	total, err = s.store.TotalByOwner(s.ctx, a.ID)
	s.Require().NoError(err)
	s.Equal("19.75", total.StringFixed(2))
}

func (s *SQLiteStoreSuite) TestUnknownOwner() {
	err := s.store.CreateExpense(s.ctx, &models.Expense{
		ID: uuid.NewString(), OwnerID: uuid.NewString(), Description: "ghost",
		Amount: decimal.NewFromInt(1), Date: time.Now(), CreatedAt: time.Now(),
	})
	s.ErrorIs(err, ErrUnknownOwner)
}

func (s *SQLiteStoreSuite) TestAccountDeleteCascades() {
	a := s.account("alice")
	s.expense(a.ID, "coffee", "3.50", "2024-01-01")

	_, err := s.store.db.ExecContext(s.ctx, `DELETE FROM accounts WHERE id = ?`, a.ID)
	s.Require().NoError(err)

	var n int
	s.Require().NoError(s.store.db.QueryRowContext(s.ctx, `SELECT COUNT(*) FROM expenses`).Scan(&n))
	s.Zero(n)
}

func TestCents(t *testing.T) {
	tests := []struct {
		in    string
		cents int64
	}{
		{"0.01", 1},
		{"3.5", 350},
		{"12.50", 1250},
		{"99999999.99", 9999999999},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			c := toCents(decimal.RequireFromString(tt.in))
			assert.Equal(t, tt.cents, c)
			assert.True(t, decimal.RequireFromString(tt.in).Equal(fromCents(c)))
		})
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	st, err := Open(ctx, &config.Config{StoreDriver: config.DriverSQLite, SQLitePath: ":memory:"}, logging.Discard())
	require.NoError(t, err)
	defer st.Close()

	_, err = st.ListExpensesByOwner(ctx, uuid.NewString())
	assert.NoError(t, err, "migrations should have created the tables")

	_, err = Open(ctx, &config.Config{StoreDriver: "oracle"}, logging.Discard())
	assert.ErrorContains(t, err, "unknown store driver")
}
