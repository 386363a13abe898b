package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ayush/expense-tracker/internal/httputil"
	"github.com/ayush/expense-tracker/internal/models"
	"github.com/ayush/expense-tracker/internal/store"
	"github.com/ayush/expense-tracker/internal/validate"
)

// ErrInvalidCredentials covers both an unknown account and a wrong password.
var ErrInvalidCredentials = errors.New("invalid username or password")

// AccountStore defines the interface for account persistence. CreateAccount
// must enforce username and email uniqueness itself.
type AccountStore interface {
	CreateAccount(ctx context.Context, a *models.Account) error
	GetAccountByUsername(ctx context.Context, username string) (*models.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*models.Account, error)
}

// Service registers and authenticates accounts.
type Service struct {
	accounts AccountStore
	hasher   *Hasher
	tokens   *TokenService
	timeout  time.Duration
	log      *logrus.Logger
}

func NewService(accounts AccountStore, hasher *Hasher, tokens *TokenService, timeout time.Duration, log *logrus.Logger) *Service {
	return &Service{accounts: accounts, hasher: hasher, tokens: tokens, timeout: timeout, log: log}
}

// Register validates the request, hashes the password and creates the
// account. Duplicate usernames and emails surface as store errors.
func (s *Service) Register(ctx context.Context, req models.RegisterRequest) (*models.Account, error) {
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" {
		req.Username = strings.TrimSpace(req.Identifier)
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	var c validate.Collector
	c.Check("username", validate.Username(req.Username))
	c.Check("email", validate.Email(req.Email))
	c.Check("password", validate.Password(req.Password))
	if err := c.Err(); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(ctx, req.Password)
	if err != nil {
		return nil, err
	}

	account := &models.Account{
		ID:           uuid.NewString(),
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}

	sctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.accounts.CreateAccount(sctx, account); err != nil {
		return nil, err
	}

	s.log.WithField("account_id", account.ID).Info("account registered")
	return account, nil
}

// Login checks the credentials and issues a session token.
func (s *Service) Login(ctx context.Context, req models.LoginRequest) (string, error) {
	username := strings.TrimSpace(req.Username)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if id := strings.TrimSpace(req.Identifier); username == "" && id != "" {
		if strings.Contains(id, "@") {
			email = strings.ToLower(id)
		} else {
			username = id
		}
	}
	if (username == "" && email == "") || req.Password == "" {
		return "", ErrInvalidCredentials
	}

	sctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var (
		account *models.Account
		err     error
	)
	if username != "" {
		account, err = s.accounts.GetAccountByUsername(sctx, username)
	} else {
		account, err = s.accounts.GetAccountByEmail(sctx, email)
	}
	if errors.Is(err, store.ErrNotFound) {
		// same bcrypt work as a wrong password
		s.hasher.Verify(ctx, req.Password, s.hasher.dummy)
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", err
	}

	if !s.hasher.Verify(ctx, req.Password, account.PasswordHash) {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(account.ID)
	if err != nil {
		return "", err
	}

	s.log.WithField("account_id", account.ID).Info("account logged in")
	return token, nil
}

// Handler holds auth-related HTTP handlers.
type Handler struct {
	svc *Service
	log *logrus.Logger
}

func NewHandler(svc *Service, log *logrus.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

// Register creates a new account.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteValidation(w, err)
		return
	}

	account, err := h.svc.Register(r.Context(), req)
	switch {
	case err == nil:
		httputil.WriteJSON(w, http.StatusCreated, models.RegisterResponse{
			Message: "User registered successfully",
			ID:      account.ID,
		})
	case errors.Is(err, store.ErrDuplicateUsername):
		httputil.WriteValidation(w, validate.Fail("username", "Username already exists"))
	case errors.Is(err, store.ErrDuplicateEmail):
		httputil.WriteValidation(w, validate.Fail("email", "Email already exists"))
	default:
		var verr *validate.Error
		if errors.As(err, &verr) {
			httputil.WriteValidation(w, err)
			return
		}
		h.log.WithError(err).Error("register failed")
		httputil.WriteInternal(w)
	}
}

// Login authenticates an account and returns a session token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteValidation(w, err)
		return
	}

	token, err := h.svc.Login(r.Context(), req)
	switch {
	case err == nil:
		httputil.WriteJSON(w, http.StatusOK, models.LoginResponse{Message: "Login successful", Token: token})
	case errors.Is(err, ErrInvalidCredentials):
		httputil.WriteError(w, http.StatusBadRequest, "Invalid username or password")
	default:
		h.log.WithError(err).Error("login failed")
		httputil.WriteInternal(w)
	}
}
