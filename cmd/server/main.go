package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"github.com/ayush/expense-tracker/internal/auth"
	"github.com/ayush/expense-tracker/internal/config"
	"github.com/ayush/expense-tracker/internal/expense"
	"github.com/ayush/expense-tracker/internal/httputil"
	"github.com/ayush/expense-tracker/internal/logging"
	"github.com/ayush/expense-tracker/internal/middleware"
	"github.com/ayush/expense-tracker/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New("info").Fatalf("Failed to load config: %v", err)
	}
	logger := logging.New(cfg.LogLevel)
	ctx := context.Background()

	// ── Storage ──────────────────────────────────────────────
	openCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	st, err := store.Open(openCtx, cfg, logger)
	cancel()
	if err != nil {
		logger.Fatalf("Failed to open store: %v", err)
	}
	defer st.Close()

	// ── Auth ─────────────────────────────────────────────────
	hasher, err := auth.NewHasher(cfg.BcryptCost)
	if err != nil {
		logger.Fatalf("Failed to create hasher: %v", err)
	}
	tokens := auth.NewTokenService(cfg.JWTSecret)

	// ── Router ───────────────────────────────────────────────
	r := setupRouter(cfg, logger, st, hasher, tokens)

	// ── Server ───────────────────────────────────────────────
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Infof("Expense tracker listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")
	shutCtx, cancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		logger.WithError(err).Error("graceful shutdown failed")
	}
}

func setupRouter(cfg *config.Config, logger *logrus.Logger, st store.Store, hasher *auth.Hasher, tokens *auth.TokenService) http.Handler {
	authHandler := auth.NewHandler(auth.NewService(st, hasher, tokens, cfg.StoreTimeout, logger), logger)
	expenseHandler := expense.NewHandler(expense.NewLedger(st, cfg.StoreTimeout, logger), logger)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         300,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteError(w, http.StatusNotFound, "Not Found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Auth routes (public)
	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
	})

	// Expense routes (protected)
	requireAuth := middleware.RequireAuth(tokens)
	r.Route("/api/expenses", func(r chi.Router) {
		r.Use(requireAuth)
		r.Post("/", expenseHandler.Create)
		r.Get("/", expenseHandler.List)
		r.Put("/{id}", expenseHandler.Update)
		r.Delete("/{id}", expenseHandler.Delete)
	})
	r.With(requireAuth).Get("/api/expense", expenseHandler.Total)

	return r
}
