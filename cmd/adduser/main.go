package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/ayush/expense-tracker/internal/auth"
	"github.com/ayush/expense-tracker/internal/config"
	"github.com/ayush/expense-tracker/internal/logging"
	"github.com/ayush/expense-tracker/internal/models"
	"github.com/ayush/expense-tracker/internal/store"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("adduser", flag.ContinueOnError)
	fs.SetOutput(stderr)

	username := fs.String("user", "", "Username")
	email := fs.String("email", "", "Email address")
	passwordFlag := fs.String("password", "", "Password (optional, will prompt if omitted)")
	driver := fs.String("store", config.DriverSQLite, "Store driver: sqlite, postgres or mongo")
	sqlitePath := fs.String("sqlite", "expenses.db", "SQLite database file")
	postgresDSN := fs.String("postgres", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	mongoURI := fs.String("mongo", os.Getenv("MONGO_URI"), "MongoDB connection URI")
	mongoDB := fs.String("mongo-db", "expense_tracker", "MongoDB database name")
	cost := fs.Int("cost", 10, "bcrypt cost")

	if err := fs.Parse(args); err != nil {
		return err
	}

	var missing []string
	if *username == "" {
		missing = append(missing, "user")
	}
	if *email == "" {
		missing = append(missing, "email")
	}
	if len(missing) > 0 {
		fmt.Fprintln(stdout, "Usage: adduser -user <username> -email <email> [-password <password>] [-store <driver>] [-sqlite <path>]")
		fs.PrintDefaults()
		return fmt.Errorf("missing required flags: %s", strings.Join(missing, ", "))
	}

	password := *passwordFlag
	if password == "" {
		fmt.Fprint(stdout, "Password: ")
		var err error
		password, err = readPassword(stdin)
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(stdout)
	}

	cfg := &config.Config{
		StoreDriver:  strings.ToLower(*driver),
		SQLitePath:   *sqlitePath,
		PostgresDSN:  *postgresDSN,
		MongoURI:     *mongoURI,
		MongoDB:      *mongoDB,
		BcryptCost:   *cost,
		StoreTimeout: 10 * time.Second,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	log := logging.NewWithOutput("warn", stderr)
	st, err := store.Open(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	hasher, err := auth.NewHasher(cfg.BcryptCost)
	if err != nil {
		return err
	}

	// Register never issues tokens.
	svc := auth.NewService(st, hasher, nil, cfg.StoreTimeout, log)
	account, err := svc.Register(ctx, models.RegisterRequest{
		Username: *username,
		Email:    *email,
		Password: password,
	})
	switch {
	case errors.Is(err, store.ErrDuplicateUsername):
		return fmt.Errorf("user %s already exists", *username)
	case errors.Is(err, store.ErrDuplicateEmail):
		return fmt.Errorf("email %s already exists", *email)
	case err != nil:
		return fmt.Errorf("failed to create user: %w", err)
	}

	fmt.Fprintf(stdout, "User %s created successfully with ID %s\n", account.Username, account.ID)
	return nil
}

func readPassword(stdin io.Reader) (string, error) {
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return string(b), nil
	}

	// not a terminal: read one line
	scanner := bufio.NewScanner(stdin)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}
