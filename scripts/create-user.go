// Command create-user registers an account directly against the database,
// for seeding local environments.
//
//	go run scripts/create-user.go -username alice -email a@x.com -password pw1
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/carlog/carlog/internal/repository"
	"github.com/carlog/carlog/internal/service"
)

type output struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Created  bool   `json:"created"`
}

func main() {
	var (
		databaseURL = flag.String("database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
		username    = flag.String("username", "", "Username")
		email       = flag.String("email", "", "Email (login key)")
		password    = flag.String("password", os.Getenv("CARLOG_PASSWORD"), "Password")
		migrate     = flag.Bool("migrate", true, "Apply pending migrations first")
		format      = flag.String("format", "plain", "Output format: plain or json")
	)
	flag.Parse()

	if *databaseURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}

	if *migrate {
		if err := repository.Migrate(*databaseURL); err != nil {
			fmt.Fprintln(os.Stderr, "migrate:", err)
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	repo, err := repository.New(ctx, *databaseURL)
	if err != nil {
		fmt.Fprintln(os.Stderr, "connect database:", err)
		os.Exit(1)
	}
	defer repo.Close()

	out, err := ensureUser(ctx, repo, *username, *email, *password)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}

	switch strings.ToLower(*format) {
	case "plain":
		fmt.Println(out.UserID)
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(out)
	default:
		fmt.Fprintln(os.Stderr, "invalid format; use plain or json")
		os.Exit(1)
	}
}

// ensureUser registers the account, or reports the existing one when the
// email is taken by the same username.
func ensureUser(ctx context.Context, repo *repository.Repository, username, email, password string) (*output, error) {
	accounts := service.NewAccountService(repo, nil)

	user, err := accounts.Register(ctx, service.RegisterInput{
		Username: username,
		Email:    email,
		Password: password,
	})
	if err == nil {
		return &output{UserID: user.ID, Username: user.Username, Email: user.Email, Created: true}, nil
	}

	if !errors.Is(err, service.ErrEmailExists) {
		return nil, fmt.Errorf("register: %w", err)
	}

	existing, lookupErr := repo.GetUserByEmail(ctx, strings.TrimSpace(email))
	if lookupErr != nil {
		return nil, fmt.Errorf("look up existing user: %w", lookupErr)
	}
	if existing.Username != strings.TrimSpace(username) {
		return nil, fmt.Errorf("email %s already used by user %s", existing.Email, existing.Username)
	}
	return &output{UserID: existing.ID, Username: existing.Username, Email: existing.Email}, nil
}
