package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"linkauth/internal/app"
	"linkauth/internal/config"
	"linkauth/internal/domain"
	"linkauth/internal/observability/logging"
)

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "migrate":
		err = runMigrate(args)
	case "sweep":
		err = runSweep(args)
	case "magic-link":
		err = runMagicLink(args)
	case "qr":
		err = runQR(args)
	case "purge-user":
		err = runPurgeUser(args)
	default:
		usage()
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s <command> [options]\n", os.Args[0])
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  migrate      Apply pending database migrations")
	fmt.Fprintln(os.Stderr, "  sweep        Delete expired tokens and remind lapsed QR holders")
	fmt.Fprintln(os.Stderr, "  magic-link   Issue a magic link for -email and print its URL")
	fmt.Fprintln(os.Stderr, "  qr           Issue or reuse the QR key for -email and write the PNG to -out")
	fmt.Fprintln(os.Stderr, "  purge-user   Delete the account for -email and all of its tokens")
	os.Exit(2)
}

type env struct {
	cfg config.Config
	svc *app.Services
	ctx context.Context
}

// setup opens the store and wires the services; close releases the pool.
func setup() (*env, func(), error) {
	cfg := config.Load()
	logger := logging.NewLogger(logging.Config{
		ServiceName: "authctl",
		Environment: cfg.Environment,
		Level:       cfg.LogLevel,
		Output:      os.Stderr,
	})
	slog.SetDefault(logger)

	ctx := context.Background()
	st, sqlDB, err := app.Open(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	svc, err := app.Wire(st, cfg, logger)
	if err != nil {
		_ = sqlDB.Close()
		return nil, nil, err
	}
	return &env{cfg: cfg, svc: svc, ctx: ctx}, func() { _ = sqlDB.Close() }, nil
}

func parseEmailFlag(name string, args []string, extra func(fs *flag.FlagSet)) (string, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	email := fs.String("email", "", "account email address")
	if extra != nil {
		extra(fs)
	}
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	if strings.TrimSpace(*email) == "" {
		return "", errors.New("-email is required")
	}
	return strings.TrimSpace(*email), nil
}

func runMigrate(args []string) error {
	// app.Open applies migrations.
	_, closeFn, err := setup()
	if err != nil {
		return err
	}
	defer closeFn()
	fmt.Println("migrations applied")
	return nil
}

func runSweep(args []string) error {
	e, closeFn, err := setup()
	if err != nil {
		return err
	}
	defer closeFn()

	n, err := e.svc.Sweeper.Sweep(e.ctx)
	if err != nil {
		return err
	}
	return printJSON(map[string]int64{"deleted": n})
}

func runMagicLink(args []string) error {
	email, err := parseEmailFlag("magic-link", args, nil)
	if err != nil {
		return err
	}
	e, closeFn, err := setup()
	if err != nil {
		return err
	}
	defer closeFn()

	tok, err := e.svc.Auth.IssueMagicLink(e.ctx, email, domain.Origin{})
	if err != nil {
		return err
	}
	return printJSON(map[string]any{
		"url":       domain.VerifyURL(e.cfg.BaseURL, tok.Value),
		"expiresAt": tok.ExpiresAt,
	})
}

func runQR(args []string) error {
	var out string
	email, err := parseEmailFlag("qr", args, func(fs *flag.FlagSet) {
		fs.StringVar(&out, "out", "qr-key.png", "PNG output path")
	})
	if err != nil {
		return err
	}
	e, closeFn, err := setup()
	if err != nil {
		return err
	}
	defer closeFn()

	user, err := e.svc.Store.Users().GetByEmail(e.ctx, email)
	if err != nil {
		return fmt.Errorf("lookup %s: %w", email, err)
	}
	key, err := e.svc.Auth.IssueOrReuseQRKey(e.ctx, user.ID)
	if err != nil {
		return err
	}
	if err := os.WriteFile(out, key.PNG, 0o600); err != nil {
		return err
	}
	return printJSON(map[string]any{
		"url":       key.URL,
		"expiresAt": key.Token.ExpiresAt,
		"file":      out,
	})
}

func runPurgeUser(args []string) error {
	email, err := parseEmailFlag("purge-user", args, nil)
	if err != nil {
		return err
	}
	e, closeFn, err := setup()
	if err != nil {
		return err
	}
	defer closeFn()

	user, err := e.svc.Store.Users().GetByEmail(e.ctx, email)
	if err != nil {
		return fmt.Errorf("lookup %s: %w", email, err)
	}
	deleted, err := e.svc.Store.DeleteUserData(e.ctx, user.ID)
	if err != nil {
		return err
	}
	return printJSON(deleted)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
