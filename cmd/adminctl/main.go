// Command adminctl manages administrator accounts directly in the database.
//
//	adminctl create <email> <password>
//	adminctl allow <email>
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"portal/internal/admin"
	"portal/internal/config"
	"portal/internal/logger"
	"portal/internal/store"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "adminctl:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		return usage()
	}
	cfg := config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := store.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	if cfg.MigrateOnStart {
		if err := store.Migrate(ctx, db.Client); err != nil {
			return err
		}
	}

	sugar, err := logger.New("", false)
	if err != nil {
		return err
	}
	data := admin.NewPGStore(db.Client)
	svc := admin.NewService(data, "", cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, sugar)

	switch args[0] {
	case "create":
		if len(args) != 3 {
			return usage()
		}
		return svc.CreateAdmin(ctx, args[1], args[2])
	case "allow":
		if len(args) != 2 {
			return usage()
		}
		err := data.Allow(ctx, strings.ToLower(strings.TrimSpace(args[1])))
		if errors.Is(err, admin.ErrExists) {
			return nil
		}
		return err
	default:
		return usage()
	}
}

func usage() error {
	return fmt.Errorf("usage: adminctl create <email> <password> | adminctl allow <email>")
}
