package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/pageza/extended-accounts/backend/config"
	"github.com/pageza/extended-accounts/backend/internal/app"
	"github.com/pageza/extended-accounts/backend/internal/logging"
	"github.com/pageza/extended-accounts/backend/internal/service"
)

func main() {
	username := flag.String("username", "", "Username of the new superuser")
	email := flag.String("email", "", "Email address")
	firstName := flag.String("first-name", "", "First name")
	lastName := flag.String("last-name", "", "Last name")
	phone := flag.String("phone", "", "Nine digit phone number")
	flag.Parse()

	password := os.Getenv("SUPERUSER_PASSWORD")
	if *username == "" || *email == "" || password == "" {
		log.Fatal("username, email and the SUPERUSER_PASSWORD environment variable are required")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger, err := logging.New(cfg.Environment)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatalw("failed to initialize application", "error", err)
	}
	defer a.Close()

	active := true
	account, err := a.Accounts.CreateSuperuser(ctx, service.CreateAccountInput{
		Username:    *username,
		Password:    password,
		Email:       *email,
		FirstName:   *firstName,
		LastName:    *lastName,
		PhoneNumber: *phone,
		IsActive:    &active,
	})
	if err != nil {
		logger.Fatalw("failed to create superuser", "error", err)
	}
	logger.Infow("superuser created", "username", account.Username(), "account_id", account.Identity.ID)
}
