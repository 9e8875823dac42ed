// Command seed_admin bootstraps the first administrator account so the API
// can be logged into on a fresh database.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/AllenCortuna/omnhs-api/internal/models"
	"github.com/AllenCortuna/omnhs-api/internal/repository"
	"github.com/AllenCortuna/omnhs-api/pkg/config"
	"github.com/AllenCortuna/omnhs-api/pkg/database"
)

func main() {
	var (
		email    string
		fullName string
		password string
	)

	flag.StringVar(&email, "email", "admin@omnhs.edu.ph", "Administrator email")
	flag.StringVar(&fullName, "name", "Registrar Admin", "Administrator display name")
	flag.StringVar(&password, "password", "", "Initial password (required)")
	flag.Parse()

	if password == "" {
		fmt.Fprintln(os.Stderr, "usage: seed_admin -email admin@omnhs.edu.ph -password <secret>")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	users := repository.NewUserRepository(db)

	if existing, err := users.FindByEmail(ctx, email); err == nil {
		log.Fatalf("account %s already exists (role %s)", existing.Email, existing.Role)
	} else if !errors.Is(err, sql.ErrNoRows) {
		log.Fatalf("failed to check for existing account: %v", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("failed to hash password: %v", err)
	}

	admin := &models.User{
		Email:        email,
		PasswordHash: string(hash),
		FullName:     fullName,
		Role:         models.RoleAdmin,
		Active:       true,
	}
	if err := users.Create(ctx, admin); err != nil {
		log.Fatalf("failed to create admin account: %v", err)
	}

	fmt.Printf("created admin account %s (%s)\n", admin.Email, admin.ID)
}
