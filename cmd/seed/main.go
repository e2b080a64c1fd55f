// Seed registers development accounts with profiles. Idempotent: accounts that already exist are skipped.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"movie-auth/backend/internal/config"
	"movie-auth/backend/internal/db"
	identityservice "movie-auth/backend/internal/identity/service"
	"movie-auth/backend/internal/platform/logging"
	"movie-auth/backend/internal/security"
	"movie-auth/backend/internal/user/domain"
	"movie-auth/backend/internal/user/repository"
)

const devPassword = "password123"

var devAccounts = []struct {
	email   string
	profile domain.ProfileUpdate
}{
	{"dev@example.com", domain.ProfileUpdate{FirstName: "Dev", LastName: "User", DOB: "1990-01-15", Address: "1 Developer Way"}},
	{"member@example.com", domain.ProfileUpdate{FirstName: "Member", LastName: "User", DOB: "1985-06-30", Address: "2 Viewer Lane"}},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	logger := logging.NewLogger(cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := seed(ctx, cfg, logger); err != nil {
		logger.Error("seed failed", "error", err)
		os.Exit(1)
	}
}

func seed(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	secret, err := cfg.TokenSecret()
	if err != nil {
		return err
	}
	repo, closeRepo, err := openRepository(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeRepo()

	auth := identityservice.NewAuthService(repo, security.NewHasher(cfg.BcryptCost),
		security.NewTokenProvider(secret, cfg.JWTIssuer), identityservice.DefaultTTLs(), nil, nil)

	for _, acct := range devAccounts {
		err := auth.Register(ctx, acct.email, devPassword)
		switch {
		case errors.Is(err, identityservice.ErrEmailAlreadyRegistered):
			logger.Info("account exists, skipping", "email", acct.email)
			continue
		case err != nil:
			return fmt.Errorf("register %s: %w", acct.email, err)
		}
		if _, err := repo.UpdateProfile(ctx, acct.email, acct.profile); err != nil {
			return fmt.Errorf("profile %s: %w", acct.email, err)
		}
		logger.Info("account seeded", "email", acct.email)
	}
	fmt.Printf("Dev logins: %s, %s / %s\n", devAccounts[0].email, devAccounts[1].email, devPassword)
	return nil
}

// openRepository opens a persistent store; seeding the memory backend would be lost on exit.
func openRepository(ctx context.Context, cfg *config.Config) (repository.Repository, func(), error) {
	switch cfg.StoreBackend {
	case config.StoreBackendPostgres:
		conn, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("db: %w", err)
		}
		return repository.NewPostgresRepository(conn), func() { _ = conn.Close() }, nil
	case config.StoreBackendRedis:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("redis url: %w", err)
		}
		client := redis.NewClient(opts)
		return repository.NewRedisRepository(client, cfg.RedisKeyPrefix), func() { _ = client.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("seed: STORE_BACKEND %q is not persistent", cfg.StoreBackend)
	}
}
