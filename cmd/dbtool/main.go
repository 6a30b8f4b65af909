package main

import (
	"context"
	"database/sql"
	"fleet-routing-service/internal/adapters/repositories"
	"fleet-routing-service/internal/config"
	"fleet-routing-service/internal/platform/db"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	databaseURL := os.Getenv("DATABASE_URL")
	if strings.TrimSpace(databaseURL) == "" {
		slog.Error("DATABASE_URL is required")
		os.Exit(1)
	}

	sqlDB, err := db.Open(databaseURL)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer sqlDB.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	seedPath := config.Get("SEED_PATH", "data/seeds/demo.json")
	if err := initAndSeed(ctx, sqlDB, seedPath); err != nil {
		slog.Error("dbtool failed", "error", err)
		os.Exit(1)
	}
}

func initAndSeed(ctx context.Context, db *sql.DB, seedPath string) error {
	slog.Info("initializing database schema")
	if err := repositories.InitSchema(ctx, db); err != nil {
		return fmt.Errorf("schema initialization failed: %w", err)
	}
	slog.Info("schema ready")

	slog.Info("seeding database", "path", seedPath)
	if err := repositories.SeedFromJSON(ctx, db, seedPath); err != nil {
		return fmt.Errorf("seeding failed: %w", err)
	}
	slog.Info("seeding complete")

	return nil
}
