// Migrate applies or rolls back the embedded SQL migrations against DATABASE_URL.
package main

import (
	"flag"
	"fmt"
	"os"

	"movie-auth/backend/internal/config"
	"movie-auth/backend/internal/db/migrate"
	"movie-auth/backend/internal/platform/logging"
)

func main() {
	direction := flag.String("direction", migrate.DirectionUp, "Migration direction: up or down")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	logger := logging.NewLogger(cfg.LogLevel)

	if err := migrate.Run(cfg.DatabaseURL, *direction); err != nil {
		logger.Error("migrate failed", "direction", *direction, "error", err)
		os.Exit(1)
	}
	version, dirty, err := migrate.Version(cfg.DatabaseURL)
	if err != nil {
		logger.Warn("read schema version", "error", err)
		return
	}
	logger.Info("migrations complete", "direction", *direction, "version", version, "dirty", dirty)
}
