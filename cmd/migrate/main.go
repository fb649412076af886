// migrate runs DB migrations from embedded SQL; use go run ./cmd/migrate.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"postgrad-portal/backend/internal/config"
	"postgrad-portal/backend/internal/db/migrate"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if cfg.DatabaseURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
		os.Exit(1)
	}

	if err := migrate.Run(cfg.DatabaseURL, *direction); err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}

	version, dirty, err := migrate.Status(cfg.DatabaseURL)
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		fmt.Println("schema is empty")
	case err != nil:
		fmt.Fprintln(os.Stderr, "migrate status:", err)
		os.Exit(1)
	case dirty:
		fmt.Fprintf(os.Stderr, "schema at version %d but dirty; fix manually before retrying\n", version)
		os.Exit(1)
	default:
		fmt.Printf("schema at version %d\n", version)
	}
}
