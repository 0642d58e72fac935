// ==============================================================================
// DATABASE MIGRATION - cmd/migrate/main.go
// ==============================================================================
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"sacco/pkg/config"
	"sacco/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	dir := flag.String("path", "migrations", "directory holding the *.sql migrations")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: migrate [-path DIR] up|down|version|force VERSION")
	}
	flag.Parse()

	cfg := config.Load()
	log := logger.NewWithLevel("sacco-migrate", cfg.Log.Level)

	if cfg.Database.URL == "" {
		log.Fatal("DATABASE_URL environment variable is required", nil)
	}
	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatal("Failed to connect to database", map[string]interface{}{"error": err.Error()})
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db.DB, &postgres.Config{})
	if err != nil {
		log.Fatal("Failed to create migration driver", map[string]interface{}{"error": err.Error()})
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+*dir, "postgres", driver)
	if err != nil {
		log.Fatal("Failed to create migrate instance", map[string]interface{}{"error": err.Error()})
	}

	switch cmd := flag.Arg(0); cmd {
	case "up":
		if err := m.Up(); err != nil && err != migrate.ErrNoChange {
			log.Fatal("Migration failed", map[string]interface{}{"error": err.Error()})
		}
		log.Info("Migrations applied", nil)

	case "down":
		if err := m.Steps(-1); err != nil && err != migrate.ErrNoChange {
			log.Fatal("Migration rollback failed", map[string]interface{}{"error": err.Error()})
		}
		log.Info("Rolled back one migration", nil)

	case "version":
		version, dirty, err := m.Version()
		if err == migrate.ErrNilVersion {
			fmt.Println("No migrations applied")
			return
		}
		if err != nil {
			log.Fatal("Failed to read version", map[string]interface{}{"error": err.Error()})
		}
		fmt.Printf("Current version: %d (dirty: %t)\n", version, dirty)

	case "force":
		if flag.NArg() < 2 {
			flag.Usage()
			os.Exit(2)
		}
		version, err := strconv.Atoi(flag.Arg(1))
		if err != nil {
			log.Fatal("VERSION must be an integer", map[string]interface{}{"value": flag.Arg(1)})
		}
		if err := m.Force(version); err != nil {
			log.Fatal("Force migration failed", map[string]interface{}{"error": err.Error()})
		}
		log.Info("Forced migration version", map[string]interface{}{"version": version})

	default:
		log.Fatal("Unknown command", map[string]interface{}{"command": cmd})
	}
}
