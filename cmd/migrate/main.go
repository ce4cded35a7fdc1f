package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"

	"github.com/k-code-yt/order-saga/pkg/db/postgres"
)

// setupDatabase creates the per-service database if it does not exist yet.
func setupDatabase(cfg *postgres.Config) error {
	db, err := sql.Open("postgres", cfg.AdminURL())
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	defer db.Close()

	log.Printf("Creating database '%s' if not exists...", cfg.DBName)
	_, err = db.Exec(fmt.Sprintf("CREATE DATABASE %s", cfg.DBName))
	if err != nil {
		if strings.Contains(err.Error(), "already exists") {
			log.Printf("Database '%s' already exists, skipping creation", cfg.DBName)
			return nil
		}
		return fmt.Errorf("failed to create database: %w", err)
	}
	log.Printf("Database '%s' created successfully", cfg.DBName)
	return nil
}

func loadEnv(service string) {
	envPath := filepath.Join("cmd", service+"-server", ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("Warning: No .env file found at %s, using environment variables", envPath)
	} else {
		log.Printf("Loaded .env from %s", envPath)
	}
}

func main() {
	service := flag.String("service", "", "Service name: order, inventory or payment")
	action := flag.String("action", "up", "Migration action: up, down, or version")
	steps := flag.Int("steps", 0, "Number of migrations to apply (for down)")
	flag.Parse()

	switch *service {
	case "order", "inventory", "payment":
	default:
		log.Fatal("Please specify -service flag (order, inventory or payment)")
	}

	loadEnv(*service)

	cfg, err := postgres.NewConfig(*service + "_service")
	if err != nil {
		log.Fatalf("Failed to read postgres config: %v", err)
	}

	if err := setupDatabase(cfg); err != nil {
		log.Fatalf("Database setup failed: %v", err)
	}

	migrationPath := filepath.Join("migrations", *service)
	log.Printf("Running migrations for %s service from %s", *service, migrationPath)

	m, err := migrate.New(fmt.Sprintf("file://%s", migrationPath), cfg.URL())
	if err != nil {
		log.Fatalf("Failed to create migrate instance: %v", err)
	}
	defer m.Close()

	switch *action {
	case "up":
		if err := m.Up(); err != nil && err != migrate.ErrNoChange {
			log.Fatalf("Migration up failed: %v", err)
		}
		log.Println("Migrations applied successfully")

	case "down":
		if *steps > 0 {
			err = m.Steps(-*steps)
		} else {
			err = m.Down()
		}
		if err != nil {
			log.Fatalf("Migration down failed: %v", err)
		}
		log.Println("Migrations rolled back successfully")

	case "version":
		version, dirty, err := m.Version()
		if err != nil {
			log.Fatalf("Failed to get version: %v", err)
		}
		log.Printf("Current version: %d, Dirty: %v", version, dirty)

	default:
		log.Fatalf("Unknown action: %s (use up, down, or version)", *action)
	}
}
