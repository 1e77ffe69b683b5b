package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	// Read environment to determine table prefix
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "dev" // Default to dev
	}
	if env == "prod" {
		log.Fatal("refusing to drop production tables")
	}

	prefix := os.Getenv("TABLE_PREFIX")
	if prefix == "" {
		prefix = env + "_"
	}

	db, err := sql.Open("pgx", dbURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() { _ = db.Close() }() // Error ignored: script exiting

	// Drop all tables with environment-specific prefix, dependents first
	dropSQL := fmt.Sprintf(`
		DROP TABLE IF EXISTS %[1]spassword_reset_tokens CASCADE;
		DROP TABLE IF EXISTS %[1]sdocument_logs CASCADE;
		DROP TABLE IF EXISTS %[1]snotifications CASCADE;
		DROP TABLE IF EXISTS %[1]ssignatures CASCADE;
		DROP TABLE IF EXISTS %[1]sdocument_recipients CASCADE;
		DROP TABLE IF EXISTS %[1]sdocuments CASCADE;
		DROP TABLE IF EXISTS %[1]susers CASCADE;
		DROP FUNCTION IF EXISTS %[1]sreject_log_update() CASCADE;
	`, prefix)

	if _, err := db.Exec(dropSQL); err != nil {
		log.Fatalf("Failed to drop tables: %v", err)
	}

	fmt.Printf("All tables dropped successfully (prefix: %s)\n", prefix)
}
