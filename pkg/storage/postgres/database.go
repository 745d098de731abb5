package postgres

import (
	"database/sql"
	"fmt"

	"github.com/walshy828/oil-analysis/config"

	_ "github.com/lib/pq"
)

// CreateDatabase connects to the postgres server and creates the
// application database if it doesn't exist.
func CreateDatabase(cfg config.PostgresConfig, env string) error {
	// Connect via the maintenance DB; the target may not exist yet.
	serverCfg := cfg
	serverCfg.DBName = "postgres"
	dsn := serverCfg.DSN(env)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return fmt.Errorf("connect failed: %w", err)
	}
	defer db.Close()

	// Check if database exists
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1);`
	if err := db.QueryRow(query, cfg.DBName).Scan(&exists); err != nil {
		return fmt.Errorf("check db exists failed: %w", err)
	}

	if exists {
		return nil // DB already exists
	}

	_, err = db.Exec(fmt.Sprintf("CREATE DATABASE %s", cfg.DBName))
	if err != nil {
		return fmt.Errorf("create db failed: %w", err)
	}

	return nil
}
