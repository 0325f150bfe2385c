package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/CosmoTheDev/tasknotify/internal/config"
	_ "github.com/jackc/pgx/v5/stdlib"
)

var postgresDialect = dialect{
	name: "postgres",
	migrationsDDL: `CREATE TABLE IF NOT EXISTS schema_migrations (
		id         BIGSERIAL    PRIMARY KEY,
		filename   VARCHAR(255) NOT NULL UNIQUE,
		applied_at VARCHAR(64)  NOT NULL
	)`,
	adapt:       postgresAdapt,
	numbered:    true,
	returningID: true,
}

// NewPostgres opens a PostgreSQL connection through the pgx stdlib driver.
func NewPostgres(cfg config.DatabaseConfig) (DB, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres DSN is required when driver is postgres")
	}

	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening postgres connection: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)

	p := &sqlDB{db: db, d: postgresDialect}
	if err := p.Ping(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return p, nil
}

func postgresAdapt(sql string) string {
	return strings.ReplaceAll(sql, "INTEGER PRIMARY KEY AUTOINCREMENT", "BIGSERIAL PRIMARY KEY")
}
