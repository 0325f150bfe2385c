package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// dialect captures what differs between the SQL backends.
type dialect struct {
	name string
	// migrationsDDL creates the schema_migrations bookkeeping table.
	migrationsDDL string
	// adapt rewrites the SQLite-flavoured migration files.
	adapt func(string) string
	// numbered placeholders ($1, $2, ...) instead of ?.
	numbered bool
	// returningID uses INSERT ... RETURNING id instead of LastInsertId.
	returningID bool
}

// sqlDB is the database/sql implementation shared by every backend.
type sqlDB struct {
	db *sql.DB
	d  dialect
}

func (s *sqlDB) Driver() string { return s.d.name }

func (s *sqlDB) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *sqlDB) Close() error {
	return s.db.Close()
}

// Migrate applies all *.sql files from migrations/ in sorted order,
// using a migrations table to track what has been applied.
func (s *sqlDB) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.d.migrationsDDL); err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		var count int
		row := s.db.QueryRowContext(ctx, s.rebind(`SELECT COUNT(*) FROM schema_migrations WHERE filename = ?`), name)
		if err := row.Scan(&count); err != nil {
			return fmt.Errorf("checking migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		script := string(data)
		if s.d.adapt != nil {
			script = s.d.adapt(script)
		}

		// One statement per Exec: neither MySQL nor pgx accept multi-statement strings by default.
		for _, stmt := range strings.Split(script, ";") {
			stmt = strings.TrimSpace(stmt)
			if stmt == "" {
				continue
			}
			if _, err := s.db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("applying migration %s: %w\nSQL: %s", name, err, stmt)
			}
		}

		_, err = s.db.ExecContext(ctx,
			s.rebind(`INSERT INTO schema_migrations (filename, applied_at) VALUES (?, ?)`),
			name, time.Now().UTC().Format(time.RFC3339))
		if err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
		slog.Info("database: applied migration", "file", name, "driver", s.d.name)
	}
	return nil
}

// Select executes query and scans all rows into dest (must be a pointer to a slice of structs).
func (s *sqlDB) Select(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}
	defer rows.Close()
	return scanRows(rows, dest)
}

// Exec executes a statement that returns no rows.
func (s *sqlDB) Exec(ctx context.Context, query string, args ...interface{}) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.rebind(query), args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("database: rows affected: %w", err)
	}
	return n, nil
}

// Insert inserts a struct into table using its `db:` tags and returns the new id.
func (s *sqlDB) Insert(ctx context.Context, table string, record interface{}) (int64, error) {
	cols, placeholders, vals := structToInsert(record)
	// Table and column names come from application code; values stay parameterized.
	// nosemgrep: go.lang.security.audit.database.string-formatted-query.string-formatted-query
	query := s.rebind(fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(cols, ", "), strings.Join(placeholders, ", ")))

	if s.d.returningID {
		var id int64
		if err := s.db.QueryRowContext(ctx, query+" RETURNING id", vals...).Scan(&id); err != nil {
			return 0, fmt.Errorf("insert into %s: %w", table, err)
		}
		return id, nil
	}
	res, err := s.db.ExecContext(ctx, query, vals...)
	if err != nil {
		return 0, fmt.Errorf("insert into %s: %w", table, err)
	}
	return res.LastInsertId()
}

// rebind rewrites ? placeholders for backends that number them.
func (s *sqlDB) rebind(query string) string {
	if !s.d.numbered || !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
