package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/CosmoTheDev/tasknotify/internal/config"
)

type historyRow struct {
	ID        int64  `db:"id"`
	BatchID   string `db:"batch_id"`
	EventName string `db:"event_name"`
	Success   int    `db:"success"`
}

func TestSQLiteMigrateInsertSelect(t *testing.T) {
	db, err := New(config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "history.db")})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer db.Close()
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	// A second run finds everything applied.
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate again: %v", err)
	}

	_, err = db.Exec(ctx, `INSERT INTO delivery_history
		(batch_id, event_name, occurred_at, provider_type, success, error_detail, degraded, missing, sent_at, created_at)
		VALUES (?, ?, '', 'slack', ?, '', 0, '', '', '')`, "b1", "task.created", 1)
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}

	var rows []historyRow
	if err := db.Select(ctx, &rows, `SELECT id, batch_id, event_name, success, provider_type FROM delivery_history WHERE batch_id = ?`, "b1"); err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(rows) != 1 || rows[0].ID == 0 || rows[0].EventName != "task.created" || rows[0].Success != 1 {
		t.Fatalf("rows = %+v", rows)
	}

	n, err := db.Exec(ctx, `DELETE FROM delivery_history WHERE batch_id = ?`, "b1")
	if err != nil || n != 1 {
		t.Fatalf("delete = %d, %v", n, err)
	}
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	if _, err := New(config.DatabaseConfig{Driver: "oracle"}); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
	if _, err := New(config.DatabaseConfig{Driver: "postgres"}); err == nil {
		t.Fatalf("expected error for postgres without DSN")
	}
}

func TestRebindAndAdapt(t *testing.T) {
	pg := &sqlDB{d: postgresDialect}
	if got := pg.rebind("SELECT * FROM t WHERE a = ? AND b = ?"); got != "SELECT * FROM t WHERE a = $1 AND b = $2" {
		t.Fatalf("rebind = %q", got)
	}
	lite := &sqlDB{d: sqliteDialect}
	if got := lite.rebind("a = ?"); got != "a = ?" {
		t.Fatalf("sqlite rebind = %q", got)
	}
	if got := mysqlAdapt("id INTEGER PRIMARY KEY AUTOINCREMENT; CREATE INDEX IF NOT EXISTS i ON t (c)"); got !=
		"id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY; CREATE INDEX i ON t (c)" {
		t.Fatalf("mysqlAdapt = %q", got)
	}
	if got := postgresAdapt("id INTEGER PRIMARY KEY AUTOINCREMENT,"); got != "id BIGSERIAL PRIMARY KEY," {
		t.Fatalf("postgresAdapt = %q", got)
	}
}

// noRowsCountDriver accepts every statement but cannot count affected rows.
type noRowsCountDriver struct{}

func (noRowsCountDriver) Open(string) (driver.Conn, error) { return noRowsCountConn{}, nil }

type noRowsCountConn struct{}

func (noRowsCountConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("prepare not supported")
}
func (noRowsCountConn) Close() error { return nil }
func (noRowsCountConn) Begin() (driver.Tx, error) { return nil, errors.New("tx not supported") }

func (noRowsCountConn) ExecContext(context.Context, string, []driver.NamedValue) (driver.Result, error) {
	return noRowsCountResult{}, nil
}

type noRowsCountResult struct{}

func (noRowsCountResult) LastInsertId() (int64, error) { return 0, errors.New("no insert id") }
func (noRowsCountResult) RowsAffected() (int64, error) { return 0, errors.New("rows affected unavailable") }

func init() {
	sql.Register("tasknotify-norows", noRowsCountDriver{})
}

func TestExecReportsRowsAffectedError(t *testing.T) {
	conn, err := sql.Open("tasknotify-norows", "")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer conn.Close()
	db := &sqlDB{db: conn, d: dialect{name: "fake"}}

	_, err = db.Exec(context.Background(), "DELETE FROM delivery_history")
	if err == nil || !strings.Contains(err.Error(), "rows affected unavailable") {
		t.Fatalf("Exec error = %v, want rows affected failure", err)
	}
}
