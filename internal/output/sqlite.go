// internal/output/sqlite.go
package output

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

type sqliteDialect struct{}

func (sqliteDialect) driverName() string { return "sqlite3" }

func (sqliteDialect) connectionString(dsn string) string {
	if strings.Contains(dsn, "?") || strings.HasPrefix(dsn, "file:") || dsn == ":memory:" {
		return dsn
	}
	// Create directory if it doesn't exist
	if dir := filepath.Dir(dsn); dir != "." {
		os.MkdirAll(dir, 0755)
	}
	return dsn + "?_busy_timeout=5000&_journal_mode=WAL"
}

func (sqliteDialect) configure(db *sql.DB) {
	db.SetMaxOpenConns(1) // SQLite works best with single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
}

func (sqliteDialect) quote(identifier string) string {
	return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
}

func (sqliteDialect) placeholder(int) string { return "?" }

func (sqliteDialect) columnType(column string) string {
	switch column {
	case "year", "runtime":
		return "INTEGER"
	case "rating":
		return "REAL"
	case "id":
		return "TEXT NOT NULL"
	default:
		return "TEXT"
	}
}

func (d sqliteDialect) upsertClause(columns []string) string {
	return fmt.Sprintf("ON CONFLICT(%s) DO UPDATE SET %s", d.quote("id"), excludedSet(d, columns, "excluded.%s"))
}

// excludedSet builds "col = <ref>" pairs for every non-key column.
func excludedSet(d dialect, columns []string, refFormat string) string {
	var sets []string
	for _, c := range columns {
		if c == "id" || c == "created_at" {
			continue
		}
		q := d.quote(c)
		sets = append(sets, q+" = "+fmt.Sprintf(refFormat, q))
	}
	return strings.Join(sets, ", ")
}
