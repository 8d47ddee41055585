// internal/output/postgresql.go
package output

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
)

type postgresDialect struct{}

func (postgresDialect) driverName() string { return "postgres" }

func (postgresDialect) connectionString(dsn string) string { return dsn }

func (postgresDialect) configure(db *sql.DB) {
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)
}

func (postgresDialect) quote(identifier string) string {
	return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
}

func (postgresDialect) placeholder(n int) string { return fmt.Sprintf("$%d", n) }

func (postgresDialect) columnType(column string) string {
	switch column {
	case "year", "runtime":
		return "INTEGER"
	case "rating":
		return "DOUBLE PRECISION"
	case "id":
		return "TEXT NOT NULL"
	case "genres", "cast_members":
		return "JSONB"
	default:
		return "TEXT"
	}
}

func (d postgresDialect) upsertClause(columns []string) string {
	return fmt.Sprintf("ON CONFLICT (%s) DO UPDATE SET %s", d.quote("id"), excludedSet(d, columns, "EXCLUDED.%s"))
}
