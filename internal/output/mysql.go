// internal/output/mysql.go
package output

import (
	"database/sql"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
)

type mysqlDialect struct{}

func (mysqlDialect) driverName() string { return "mysql" }

// connectionString defaults the charset to utf8mb4 so titles in any
// script round-trip.
func (mysqlDialect) connectionString(dsn string) string {
	if strings.Contains(dsn, "charset=") {
		return dsn
	}
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return dsn
	}
	if cfg.Params == nil {
		cfg.Params = map[string]string{}
	}
	cfg.Params["charset"] = "utf8mb4"
	return cfg.FormatDSN()
}

func (mysqlDialect) configure(db *sql.DB) {
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)
}

func (mysqlDialect) quote(identifier string) string {
	return "`" + strings.ReplaceAll(identifier, "`", "``") + "`"
}

func (mysqlDialect) placeholder(int) string { return "?" }

func (mysqlDialect) columnType(column string) string {
	switch column {
	case "id":
		return "VARCHAR(255) NOT NULL"
	case "year", "runtime":
		return "INT"
	case "rating":
		return "DOUBLE"
	case "category", "language", "created_at", "updated_at":
		return "VARCHAR(64)"
	case "source":
		return "VARCHAR(128)"
	default:
		return "TEXT"
	}
}

func (d mysqlDialect) upsertClause(columns []string) string {
	return "ON DUPLICATE KEY UPDATE " + excludedSet(d, columns, "VALUES(%s)")
}
