// internal/output/sql.go
package output

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/valpere/CatalogHarvest/internal/catalog"
	"github.com/valpere/CatalogHarvest/internal/config"
)

// recordColumns is the column order for every dialect. cast is a reserved
// word in Postgres, hence cast_members.
var recordColumns = []string{
	"id", "title", "original_title", "poster", "backdrop", "year", "rating",
	"genres", "category", "language", "source", "url", "overview", "runtime",
	"trailer", "cast_members", "created_at", "updated_at",
}

// dialect isolates the statements that differ between drivers.
type dialect interface {
	driverName() string
	connectionString(dsn string) string
	configure(db *sql.DB)
	quote(identifier string) string
	placeholder(n int) string
	columnType(column string) string
	upsertClause(columns []string) string
}

// SQLSink upserts records into one table through database/sql.
type SQLSink struct {
	db      *sql.DB
	dialect dialect
	table   string
	timeout time.Duration
}

// NewSQLSink opens the database for cfg.Driver and creates the table if
// missing.
func NewSQLSink(ctx context.Context, cfg config.SinkConfig) (*SQLSink, error) {
	d, err := dialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("%s DSN is required", cfg.Driver)
	}
	table := cfg.Table
	if table == "" {
		table = "content_records"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	db, err := openDB(d, cfg.DSN)
	if err != nil {
		return nil, err
	}

	sink := &SQLSink{db: db, dialect: d, table: table, timeout: timeout}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s: %w", cfg.Driver, err)
	}
	if _, err := db.ExecContext(ctx, sink.createTableSQL()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table '%s': %w", table, err)
	}
	return sink, nil
}

func dialectFor(driver string) (dialect, error) {
	switch driver {
	case "sqlite3", "sqlite":
		return sqliteDialect{}, nil
	case "postgres", "postgresql":
		return postgresDialect{}, nil
	case "mysql":
		return mysqlDialect{}, nil
	default:
		return nil, fmt.Errorf("unsupported SQL driver: %q", driver)
	}
}

// Name implements Sink.
func (s *SQLSink) Name() string { return "sql/" + s.dialect.driverName() }

func (s *SQLSink) createTableSQL() string {
	defs := make([]string, len(recordColumns))
	for i, c := range recordColumns {
		defs[i] = s.dialect.quote(c) + " " + s.dialect.columnType(c)
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s,\n\tPRIMARY KEY (%s)\n)",
		s.dialect.quote(s.table), strings.Join(defs, ",\n\t"), s.dialect.quote("id"))
}

func (s *SQLSink) upsertSQL() string {
	cols := make([]string, len(recordColumns))
	marks := make([]string, len(recordColumns))
	for i, c := range recordColumns {
		cols[i] = s.dialect.quote(c)
		marks[i] = s.dialect.placeholder(i + 1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) %s",
		s.dialect.quote(s.table), strings.Join(cols, ", "), strings.Join(marks, ", "),
		s.dialect.upsertClause(recordColumns))
}

// Write upserts all records in one transaction.
func (s *SQLSink) Write(ctx context.Context, records []catalog.ContentRecord) error {
	if len(records) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, s.upsertSQL())
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		args, err := recordArgs(r)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("failed to upsert %s: %w", r.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

func recordArgs(r catalog.ContentRecord) ([]interface{}, error) {
	genres, err := jsonList(r.Genres)
	if err != nil {
		return nil, err
	}
	cast, err := jsonList(r.Cast)
	if err != nil {
		return nil, err
	}
	return []interface{}{
		r.ID, r.Title, r.OriginalTitle, r.Poster, r.Backdrop, r.Year, r.Rating,
		genres, string(r.Category), r.Language, r.Source, r.URL, r.Overview, r.Runtime,
		r.Trailer, cast,
		r.CreatedAt.UTC().Format(catalog.TimestampLayout),
		r.UpdatedAt.UTC().Format(catalog.TimestampLayout),
	}, nil
}

func jsonList(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("failed to encode list: %w", err)
	}
	return string(data), nil
}

// Close closes the database.
func (s *SQLSink) Close() error {
	return s.db.Close()
}

func openDB(d dialect, dsn string) (*sql.DB, error) {
	db, err := sql.Open(d.driverName(), d.connectionString(dsn))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", d.driverName(), err)
	}
	d.configure(db)
	return db, nil
}
