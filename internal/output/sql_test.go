// internal/output/sql_test.go
package output

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/valpere/CatalogHarvest/internal/catalog"
	"github.com/valpere/CatalogHarvest/internal/config"
)

func TestSQLSink_SQLiteUpsert(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "db", "catalog.db")
	sink, err := OpenSink(ctx, config.SinkConfig{Type: "sql", Driver: "sqlite3", DSN: dsn, Table: "content_records"})
	if err != nil {
		t.Fatalf("OpenSink failed: %v", err)
	}
	defer sink.Close()

	if sink.Name() != "sql/sqlite3" {
		t.Errorf("Name = %q", sink.Name())
	}

	moving := rec("dramacool-moving", "Moving", 2023, 4.1, "action", "fantasy")
	moving.Cast = []string{"Ryu Seung-ryong"}
	records := []catalog.ContentRecord{moving, rec("b", "B", 2020, 3.5)}
	if err := sink.Write(ctx, records); err != nil {
		t.Fatalf("first Write failed: %v", err)
	}

	moving.Title = "Moving (Updated)"
	moving.UpdatedAt = moving.UpdatedAt.Add(time.Hour)
	if err := sink.Write(ctx, []catalog.ContentRecord{moving}); err != nil {
		t.Fatalf("second Write failed: %v", err)
	}

	db := sink.(*SQLSink).db
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM "content_records"`).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("upsert should not duplicate rows, got %d", count)
	}

	var title, genres, cast, created, updated string
	err = db.QueryRow(`SELECT title, genres, cast_members, created_at, updated_at FROM "content_records" WHERE id = ?`, moving.ID).
		Scan(&title, &genres, &cast, &created, &updated)
	if err != nil {
		t.Fatal(err)
	}
	if title != "Moving (Updated)" || genres != `["action","fantasy"]` || cast != `["Ryu Seung-ryong"]` {
		t.Errorf("unexpected row: %q %q %q", title, genres, cast)
	}
	if created != "2025-03-10T08:00:00Z" || updated != "2025-03-10T09:00:00Z" {
		t.Errorf("created_at should be kept and updated_at replaced: %q %q", created, updated)
	}

	if err := sink.Write(ctx, nil); err != nil {
		t.Errorf("empty write should be a no-op: %v", err)
	}
}

func TestSQLSink_Statements(t *testing.T) {
	tests := []struct {
		driver     string
		wantCreate []string
		wantUpsert []string
	}{
		{
			driver:     "postgres",
			wantCreate: []string{`CREATE TABLE IF NOT EXISTS "items"`, `"rating" DOUBLE PRECISION`, `"genres" JSONB`, `PRIMARY KEY ("id")`},
			wantUpsert: []string{`VALUES ($1, $2,`, `$18)`, `ON CONFLICT ("id") DO UPDATE SET "title" = EXCLUDED."title"`},
		},
		{
			driver:     "mysql",
			wantCreate: []string{"CREATE TABLE IF NOT EXISTS `items`", "`id` VARCHAR(255) NOT NULL", "PRIMARY KEY (`id`)"},
			wantUpsert: []string{"VALUES (?, ?,", "ON DUPLICATE KEY UPDATE `title` = VALUES(`title`)"},
		},
		{
			driver:     "sqlite3",
			wantCreate: []string{`"year" INTEGER`, `"rating" REAL`},
			wantUpsert: []string{`ON CONFLICT("id") DO UPDATE SET "title" = excluded."title"`},
		},
	}
	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			d, err := dialectFor(tt.driver)
			if err != nil {
				t.Fatal(err)
			}
			s := &SQLSink{dialect: d, table: "items"}
			create, upsert := s.createTableSQL(), s.upsertSQL()
			for _, want := range tt.wantCreate {
				if !strings.Contains(create, want) {
					t.Errorf("create statement missing %q:\n%s", want, create)
				}
			}
			for _, want := range tt.wantUpsert {
				if !strings.Contains(upsert, want) {
					t.Errorf("upsert statement missing %q:\n%s", want, upsert)
				}
			}
			if strings.Contains(upsert, "created_at = ") || strings.Contains(upsert, "created_at` = ") || strings.Contains(upsert, `"created_at" = `) {
				t.Errorf("created_at must not be overwritten on conflict:\n%s", upsert)
			}
		})
	}
}

func TestMySQLConnectionString(t *testing.T) {
	got := mysqlDialect{}.connectionString("user:pw@tcp(db:3306)/catalog")
	if !strings.Contains(got, "charset=utf8mb4") {
		t.Errorf("expected utf8mb4 default, got %q", got)
	}
	got = mysqlDialect{}.connectionString("user:pw@tcp(db:3306)/catalog?charset=latin1")
	if !strings.Contains(got, "charset=latin1") {
		t.Errorf("explicit charset should be kept, got %q", got)
	}
}

func TestOpenSink_Errors(t *testing.T) {
	ctx := context.Background()
	tests := map[string]config.SinkConfig{
		"unknown type":   {Type: "redis"},
		"unknown driver": {Type: "sql", Driver: "oracle", DSN: "x"},
		"missing dsn":    {Type: "sql", Driver: "sqlite3"},
		"missing uri":    {Type: "mongodb"},
		"bad mongo uri":  {Type: "mongodb", URI: "notmongo://localhost", Timeout: time.Second},
	}
	for name, cfg := range tests {
		t.Run(name, func(t *testing.T) {
			if sink, err := OpenSink(ctx, cfg); err == nil {
				sink.Close()
				t.Error("expected error")
			}
		})
	}
}
