package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// NewPostgresConnection opens a pgx pool and pings it.
func NewPostgresConnection(connString string) (*sql.DB, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := ping(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("database: ping postgres: %w", err)
	}
	return db, nil
}

// NewSQLiteConnection opens path with WAL and a single writer connection.
func NewSQLiteConnection(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if err := ping(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("database: ping sqlite: %w", err)
	}
	return db, nil
}

func ping(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}

const schemaTemplate = `
CREATE TABLE IF NOT EXISTS leads (
	id                TEXT PRIMARY KEY,
	email             TEXT NOT NULL UNIQUE,
	first_name        TEXT NOT NULL DEFAULT '',
	last_name         TEXT NOT NULL DEFAULT '',
	company           TEXT NOT NULL DEFAULT '',
	title             TEXT NOT NULL DEFAULT '',
	linkedin_url      TEXT NOT NULL DEFAULT '',
	industry          TEXT NOT NULL DEFAULT '',
	website           TEXT NOT NULL DEFAULT '',
	interested_in     TEXT NOT NULL,
	source            TEXT NOT NULL DEFAULT '',
	audience          TEXT NOT NULL DEFAULT '',
	score             INTEGER NOT NULL DEFAULT 0,
	tier              TEXT NOT NULL,
	engagement_signal TEXT NOT NULL DEFAULT '',
	sequence_step     INTEGER NOT NULL DEFAULT 0,
	status            TEXT NOT NULL,
	created_at        {{ts}} NOT NULL,
	updated_at        {{ts}} NOT NULL,
	enrolled_at       {{ts}},
	last_contacted_at {{ts}},
	next_action_at    {{ts}}
);

CREATE INDEX IF NOT EXISTS idx_leads_due ON leads (status, next_action_at);

CREATE TABLE IF NOT EXISTS dispatch_log (
	idempotency_key TEXT PRIMARY KEY,
	lead_id         TEXT NOT NULL REFERENCES leads(id),
	step_index      INTEGER NOT NULL,
	step_name       TEXT NOT NULL,
	channel         TEXT NOT NULL,
	state           TEXT NOT NULL,
	message_id      TEXT NOT NULL DEFAULT '',
	dispatched_at   {{ts}} NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_dispatch_log_lead ON dispatch_log (lead_id);
`

// Migrate creates the tables when they do not exist yet.
func Migrate(ctx context.Context, db *sql.DB, d Dialect) error {
	ts := "DATETIME"
	if d == Postgres {
		ts = "TIMESTAMPTZ"
	}
	schema := strings.ReplaceAll(schemaTemplate, "{{ts}}", ts)

	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("database: migrate: %w", err)
		}
	}
	return nil
}

// rebind turns ? placeholders into $n for Postgres.
func rebind(d Dialect, query string) string {
	if d != Postgres {
		return query
	}
	var b strings.Builder
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
