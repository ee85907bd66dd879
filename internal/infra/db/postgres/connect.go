package postgres

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq"
)

func Connect(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx2, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx2); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS clause_analyses (
  id           TEXT        PRIMARY KEY,
  profile      TEXT        NOT NULL,
  clause_type  TEXT        NOT NULL,
  risk_score   INTEGER     NOT NULL,
  input_method TEXT        NOT NULL,
  text_length  INTEGER     NOT NULL,
  record_json  JSONB       NOT NULL,
  created_at   TIMESTAMPTZ NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_clause_analyses_created ON clause_analyses (created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS clause_analysis_failures (
  id           BIGSERIAL   PRIMARY KEY,
  analysis_id  TEXT        NOT NULL,
  phase        TEXT        NOT NULL,
  message      TEXT        NOT NULL,
  details_json JSONB       NOT NULL,
  created_at   TIMESTAMPTZ NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_clause_failures_analysis ON clause_analysis_failures (analysis_id, created_at DESC)`,
}

// EnsureSchema creates the tables when missing.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, q := range schema {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}
