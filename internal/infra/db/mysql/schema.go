package mysql

import (
	"context"
	"database/sql"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS clause_analyses (
  id           VARCHAR(64)  NOT NULL PRIMARY KEY,
  profile      VARCHAR(32)  NOT NULL,
  clause_type  VARCHAR(128) NOT NULL,
  risk_score   INT          NOT NULL,
  input_method VARCHAR(16)  NOT NULL,
  text_length  INT          NOT NULL,
  record_json  JSON         NOT NULL,
  created_at   DATETIME(3)  NOT NULL,
  INDEX idx_clause_analyses_created (created_at)
)`,
	`CREATE TABLE IF NOT EXISTS clause_analysis_failures (
  id           BIGINT       NOT NULL AUTO_INCREMENT PRIMARY KEY,
  analysis_id  VARCHAR(64)  NOT NULL,
  phase        VARCHAR(32)  NOT NULL,
  message      TEXT         NOT NULL,
  details_json JSON         NOT NULL,
  created_at   DATETIME(3)  NOT NULL,
  INDEX idx_clause_failures_analysis (analysis_id, created_at)
)`,
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
