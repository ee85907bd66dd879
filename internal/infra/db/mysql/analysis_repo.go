package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	domain "github.com/bryanwahyu/clause-review/internal/domain/analysis"
)

type AnalysisRepository struct {
	db *sql.DB
}

func NewAnalysisRepository(db *sql.DB) *AnalysisRepository {
	return &AnalysisRepository{db: db}
}

// Save upserts the record. The full record lives in record_json; the other
// columns exist for querying.
func (r *AnalysisRepository) Save(ctx context.Context, rec *domain.Record) (domain.ID, error) {
	const q = `
INSERT INTO clause_analyses
  (id, profile, clause_type, risk_score, input_method, text_length, record_json, created_at)
VALUES (?,?,?,?,?,?,?,?)
ON DUPLICATE KEY UPDATE
  profile=VALUES(profile), clause_type=VALUES(clause_type), risk_score=VALUES(risk_score),
  record_json=VALUES(record_json);
`
	body, err := json.Marshal(rec)
	if err != nil {
		return "", err
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err = r.db.ExecContext(ctx, q,
		string(rec.ID), stringOrDash(rec.Profile), stringOrDash(rec.Rule.ClauseType), rec.Rule.RiskScore,
		stringOrDash(string(rec.InputMethod)), rec.TextLength, string(body), createdAt.UTC(),
	)
	if err != nil {
		return "", err
	}
	return rec.ID, nil
}

func (r *AnalysisRepository) Get(ctx context.Context, id domain.ID) (*domain.Record, error) {
	const q = `SELECT record_json FROM clause_analyses WHERE id=? LIMIT 1;`
	var raw []byte
	if err := r.db.QueryRowContext(ctx, q, string(id)).Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	var rec domain.Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// List returns every ID ordered by created_at desc
func (r *AnalysisRepository) List(ctx context.Context) ([]domain.ID, error) {
	const q = `SELECT id FROM clause_analyses ORDER BY created_at DESC, id DESC;`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []domain.ID{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, domain.ID(id))
	}
	return ids, rows.Err()
}
