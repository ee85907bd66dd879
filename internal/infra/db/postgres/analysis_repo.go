package postgres

import (
    "context"
    "database/sql"
    "encoding/json"
    "errors"
    "strings"
    "time"

    domain "github.com/bryanwahyu/clause-review/internal/domain/analysis"
)

type AnalysisRepository struct {
    db *sql.DB
}

func NewAnalysisRepository(db *sql.DB) *AnalysisRepository {
    return &AnalysisRepository{db: db}
}

// Save inserts or updates an analysis record
func (r *AnalysisRepository) Save(ctx context.Context, rec *domain.Record) (domain.ID, error) {
    const q = `
INSERT INTO clause_analyses
  (id, profile, clause_type, risk_score, input_method, text_length, record_json, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (id) DO UPDATE SET
  profile=EXCLUDED.profile,
  clause_type=EXCLUDED.clause_type,
  risk_score=EXCLUDED.risk_score,
  record_json=EXCLUDED.record_json;
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
        stringOrDash(string(rec.InputMethod)), rec.TextLength, string(body), createdAt,
    )
    if err != nil {
        return "", err
    }
    return rec.ID, nil
}

func (r *AnalysisRepository) Get(ctx context.Context, id domain.ID) (*domain.Record, error) {
    const q = `SELECT record_json FROM clause_analyses WHERE id=$1 LIMIT 1;`
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
    rows, err := r.db.QueryContext(ctx, `SELECT id FROM clause_analyses ORDER BY created_at DESC, id DESC;`)
    if err != nil { return nil, err }
    defer rows.Close()

    ids := []domain.ID{}
    for rows.Next() {
        var id string
        if err := rows.Scan(&id); err != nil { return nil, err }
        ids = append(ids, domain.ID(id))
    }
    return ids, rows.Err()
}

type FailureRepository struct {
    db *sql.DB
}

func NewFailureRepository(db *sql.DB) *FailureRepository { return &FailureRepository{db: db} }

func (r *FailureRepository) Save(ctx context.Context, f *domain.Failure) error {
    const q = `
INSERT INTO clause_analysis_failures
  (analysis_id, phase, message, details_json, created_at)
VALUES ($1,$2,$3,$4,$5)
`
    details := f.DetailsJSON
    if strings.TrimSpace(details) == "" || !json.Valid([]byte(details)) {
        b, _ := json.Marshal(map[string]string{"raw": details})
        details = string(b)
    }
    created := f.CreatedAt
    if created.IsZero() { created = time.Now() }
    _, err := r.db.ExecContext(ctx, q, stringOrDash(f.AnalysisID), stringOrDash(f.Phase), stringOrDash(f.Message), details, created)
    return err
}

func (r *FailureRepository) ListByAnalysis(ctx context.Context, analysisID string, limit int) ([]*domain.Failure, error) {
    if limit <= 0 { limit = 20 }
    const q = `
SELECT id, analysis_id, phase, message, details_json, created_at
FROM clause_analysis_failures
WHERE analysis_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2;`
    rows, err := r.db.QueryContext(ctx, q, analysisID, limit)
    if err != nil { return nil, err }
    defer rows.Close()
    out := []*domain.Failure{}
    for rows.Next() {
        var f domain.Failure
        if err := rows.Scan(&f.ID, &f.AnalysisID, &f.Phase, &f.Message, &f.DetailsJSON, &f.CreatedAt); err != nil {
            return nil, err
        }
        out = append(out, &f)
    }
    return out, rows.Err()
}

func stringOrDash(s string) string {
    if strings.TrimSpace(s) == "" { return "-" }
    return s
}
