package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	domain "github.com/bryanwahyu/clause-review/internal/domain/analysis"
)

const schema = `
CREATE TABLE IF NOT EXISTS clause_analyses (
	id           TEXT PRIMARY KEY,
	profile      TEXT NOT NULL,
	clause_type  TEXT NOT NULL,
	risk_score   INTEGER NOT NULL,
	input_method TEXT NOT NULL,
	text_length  INTEGER NOT NULL,
	record_json  TEXT NOT NULL,
	created_ns   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_clause_analyses_created ON clause_analyses (created_ns);
CREATE TABLE IF NOT EXISTS clause_analysis_failures (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	analysis_id  TEXT NOT NULL,
	phase        TEXT NOT NULL,
	message      TEXT NOT NULL,
	details_json TEXT NOT NULL,
	created_ns   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_clause_failures_analysis ON clause_analysis_failures (analysis_id);
`

// Open opens (or creates) the database file and applies the schema.
// Timestamps are stored as unix nanoseconds.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	// sqlite serializes writers; one connection also keeps :memory: shared
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

type AnalysisRepository struct {
	db *sql.DB
}

func NewAnalysisRepository(db *sql.DB) *AnalysisRepository {
	return &AnalysisRepository{db: db}
}

func (r *AnalysisRepository) Save(ctx context.Context, rec *domain.Record) (domain.ID, error) {
	body, err := json.Marshal(rec)
	if err != nil {
		return "", err
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err = r.db.ExecContext(ctx, `
INSERT INTO clause_analyses (id, profile, clause_type, risk_score, input_method, text_length, record_json, created_ns)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	profile=excluded.profile, clause_type=excluded.clause_type,
	risk_score=excluded.risk_score, record_json=excluded.record_json`,
		string(rec.ID), rec.Profile, rec.Rule.ClauseType, rec.Rule.RiskScore,
		string(rec.InputMethod), rec.TextLength, string(body), createdAt.UnixNano(),
	)
	if err != nil {
		return "", err
	}
	return rec.ID, nil
}

func (r *AnalysisRepository) Get(ctx context.Context, id domain.ID) (*domain.Record, error) {
	var raw string
	err := r.db.QueryRowContext(ctx, "SELECT record_json FROM clause_analyses WHERE id = ?", string(id)).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var rec domain.Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *AnalysisRepository) List(ctx context.Context) ([]domain.ID, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id FROM clause_analyses ORDER BY created_ns DESC, id DESC")
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

type FailureRepository struct {
	db *sql.DB
}

func NewFailureRepository(db *sql.DB) *FailureRepository { return &FailureRepository{db: db} }

func (r *FailureRepository) Save(ctx context.Context, f *domain.Failure) error {
	details := f.DetailsJSON
	if strings.TrimSpace(details) == "" {
		details = "{}"
	}
	created := f.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO clause_analysis_failures (analysis_id, phase, message, details_json, created_ns) VALUES (?, ?, ?, ?, ?)",
		f.AnalysisID, f.Phase, f.Message, details, created.UnixNano(),
	)
	return err
}

func (r *FailureRepository) ListByAnalysis(ctx context.Context, analysisID string, limit int) ([]*domain.Failure, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, analysis_id, phase, message, details_json, created_ns
FROM clause_analysis_failures
WHERE analysis_id = ?
ORDER BY created_ns DESC, id DESC
LIMIT ?`, analysisID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*domain.Failure{}
	for rows.Next() {
		var (
			f  domain.Failure
			ns int64
		)
		if err := rows.Scan(&f.ID, &f.AnalysisID, &f.Phase, &f.Message, &f.DetailsJSON, &ns); err != nil {
			return nil, err
		}
		f.CreatedAt = time.Unix(0, ns).UTC()
		out = append(out, &f)
	}
	return out, rows.Err()
}
