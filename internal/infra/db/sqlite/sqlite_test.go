package sqlite

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/clause-review/internal/domain/ai"
	domain "github.com/bryanwahyu/clause-review/internal/domain/analysis"
	"github.com/bryanwahyu/clause-review/internal/domain/rules"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleRecord(id string, at time.Time) *domain.Record {
	return &domain.Record{
		ID:          domain.ID(id),
		Profile:     "generic",
		ClauseText:  "The supplier shall indemnify the buyer.",
		InputMethod: domain.InputJSON,
		TextLength:  39,
		CreatedAt:   at,
		Rule: rules.Result{
			ClauseType: "Indemnification",
			RiskScore:  4,
			Flags:      []string{rules.FlagNoProtective},
			Summary:    "Clause type: Indemnification.",
		},
		AI:         ai.NotConfigured(),
		AIAttempts: 0,
	}
}

func TestAnalysisRepositoryRoundTrip(t *testing.T) {
	repo := NewAnalysisRepository(openTestDB(t))
	ctx := context.Background()
	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	id, err := repo.Save(ctx, sampleRecord("a1", at))
	require.NoError(t, err)
	assert.Equal(t, domain.ID("a1"), id)

	got, err := repo.Get(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "Indemnification", got.Rule.ClauseType)
	assert.Equal(t, 4, got.Rule.RiskScore)
	assert.True(t, got.AI.Failed())
	assert.True(t, at.Equal(got.CreatedAt))

	_, err = repo.Get(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAnalysisRepositoryListNewestFirst(t *testing.T) {
	repo := NewAnalysisRepository(openTestDB(t))
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"old", "mid", "new"} {
		_, err := repo.Save(ctx, sampleRecord(id, base.Add(time.Duration(i)*time.Hour)))
		require.NoError(t, err)
	}
	// upsert keeps a single row
	_, err := repo.Save(ctx, sampleRecord("mid", base.Add(time.Hour)))
	require.NoError(t, err)

	ids, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.ID{"new", "mid", "old"}, ids)
}

func TestFailureRepository(t *testing.T) {
	repo := NewFailureRepository(openTestDB(t))
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Save(ctx, &domain.Failure{
			AnalysisID:  "a1",
			Phase:       domain.PhaseAIAttempt,
			Message:     "transport_error: timeout",
			DetailsJSON: `{"attempt":1}`,
			CreatedAt:   base.Add(time.Duration(i) * time.Second),
		}))
	}
	require.NoError(t, repo.Save(ctx, &domain.Failure{AnalysisID: "other", Phase: domain.PhasePersist, Message: "x"}))

	got, err := repo.ListByAnalysis(ctx, "a1", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].CreatedAt.After(got[1].CreatedAt))
	assert.Equal(t, domain.PhaseAIAttempt, got[0].Phase)
}
