package analysis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/bryanwahyu/clause-review/internal/domain/analysis"
)

func TestStatusTableLifecycle(t *testing.T) {
	tbl := NewStatusTable()
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	tbl.Create("a", now)
	st, ok := tbl.Get("a")
	require.True(t, ok)
	assert.Equal(t, domain.StateProcessing, st.State)
	assert.Equal(t, 0, st.Progress)
	assert.Equal(t, "Queued", st.Stage)

	tbl.Progress("a", 50, "Rule-based analysis complete", now.Add(time.Second))
	tbl.Progress("a", 30, "late update", now.Add(2*time.Second))
	st, _ = tbl.Get("a")
	assert.Equal(t, 50, st.Progress)

	rec := &domain.Record{ID: "a"}
	tbl.Complete("a", rec, "", now.Add(3*time.Second))
	st, _ = tbl.Get("a")
	assert.Equal(t, domain.StateCompleted, st.State)
	assert.Equal(t, 100, st.Progress)
	assert.Same(t, rec, st.Result)

	// terminal entries ignore further writes
	tbl.Fail("a", "nope", now.Add(4*time.Second))
	tbl.Progress("a", 10, "again", now.Add(4*time.Second))
	st, _ = tbl.Get("a")
	assert.Equal(t, domain.StateCompleted, st.State)
	assert.Empty(t, st.Error)
	assert.Equal(t, "Completed", st.Stage)
}

func TestStatusTableGetReturnsCopy(t *testing.T) {
	tbl := NewStatusTable()
	tbl.Create("a", time.Now())

	st, _ := tbl.Get("a")
	st.Progress = 99
	again, _ := tbl.Get("a")
	assert.Equal(t, 0, again.Progress)
}

func TestStatusTableSweep(t *testing.T) {
	tbl := NewStatusTable()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	tbl.Create("old-done", base)
	tbl.Complete("old-done", &domain.Record{}, "", base)
	tbl.Create("old-failed", base)
	tbl.Fail("old-failed", "x", base)
	tbl.Create("old-running", base)
	tbl.Create("new-done", base)
	tbl.Complete("new-done", &domain.Record{}, "", base.Add(2*time.Hour))

	n := tbl.Sweep(base.Add(time.Hour))
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, tbl.Len())

	_, ok := tbl.Get("old-running")
	assert.True(t, ok)
	_, ok = tbl.Get("old-done")
	assert.False(t, ok)
}

func TestStatusTableUnknownIDIsNoop(t *testing.T) {
	tbl := NewStatusTable()
	tbl.Progress("ghost", 40, "x", time.Now())
	tbl.Complete("ghost", &domain.Record{}, "", time.Now())
	_, ok := tbl.Get("ghost")
	assert.False(t, ok)
	assert.Zero(t, tbl.Len())
}
