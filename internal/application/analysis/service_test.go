package analysis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/clause-review/internal/domain/ai"
	domain "github.com/bryanwahyu/clause-review/internal/domain/analysis"
	"github.com/bryanwahyu/clause-review/internal/domain/clause"
)

const sampleClause = "Either party may terminate this agreement immediately and the tenant shall pay all outstanding fees."

// fakeAI fails the first failN calls with err, then succeeds.
type fakeAI struct {
	mu      sync.Mutex
	calls   int
	failN   int
	err     error
	panics  bool
	block   chan struct{}
	started chan struct{}
}

func (f *fakeAI) Analyze(ctx context.Context, text string, cred ai.Credential) (ai.Result, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	f.mu.Unlock()

	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	if f.panics {
		panic("boom")
	}
	if n <= f.failN {
		return ai.Degraded(f.err), f.err
	}
	return ai.Result{
		ClauseType:      "Termination",
		KeyTerms:        []string{"notice"},
		RiskLevel:       ai.RiskHigh,
		Summary:         "One-sided termination.",
		Recommendations: []string{"Add a notice period"},
	}, nil
}

func (f *fakeAI) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type memRepo struct {
	mu      sync.Mutex
	records map[domain.ID]*domain.Record
	order   []domain.ID
	saveErr error
	broken  map[domain.ID]bool
}

func newMemRepo() *memRepo {
	return &memRepo{records: map[domain.ID]*domain.Record{}, broken: map[domain.ID]bool{}}
}

func (r *memRepo) Save(ctx context.Context, rec *domain.Record) (domain.ID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return "", r.saveErr
	}
	r.records[rec.ID] = rec
	r.order = append([]domain.ID{rec.ID}, r.order...)
	return rec.ID, nil
}

func (r *memRepo) Get(ctx context.Context, id domain.ID) (*domain.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.broken[id] {
		return nil, errors.New("corrupt record")
	}
	rec, ok := r.records[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return rec, nil
}

func (r *memRepo) List(ctx context.Context) ([]domain.ID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.ID(nil), r.order...), nil
}

type memFailures struct {
	mu   sync.Mutex
	list []*domain.Failure
}

func (m *memFailures) Save(ctx context.Context, f *domain.Failure) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.list = append(m.list, f)
	return nil
}

func (m *memFailures) ListByAnalysis(ctx context.Context, id string, limit int) ([]*domain.Failure, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Failure
	for _, f := range m.list {
		if f.AnalysisID == id {
			out = append(out, f)
		}
	}
	return out, nil
}

func (m *memFailures) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.list)
}

var oneCred = []ai.Credential{{Name: "primary", APIKey: "sk-test"}}

func transportErr() error {
	return &ai.Error{Kind: ai.KindTransport, Credential: "primary", Err: errors.New("connection refused")}
}

type countingMetrics struct {
	started, finished, failed, attemptsFailed, rejected atomic.Int32
}

func (m *countingMetrics) AnalysisStarted() { m.started.Add(1) }
func (m *countingMetrics) AnalysisFinished(failed bool) {
	m.finished.Add(1)
	if failed {
		m.failed.Add(1)
	}
}
func (m *countingMetrics) AIAttemptFailed()  { m.attemptsFailed.Add(1) }
func (m *countingMetrics) AnalysisRejected() { m.rejected.Add(1) }

type harness struct {
	svc      *Service
	ai       *fakeAI
	store    *memRepo
	failures *memFailures
	metrics  *countingMetrics
	sleeps   []time.Duration
}

func newHarness(t *testing.T, client *fakeAI, creds []ai.Credential, opts Options) *harness {
	t.Helper()
	h := &harness{ai: client, store: newMemRepo(), failures: &memFailures{}, metrics: &countingMetrics{}}
	h.svc = NewService(Deps{
		AI:          client,
		Credentials: creds,
		Store:       h.store,
		Failures:    h.failures,
		Metrics:     h.metrics,
	}, opts)
	var mu sync.Mutex
	h.svc.sleep = func(ctx context.Context, d time.Duration) error {
		mu.Lock()
		h.sleeps = append(h.sleeps, d)
		mu.Unlock()
		return ctx.Err()
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = h.svc.Shutdown(ctx)
	})
	return h
}

func request() Request {
	return Request{Text: clause.MustValidate(sampleClause), Method: domain.InputJSON}
}

func TestAnalyzeRetriesThenSucceeds(t *testing.T) {
	h := newHarness(t, &fakeAI{failN: 2, err: transportErr()}, oneCred, Options{})

	rec, err := h.svc.Analyze(context.Background(), request())
	require.NoError(t, err)

	assert.Equal(t, 3, h.ai.Calls())
	assert.Equal(t, 3, rec.AIAttempts)
	assert.False(t, rec.AI.Failed())
	assert.Equal(t, "Termination", rec.AI.ClauseType)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, h.sleeps)
	assert.Equal(t, 2, h.failures.Len())
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, int32(2), h.metrics.attemptsFailed.Load())
	assert.Equal(t, int32(1), h.metrics.finished.Load())
	assert.Zero(t, h.metrics.failed.Load())
}

func TestAnalyzeDegradesAfterExhaustingRetries(t *testing.T) {
	h := newHarness(t, &fakeAI{failN: 100, err: transportErr()}, oneCred, Options{})

	rec, err := h.svc.Analyze(context.Background(), request())
	require.NoError(t, err)

	assert.Equal(t, 3, h.ai.Calls())
	assert.True(t, rec.AI.Failed())
	assert.Contains(t, rec.AI.Error, "connection refused")
	assert.Equal(t, ai.RiskUnknown, rec.AI.RiskLevel)
	assert.Equal(t, "Termination", rec.Rule.ClauseType)
	assert.Greater(t, rec.Rule.RiskScore, 0)
}

func TestAnalyzeDoesNotRetryUnclassifiedErrors(t *testing.T) {
	h := newHarness(t, &fakeAI{failN: 100, err: errors.New("bad request")}, oneCred, Options{})

	rec, err := h.svc.Analyze(context.Background(), request())
	require.NoError(t, err)
	assert.Equal(t, 1, h.ai.Calls())
	assert.Equal(t, 1, rec.AIAttempts)
	assert.Empty(t, h.sleeps)
	assert.True(t, rec.AI.Failed())
}

func TestAnalyzeWithoutCredentials(t *testing.T) {
	h := newHarness(t, &fakeAI{}, nil, Options{})

	rec, err := h.svc.Analyze(context.Background(), request())
	require.NoError(t, err)
	assert.Zero(t, h.ai.Calls())
	assert.Equal(t, ai.NotConfigured(), rec.AI)
	assert.Zero(t, rec.AIAttempts)
	assert.Zero(t, rec.AIDurationMS)
	assert.False(t, h.svc.AIConfigured())
}

func TestAnalyzeRecordFields(t *testing.T) {
	h := newHarness(t, &fakeAI{}, oneCred, Options{})
	req := request()
	req.Method = domain.InputForm

	rec, err := h.svc.Analyze(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, sampleClause, rec.ClauseText)
	assert.Equal(t, len(sampleClause), rec.TextLength)
	assert.Equal(t, domain.InputForm, rec.InputMethod)
	assert.Equal(t, "generic", rec.Profile)
	assert.GreaterOrEqual(t, rec.TotalDurationMS, rec.AIDurationMS)
	assert.False(t, rec.CreatedAt.IsZero())
}

func TestAnalyzeRejectsInvalidRequest(t *testing.T) {
	h := newHarness(t, &fakeAI{}, oneCred, Options{})

	_, err := h.svc.Analyze(context.Background(), Request{})
	var verr *clause.ValidationError
	require.ErrorAs(t, err, &verr)

	req := request()
	req.Method = "fax"
	_, err = h.svc.Analyze(context.Background(), req)
	require.ErrorAs(t, err, &verr)
	assert.Zero(t, h.ai.Calls())
}

func TestAnalyzeSaveFailureKeepsRecord(t *testing.T) {
	h := newHarness(t, &fakeAI{}, oneCred, Options{})
	h.store.saveErr = errors.New("disk full")
	req := request()
	req.Save = true

	rec, err := h.svc.Analyze(context.Background(), req)
	require.NotNil(t, rec)
	var se *domain.StoreError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "save", se.Op)
}

func TestAutoSavePersists(t *testing.T) {
	h := newHarness(t, &fakeAI{}, oneCred, Options{AutoSave: true})

	rec, err := h.svc.Analyze(context.Background(), request())
	require.NoError(t, err)

	got, err := h.svc.Get(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec, got)
}

func TestSubmitCompletes(t *testing.T) {
	h := newHarness(t, &fakeAI{}, oneCred, Options{})

	id, err := h.svc.Submit(context.Background(), request())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		st, err := h.svc.Status(id)
		return err == nil && st.State.Terminal()
	}, 2*time.Second, 5*time.Millisecond)

	st, err := h.svc.Status(id)
	require.NoError(t, err)
	assert.Equal(t, domain.StateCompleted, st.State)
	assert.Equal(t, 100, st.Progress)
	require.NotNil(t, st.Result)
	assert.Equal(t, id, st.Result.ID)

	first, err := h.svc.Get(context.Background(), id)
	require.NoError(t, err)
	second, err := h.svc.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSubmitPanicMarksFailed(t *testing.T) {
	h := newHarness(t, &fakeAI{panics: true}, oneCred, Options{})

	id, err := h.svc.Submit(context.Background(), request())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		st, _ := h.svc.Status(id)
		return st.State.Terminal()
	}, 2*time.Second, 5*time.Millisecond)

	st, _ := h.svc.Status(id)
	assert.Equal(t, domain.StateFailed, st.State)
	assert.Equal(t, "analysis failed due to an internal error", st.Error)
	assert.NotContains(t, st.Error, "boom")
	assert.Nil(t, st.Result)
	assert.Equal(t, 1, h.failures.Len())
}

func TestSubmitPersistFailureStillCompletes(t *testing.T) {
	h := newHarness(t, &fakeAI{}, oneCred, Options{})
	h.store.saveErr = errors.New("bucket missing")
	req := request()
	req.Save = true

	id, err := h.svc.Submit(context.Background(), req)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		st, _ := h.svc.Status(id)
		return st.State.Terminal()
	}, 2*time.Second, 5*time.Millisecond)

	st, _ := h.svc.Status(id)
	assert.Equal(t, domain.StateCompleted, st.State)
	assert.Contains(t, st.PersistError, "bucket missing")
}

func TestAdmissionCeiling(t *testing.T) {
	client := &fakeAI{block: make(chan struct{}), started: make(chan struct{}, 1)}
	h := newHarness(t, client, oneCred, Options{MaxInFlight: 1})

	_, err := h.svc.Submit(context.Background(), request())
	require.NoError(t, err)
	<-client.started

	_, err = h.svc.Submit(context.Background(), request())
	assert.ErrorIs(t, err, ErrBusy)
	_, err = h.svc.Analyze(context.Background(), request())
	assert.ErrorIs(t, err, ErrBusy)
	assert.Equal(t, int32(2), h.metrics.rejected.Load())

	close(client.block)
	require.Eventually(t, func() bool {
		_, err := h.svc.Analyze(context.Background(), request())
		return err == nil
	}, 2*time.Second, 5*time.Millisecond)
}

func TestProgressIsMonotonic(t *testing.T) {
	h := newHarness(t, &fakeAI{failN: 2, err: transportErr()}, oneCred, Options{})

	var (
		pcts   []int
		stages []string
	)
	report := func(pct int, stage string) {
		pcts = append(pcts, pct)
		stages = append(stages, stage)
	}
	_, err := h.svc.run(context.Background(), "fixed-id", request(), report)
	require.NoError(t, err)

	assert.IsNonDecreasing(t, pcts)
	assert.Equal(t, []int{10, 50, 60, 65, 70, 90}, pcts)
	assert.Contains(t, stages, "Retrying AI analysis (attempt 3 of 3)")
}

func TestCancelledContextStopsRetries(t *testing.T) {
	h := newHarness(t, &fakeAI{failN: 100, err: transportErr()}, oneCred, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec, err := h.svc.Analyze(ctx, request())
	require.NoError(t, err)
	assert.Equal(t, 1, h.ai.Calls())
	assert.True(t, rec.AI.Failed())
}

func TestStatusUnknownID(t *testing.T) {
	h := newHarness(t, &fakeAI{}, oneCred, Options{})
	_, err := h.svc.Status("missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = h.svc.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListRecordsSkipsUnreadable(t *testing.T) {
	h := newHarness(t, &fakeAI{}, nil, Options{AutoSave: true})
	var ids []domain.ID
	for i := 0; i < 5; i++ {
		rec, err := h.svc.Analyze(context.Background(), request())
		require.NoError(t, err)
		ids = append(ids, rec.ID)
	}
	h.store.broken[ids[4]] = true

	page, err := h.svc.ListRecords(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 5, page.Total)
	assert.Equal(t, 3, page.TotalPages)
	require.Len(t, page.Data, 1)
	assert.Equal(t, ids[3], page.Data[0].ID)

	all, err := h.svc.ListIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ids[4], all[0])
}

func TestSaveWithoutStore(t *testing.T) {
	svc := NewService(Deps{AI: &fakeAI{}}, Options{})
	t.Cleanup(func() { _ = svc.Shutdown(context.Background()) })

	_, err := svc.Save(context.Background(), &domain.Record{ID: "x"})
	var se *domain.StoreError
	require.ErrorAs(t, err, &se)
	assert.ErrorIs(t, err, ErrNoStore)
}

func TestShutdownRejectsNewWork(t *testing.T) {
	h := newHarness(t, &fakeAI{}, oneCred, Options{})
	require.NoError(t, h.svc.Ready())
	require.NoError(t, h.svc.Shutdown(context.Background()))
	assert.ErrorIs(t, h.svc.Ready(), ErrShuttingDown)

	_, err := h.svc.Submit(context.Background(), request())
	assert.ErrorIs(t, err, ErrShuttingDown)
	_, err = h.svc.Analyze(context.Background(), request())
	assert.ErrorIs(t, err, ErrShuttingDown)
}

func TestBackoffDoubles(t *testing.T) {
	svc := &Service{opts: Options{BaseBackoff: 100 * time.Millisecond}}
	for attempt, want := range map[int]time.Duration{1: 0, 2: 100 * time.Millisecond, 3: 200 * time.Millisecond, 4: 400 * time.Millisecond} {
		assert.Equal(t, want, svc.backoff(attempt), fmt.Sprintf("attempt %d", attempt))
	}
}

func TestPersists(t *testing.T) {
	plain := newHarness(t, &fakeAI{}, oneCred, Options{})
	assert.False(t, plain.svc.Persists(request()))
	assert.True(t, plain.svc.Persists(Request{Save: true}))

	auto := newHarness(t, &fakeAI{}, oneCred, Options{AutoSave: true})
	assert.True(t, auto.svc.Persists(request()))
}
