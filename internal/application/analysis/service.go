package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/bryanwahyu/clause-review/internal/application"
	appai "github.com/bryanwahyu/clause-review/internal/application/ai"
	"github.com/bryanwahyu/clause-review/internal/domain/ai"
	domain "github.com/bryanwahyu/clause-review/internal/domain/analysis"
	"github.com/bryanwahyu/clause-review/internal/domain/clause"
	"github.com/bryanwahyu/clause-review/internal/domain/rules"
	"github.com/bryanwahyu/clause-review/internal/logger"
)

var (
	// ErrBusy is returned when the in-flight ceiling is reached.
	ErrBusy = errors.New("too many analyses in flight")
	// ErrShuttingDown is returned for submissions after Shutdown.
	ErrShuttingDown = errors.New("analysis service is shutting down")
	// ErrOrchestration wraps unexpected internal failures. Its message is
	// the one shown to users.
	ErrOrchestration = errors.New("analysis failed due to an internal error")
	// ErrNoStore is wrapped in a StoreError when persistence is disabled.
	ErrNoStore = errors.New("no result store configured")
)

const (
	defaultMaxAttempts = 3
	defaultBaseBackoff = time.Second
	defaultMaxInFlight = 10
	defaultRetention   = time.Hour
)

// Options tune the orchestration policy. Zero values take defaults.
type Options struct {
	MaxAttempts     int
	BaseBackoff     time.Duration
	MaxInFlight     int
	StatusRetention time.Duration
	AutoSave        bool
}

// Metrics receives orchestration events.
type Metrics interface {
	AnalysisStarted()
	AnalysisFinished(failed bool)
	AIAttemptFailed()
	AnalysisRejected()
}

// Deps are the Service collaborators. Store, Failures and Metrics are optional.
type Deps struct {
	AI          ai.Client
	Credentials []ai.Credential
	Lexicon     *rules.Lexicon
	Store       domain.Repository
	Failures    domain.FailureLog
	Clock       application.Clock
	Metrics     Metrics
}

// Request is one clause submission.
type Request struct {
	Text   clause.Text
	Method domain.InputMethod
	// Save persists the record once merged.
	Save bool
}

// Service is the analysis orchestrator. It is safe for concurrent use.
type Service struct {
	ai       *appai.Service
	creds    []ai.Credential
	lexicon  *rules.Lexicon
	store    domain.Repository
	failures domain.FailureLog
	clock    application.Clock
	metrics  Metrics
	opts     Options

	sleep func(context.Context, time.Duration) error
	newID func() domain.ID

	sem      *semaphore.Weighted
	statuses *StatusTable

	// ctx is the parent of background analyses; cancelled on forced shutdown.
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	closed    bool
	stopSweep chan struct{}
}

func NewService(d Deps, opts Options) *Service {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.BaseBackoff <= 0 {
		opts.BaseBackoff = defaultBaseBackoff
	}
	if opts.MaxInFlight <= 0 {
		opts.MaxInFlight = defaultMaxInFlight
	}
	if opts.StatusRetention <= 0 {
		opts.StatusRetention = defaultRetention
	}
	if d.Lexicon == nil {
		d.Lexicon = rules.Generic()
	}
	if d.Clock == nil {
		d.Clock = application.SystemClock{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		ai:        appai.NewService(d.AI),
		creds:     ai.Usable(d.Credentials),
		lexicon:   d.Lexicon,
		store:     d.Store,
		failures:  d.Failures,
		clock:     d.Clock,
		metrics:   d.Metrics,
		opts:      opts,
		sleep:     application.SleepContext,
		newID:     newID,
		sem:       semaphore.NewWeighted(int64(opts.MaxInFlight)),
		statuses:  NewStatusTable(),
		ctx:       ctx,
		cancel:    cancel,
		stopSweep: make(chan struct{}),
	}
	go s.sweepLoop()
	return s
}

// newID returns a time-ordered UUID so lexical order follows creation order.
func newID() domain.ID {
	id, err := uuid.NewV7()
	if err != nil {
		return domain.ID(uuid.New().String())
	}
	return domain.ID(id.String())
}

// Profile is the active lexicon name.
func (s *Service) Profile() string { return s.lexicon.Name }

// AIConfigured reports whether any usable credential exists.
func (s *Service) AIConfigured() bool { return len(s.creds) > 0 }

// Persists reports whether req's record will be saved, either on request
// or through AutoSave.
func (s *Service) Persists(req Request) bool { return req.Save || s.opts.AutoSave }

// Ready returns ErrShuttingDown once Shutdown has begun.
func (s *Service) Ready() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrShuttingDown
	}
	return nil
}

type progressFunc func(pct int, stage string)

func noProgress(int, string) {}

// Analyze runs the full analysis and blocks until the record is merged.
// When saving was requested and fails, the record is still returned along
// with a *domain.StoreError.
func (s *Service) Analyze(ctx context.Context, req Request) (*domain.Record, error) {
	if err := checkRequest(&req); err != nil {
		return nil, err
	}
	if err := s.admit(); err != nil {
		return nil, err
	}
	defer s.release()

	rec, err := s.run(ctx, "", req, noProgress)
	if err != nil {
		s.recordFailure(ctx, "", domain.PhaseOrchestration, err, nil)
		return nil, err
	}
	if s.Persists(req) {
		if _, err := s.Save(ctx, rec); err != nil {
			logger.Warn(ctx, "saving analysis failed", "analysis_id", rec.ID, "error", err)
			return rec, err
		}
	}
	return rec, nil
}

// Submit starts the analysis in the background and returns its ID at once.
// Progress is available through Status.
func (s *Service) Submit(ctx context.Context, req Request) (domain.ID, error) {
	if err := checkRequest(&req); err != nil {
		return "", err
	}
	if err := s.admit(); err != nil {
		return "", err
	}

	id := s.newID()
	s.statuses.Create(id, s.clock.Now())

	// jalan di background, lepas dari context request
	bg := logger.WithAnalysisID(s.ctx, string(id))
	if rid, ok := ctx.Value(logger.RequestIDKey).(string); ok {
		bg = context.WithValue(bg, logger.RequestIDKey, rid)
	}

	go func() {
		defer s.release()
		report := func(pct int, stage string) {
			s.statuses.Progress(id, pct, stage, s.clock.Now())
		}

		rec, err := s.run(bg, id, req, report)
		if err != nil {
			s.recordFailure(bg, id, domain.PhaseOrchestration, err, nil)
			s.statuses.Fail(id, ErrOrchestration.Error(), s.clock.Now())
			return
		}

		var persistErr string
		if s.Persists(req) {
			if _, err := s.Save(bg, rec); err != nil {
				logger.Warn(bg, "saving analysis failed", "error", err)
				s.recordFailure(bg, id, domain.PhasePersist, err, nil)
				persistErr = err.Error()
			}
		}
		s.statuses.Complete(id, rec, persistErr, s.clock.Now())
	}()

	return id, nil
}

// Status returns the current progress of an asynchronous analysis.
func (s *Service) Status(id domain.ID) (domain.Status, error) {
	st, ok := s.statuses.Get(id)
	if !ok {
		return domain.Status{}, domain.ErrNotFound
	}
	return st, nil
}

func checkRequest(req *Request) error {
	if req.Text.Len() == 0 {
		return &clause.ValidationError{Reason: "text is required"}
	}
	if req.Method == "" {
		req.Method = domain.InputJSON
	}
	if !req.Method.Valid() {
		return &clause.ValidationError{Reason: fmt.Sprintf("unsupported input method %q", req.Method)}
	}
	return nil
}

func (s *Service) admit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrShuttingDown
	}
	if !s.sem.TryAcquire(1) {
		if s.metrics != nil {
			s.metrics.AnalysisRejected()
		}
		return ErrBusy
	}
	s.wg.Add(1)
	return nil
}

func (s *Service) release() {
	s.sem.Release(1)
	s.wg.Done()
}

// run is the merge algorithm shared by both paths. An empty id is assigned
// at merge time.
func (s *Service) run(ctx context.Context, id domain.ID, req Request, report progressFunc) (rec *domain.Record, err error) {
	if s.metrics != nil {
		s.metrics.AnalysisStarted()
	}
	defer func() {
		if p := recover(); p != nil {
			logger.Error(ctx, "analysis panicked", "panic", p, "stack", string(debug.Stack()))
			rec, err = nil, fmt.Errorf("%w: panic: %v", ErrOrchestration, p)
		}
		if s.metrics != nil {
			s.metrics.AnalysisFinished(err != nil)
		}
	}()

	started := time.Now()
	createdAt := s.clock.Now()

	report(10, "Running rule-based analysis")
	ruleStart := time.Now()
	ruleRes := rules.Analyze(req.Text.String(), s.lexicon)
	ruleDur := time.Since(ruleStart)
	report(50, "Rule-based analysis complete")

	out := s.runAI(ctx, id, req.Text, report)

	report(90, "Merging results")
	if id == "" {
		id = s.newID()
	}
	rec = &domain.Record{
		ID:              id,
		Profile:         s.lexicon.Name,
		ClauseText:      req.Text.String(),
		InputMethod:     req.Method,
		TextLength:      req.Text.Len(),
		CreatedAt:       createdAt,
		Rule:            ruleRes,
		AI:              out.result,
		AIAttempts:      out.attempts,
		TotalDurationMS: time.Since(started).Milliseconds(),
		RuleDurationMS:  ruleDur.Milliseconds(),
		AIDurationMS:    out.duration.Milliseconds(),
	}

	logger.Info(ctx, "analysis completed",
		"analysis_id", rec.ID,
		"clause_type", ruleRes.ClauseType,
		"risk_score", ruleRes.RiskScore,
		"ai_failed", out.result.Failed(),
		"ai_attempts", out.attempts,
		"total_ms", rec.TotalDurationMS,
	)
	return rec, nil
}

type aiOutcome struct {
	result   ai.Result
	attempts int
	duration time.Duration
}

// runAI applies the retry policy. Each attempt is a full pass over the
// credentials; backoff doubles from BaseBackoff. Failures are absorbed into
// a degraded result.
func (s *Service) runAI(ctx context.Context, id domain.ID, text clause.Text, report progressFunc) aiOutcome {
	if len(s.creds) == 0 {
		return aiOutcome{result: ai.NotConfigured()}
	}

	report(60, "Requesting AI analysis")
	var (
		last     appai.Attempt
		attempts int
	)
	for attempt := 1; attempt <= s.opts.MaxAttempts; attempt++ {
		if attempt > 1 {
			report(60+5*(attempt-1), fmt.Sprintf("Retrying AI analysis (attempt %d of %d)", attempt, s.opts.MaxAttempts))
			if err := s.sleep(ctx, s.backoff(attempt)); err != nil {
				logger.Warn(ctx, "ai retries cancelled", "error", err)
				break
			}
		}

		attempts = attempt
		last = s.ai.Analyze(ctx, text.String(), s.creds)
		if last.Err == nil {
			return aiOutcome{result: last.Result, attempts: attempt, duration: last.Duration}
		}
		s.attemptFailed(ctx, id, attempt, last)

		if !ai.Retryable(last.Err) || ctx.Err() != nil {
			break
		}
	}
	return aiOutcome{result: last.Result, attempts: attempts, duration: last.Duration}
}

// backoff before the given attempt: base, 2*base, 4*base...
func (s *Service) backoff(attempt int) time.Duration {
	if attempt < 2 {
		return 0
	}
	return s.opts.BaseBackoff << (attempt - 2)
}

func (s *Service) attemptFailed(ctx context.Context, id domain.ID, attempt int, a appai.Attempt) {
	if s.metrics != nil {
		s.metrics.AIAttemptFailed()
	}
	msgs := make([]string, 0, len(a.Failures))
	for _, f := range a.Failures {
		msgs = append(msgs, f.Error())
	}
	logger.Warn(ctx, "ai attempt failed",
		"attempt", attempt,
		"max_attempts", s.opts.MaxAttempts,
		"credential", a.Credential,
		"kind", ai.KindOf(a.Err),
		"errors", msgs,
	)
	s.recordFailure(ctx, id, domain.PhaseAIAttempt, a.Err, map[string]any{
		"attempt": attempt,
		"errors":  msgs,
	})
}

func (s *Service) recordFailure(ctx context.Context, id domain.ID, phase string, err error, details map[string]any) {
	if phase == domain.PhaseOrchestration {
		logger.Error(ctx, "analysis orchestration failed", "error", err)
	}
	if s.failures == nil || err == nil {
		return
	}
	var raw string
	if details != nil {
		if b, merr := json.Marshal(details); merr == nil {
			raw = string(b)
		}
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	f := &domain.Failure{
		AnalysisID:  string(id),
		Phase:       phase,
		Message:     err.Error(),
		DetailsJSON: raw,
		CreatedAt:   s.clock.Now(),
	}
	if ferr := s.failures.Save(ctx, f); ferr != nil {
		logger.Warn(ctx, "recording failure failed", "error", ferr)
	}
}

func (s *Service) sweepLoop() {
	interval := s.opts.StatusRetention / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopSweep:
			return
		case <-ticker.C:
			if n := s.statuses.Sweep(s.clock.Now().Add(-s.opts.StatusRetention)); n > 0 {
				logger.Debug(context.Background(), "evicted finished analyses", "count", n)
			}
		}
	}
}

// Shutdown stops accepting work and waits for in-flight analyses. When ctx
// ends first, background analyses are cancelled between retry attempts.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.stopSweep)
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.cancel()
		return nil
	case <-ctx.Done():
		s.cancel()
		return ctx.Err()
	}
}
