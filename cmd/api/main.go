package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appanalysis "github.com/bryanwahyu/clause-review/internal/application/analysis"
	"github.com/bryanwahyu/clause-review/internal/config"
	domain "github.com/bryanwahyu/clause-review/internal/domain/analysis"
	"github.com/bryanwahyu/clause-review/internal/domain/rules"
	openaiclient "github.com/bryanwahyu/clause-review/internal/infra/ai/openai"
	"github.com/bryanwahyu/clause-review/internal/infra/ai/prompt"
	mysqlp "github.com/bryanwahyu/clause-review/internal/infra/db/mysql"
	"github.com/bryanwahyu/clause-review/internal/infra/db/postgres"
	"github.com/bryanwahyu/clause-review/internal/infra/db/sqlite"
	"github.com/bryanwahyu/clause-review/internal/infra/extract"
	"github.com/bryanwahyu/clause-review/internal/infra/httpserver"
	"github.com/bryanwahyu/clause-review/internal/infra/storage"
	"github.com/bryanwahyu/clause-review/internal/logger"
	"github.com/bryanwahyu/clause-review/internal/middleware"
)

func main() {
	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	cfg, err := config.Load(path)
	if err != nil {
		slog.Error("config load error", "error", err)
		os.Exit(1)
	}
	logger.Init(&cfg.Logging)

	if err := run(cfg); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx := context.Background()

	lexicon, err := loadLexicon(cfg.Analysis)
	if err != nil {
		return err
	}
	tpl, err := prompt.ForProfile(lexicon.Name)
	if err != nil {
		// custom lexicon files fall back to the generic instructions
		tpl = prompt.Generic
	}

	aiClient := openaiclient.NewClient(tpl, "")
	aiClient.Timeout = cfg.AI.Timeout
	aiClient.MaxTokens = cfg.AI.MaxTokens
	aiClient.Temperature = cfg.AI.Temperature

	st, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("store init (%s): %w", cfg.Store.Backend, err)
	}
	defer st.close()

	svc := appanalysis.NewService(appanalysis.Deps{
		AI:          aiClient,
		Credentials: cfg.AI.Credentials,
		Lexicon:     lexicon,
		Store:       st.repo,
		Failures:    st.failures,
		Metrics:     middleware.AnalysisMetrics{},
	}, appanalysis.Options{
		MaxAttempts:     cfg.Analysis.MaxAttempts,
		BaseBackoff:     cfg.Analysis.BaseBackoff,
		MaxInFlight:     cfg.Analysis.MaxInFlight,
		StatusRetention: cfg.Analysis.StatusRetention,
		AutoSave:        cfg.Analysis.AutoSave,
	})
	if !svc.AIConfigured() {
		slog.Warn("no AI credential configured; only rule-based analysis will run")
	}

	limiter := middleware.NewRateLimiter(cfg.Server.RateLimit.Capacity, cfg.Server.RateLimit.RefillPerSecond)
	defer limiter.Stop()

	handler := httpserver.NewRouter(svc, extract.New(cfg.Extract.MaxPDFPages), httpserver.Options{
		APIKeys:        cfg.Server.APIKeys,
		CORSOrigins:    cfg.Server.CORSOrigins,
		RateLimiter:    limiter,
		HealthCheckers: st.checkers,
		MaxUploadBytes: cfg.Extract.MaxUploadBytes,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening",
			"addr", addr,
			"profile", lexicon.Name,
			"store", cfg.Store.Backend,
			"max_in_flight", cfg.Analysis.MaxInFlight,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-stop:
	}
	slog.Info("shutting down server...")

	ctx2, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		slog.Error("http shutdown error", "error", err)
	}
	// tunggu analisis async yang masih jalan
	if err := svc.Shutdown(ctx2); err != nil {
		slog.Warn("analyses still running at shutdown", "error", err)
	}
	return nil
}

func loadLexicon(cfg config.AnalysisConfig) (*rules.Lexicon, error) {
	if cfg.LexiconFile != "" {
		return rules.LoadLexicon(cfg.LexiconFile)
	}
	return rules.ForProfile(cfg.Profile)
}

type store struct {
	repo     domain.Repository
	failures domain.FailureLog
	checkers map[string]middleware.HealthChecker
	close    func()
}

func openStore(ctx context.Context, cfg *config.Config) (*store, error) {
	sqlStore := func(db *sql.DB, repo domain.Repository, failures domain.FailureLog) *store {
		return &store{
			repo:     repo,
			failures: failures,
			checkers: map[string]middleware.HealthChecker{"database": &middleware.DatabaseHealthChecker{DB: db}},
			close:    func() { db.Close() },
		}
	}

	switch cfg.Store.Backend {
	case config.BackendMySQL:
		db, err := mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			return nil, err
		}
		if err := mysqlp.EnsureSchema(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
		return sqlStore(db, mysqlp.NewAnalysisRepository(db), mysqlp.NewFailureRepository(db)), nil

	case config.BackendPostgres:
		db, err := postgres.Connect(ctx, cfg.Store.Postgres.DSN)
		if err != nil {
			return nil, err
		}
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
		return sqlStore(db, postgres.NewAnalysisRepository(db), postgres.NewFailureRepository(db)), nil

	case config.BackendSQLite:
		db, err := sqlite.Open(ctx, cfg.Store.SQLite.Path)
		if err != nil {
			return nil, err
		}
		return sqlStore(db, sqlite.NewAnalysisRepository(db), sqlite.NewFailureRepository(db)), nil

	case config.BackendMinio:
		m := cfg.Store.Minio
		obj, err := storage.NewObjectStore(ctx, m.Endpoint, m.Region, m.Bucket, m.AccessKey, m.SecretKey, m.UseSSL)
		if err != nil {
			return nil, err
		}
		return &store{
			repo:     obj,
			checkers: map[string]middleware.HealthChecker{"minio": middleware.CheckerFunc(obj.Ping)},
			close:    func() {},
		}, nil

	default:
		return &store{
			repo:     storage.NewMemoryStore(cfg.Store.MaxRecords),
			checkers: map[string]middleware.HealthChecker{},
			close:    func() {},
		}, nil
	}
}
