package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	appanalysis "github.com/bryanwahyu/clause-review/internal/application/analysis"
	domain "github.com/bryanwahyu/clause-review/internal/domain/analysis"
	"github.com/bryanwahyu/clause-review/internal/domain/clause"
	"github.com/bryanwahyu/clause-review/internal/infra/extract"
	"github.com/bryanwahyu/clause-review/internal/logger"
	"github.com/bryanwahyu/clause-review/internal/middleware"
)

// Options configure the middleware chain.
type Options struct {
	APIKeys        map[string]string
	CORSOrigins    []string
	RateLimiter    *middleware.RateLimiter // nil disables rate limiting
	HealthCheckers map[string]middleware.HealthChecker
	MaxUploadBytes int64
}

type Router struct {
	svc       *appanalysis.Service
	extractor *extract.Extractor
	maxUpload int64
}

func NewRouter(svc *appanalysis.Service, extractor *extract.Extractor, opts Options) http.Handler {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 10 << 20
	}
	r := &Router{svc: svc, extractor: extractor, maxUpload: opts.MaxUploadBytes}

	mux := chi.NewRouter()
	mux.Use(middleware.Recovery)
	mux.Use(middleware.RequestID)
	mux.Use(middleware.RequestLogger)
	mux.Use(middleware.MetricsMiddleware)
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key", middleware.RequestIDHeader},
		ExposedHeaders:   []string{middleware.RequestIDHeader, "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	mux.Use(middleware.APIKeyAuth(opts.APIKeys))
	if opts.RateLimiter != nil {
		mux.Use(middleware.RateLimit(opts.RateLimiter))
	}

	mux.Get("/health", middleware.HealthHandler(r.healthCheckers(opts.HealthCheckers)))
	mux.Get("/ready", middleware.ReadinessHandler(svc.Ready))
	mux.Get("/live", middleware.LivenessHandler)
	mux.Get("/metrics", middleware.MetricsHandler)

	mux.Route("/v1", func(rt chi.Router) {
		rt.Get("/info", r.wrap(r.handleInfo))
		rt.Post("/extract", r.wrap(r.handleExtract))
		rt.Post("/analyses", r.wrap(r.handleAnalyze))
		rt.Post("/analyses/async", r.wrap(r.handleSubmit))
		rt.Get("/analyses", r.wrap(r.handleList))
		rt.Get("/analyses/{id}", r.wrap(r.handleGet))
		rt.Get("/analyses/{id}/status", r.wrap(r.handleStatus))
		rt.Get("/analyses/{id}/failures", r.wrap(r.handleFailures))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

// badRequest is a client error that is not a clause validation failure.
type badRequest struct{ msg string }

func (e *badRequest) Error() string { return e.msg }

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}

		var (
			verr   *clause.ValidationError
			ferr   *extract.UnsupportedFormatError
			berr   *badRequest
			serr   *domain.StoreError
			tooBig *http.MaxBytesError
		)
		switch {
		case errors.As(err, &verr), errors.As(err, &berr):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.As(err, &ferr):
			writeError(w, http.StatusUnsupportedMediaType, err.Error())
		case errors.As(err, &tooBig):
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d bytes", tooBig.Limit))
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "analysis not found")
		case errors.Is(err, appanalysis.ErrBusy):
			w.Header().Set("Retry-After", "5")
			writeError(w, http.StatusServiceUnavailable, err.Error())
		case errors.Is(err, appanalysis.ErrShuttingDown):
			writeError(w, http.StatusServiceUnavailable, err.Error())
		case errors.As(err, &serr):
			logger.Error(req.Context(), "store error", "error", err)
			writeError(w, http.StatusBadGateway, "store unavailable")
		case errors.Is(err, appanalysis.ErrOrchestration):
			writeError(w, http.StatusInternalServerError, appanalysis.ErrOrchestration.Error())
		default:
			logger.Error(req.Context(), "request failed", "error", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
	}
}

// GET /v1/info
func (r *Router) handleInfo(w http.ResponseWriter, req *http.Request) error {
	return writeJSON(w, http.StatusOK, map[string]any{
		"profile":       r.svc.Profile(),
		"ai_configured": r.svc.AIConfigured(),
		"min_length":    clause.MinLength,
		"max_length":    clause.MaxLength,
	})
}

// healthCheckers adds the AI credential probe to the store checkers.
func (r *Router) healthCheckers(base map[string]middleware.HealthChecker) map[string]middleware.HealthChecker {
	out := make(map[string]middleware.HealthChecker, len(base)+1)
	for name, c := range base {
		out[name] = c
	}
	out["ai"] = middleware.CheckerFunc(func(context.Context) error {
		if !r.svc.AIConfigured() {
			return fmt.Errorf("no credential configured: %w", middleware.ErrDegraded)
		}
		return nil
	})
	return out
}

// analysisResponse is a record plus the outcome of saving it.
type analysisResponse struct {
	*domain.Record
	Saved      bool   `json:"saved"`
	StoreError string `json:"store_error,omitempty"`
}

// POST /v1/analyses[?save=true]
// Body: JSON {"text": "..."}, form field contract_text, or multipart file.
func (r *Router) handleAnalyze(w http.ResponseWriter, req *http.Request) error {
	in, err := r.readClause(w, req)
	if err != nil {
		return err
	}

	areq := appanalysis.Request{Text: in.text, Method: in.method, Save: in.save}
	rec, err := r.svc.Analyze(req.Context(), areq)
	var serr *domain.StoreError
	if err != nil && !(rec != nil && errors.As(err, &serr)) {
		return err
	}

	resp := analysisResponse{Record: rec, Saved: r.svc.Persists(areq) && err == nil}
	if serr != nil {
		resp.StoreError = "store unavailable: " + serr.Err.Error()
	}
	return writeJSON(w, http.StatusOK, resp)
}

// POST /v1/analyses/async[?save=true]
func (r *Router) handleSubmit(w http.ResponseWriter, req *http.Request) error {
	in, err := r.readClause(w, req)
	if err != nil {
		return err
	}
	id, err := r.svc.Submit(req.Context(), appanalysis.Request{Text: in.text, Method: in.method, Save: in.save})
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusAccepted, map[string]string{
		"analysis_id": string(id),
		"status_url":  "/v1/analyses/" + string(id) + "/status",
	})
}

// GET /v1/analyses/{id}/status
func (r *Router) handleStatus(w http.ResponseWriter, req *http.Request) error {
	id, err := analysisID(req)
	if err != nil {
		return err
	}
	st, err := r.svc.Status(id)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, st)
}

// GET /v1/analyses/{id}
func (r *Router) handleGet(w http.ResponseWriter, req *http.Request) error {
	id, err := analysisID(req)
	if err != nil {
		return err
	}
	rec, err := r.svc.Get(req.Context(), id)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, rec)
}

// GET /v1/analyses/{id}/failures?limit=
func (r *Router) handleFailures(w http.ResponseWriter, req *http.Request) error {
	id, err := analysisID(req)
	if err != nil {
		return err
	}
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
	out, err := r.svc.Failures(req.Context(), id, middleware.ValidateLimit(limit))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, map[string]any{"analysis_id": id, "failures": out})
}

// GET /v1/analyses?with_data=true&page=&page_size=
func (r *Router) handleList(w http.ResponseWriter, req *http.Request) error {
	q := req.URL.Query()
	withData, _ := strconv.ParseBool(q.Get("with_data"))
	if !withData {
		ids, err := r.svc.ListIDs(req.Context())
		if err != nil {
			return err
		}
		return writeJSON(w, http.StatusOK, map[string]any{"analysis_ids": ids})
	}

	page, _ := strconv.Atoi(q.Get("page"))
	size, _ := strconv.Atoi(q.Get("page_size"))
	list, err := r.svc.ListRecords(req.Context(), middleware.ValidatePage(page), middleware.ValidateLimit(size))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, list)
}

// POST /v1/extract (multipart "file")
func (r *Router) handleExtract(w http.ResponseWriter, req *http.Request) error {
	req.Body = http.MaxBytesReader(w, req.Body, r.maxUpload)
	raw, format, err := r.readUpload(req)
	if err != nil {
		return err
	}
	text := clause.Normalize(middleware.SanitizeString(raw))
	return writeJSON(w, http.StatusOK, map[string]any{
		"text":   text,
		"format": format,
		"length": len([]rune(text)),
	})
}

type clauseInput struct {
	text   clause.Text
	method domain.InputMethod
	save   bool
}

// readClause accepts the three input methods and validates the text.
func (r *Router) readClause(w http.ResponseWriter, req *http.Request) (clauseInput, error) {
	var (
		in  clauseInput
		raw string
	)
	in.save, _ = strconv.ParseBool(req.URL.Query().Get("save"))

	mediaType, _, _ := mime.ParseMediaType(req.Header.Get("Content-Type"))
	switch mediaType {
	case "multipart/form-data":
		req.Body = http.MaxBytesReader(w, req.Body, r.maxUpload)
		if err := req.ParseMultipartForm(r.maxUpload); err != nil {
			return in, r.parseErr(err)
		}
		if req.MultipartForm != nil && len(req.MultipartForm.File["file"]) > 0 {
			text, _, err := r.readUpload(req)
			if err != nil {
				return in, err
			}
			raw, in.method = text, domain.InputFile
		} else {
			raw, in.method = req.FormValue("contract_text"), domain.InputForm
		}
		if v := req.FormValue("save"); v != "" {
			in.save, _ = strconv.ParseBool(v)
		}
	case "application/x-www-form-urlencoded":
		if err := req.ParseForm(); err != nil {
			return in, &badRequest{msg: "invalid form body"}
		}
		raw, in.method = req.PostFormValue("contract_text"), domain.InputForm
		if v := req.PostFormValue("save"); v != "" {
			in.save, _ = strconv.ParseBool(v)
		}
	default:
		var body struct {
			Text         string `json:"text"`
			ContractText string `json:"contract_text"`
			Save         *bool  `json:"save"`
		}
		dec := json.NewDecoder(io.LimitReader(req.Body, r.maxUpload))
		if err := dec.Decode(&body); err != nil {
			return in, &badRequest{msg: "invalid JSON body"}
		}
		raw, in.method = body.Text, domain.InputJSON
		if raw == "" {
			raw = body.ContractText
		}
		if body.Save != nil {
			in.save = *body.Save
		}
	}

	text, err := clause.Validate(middleware.SanitizeString(raw))
	if err != nil {
		return in, err
	}
	in.text = text
	return in, nil
}

// readUpload extracts the multipart "file" field.
func (r *Router) readUpload(req *http.Request) (string, string, error) {
	if req.MultipartForm == nil {
		if err := req.ParseMultipartForm(r.maxUpload); err != nil {
			return "", "", r.parseErr(err)
		}
	}
	f, hdr, err := req.FormFile("file")
	if err != nil {
		return "", "", &badRequest{msg: "file field is required"}
	}
	defer f.Close()

	if err := middleware.ValidateUploadName(hdr.Filename); err != nil {
		return "", "", &extract.UnsupportedFormatError{Format: extract.FormatFromFilename(hdr.Filename)}
	}
	data, err := io.ReadAll(io.LimitReader(f, r.maxUpload+1))
	if err != nil {
		return "", "", err
	}
	if int64(len(data)) > r.maxUpload {
		return "", "", &http.MaxBytesError{Limit: r.maxUpload}
	}

	format := extract.FormatFromFilename(hdr.Filename)
	text, err := r.extractor.Extract(req.Context(), data, format)
	if err != nil {
		return "", "", err
	}
	return text, format, nil
}

func (r *Router) parseErr(err error) error {
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		return err
	}
	if strings.Contains(err.Error(), "request body too large") {
		return &http.MaxBytesError{Limit: r.maxUpload}
	}
	return &badRequest{msg: "invalid multipart body"}
}

func analysisID(req *http.Request) (domain.ID, error) {
	id := chi.URLParam(req, "id")
	if err := middleware.ValidateAnalysisID(id); err != nil {
		return "", &badRequest{msg: err.Error()}
	}
	return domain.ID(id), nil
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	_ = writeJSON(w, status, map[string]string{"error": msg})
}
