package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/crunchbase-miner/internal/config"
	"github.com/JakeFAU/crunchbase-miner/internal/crunchbase"
	"github.com/JakeFAU/crunchbase-miner/internal/metrics"
	"github.com/JakeFAU/crunchbase-miner/internal/mining"
	"github.com/JakeFAU/crunchbase-miner/internal/normalization"
)

// Discoverer resolves company names to profile URLs.
type Discoverer interface {
	DiscoverOne(ctx context.Context, companyID, name string) (crunchbase.FinalDiscoveryResponse, error)
	DiscoverBatch(ctx context.Context, reqs []crunchbase.DiscoveryRequest) (crunchbase.FinalDiscoveryResponse, error)
}

// Miner processes scrape batches.
type Miner interface {
	ProcessCompanies(ctx context.Context, token string, req crunchbase.CompaniesRequest) (mining.Result, error)
}

// Registrar registers measurements with the analytics backend.
type Registrar interface {
	RegisterMeasurements(
		ctx context.Context,
		token string,
		sourceID int,
		mapping normalization.Mapping,
	) (normalization.Mapping, error)
}

// Dependencies are the collaborators served by the HTTP handlers. A nil Miner
// marks the service as not ready.
type Dependencies struct {
	Discoverer Discoverer
	Miner      Miner
	Registrar  Registrar
	Mapping    normalization.Mapping
}

// Server wires HTTP handlers to the discovery and mining services.
type Server struct {
	router chi.Router
	deps   Dependencies
	cfg    config.Config
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(deps Dependencies, cfg config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	s := &Server{
		deps:   deps,
		cfg:    cfg,
		logger: logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)
	if cfg.Server.RequestTimeout > 0 {
		r.Use(timeoutMiddleware(cfg.Server.RequestTimeout))
	}

	r.Get("/", s.welcome)
	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(bearerAuth(cfg.Auth.Enabled, cfg.Auth.StaticToken))
		r.Get("/initialize", s.initialize)
		r.Get("/discover", s.discoverOne)
		r.Post("/discover", s.discoverBatch)
		r.Post("/companies", s.processCompanies)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) welcome(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"welcome": "at crunchbase-miner"})
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	if s.deps.Miner == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "scraping actor is not configured",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) initialize(w http.ResponseWriter, r *http.Request) {
	if s.deps.Registrar == nil {
		writeError(w, http.StatusServiceUnavailable, "analytics backend is not configured")
		return
	}
	sourceID, err := strconv.Atoi(r.URL.Query().Get("source_id"))
	if err != nil || sourceID <= 0 {
		writeError(w, http.StatusBadRequest, "source_id must be a positive integer")
		return
	}
	mapping, err := s.deps.Registrar.RegisterMeasurements(r.Context(), tokenFromContext(r.Context()), sourceID, s.deps.Mapping)
	if err != nil {
		s.fail(w, r, "initialize failed", err)
		return
	}
	s.logger.Info("measurements registered",
		zap.Int("source_id", sourceID),
		zap.Int("measurements", mapping.Count()),
	)
	writeJSON(w, http.StatusOK, mapping)
}

func (s *Server) discoverOne(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("query"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	resp, err := s.deps.Discoverer.DiscoverOne(r.Context(), r.URL.Query().Get("company_id"), query)
	if err != nil {
		s.fail(w, r, "discover failed", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) discoverBatch(w http.ResponseWriter, r *http.Request) {
	var reqs []crunchbase.DiscoveryRequest
	if err := json.NewDecoder(r.Body).Decode(&reqs); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	for _, req := range reqs {
		if req.CompanyID == "" {
			writeError(w, http.StatusBadRequest, "company_id is required")
			return
		}
	}
	resp, err := s.deps.Discoverer.DiscoverBatch(r.Context(), reqs)
	if err != nil {
		s.fail(w, r, "batch discover failed", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type companiesFailure struct {
	Error  string        `json:"error"`
	Result mining.Result `json:"result"`
}

func (s *Server) processCompanies(w http.ResponseWriter, r *http.Request) {
	if s.deps.Miner == nil {
		writeError(w, http.StatusServiceUnavailable, "scraping actor is not configured")
		return
	}
	var req crunchbase.CompaniesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	res, err := s.deps.Miner.ProcessCompanies(r.Context(), tokenFromContext(r.Context()), req)
	if err != nil {
		if res.BatchID != "" {
			// The batch ran but its completion report was not accepted.
			s.logger.Error("batch completion failed", zap.Int64("task_id", req.TaskID), zap.Error(err))
			writeJSON(w, statusFor(err), companiesFailure{Error: err.Error(), Result: res})
			return
		}
		s.fail(w, r, "process companies failed", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(msg,
			zap.Error(err),
			zap.String("request_id", RequestIDFromContext(r.Context())),
		)
	}
	writeError(w, status, err.Error())
}

// statusFor translates an error into an HTTP status code.
func statusFor(err error) int {
	switch {
	case errors.Is(err, crunchbase.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, crunchbase.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, crunchbase.ErrTransport):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
