package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cast"

	"github.com/abelzeko/kommunekamp/internal/entities"
	"github.com/abelzeko/kommunekamp/internal/integration"
	"github.com/abelzeko/kommunekamp/internal/usecases"
)

// ComparisonService is the part of the comparison use case the HTTP server needs
type ComparisonService interface {
	Compare(ctx context.Context, id1, id2 string) (*usecases.Comparison, error)
	Report(ctx context.Context, id1, id2 string) (*integration.Document, error)
	RecentComparisons(ctx context.Context, limit int) ([]entities.ComparisonRecord, error)
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Addr           string
	RequestTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	// Metrics is served on /metrics when set
	Metrics http.Handler
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:           ":8080",
		RequestTimeout: 2 * time.Minute,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   3 * time.Minute,
		IdleTimeout:    60 * time.Second,
	}
}

// Server is the HTTP front-end of the comparison service
type Server struct {
	router  *mux.Router
	server  *http.Server
	service ComparisonService
	config  ServerConfig
}

type ctxKey int

const requestIDKey ctxKey = iota

// RequestID returns the id assigned to the request by the server, if any
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

type compareRequest struct {
	Komm1 interface{} `json:"komm1"`
	Komm2 interface{} `json:"komm2"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewServer creates a new HTTP server instance
func NewServer(service ComparisonService, config ServerConfig) *Server {
	defaults := DefaultServerConfig()
	if config.Addr == "" {
		config.Addr = defaults.Addr
	}
	if config.RequestTimeout == 0 {
		config.RequestTimeout = defaults.RequestTimeout
	}
	if config.ReadTimeout == 0 {
		config.ReadTimeout = defaults.ReadTimeout
	}
	if config.WriteTimeout == 0 {
		config.WriteTimeout = defaults.WriteTimeout
	}
	if config.IdleTimeout == 0 {
		config.IdleTimeout = defaults.IdleTimeout
	}

	s := &Server{
		router:  mux.NewRouter(),
		service: service,
		config:  config,
	}
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         config.Addr,
		Handler:      s.router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}
	return s
}

// Handler returns the root handler, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.requestLoggingMiddleware)
	s.router.Use(s.timeoutMiddleware)

	s.router.HandleFunc("/data", s.handleData).Methods(http.MethodPost)
	s.router.HandleFunc("/report", s.handleReport).Methods(http.MethodPost)
	s.router.HandleFunc("/api/comparisons", s.handleComparisons).Methods(http.MethodGet)
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	if s.config.Metrics != nil {
		s.router.Handle("/metrics", s.config.Metrics).Methods(http.MethodGet)
	}

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
	})
}

// handleData scores the pair and returns both entity records
func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	id1, id2, err := decodeCompareRequest(w, r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	cmp, err := s.service.Compare(r.Context(), id1, id2)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, []*entities.Komm{cmp.Komm1, cmp.Komm2})
}

// handleReport scores the pair and streams back the rendered report
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	id1, id2, err := decodeCompareRequest(w, r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	doc, err := s.service.Report(r.Context(), id1, id2)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(doc.Body)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(doc.Body); err != nil {
		log.Warn().Err(err).Str("request_id", RequestID(r.Context())).Msg("Failed to write report body")
	}
}

func (s *Server) handleComparisons(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 500 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be between 1 and 500"})
			return
		}
		limit = n
	}

	recs, err := s.service.RecentComparisons(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func decodeCompareRequest(w http.ResponseWriter, r *http.Request) (string, string, error) {
	var req compareRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	if err := dec.Decode(&req); err != nil {
		return "", "", fmt.Errorf("invalid JSON body: %v", err)
	}

	id1, err1 := kommID(req.Komm1)
	id2, err2 := kommID(req.Komm2)
	if err1 != nil || err2 != nil || id1 == "" || id2 == "" {
		return "", "", errors.New("both komm1 and komm2 are required")
	}
	return id1, id2, nil
}

// kommID accepts the id as a JSON string or number
func kommID(v interface{}) (string, error) {
	if v == nil {
		return "", nil
	}
	id, err := cast.ToStringE(v)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(id), nil
}

// StatusFor maps a comparison error to an HTTP status code
func StatusFor(err error) int {
	switch {
	case errors.Is(err, entities.ErrInvalidKommID), errors.Is(err, entities.ErrKommNotFound):
		return http.StatusBadRequest
	case errors.Is(err, usecases.ErrReportsDisabled):
		return http.StatusServiceUnavailable
	case errors.Is(err, integration.ErrReportFailed), errors.Is(err, integration.ErrUpstream):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	event := log.Warn()
	if status >= http.StatusInternalServerError {
		event = log.Error()
	}
	event.Err(err).Str("request_id", RequestID(r.Context())).Int("status", status).Msg("Request failed")

	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

// requestIDMiddleware adds unique request ID to each request
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requestLoggingMiddleware logs all requests with structured format
func (s *Server) requestLoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapper := &responseWrapper{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapper, r)

		log.Info().
			Str("request_id", RequestID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", wrapper.statusCode).
			Dur("duration", time.Since(start)).
			Str("remote", r.RemoteAddr).
			Msg("REQ")
	})
}

// timeoutMiddleware enforces request timeouts
func (s *Server) timeoutMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), s.config.RequestTimeout)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start() error {
	log.Info().Str("addr", s.config.Addr).Msg("Starting HTTP server")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("Shutting down HTTP server...")
	return s.server.Shutdown(ctx)
}

// responseWrapper captures HTTP status codes for logging
type responseWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWrapper) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
