// Package api exposes the HTTP and websocket interface for the crawl service.
package api

import (
	"bufio"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/scrapegoat/scrapegoat/internal/crawler"
	"github.com/scrapegoat/scrapegoat/internal/extract"
	"github.com/scrapegoat/scrapegoat/internal/jobs"
	"github.com/scrapegoat/scrapegoat/internal/metrics"
)

// Server wires HTTP handlers to the job manager.
type Server struct {
	router  chi.Router
	manager *jobs.Manager
	logger  *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(manager *jobs.Manager, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		manager: manager,
		logger:  logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(metricsMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)

	r.Post("/crawl", s.submitCrawl)
	r.Get("/status/{jobID}", s.jobStatus)
	r.Get("/jobs", s.listJobs)
	r.Get("/health", s.health)
	r.Get("/ws", s.websocket)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

type crawlOptions struct {
	Render           bool            `json:"render"`
	TimeoutMs        int             `json:"timeout_ms"`
	WaitAfterLoadMs  int             `json:"wait_after_load_ms"`
	MaxDepth         int             `json:"max_depth"`
	NextSelector     string          `json:"next_selector"`
	Schema           *extract.Schema `json:"schema"`
	Proxies          []string        `json:"proxies"`
	UserAgent        string          `json:"user_agent"`
	AutoDetectSchema bool            `json:"auto_detect_schema"`
	EmbedMedia       bool            `json:"embed_media"`
	LLMExtract       bool            `json:"llm_extract"`
}

type crawlRequest struct {
	URL     string       `json:"url"`
	Options crawlOptions `json:"options"`
}

func (s *Server) submitCrawl(w http.ResponseWriter, r *http.Request) {
	var req crawlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	job, err := s.manager.Submit(toEngineRequest(req))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"jobId":  job.ID,
		"status": job.Status,
		"url":    job.URL,
	})
}

func (s *Server) jobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job, err := s.manager.Job(jobID)
	if err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Job not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, job)
}

type jobSummary struct {
	ID       string            `json:"id"`
	Status   crawler.JobStatus `json:"status"`
	URL      string            `json:"url"`
	Created  time.Time         `json:"created_at"`
	Finished *time.Time        `json:"finished_at,omitempty"`
}

func (s *Server) listJobs(w http.ResponseWriter, _ *http.Request) {
	all := s.manager.Jobs()
	summaries := make([]jobSummary, 0, len(all))
	for _, job := range all {
		summaries = append(summaries, jobSummary{
			ID:       job.ID,
			Status:   job.Status,
			URL:      job.URL,
			Created:  job.Created,
			Finished: job.Finished,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": summaries})
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	})
}

func toEngineRequest(req crawlRequest) crawler.Request {
	opts := req.Options
	return crawler.Request{
		URL:              req.URL,
		Render:           opts.Render,
		Timeout:          time.Duration(opts.TimeoutMs) * time.Millisecond,
		WaitAfterLoad:    time.Duration(opts.WaitAfterLoadMs) * time.Millisecond,
		MaxDepth:         opts.MaxDepth,
		NextSelector:     opts.NextSelector,
		Schema:           opts.Schema,
		Proxies:          opts.Proxies,
		UserAgent:        opts.UserAgent,
		AutoDetectSchema: opts.AutoDetectSchema,
		EmbedMedia:       opts.EmbedMedia,
		LLMExtract:       opts.LLMExtract,
	}
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Request-ID", uuid.NewString())
		next.ServeHTTP(w, r)
	})
}

func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unknown"
		}
		metrics.ObserveHTTPRequest(r.Method, route, ww.status, time.Since(start))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("panic", rec))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

// Hijack lets the websocket upgrade pass through the logging wrapper.
func (sw *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := sw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("hijacker not supported")
	}
	return h.Hijack()
}

func (sw *statusWriter) Flush() {
	if f, ok := sw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
