// Package server exposes the dashboard over HTTP and pushes change
// notifications to browsers over a websocket.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cdtdelta/spyconsole/internal/console"
	"github.com/cdtdelta/spyconsole/internal/dashboard"
	"github.com/cdtdelta/spyconsole/internal/database"
	"github.com/cdtdelta/spyconsole/internal/notify"
	"github.com/cdtdelta/spyconsole/internal/robot"
	"github.com/cdtdelta/spyconsole/internal/timeline"
	"github.com/cdtdelta/spyconsole/internal/tracing"
)

// Observer records per-request and websocket metrics.
type Observer interface {
	Request(route string, code int)
	WSClientDelta(n int)
}

// Server routes HTTP requests to a dashboard.Service.
type Server struct {
	svc      *dashboard.Service
	bus      *notify.Bus
	obs      Observer
	gatherer prometheus.Gatherer
	log      *slog.Logger
	wsBuffer int
	upgrader websocket.Upgrader
	mux      *http.ServeMux
}

// Option configures a Server.
type Option func(*Server)

// WithObserver records request metrics on o.
func WithObserver(o Observer) Option {
	return func(s *Server) { s.obs = o }
}

// WithGatherer serves g on /metrics. Without it /metrics is not routed.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithWSBuffer sets how many notifications a websocket client may lag
// before it starts missing them.
func WithWSBuffer(n int) Option {
	return func(s *Server) { s.wsBuffer = n }
}

// New builds the router. bus is the source of websocket notifications.
func New(svc *dashboard.Service, bus *notify.Bus, opts ...Option) *Server {
	s := &Server{
		svc:      svc,
		bus:      bus,
		log:      slog.Default(),
		wsBuffer: 16,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		mux: http.NewServeMux(),
	}
	for _, o := range opts {
		o(s)
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.handle("GET /api/console", s.getConsole)
	s.handle("GET /api/export.csv", s.exportCSV)
	s.handle("GET /api/timeline/markers", s.getMarkers)
	s.handle("POST /api/timeline/position", s.postPosition)
	s.handle("POST /api/timeline/gesture", s.postGesture)
	s.handle("GET /api/timeframes", s.listTimeframes)
	s.handle("POST /api/timeframes", s.markTimeframe)
	s.handle("DELETE /api/timeframes/{id}", s.deleteTimeframe)
	s.handle("GET /api/histogram", s.getHistogram)
	s.handle("GET /api/archive", s.searchArchive)
	s.handle("GET /api/archive/summary", s.getArchiveSummary)
	s.handle("POST /api/archive/query", s.queryArchive)
	s.handle("POST /api/archive/reindex", s.reindexArchive)
	s.handle("GET /api/filters", s.listFilters)
	s.handle("POST /api/filters", s.saveFilter)
	s.handle("DELETE /api/filters/{name}", s.deleteFilter)
	s.handle("POST /api/events", s.addEvent)
	s.handle("GET /api/mode", s.getMode)
	s.handle("PUT /api/mode", s.putMode)
	s.handle("POST /api/robot/move", s.move)
	s.handle("POST /api/robot/speed", s.setSpeed)
	s.handle("GET /api/robot/distance", s.getDistance)
	s.handle("GET /api/robot/status", s.getRobotState)
	s.handle("POST /api/robot/sound", s.playSound)
	s.handle("POST /api/robot/dead", s.playDead)
	s.handle("GET /healthz", s.healthz)
	s.mux.HandleFunc("GET /ws", s.serveWS)
	if s.gatherer != nil {
		s.mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
}

// handle registers h with request logging and metrics.
func (s *Server) handle(pattern string, h http.HandlerFunc) {
	s.mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(rec, r)
		if s.obs != nil {
			s.obs.Request(pattern, rec.status)
		}
		s.log.Debug("request", "method", r.Method, "path", r.URL.Path, "status", rec.status, "duration", time.Since(start))
	})
}

// Handler returns the traced root handler.
func (s *Server) Handler() http.Handler {
	return tracing.Handler(s.mux, "spyconsole")
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	s.log.Info("http server stopped")
	return nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error string `json:"error"`
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	var apiErr *robot.APIError
	switch {
	case errors.Is(err, dashboard.ErrReviewMode):
		return http.StatusConflict
	case errors.Is(err, dashboard.ErrNoArchive):
		return http.StatusServiceUnavailable
	case errors.Is(err, database.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, dashboard.ErrEmptyDescription),
		errors.Is(err, dashboard.ErrInvalidSpeed),
		errors.Is(err, dashboard.ErrInvalidMode),
		errors.Is(err, dashboard.ErrInvalidGesture),
		errors.Is(err, dashboard.ErrInvalidField),
		errors.Is(err, dashboard.ErrInvalidFilter),
		errors.Is(err, robot.ErrInvalidAction),
		errors.Is(err, console.ErrUnknownSelector),
		errors.Is(err, timeline.ErrInvalidDuration),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.As(err, &apiErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

var errBadRequest = errors.New("bad request")

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= 500 {
		s.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: decoding body: %v", errBadRequest, err)
	}
	return nil
}
