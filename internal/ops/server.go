package ops

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"uptend/internal/config"
	"uptend/internal/connectivity"
	"uptend/internal/domain"
	"uptend/internal/export"
	"uptend/internal/queue"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Server exposes a local HTTP surface for inspecting and poking the sync
// agent: health, metrics, queue state, manual sync, dead-letter export.
type Server struct {
	cfg        config.OpsConfig
	queue      *queue.OfflineQueue
	monitor    *connectivity.Monitor
	deadLetter domain.DeadLetterSink
	exportPath string
	logger     zerolog.Logger
	server     *http.Server
}

func NewServer(cfg config.Config, q *queue.OfflineQueue, monitor *connectivity.Monitor, deadLetter domain.DeadLetterSink, logger *zerolog.Logger) *Server {
	srv := &Server{
		cfg:        cfg.Ops,
		queue:      q,
		monitor:    monitor,
		deadLetter: deadLetter,
		exportPath: cfg.Exports.Path,
		logger:     logger.With().Str("component", "ops-server").Logger(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", srv.handleHealth)
	mux.HandleFunc("/api/v1/queue", srv.handleQueue)
	mux.HandleFunc("/api/v1/queue/sync", srv.handleSync)
	mux.HandleFunc("/api/v1/deadletter", srv.handleDeadLetter)
	mux.HandleFunc("/api/v1/deadletter/export", srv.handleExport)
	if cfg.Monitoring.PrometheusEnabled {
		mux.Handle("/metrics", promhttp.Handler())
	}

	srv.server = &http.Server{
		Addr:              fmt.Sprintf("127.0.0.1:%d", cfg.Ops.Port),
		Handler:           srv.loggingMiddleware(mux),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	return srv
}

func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("Ops server listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Handler returns the configured handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"online": s.monitor.Online(),
	})
}

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		entries := s.queue.Entries(r.Context())
		writeJSON(w, http.StatusOK, map[string]any{
			"size":    len(entries),
			"entries": entries,
		})
	case http.MethodDelete:
		s.queue.Clear(r.Context())
		writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	res := s.queue.Sync(r.Context())
	writeJSON(w, http.StatusOK, map[string]int{
		"synced": res.Synced,
		"failed": res.Failed,
	})
}

func (s *Server) handleDeadLetter(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.deadLetter == nil {
		writeError(w, http.StatusNotFound, "dead-letter capture is not configured")
		return
	}

	actions, err := s.deadLetter.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read dead letters")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"size":    len(actions),
		"entries": actions,
	})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.deadLetter == nil {
		writeError(w, http.StatusNotFound, "dead-letter capture is not configured")
		return
	}

	actions, err := s.deadLetter.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read dead letters")
		return
	}

	path, err := export.DeadLetterReport(s.exportPath, actions)
	if err != nil {
		s.logger.Error().Err(err).Msg("Dead-letter export failed")
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"path":  path,
		"count": len(actions),
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("Ops request")
	})
}
