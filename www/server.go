package www

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/angas/dkspot/config"
	"github.com/angas/dkspot/metrics"
	"github.com/klauspost/compress/gzhttp"
)

const welcomeText = "Welcome to the Energy Prices App! Visit /graph to see the graph."

type Server struct {
	logger     *slog.Logger
	config     config.AppConfigApi
	chartPath  string
	liveReload bool
	hub        *Hub
	handler    http.Handler
}

// Store is the journal behind /runs and /logs.
type Store interface {
	RunLister
	LogLister
}

// NewServer wires the routes. store may be nil when no database is used.
func NewServer(cnfg config.AppConfigApi, chartPath string, store Store, m *metrics.Metrics, liveReload bool) *Server {
	logger := slog.Default().With("module", "www")

	s := &Server{
		logger:     logger,
		config:     cnfg,
		chartPath:  chartPath,
		liveReload: liveReload,
		hub:        NewHub(logger.With(slog.String("component", "hub"))),
	}

	logReqMW := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s.logger.Debug("http request",
				slog.String("method", r.Method),
				slog.String("url", r.URL.String()),
				slog.String("remoteAddr", r.RemoteAddr))
			next.ServeHTTP(w, r)
		})
	}

	compress := func(next http.Handler) http.Handler {
		if !cnfg.GetCompress() {
			return next
		}
		return gzhttp.GzipHandler(next)
	}

	mux := http.NewServeMux()

	mux.Handle("GET /{$}", compress(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprint(w, welcomeText)
	})))

	mux.Handle("GET /graph", compress(NewGraphHandler(
		logger.With(slog.String("handler", "graph")),
		chartPath,
		cnfg.GetCacheMaxAge(),
		m)))

	if store != nil {
		mux.Handle("GET /runs", compress(NewRunsHandler(
			logger.With(slog.String("handler", "runs")),
			store)))

		mux.Handle("GET /logs", compress(NewLogHandler(
			logger.With(slog.String("handler", "log")),
			store)))
	}

	mux.Handle("GET /metrics", m.Handler())

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprint(w, "ok")
	})

	if liveReload {
		mux.HandleFunc("GET /ws", func(w http.ResponseWriter, r *http.Request) {
			name := r.Header.Get("User-Agent")
			client, err := NewClient(s.hub, w, r, name)
			if err != nil {
				s.logger.Error("new websocket client failed", slog.Any("error", err))
				return
			}
			if !s.hub.register(client) {
				client.conn.Close()
				return
			}
			go client.WritePump()
			go client.ReadPump()
		})
	}

	s.handler = logReqMW(mux)
	return s
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start runs the background parts of the server: the websocket hub and
// the chart watcher feeding it.
func (s *Server) Start(ctx context.Context) error {
	go s.hub.Run(ctx)
	if !s.liveReload {
		return nil
	}
	return s.watchChart(ctx)
}

// Run serves until ctx is cancelled and then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		// The chart is still served, pages just won't reload themselves
		s.logger.Warn("live reload disabled", slog.Any("error", err))
	}

	s.logger.Info("starting server...", slog.String("addr", s.config.ListenAddr()))
	srv := &http.Server{
		Addr:              s.config.ListenAddr(),
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	srvErrors := make(chan error, 1)
	go func() {
		srvErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-srvErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)

	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second*5)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	}
}
