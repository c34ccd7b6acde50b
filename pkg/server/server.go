// Package server serves the dashboard queries as a local JSON HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/stockbuzz/stockbuzz/pkg/budget"
	"github.com/stockbuzz/stockbuzz/pkg/market"
	"github.com/stockbuzz/stockbuzz/pkg/refresh"
	"github.com/stockbuzz/stockbuzz/pkg/retry"
	"github.com/stockbuzz/stockbuzz/pkg/store"
)

const (
	maxJSONBody  = 1 << 20
	maxImageBody = 10 << 20
)

// Deps are the collaborators of a Server. Market is required. Without a
// Store the watchlist parameter is rejected; without a Refresher the status
// board is empty and manual refresh is unavailable.
type Deps struct {
	Market    *market.Service
	Store     *store.Store
	Refresher *refresh.Refresher
	Logger    *zap.Logger
}

// Server is the local HTTP API.
type Server struct {
	addr      string
	market    *market.Service
	store     *store.Store
	refresher *refresh.Refresher
	logger    *zap.Logger
	mux       *http.ServeMux
}

// New creates a Server listening on addr once started.
func New(addr string, d Deps) *Server {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		addr:      addr,
		market:    d.Market,
		store:     d.Store,
		refresher: d.Refresher,
		logger:    logger.Named("server"),
		mux:       http.NewServeMux(),
	}

	s.mux.HandleFunc("GET /api/scan/{kind}", s.handleScan)
	s.mux.HandleFunc("GET /api/news", s.handleNews)
	s.mux.HandleFunc("GET /api/indices", s.handleIndices)
	s.mux.HandleFunc("GET /api/calendar", s.handleCalendar)
	s.mux.HandleFunc("GET /api/gainers", s.handleGainers)
	s.mux.HandleFunc("GET /api/summary", s.handleSummary)
	s.mux.HandleFunc("GET /api/quotes", s.handleQuotes)
	s.mux.HandleFunc("GET /api/analysis/{symbol}", s.handleAnalysis)
	s.mux.HandleFunc("POST /api/chat", s.handleChat)
	s.mux.HandleFunc("POST /api/screenshot", s.handleScreenshot)
	s.mux.HandleFunc("GET /api/cache/stats", s.handleCacheStats)
	s.mux.HandleFunc("POST /api/cache/invalidate", s.handleCacheInvalidate)
	s.mux.HandleFunc("GET /api/status", s.handleStatus)
	s.mux.HandleFunc("POST /api/refresh", s.handleRefresh)
	s.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, http.StatusNotFound, "not found")
	})
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	s.mux.ServeHTTP(rec, r)
	s.logger.Debug("request",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", rec.status),
		zap.Duration("elapsed", time.Since(start)),
	)
}

// ListenAndServe starts the server and shuts it down gracefully when ctx is
// cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("stockbuzz API listening", zap.String("addr", s.addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	case err := <-errCh:
		return err
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"error": message})
}

// writeQueryError maps a query failure onto a status code.
func (s *Server) writeQueryError(w http.ResponseWriter, err error) {
	code := http.StatusBadGateway
	switch {
	case errors.Is(err, retry.ErrQuotaExceeded), errors.Is(err, budget.ErrBudgetExceeded):
		code = http.StatusTooManyRequests
	case errors.Is(err, market.ErrUnknownScan):
		code = http.StatusNotFound
	case errors.Is(err, store.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, context.Canceled):
		return
	}
	s.logger.Warn("query failed", zap.Int("status", code), zap.Error(err))
	writeJSONError(w, code, err.Error())
}
