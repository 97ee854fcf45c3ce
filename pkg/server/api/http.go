// Package api provides the HTTP quote API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nimblefi/quotefuse/pkg/engine/aggregator"
	"github.com/nimblefi/quotefuse/pkg/engine/feeds"
	"github.com/nimblefi/quotefuse/pkg/engine/registry"
	"github.com/nimblefi/quotefuse/pkg/logging"
	"github.com/nimblefi/quotefuse/pkg/metrics"
)

// Server represents the HTTP API server.
type Server struct {
	addr     string
	registry *registry.Registry
	server   *http.Server
	logger   *logging.Logger
}

// NewServer creates a new HTTP API server.
func NewServer(addr string, reg *registry.Registry, logger *logging.Logger) *Server {
	return &Server{
		addr:     addr,
		registry: reg,
		logger:   logger,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/v1/quote", s.handleQuote)
	mux.HandleFunc("/v1/pairs", s.handlePairs)

	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.logger.Info("Starting HTTP server", "addr", s.addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return nil
}

// Stop gracefully stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		s.logger.Info("Stopping HTTP server")
		return s.server.Shutdown(ctx)
	}
	return nil
}

// handleHealth handles the /health endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	start := time.Now()
	defer func() {
		metrics.RecordHTTPRequest("/health", "200", time.Since(start))
	}()

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// quoteResponse is the /v1/quote payload.
type quoteResponse struct {
	Pair      string    `json:"pair"`
	Method    string    `json:"method"`
	AmountIn  string    `json:"amount_in"`
	AmountOut string    `json:"amount_out"`
	Timestamp time.Time `json:"timestamp"`
}

// handleQuote handles the /v1/quote endpoint.
// Query parameters: base, quote, amount, method (average|median, default average).
func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "200"
	defer func() {
		metrics.RecordHTTPRequest("/v1/quote", status, time.Since(start))
	}()

	query := r.URL.Query()
	pair := feeds.NewPair(query.Get("base"), query.Get("quote"))
	if pair.IsZero() {
		status = "400"
		http.Error(w, "base and quote are required", http.StatusBadRequest)
		return
	}

	amount, err := decimal.NewFromString(query.Get("amount"))
	if err != nil || amount.IsNegative() {
		status = "400"
		http.Error(w, "amount must be a non-negative number", http.StatusBadRequest)
		return
	}

	method := query.Get("method")
	if method == "" {
		method = "average"
	}
	if method != "average" && method != "median" {
		status = "400"
		http.Error(w, "method must be 'average' or 'median'", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	amountOut, err := s.registry.Quote(ctx, pair, amount, method == "median")
	if err != nil {
		switch {
		case errors.Is(err, registry.ErrNotFound):
			status = "404"
			http.Error(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, aggregator.ErrNoValidQuotes), errors.Is(err, aggregator.ErrDeviationExceeded):
			status = "503"
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
		default:
			status = "500"
			s.logger.Error("Quote failed", "pair", pair.String(), "error", err.Error())
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
		return
	}

	s.sendJSON(w, quoteResponse{
		Pair:      pair.String(),
		Method:    method,
		AmountIn:  amount.String(),
		AmountOut: amountOut.String(),
		Timestamp: time.Now().UTC(),
	})
}

// pairInfo is one entry of the /v1/pairs payload.
type pairInfo struct {
	Pair            string `json:"pair"`
	Handle          string `json:"handle"`
	LogicVersion    string `json:"logic_version"`
	MaxDeviationBps uint32 `json:"max_deviation_bps"`
	Oracles         int    `json:"oracles"`
}

// handlePairs handles the /v1/pairs endpoint.
func (s *Server) handlePairs(w http.ResponseWriter, _ *http.Request) {
	start := time.Now()
	defer func() {
		metrics.RecordHTTPRequest("/v1/pairs", "200", time.Since(start))
	}()

	pairs := s.registry.Pairs()
	infos := make([]pairInfo, 0, len(pairs))
	for _, pair := range pairs {
		agg, err := s.registry.GetAggregator(pair)
		if err != nil {
			continue // removed between listing and lookup
		}
		handle, _ := s.registry.Handle(pair)
		infos = append(infos, pairInfo{
			Pair:            pair.String(),
			Handle:          handle,
			LogicVersion:    agg.LogicVersion(),
			MaxDeviationBps: agg.MaxDeviationBps(),
			Oracles:         len(agg.Oracles()),
		})
	}

	s.sendJSON(w, infos)
}

// sendJSON writes a JSON response.
func (s *Server) sendJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("Failed to encode response", "error", err.Error())
	}
}
