package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"PolyLedger/internal/cache"
	"PolyLedger/internal/observability"
	"PolyLedger/internal/period"
	"PolyLedger/internal/service"
	"PolyLedger/internal/slippage"
)

// Server is the thin JSON read surface over the PnL service. It owns
// no business logic; every handler parses, delegates, encodes.
type Server struct {
	pnl  *service.PnL
	log  zerolog.Logger
	http *http.Server
}

func New(addr string, pnl *service.PnL, health *observability.HealthChecker, log zerolog.Logger) *Server {
	s := &Server{pnl: pnl, log: log}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", health.LivenessHandler)
	r.Get("/readyz", health.ReadinessHandler)
	r.Get("/v1/wallets/{wallet}/pnl", s.handlePnL)
	r.Get("/v1/wallets/{wallet}/slippage", s.handleSlippage)
	r.Post("/v1/wallets/{wallet}/refresh", s.handleRefresh)

	s.http = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start serves until the context is canceled.
func (s *Server) Start(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.http.Shutdown(shutCtx)
	}()
	s.log.Info().Str("addr", s.http.Addr).Msg("http server listening")
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

func (s *Server) handlePnL(w http.ResponseWriter, r *http.Request) {
	wallet := chi.URLParam(r, "wallet")

	// Explicit ranges bypass the cache; named periods go through it.
	if from, to := r.URL.Query().Get("from"), r.URL.Query().Get("to"); from != "" || to != "" {
		rng, err := parseRange(from, to)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		result, err := s.pnl.GetRangeResult(r.Context(), wallet, rng)
		if err != nil {
			s.log.Error().Err(err).Str("wallet", wallet).Msg("range query failed")
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, pnlResponse{Result: result, Freshness: cache.Fresh.String()})
		return
	}

	p, err := period.Parse(r.URL.Query().Get("period"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	result, freshness, err := s.pnl.GetPeriodResult(r.Context(), wallet, p)
	if err != nil {
		s.log.Error().Err(err).Str("wallet", wallet).Msg("pnl query failed")
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, pnlResponse{Result: result, Freshness: freshness.String()})
}

func (s *Server) handleSlippage(w http.ResponseWriter, r *http.Request) {
	wallet := chi.URLParam(r, "wallet")

	spec := slippage.DefaultPercentages()
	if r.URL.Query().Get("mode") == "points" {
		spec = slippage.DefaultPoints()
	}
	if raw := r.URL.Query().Get("levels"); raw != "" {
		levels, err := parseLevels(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		spec.Levels = levels
	}

	analysis, err := s.pnl.SimulateSlippage(r.Context(), wallet, spec)
	if err != nil {
		s.log.Error().Err(err).Str("wallet", wallet).Msg("slippage simulation failed")
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	wallet := chi.URLParam(r, "wallet")
	results, err := s.pnl.Refresh(r.Context(), wallet)
	if err != nil {
		s.log.Error().Err(err).Str("wallet", wallet).Msg("refresh failed")
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"wallet":  wallet,
		"periods": len(results),
	})
}

type pnlResponse struct {
	Result    period.Result `json:"result"`
	Freshness string        `json:"freshness"`
}

func parseRange(from, to string) (period.Range, error) {
	var rng period.Range
	if from != "" {
		t, err := time.Parse("2006-01-02", from)
		if err != nil {
			return rng, fmt.Errorf("bad from date %q", from)
		}
		rng.Start = t
	}
	rng.End = time.Now().UTC()
	if to != "" {
		t, err := time.Parse("2006-01-02", to)
		if err != nil {
			return rng, fmt.Errorf("bad to date %q", to)
		}
		rng.End = t.AddDate(0, 0, 1)
	}
	return rng, nil
}

func parseLevels(raw string) ([]decimal.Decimal, error) {
	parts := strings.Split(raw, ",")
	levels := make([]decimal.Decimal, 0, len(parts))
	for _, p := range parts {
		d, err := decimal.NewFromString(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("bad slippage level %q", p)
		}
		levels = append(levels, d)
	}
	return levels, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
