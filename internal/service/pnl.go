package service

import (
	"context"
	"fmt"
	"time"

	"PolyLedger/internal/cache"
	"PolyLedger/internal/event"
	"PolyLedger/internal/fetch"
	"PolyLedger/internal/observability"
	"PolyLedger/internal/period"
	"PolyLedger/internal/persistence"
	"PolyLedger/internal/replay"
	"PolyLedger/internal/slippage"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// EventStore is the slice of persistence the service needs; satisfied
// by *persistence.EventStore and by test fakes.
type EventStore interface {
	SaveEvents(ctx context.Context, events []event.Event) error
	LoadEvents(ctx context.Context, wallet string) ([]event.Event, error)
	Fingerprint(ctx context.Context, wallet string) (cache.Fingerprint, error)
	LatestTimestamp(ctx context.Context, wallet string) (int64, error)
}

// OracleLoader materializes resolution state for a set of markets.
type OracleLoader interface {
	LoadOracle(ctx context.Context, marketIDs []string) (replay.StaticOracle, error)
}

var _ EventStore = (*persistence.EventStore)(nil)
var _ OracleLoader = (*persistence.ResolutionStore)(nil)

// Config tunes the PnL service. Zero values select defaults.
type Config struct {
	TTL        time.Duration
	TopMarkets int
	Replay     replay.Config
}

// PnL answers period PnL queries through the incremental cache and
// runs the fetch-replay-aggregate refresh pipeline.
type PnL struct {
	events  EventStore
	oracles OracleLoader
	fetcher fetch.Fetcher
	store   cache.Store
	metrics *observability.Metrics
	log     zerolog.Logger
	cfg     Config

	now func() time.Time
}

func New(events EventStore, oracles OracleLoader, fetcher fetch.Fetcher, store cache.Store, metrics *observability.Metrics, log zerolog.Logger, cfg Config) *PnL {
	if cfg.TTL <= 0 {
		cfg.TTL = cache.DefaultTTL
	}
	if cfg.TopMarkets <= 0 {
		cfg.TopMarkets = 10
	}
	return &PnL{
		events:  events,
		oracles: oracles,
		fetcher: fetcher,
		store:   store,
		metrics: metrics,
		log:     log,
		cfg:     cfg,
		now:     time.Now,
	}
}

// GetPeriodResult serves one (wallet, period) under the three-way
// freshness policy. A fresh or stale entry is returned as stored; only
// a wallet with no cached entry at all pays the refresh cost inline.
func (s *PnL) GetPeriodResult(ctx context.Context, wallet string, p period.Period) (period.Result, cache.Freshness, error) {
	current, err := s.events.Fingerprint(ctx, wallet)
	if err != nil {
		// A broken fingerprint must not take down reads. Serve
		// whatever is cached as stale.
		s.log.Warn().Err(err).Str("wallet", wallet).Msg("fingerprint failed, degrading to stale-serve")
		if entry, gerr := s.store.Get(ctx, wallet, p); gerr == nil && entry != nil {
			s.observeRead(cache.Stale)
			return entry.Result, cache.Stale, nil
		}
		return period.Result{}, cache.Missing, fmt.Errorf("fingerprint %s: %w", wallet, err)
	}

	entry, err := s.store.Get(ctx, wallet, p)
	if err != nil {
		s.log.Warn().Err(err).Str("wallet", wallet).Msg("cache read failed, treating as miss")
		entry = nil
	}

	switch freshness := cache.Evaluate(entry, current, s.now(), s.cfg.TTL); freshness {
	case cache.Fresh, cache.Stale:
		s.observeRead(freshness)
		return entry.Result, freshness, nil
	default:
		// Cold start: no entry for this wallet yet.
		s.observeRead(cache.Missing)
		results, err := s.Refresh(ctx, wallet)
		if err != nil {
			return period.Result{}, cache.Missing, err
		}
		return results[p], cache.Fresh, nil
	}
}

// Refresh runs the full pipeline for one wallet: incremental fetch,
// persist, all-time replay, aggregation of every standard period, and
// one atomic cache write.
func (s *PnL) Refresh(ctx context.Context, wallet string) (map[period.Period]period.Result, error) {
	runID := uuid.NewString()
	started := s.now()
	log := s.log.With().Str("run_id", runID).Str("wallet", wallet).Logger()

	status := "error"
	defer func() { s.observeRefresh(status) }()

	since, err := s.events.LatestTimestamp(ctx, wallet)
	if err != nil {
		return nil, fmt.Errorf("latest timestamp: %w", err)
	}
	fetched, err := s.fetcher.FetchEvents(ctx, wallet, since, 0)
	if err != nil {
		return nil, fmt.Errorf("fetch events: %w", err)
	}
	s.observeFetch(fetched)
	if fetched.Partial() {
		log.Warn().Interface("categories", fetched.FailedCategories()).Msg("partial fetch")
	}
	if err := s.events.SaveEvents(ctx, fetched.Events); err != nil {
		return nil, fmt.Errorf("save events: %w", err)
	}

	events, err := s.events.LoadEvents(ctx, wallet)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	oracle, err := s.oracles.LoadOracle(ctx, marketIDs(events))
	if err != nil {
		log.Warn().Err(err).Msg("oracle unavailable, replaying unresolved")
		oracle = nil
	}

	replayStart := s.now()
	res := replay.Replay(events, oracle, s.cfg.Replay)
	res.PartialData = fetched.Partial()
	s.observeReplay(res, len(events), s.now().Sub(replayStart))

	// Fingerprint after the save so the stored entries describe the
	// event set that was actually replayed.
	fp, err := s.events.Fingerprint(ctx, wallet)
	if err != nil {
		return nil, fmt.Errorf("fingerprint: %w", err)
	}

	now := s.now()
	results := make(map[period.Period]period.Result, len(period.Standard()))
	batch := make([]*cache.Entry, 0, len(period.Standard()))
	for _, p := range period.Standard() {
		result := period.Aggregate(wallet, res, events, p, now, period.Options{TopMarkets: s.cfg.TopMarkets})
		results[p] = result
		batch = append(batch, &cache.Entry{
			Wallet:         wallet,
			Period:         p,
			Result:         result,
			Fingerprint:    fp,
			ComputedAtUnix: now.Unix(),
		})
	}
	if err := s.store.PutAll(ctx, batch); err != nil {
		if s.metrics != nil {
			s.metrics.CacheWriteErrs.Inc()
		}
		return nil, fmt.Errorf("cache write: %w", err)
	}
	status = "ok"
	if s.metrics != nil {
		s.metrics.CacheWrites.Inc()
		s.metrics.RefreshDuration.Observe(s.now().Sub(started).Seconds())
	}
	log.Info().
		Int("events", len(events)).
		Int("warnings", len(res.Warnings)).
		Bool("partial", res.PartialData).
		Dur("took", s.now().Sub(started)).
		Msg("wallet refreshed")
	return results, nil
}

// GetRangeResult computes an explicit day-range window on demand.
// Custom ranges are not cached; they reuse the stored event history.
func (s *PnL) GetRangeResult(ctx context.Context, wallet string, rng period.Range) (period.Result, error) {
	events, err := s.events.LoadEvents(ctx, wallet)
	if err != nil {
		return period.Result{}, fmt.Errorf("load events: %w", err)
	}
	oracle, err := s.oracles.LoadOracle(ctx, marketIDs(events))
	if err != nil {
		oracle = nil
	}
	replayStart := s.now()
	res := replay.Replay(events, oracle, s.cfg.Replay)
	s.observeReplay(res, len(events), s.now().Sub(replayStart))
	return period.AggregateRange(wallet, res, events, period.All, rng, s.now(), period.Options{TopMarkets: s.cfg.TopMarkets}), nil
}

// SimulateSlippage runs the copy-trading what-if against the wallet's
// all-time cash-flow decomposition, reusing the cache when possible.
func (s *PnL) SimulateSlippage(ctx context.Context, wallet string, spec slippage.Spec) (slippage.Analysis, error) {
	result, _, err := s.GetPeriodResult(ctx, wallet, period.All)
	if err != nil {
		return slippage.Analysis{}, err
	}
	return slippage.Simulate(result.CashFlow, spec), nil
}

func (s *PnL) observeRead(f cache.Freshness) {
	if s.metrics != nil {
		s.metrics.CacheReads.WithLabelValues(f.String()).Inc()
	}
}

func (s *PnL) observeRefresh(status string) {
	if s.metrics != nil {
		s.metrics.RefreshRequests.WithLabelValues(status).Inc()
	}
}

func (s *PnL) observeFetch(res *fetch.Result) {
	if s.metrics == nil {
		return
	}
	status := "ok"
	if res.Partial() {
		status = "partial"
	}
	s.metrics.FetchRequests.WithLabelValues(status).Inc()
	for _, c := range res.FailedCategories() {
		s.metrics.FetchCategoryFailures.WithLabelValues(string(c)).Inc()
	}
}

func (s *PnL) observeReplay(res *replay.Result, eventCount int, took time.Duration) {
	if s.metrics == nil {
		return
	}
	s.metrics.ReplayRuns.WithLabelValues("refresh").Inc()
	s.metrics.ReplayDuration.Observe(took.Seconds())
	s.metrics.ReplayEvents.Observe(float64(eventCount))
	s.metrics.ReplayMalformed.Add(float64(res.MalformedCount))
	for _, w := range res.Warnings {
		s.metrics.ReplayWarnings.WithLabelValues(w.Kind.String()).Inc()
	}
}

func marketIDs(events []event.Event) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, ev := range events {
		if ev.MarketID == "" {
			continue
		}
		if _, ok := seen[ev.MarketID]; ok {
			continue
		}
		seen[ev.MarketID] = struct{}{}
		out = append(out, ev.MarketID)
	}
	return out
}
