package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"TradeLens/internal/domain/models"
	drepo "TradeLens/internal/domain/repository"
	"TradeLens/internal/domain/service"
	"TradeLens/internal/service/cache"
	"TradeLens/internal/services/analytics"
	"TradeLens/internal/services/indicators"
	"TradeLens/internal/services/scoring"
	"TradeLens/pkg/logger"
)

// Tier names, as recorded in metrics and stats.
const (
	TierRemote    = "remote"
	TierEphemeral = "ephemeral"
	TierLocal     = "local"
)

// Tier outcomes.
const (
	outcomeOK          = "ok"
	outcomeNoData      = "no_data"
	outcomeError       = "error"
	outcomeUnavailable = "unavailable"
	outcomeDisabled    = "disabled"
)

var (
	ErrTierUnavailable = errors.New("tier unavailable")
	ErrLocalDisabled   = errors.New("local fallback disabled")
)

type OrchestratorConfig struct {
	RemoteTimeout    time.Duration
	EphemeralTimeout time.Duration
	MTFTimeout       time.Duration
	CandleWindow     int
	LocalFallback    bool
	AnalysisTTL      time.Duration
	EnrichmentTTL    time.Duration
}

// Orchestrator answers a MarketContext with the fastest tier that works:
// cache, remote context, ephemeral (raw candles), then local computation.
// It never returns an error; when every tier fails the result carries the
// error source.
type Orchestrator struct {
	cfg       OrchestratorConfig
	remote    service.ContextAnalyzer
	ephemeral service.EphemeralAnalyzer
	candles   drepo.CandleSource
	enricher  service.EnrichmentProvider
	metrics   drepo.Metrics
	log       *logger.Logger

	analysis    *cache.TTLCache[models.AnalysisResult]
	enrichments *cache.TTLCache[models.Enrichment]

	statsMu sync.Mutex
	tiers   map[string]*tierAcc
	hits    int64
	misses  int64
	errs    int64
}

type tierAcc struct {
	attempts, successes, failures int64
	totalMS                       float64
}

// attempt carries state shared by the tiers of one analysis.
type attempt struct {
	mc       models.MarketContext
	candles  []models.Candle
	fetched  bool
	fetchErr error
}

type tierFunc func(ctx context.Context, a *attempt) (models.AnalysisResult, error)

func NewOrchestrator(
	cfg OrchestratorConfig,
	remote service.ContextAnalyzer,
	ephemeral service.EphemeralAnalyzer,
	candles drepo.CandleSource,
	enricher service.EnrichmentProvider,
	metrics drepo.Metrics,
	log *logger.Logger,
	cacheOpts ...cache.Option[models.AnalysisResult],
) *Orchestrator {
	if metrics == nil {
		metrics = drepo.NopMetrics{}
	}
	if log == nil {
		log = logger.Nop()
	}
	if cfg.CandleWindow <= 0 {
		cfg.CandleWindow = 300
	}
	return &Orchestrator{
		cfg:         cfg,
		remote:      remote,
		ephemeral:   ephemeral,
		candles:     candles,
		enricher:    enricher,
		metrics:     metrics,
		log:         log,
		analysis:    cache.NewTTLCache[models.AnalysisResult](cfg.AnalysisTTL, cacheOpts...),
		enrichments: cache.NewTTLCache[models.Enrichment](cfg.EnrichmentTTL),
		tiers:       make(map[string]*tierAcc),
	}
}

// Analyze runs the tier chain for mc.
func (o *Orchestrator) Analyze(ctx context.Context, mc models.MarketContext) models.AnalysisResult {
	key := mc.AnalysisKey()
	if r, ok := o.analysis.Get(key); ok {
		o.countCache(true)
		out := r.WithContext(mc)
		out.Cached = true
		return out
	}
	o.countCache(false)

	a := &attempt{mc: mc}
	chain := []struct {
		name string
		run  tierFunc
	}{
		{TierRemote, o.remoteTier},
		{TierEphemeral, o.ephemeralTier},
		{TierLocal, o.localTier},
	}

	var failures []string
	for _, t := range chain {
		start := time.Now()
		r, err := t.run(ctx, a)
		elapsed := time.Since(start)
		outcome := classify(err)
		o.record(t.name, outcome, elapsed)

		if err == nil {
			r = scoring.Apply(r, o.enrichmentFor(ctx, mc.Symbol)).WithContext(mc)
			o.analysis.Set(key, r)
			o.log.Debug("analysis tier answered",
				logger.String("tier", t.name),
				logger.String("symbol", mc.Symbol),
				logger.String("timeframe", mc.Timeframe),
				logger.Int("score", r.Score),
				logger.Duration("latency", elapsed),
			)
			return r
		}
		failures = append(failures, fmt.Sprintf("%s: %v", t.name, err))
		if outcome != outcomeNoData {
			o.log.Warn("analysis tier failed",
				logger.String("tier", t.name),
				logger.String("symbol", mc.Symbol),
				logger.Error(err),
			)
		}
		if errors.Is(err, ErrLocalDisabled) {
			break
		}
	}

	o.countError()
	o.metrics.RecordError("analysis_exhausted")
	r := models.ErrorResult(mc, "all analysis tiers failed: "+strings.Join(failures, "; "))
	return scoring.Apply(r, nil)
}

func (o *Orchestrator) remoteTier(ctx context.Context, a *attempt) (models.AnalysisResult, error) {
	if o.remote == nil {
		return models.AnalysisResult{}, ErrTierUnavailable
	}
	tctx, cancel := withTimeout(ctx, o.cfg.RemoteTimeout)
	defer cancel()
	return o.remote.AnalyzeContext(tctx, a.mc.Symbol, a.mc.Timeframe)
}

func (o *Orchestrator) ephemeralTier(ctx context.Context, a *attempt) (models.AnalysisResult, error) {
	if o.ephemeral == nil {
		return models.AnalysisResult{}, ErrTierUnavailable
	}
	candles, err := o.fetchCandles(ctx, a)
	if err != nil {
		return models.AnalysisResult{}, err
	}
	tctx, cancel := withTimeout(ctx, o.cfg.EphemeralTimeout)
	defer cancel()
	return o.ephemeral.AnalyzeEphemeral(tctx, a.mc.Symbol, a.mc.Timeframe, candles)
}

func (o *Orchestrator) localTier(ctx context.Context, a *attempt) (models.AnalysisResult, error) {
	if !o.cfg.LocalFallback {
		return models.AnalysisResult{}, ErrLocalDisabled
	}
	start := time.Now()
	candles, err := o.fetchCandles(ctx, a)
	if err != nil {
		return models.AnalysisResult{}, err
	}
	r := indicators.Analyze(a.mc.Symbol, a.mc.Timeframe, candles)
	r.LatencyMS = time.Since(start).Milliseconds()
	return r, nil
}

// fetchCandles loads the candle window once per attempt; the local tier
// reuses what the ephemeral tier fetched.
func (o *Orchestrator) fetchCandles(ctx context.Context, a *attempt) ([]models.Candle, error) {
	if a.fetched {
		return a.candles, a.fetchErr
	}
	a.fetched = true
	if o.candles == nil {
		a.fetchErr = fmt.Errorf("candles: %w", ErrTierUnavailable)
		return nil, a.fetchErr
	}
	tf, ok := drepo.ParseTimeframe(a.mc.Timeframe)
	if !ok {
		a.fetchErr = fmt.Errorf("candles: invalid timeframe %q", a.mc.Timeframe)
		return nil, a.fetchErr
	}
	a.candles, a.fetchErr = o.candles.LatestCandles(ctx, a.mc.Symbol, tf, o.cfg.CandleWindow)
	if a.fetchErr != nil {
		a.fetchErr = fmt.Errorf("candles: %w", a.fetchErr)
	}
	return a.candles, a.fetchErr
}

// enrichmentFor is optional: any failure means no enrichment.
func (o *Orchestrator) enrichmentFor(ctx context.Context, symbol string) *models.Enrichment {
	if e, ok := o.enrichments.Get(symbol); ok {
		o.metrics.RecordCache("enrichment", true)
		return &e
	}
	o.metrics.RecordCache("enrichment", false)
	if o.enricher == nil {
		return nil
	}
	tctx, cancel := withTimeout(ctx, o.cfg.RemoteTimeout)
	defer cancel()
	e, err := o.enricher.Enrichment(tctx, symbol)
	if err != nil {
		o.log.Debug("enrichment unavailable", logger.String("symbol", symbol), logger.Error(err))
		return nil
	}
	o.enrichments.Set(symbol, e)
	return &e
}

// Explain scores mc and breaks the score into its components.
func (o *Orchestrator) Explain(ctx context.Context, mc models.MarketContext) models.Explanation {
	r := o.Analyze(ctx, mc)
	var e *models.Enrichment
	if r.Source != models.SourceError {
		e = o.enrichmentFor(ctx, mc.Symbol)
	}
	return scoring.Explain(r, e)
}

// Invalidate drops the cached analysis for symbol/timeframe.
func (o *Orchestrator) Invalidate(symbol, timeframe string) {
	o.analysis.Invalidate(symbol + "|" + timeframe)
}

// ClearCache drops every cached analysis.
func (o *Orchestrator) ClearCache() {
	o.analysis.Clear()
}

// AnalyzeMTF asks the ephemeral service for a multi-timeframe view and
// falls back to computing each timeframe locally.
func (o *Orchestrator) AnalyzeMTF(ctx context.Context, symbol string, timeframes []string) (models.MTFResult, error) {
	start := time.Now()
	if o.ephemeral != nil {
		tctx, cancel := withTimeout(ctx, o.cfg.MTFTimeout)
		res, err := o.ephemeral.AnalyzeMTF(tctx, symbol, timeframes)
		cancel()
		o.record("mtf_"+TierEphemeral, classify(err), time.Since(start))
		if err == nil {
			for tf, r := range res.Timeframes {
				res.Timeframes[tf] = scoring.Apply(r, nil)
			}
			return res, nil
		}
		o.log.Warn("mtf ephemeral failed", logger.String("symbol", symbol), logger.Error(err))
	}
	if !o.cfg.LocalFallback {
		return models.MTFResult{}, ErrLocalDisabled
	}

	res := models.MTFResult{Symbol: symbol, Timeframes: make(map[string]models.AnalysisResult, len(timeframes))}
	for _, raw := range timeframes {
		tf, ok := drepo.ParseTimeframe(raw)
		if !ok {
			return models.MTFResult{}, fmt.Errorf("invalid timeframe %q", raw)
		}
		a := &attempt{mc: models.MarketContext{Symbol: symbol, Timeframe: string(tf)}}
		r, err := o.localTier(ctx, a)
		if err != nil {
			return models.MTFResult{}, fmt.Errorf("mtf %s: %w", tf, err)
		}
		res.Timeframes[string(tf)] = scoring.Apply(r, nil)
	}
	res.Alignment, res.Confidence = alignment(res.Timeframes)
	res.LatencyMS = time.Since(start).Milliseconds()
	o.record("mtf_"+TierLocal, outcomeOK, time.Since(start))
	return res, nil
}

// alignment is aligned_up/aligned_down when every timeframe trends the same
// way, otherwise mixed. Confidence is the mean pattern confidence.
func alignment(results map[string]models.AnalysisResult) (string, float64) {
	if len(results) == 0 {
		return "mixed", 0
	}
	var dir models.TrendDirection
	aligned := true
	var sum float64
	for _, r := range results {
		sum += r.ConfidencePattern
		if !r.TrendDirection.Directional() {
			aligned = false
			continue
		}
		if dir == "" {
			dir = r.TrendDirection
		} else if dir != r.TrendDirection {
			aligned = false
		}
	}
	conf := sum / float64(len(results))
	if !aligned || dir == "" {
		return "mixed", conf
	}
	return "aligned_" + string(dir), conf
}

// Stats snapshots tier counters.
func (o *Orchestrator) Stats() models.EngineStats {
	o.statsMu.Lock()
	defer o.statsMu.Unlock()
	st := models.EngineStats{
		Tiers:       make(map[string]models.TierStats, len(o.tiers)),
		CacheHits:   o.hits,
		CacheMisses: o.misses,
		Errors:      o.errs,
	}
	for name, acc := range o.tiers {
		ts := models.TierStats{Attempts: acc.attempts, Successes: acc.successes, Failures: acc.failures}
		if acc.attempts > 0 {
			ts.AvgLatencyMS = acc.totalMS / float64(acc.attempts)
		}
		st.Tiers[name] = ts
	}
	return st
}

func (o *Orchestrator) record(tier, outcome string, elapsed time.Duration) {
	o.metrics.RecordTier(tier, outcome, elapsed.Seconds())
	o.statsMu.Lock()
	defer o.statsMu.Unlock()
	acc, ok := o.tiers[tier]
	if !ok {
		acc = &tierAcc{}
		o.tiers[tier] = acc
	}
	acc.attempts++
	acc.totalMS += float64(elapsed) / float64(time.Millisecond)
	switch outcome {
	case outcomeOK:
		acc.successes++
	case outcomeError, outcomeUnavailable:
		acc.failures++
	}
}

func (o *Orchestrator) countCache(hit bool) {
	o.metrics.RecordCache("analysis", hit)
	o.statsMu.Lock()
	if hit {
		o.hits++
	} else {
		o.misses++
	}
	o.statsMu.Unlock()
}

func (o *Orchestrator) countError() {
	o.statsMu.Lock()
	o.errs++
	o.statsMu.Unlock()
}

func classify(err error) string {
	switch {
	case err == nil:
		return outcomeOK
	case errors.Is(err, analytics.ErrInsufficientData):
		return outcomeNoData
	case errors.Is(err, ErrLocalDisabled):
		return outcomeDisabled
	case errors.Is(err, ErrTierUnavailable), errors.Is(err, analytics.ErrUnavailable), errors.Is(err, analytics.ErrNotConfigured):
		return outcomeUnavailable
	default:
		return outcomeError
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
