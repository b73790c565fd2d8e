package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"TradeLens/internal/domain/models"
	drepo "TradeLens/internal/domain/repository"
	"TradeLens/internal/services/analytics"
)

type fakeRemote struct {
	mu    sync.Mutex
	res   models.AnalysisResult
	err   error
	calls int
}

func (f *fakeRemote) AnalyzeContext(_ context.Context, symbol, timeframe string) (models.AnalysisResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return models.AnalysisResult{}, f.err
	}
	r := f.res
	r.Symbol, r.Timeframe = symbol, timeframe
	r.Source = models.SourceBackend
	return r.Normalize(), nil
}

// stalledRemote never answers; it returns only when its context ends.
type stalledRemote struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *stalledRemote) AnalyzeContext(ctx context.Context, _, _ string) (models.AnalysisResult, error) {
	<-ctx.Done()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.err = ctx.Err()
	return models.AnalysisResult{}, ctx.Err()
}

type fakeEphemeral struct {
	err    error
	mtfErr error
	calls  int
	got    int
}

func (f *fakeEphemeral) AnalyzeEphemeral(_ context.Context, symbol, timeframe string, candles []models.Candle) (models.AnalysisResult, error) {
	f.calls++
	f.got = len(candles)
	if f.err != nil {
		return models.AnalysisResult{}, f.err
	}
	return models.AnalysisResult{
		MarketState:           models.StateRange,
		TrendDirection:        models.TrendSideways,
		VolatilityRegime:      models.VolatilityNormal,
		SuggestedLeverageBand: models.NewLeverageBand(2, 5),
		ConfidencePattern:     55,
		Source:                models.SourceEphemeral,
		Symbol:                symbol,
		Timeframe:             timeframe,
	}.Normalize(), nil
}

func (f *fakeEphemeral) AnalyzeMTF(_ context.Context, symbol string, timeframes []string) (models.MTFResult, error) {
	if f.mtfErr != nil {
		return models.MTFResult{}, f.mtfErr
	}
	res := models.MTFResult{Symbol: symbol, Timeframes: map[string]models.AnalysisResult{}}
	for _, tf := range timeframes {
		res.Timeframes[tf] = models.AnalysisResult{MarketState: models.StateTrend, TrendDirection: models.TrendUp, Source: models.SourceEphemeral}.Normalize()
	}
	res.Alignment = "aligned_up"
	return res, nil
}

type fakeCandles struct {
	candles []models.Candle
	err     error
	calls   int
}

func (f *fakeCandles) LatestCandles(_ context.Context, _ string, _ drepo.Timeframe, _ int) ([]models.Candle, error) {
	f.calls++
	return f.candles, f.err
}

func trendingCandles(n int) []models.Candle {
	out := make([]models.Candle, n)
	for i := 0; i < n; i++ {
		c := 100 + float64(i)
		out[i] = models.Candle{
			Timestamp: int64(i+1) * 60_000,
			Open:      c - 0.5,
			High:      c + 0.5,
			Low:       c - 0.5,
			Close:     c,
			Volume:    1000,
		}
	}
	return out
}

type fakeEnricher struct {
	e     models.Enrichment
	err   error
	calls int
}

func (f *fakeEnricher) Enrichment(_ context.Context, symbol string) (models.Enrichment, error) {
	f.calls++
	if f.err != nil {
		return models.Enrichment{}, f.err
	}
	e := f.e
	e.Symbol = symbol
	return e, nil
}

type fakeBehavior struct {
	mu      sync.Mutex
	report  models.BehaviorReport
	err     error
	reports []models.CooldownReport
}

func (f *fakeBehavior) Analyze(context.Context, string) (models.BehaviorReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.report, f.err
}

func (f *fakeBehavior) ReportCooldown(_ context.Context, rep models.CooldownReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports = append(f.reports, rep)
	return nil
}

func (f *fakeBehavior) actions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.reports))
	for _, r := range f.reports {
		out = append(out, r.Action)
	}
	return out
}

type fakeSessions struct{ id string }

func (f fakeSessions) SessionID(context.Context) (string, error) { return f.id, nil }

type fakeSink struct {
	mu      sync.Mutex
	fail    bool
	batches [][]models.JournalEvent
	session string
}

func (f *fakeSink) Submit(_ context.Context, sessionID string, events []models.JournalEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("sink down")
	}
	f.session = sessionID
	f.batches = append(f.batches, append([]models.JournalEvent(nil), events...))
	return nil
}

func (f *fakeSink) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.batches)
}

type fakePresenter struct {
	mu        sync.Mutex
	contexts  []models.MarketContext
	analyses  []models.AnalysisResult
	cooldowns []*models.CooldownState
	prices    map[string][]float64
}

func newFakePresenter() *fakePresenter {
	return &fakePresenter{prices: map[string][]float64{}}
}

func (p *fakePresenter) PublishContext(mc models.MarketContext) {
	p.mu.Lock()
	p.contexts = append(p.contexts, mc)
	p.mu.Unlock()
}

func (p *fakePresenter) PublishAnalysis(r models.AnalysisResult) {
	p.mu.Lock()
	p.analyses = append(p.analyses, r)
	p.mu.Unlock()
}

func (p *fakePresenter) PublishCooldown(st *models.CooldownState) {
	p.mu.Lock()
	p.cooldowns = append(p.cooldowns, st)
	p.mu.Unlock()
}

func (p *fakePresenter) PublishPrice(symbol string, price float64) {
	p.mu.Lock()
	p.prices[symbol] = append(p.prices[symbol], price)
	p.mu.Unlock()
}

func (p *fakePresenter) analysisCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.analyses)
}

type fakeContexts struct {
	ch      chan models.MarketContext
	mu      sync.Mutex
	cur     models.MarketContext
	rescans int
}

func newFakeContexts(cur models.MarketContext) *fakeContexts {
	return &fakeContexts{ch: make(chan models.MarketContext, 8), cur: cur}
}

func (f *fakeContexts) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func (f *fakeContexts) Contexts() <-chan models.MarketContext { return f.ch }

func (f *fakeContexts) Current() (models.MarketContext, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cur, !f.cur.IsZero()
}

func (f *fakeContexts) Rescan() {
	f.mu.Lock()
	f.rescans++
	f.mu.Unlock()
}

// memState is an in-memory StateStore.
type memState struct {
	mu        sync.Mutex
	panel     *models.PanelPosition
	bookmarks []models.Bookmark
	debug     bool
}

func (m *memState) SessionID(context.Context) (string, error) { return "sess-1", nil }
func (m *memState) ClientID(context.Context) (string, error)  { return "client-1", nil }

func (m *memState) PanelPosition(context.Context) (*models.PanelPosition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.panel, nil
}

func (m *memState) SetPanelPosition(_ context.Context, p models.PanelPosition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.panel = &p
	return nil
}

func (m *memState) Bookmarks(context.Context) ([]models.Bookmark, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Bookmark(nil), m.bookmarks...), nil
}

func (m *memState) AddBookmark(_ context.Context, b models.Bookmark) ([]models.Bookmark, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bookmarks = append([]models.Bookmark{b}, m.bookmarks...)
	return append([]models.Bookmark(nil), m.bookmarks...), nil
}

func (m *memState) Debug(context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.debug, nil
}

func (m *memState) SetDebug(_ context.Context, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.debug = enabled
	return nil
}

type manualClock struct {
	mu sync.Mutex
	t  time.Time
}

func newManualClock() *manualClock {
	return &manualClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

var errInsufficient = analytics.ErrInsufficientData
