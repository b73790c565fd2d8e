package usecase

import (
	"context"
	"strings"
	"sync"
	"time"

	"TradeLens/internal/domain/models"
	drepo "TradeLens/internal/domain/repository"
	"TradeLens/pkg/logger"
)

// Presenter is the UI collaborator.
type Presenter interface {
	PublishContext(mc models.MarketContext)
	PublishAnalysis(r models.AnalysisResult)
	PublishCooldown(st *models.CooldownState)
	PublishPrice(symbol string, price float64)
}

// ContextSource is the context observer.
type ContextSource interface {
	Run(ctx context.Context) error
	Contexts() <-chan models.MarketContext
	Current() (models.MarketContext, bool)
	Rescan()
}

type CompanionConfig struct {
	PerfInterval time.Duration
	LogLevel     string
}

// Companion wires the observer, the analysis chain, the cooldown machine
// and the journal into one running engine.
type Companion struct {
	cfg       CompanionConfig
	contexts  ContextSource
	orch      *Orchestrator
	manager   *AnalysisManager
	cooldown  *CooldownMachine
	journal   *JournalBuffer
	state     drepo.StateStore
	stream    drepo.MarketStream
	pump      *TickPump
	presenter Presenter
	log       *logger.Logger
}

func NewCompanion(
	cfg CompanionConfig,
	contexts ContextSource,
	orch *Orchestrator,
	manager *AnalysisManager,
	cooldown *CooldownMachine,
	journal *JournalBuffer,
	state drepo.StateStore,
	stream drepo.MarketStream,
	pump *TickPump,
	presenter Presenter,
	log *logger.Logger,
) *Companion {
	if cfg.PerfInterval <= 0 {
		cfg.PerfInterval = time.Minute
	}
	if log == nil {
		log = logger.Nop()
	}
	c := &Companion{
		cfg:       cfg,
		contexts:  contexts,
		orch:      orch,
		manager:   manager,
		cooldown:  cooldown,
		journal:   journal,
		state:     state,
		stream:    stream,
		pump:      pump,
		presenter: presenter,
		log:       log,
	}
	c.hookCooldown()
	return c
}

func (c *Companion) hookCooldown() {
	var mu sync.Mutex
	active := false
	c.cooldown.OnChange(func(st *models.CooldownState) {
		c.presenter.PublishCooldown(st)
		mu.Lock()
		started := st != nil && !active
		active = st != nil
		mu.Unlock()
		if started {
			c.journal.Log(models.JournalEvent{
				Type:    models.EventCooldownStart,
				Payload: map[string]interface{}{"reason": st.Reason, "origin": st.Origin, "ends_at": st.EndsAt},
			})
		}
	})
	c.cooldown.OnEnd(func(st models.CooldownState) {
		c.journal.Log(models.JournalEvent{
			Type:    models.EventCooldownEnd,
			Payload: map[string]interface{}{"reason": st.Reason, "origin": st.Origin},
		})
	})
}

// Run starts every loop and blocks until ctx is done and all have returned.
func (c *Companion) Run(ctx context.Context) error {
	if debug, err := c.state.Debug(ctx); err == nil && debug {
		logger.SetDebug(true, c.cfg.LogLevel)
	}

	var wg sync.WaitGroup
	start := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil {
				c.log.Error("companion loop stopped", logger.String("loop", name), logger.Error(err))
			}
		}()
	}

	start("observer", c.contexts.Run)
	start("contexts", c.consumeContexts)
	start("cooldown", c.cooldown.Run)
	start("journal", c.journal.Run)
	start("perf", c.reportPerf)
	if c.stream != nil {
		start("stream", c.stream.Run)
		start("ticks", func(ctx context.Context) error { return c.pump.Run(ctx, c.stream.Ticks()) })
	}

	wg.Wait()
	return nil
}

// consumeContexts analyses each new context. Contexts that queued up during
// an analysis collapse into the newest one.
func (c *Companion) consumeContexts(ctx context.Context) error {
	in := c.contexts.Contexts()
	for {
		var mc models.MarketContext
		select {
		case <-ctx.Done():
			return nil
		case mc = <-in:
		}
		for drained := false; !drained; {
			select {
			case newer := <-in:
				mc = newer
			default:
				drained = true
			}
		}
		c.onContext(ctx, mc)
	}
}

func (c *Companion) onContext(ctx context.Context, mc models.MarketContext) {
	c.presenter.PublishContext(mc)
	c.journal.Log(models.JournalEvent{
		Type:      models.EventContextChange,
		Symbol:    mc.Symbol,
		Timeframe: mc.Timeframe,
		Payload:   map[string]interface{}{"leverage": mc.Leverage, "margin_type": mc.MarginType},
	})
	if c.stream != nil {
		if tf, ok := drepo.ParseTimeframe(mc.Timeframe); ok {
			c.stream.Follow(mc.Symbol, tf)
		}
	}
	c.analyze(ctx, mc, false)
}

// analyze runs a deduplicated analysis and publishes it when it ran.
func (c *Companion) analyze(ctx context.Context, mc models.MarketContext, force bool) (models.AnalysisResult, bool) {
	r, ran := c.manager.Request(ctx, mc, force)
	if !ran {
		return r, false
	}
	c.presenter.PublishAnalysis(r)
	c.journal.Log(models.JournalEvent{
		Type:      models.EventAnalysis,
		Symbol:    mc.Symbol,
		Timeframe: mc.Timeframe,
		Payload: map[string]interface{}{
			"source":       string(r.Source),
			"market_state": string(r.MarketState),
			"score":        r.Score,
			"band":         r.Band,
			"latency_ms":   r.LatencyMS,
			"cached":       r.Cached,
		},
	})
	return r, true
}

func (c *Companion) reportPerf(ctx context.Context) error {
	ticker := time.NewTicker(c.cfg.PerfInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.journal.Log(perfEvent(c.orch.Stats()))
		}
	}
}

func perfEvent(st models.EngineStats) models.JournalEvent {
	tiers := make(map[string]interface{}, len(st.Tiers))
	for name, ts := range st.Tiers {
		tiers[name] = map[string]interface{}{
			"attempts":       ts.Attempts,
			"successes":      ts.Successes,
			"failures":       ts.Failures,
			"avg_latency_ms": ts.AvgLatencyMS,
		}
	}
	return models.JournalEvent{
		Type: models.EventPerfReport,
		Payload: map[string]interface{}{
			"tiers":        tiers,
			"cache_hits":   st.CacheHits,
			"cache_misses": st.CacheMisses,
			"errors":       st.Errors,
		},
	}
}

// resolveContext starts from the observed context and applies overrides.
func (c *Companion) resolveContext(symbol, timeframe string) (models.MarketContext, error) {
	mc, _ := c.contexts.Current()
	if symbol != "" {
		sym := strings.ToUpper(symbol)
		if sym != mc.Symbol {
			mc = models.MarketContext{Symbol: sym, Timeframe: mc.Timeframe}
		}
	}
	if timeframe != "" {
		tf, ok := drepo.ParseTimeframe(timeframe)
		if !ok {
			return models.MarketContext{}, errInvalidTimeframe(timeframe)
		}
		mc.Timeframe = string(tf)
	}
	if mc.Symbol == "" {
		return models.MarketContext{}, ErrNoContext
	}
	if mc.Timeframe == "" {
		mc.Timeframe = string(drepo.DefaultTimeframe())
	}
	mc.Timestamp = time.Now()
	return mc, nil
}

// Stats exposes the orchestrator counters.
func (c *Companion) Stats() models.EngineStats { return c.orch.Stats() }

// Context returns the observed context.
func (c *Companion) Context() (models.MarketContext, bool) { return c.contexts.Current() }

// Cooldown returns the current cooldown state.
func (c *Companion) Cooldown() *models.CooldownState { return c.cooldown.Current() }

// Analyze resolves a context and analyses it through the manager. When the
// manager skips and its last result is for another instrument, the
// orchestrator answers directly (normally from cache).
func (c *Companion) Analyze(ctx context.Context, symbol, timeframe string, force bool) (models.AnalysisResult, error) {
	mc, err := c.resolveContext(symbol, timeframe)
	if err != nil {
		return models.AnalysisResult{}, err
	}
	r, ran := c.analyze(ctx, mc, force)
	if !ran && (r.Symbol != mc.Symbol || r.Timeframe != mc.Timeframe) {
		return c.orch.Analyze(ctx, mc), nil
	}
	return r, nil
}
