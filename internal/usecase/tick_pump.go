package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"TradeLens/internal/domain/models"
	drepo "TradeLens/internal/domain/repository"
)

// CandleRecorder persists closed candles.
type CandleRecorder interface {
	StoreCandles(ctx context.Context, symbol string, tf drepo.Timeframe, candles []models.Candle) error
}

// CacheInvalidator drops a cached analysis.
type CacheInvalidator interface {
	Invalidate(symbol, timeframe string)
}

// TickPump sits between the market stream and the rest of the engine: it
// validates ticks, throttles price updates per symbol, and on a closed
// candle invalidates the analysis cache and records the candle.
type TickPump struct {
	prices   Presenter
	cache    CacheInvalidator
	recorder CandleRecorder
	metrics  drepo.Metrics
	maxRPS   int
	now      func() time.Time

	mu       sync.Mutex
	lastSeen map[string]time.Time
}

type TickPumpOption func(*TickPump)

// WithMaxRPS caps price updates per symbol per second.
func WithMaxRPS(n int) TickPumpOption {
	return func(p *TickPump) {
		if n > 0 {
			p.maxRPS = n
		}
	}
}

// WithRecorder stores closed candles.
func WithRecorder(r CandleRecorder) TickPumpOption {
	return func(p *TickPump) { p.recorder = r }
}

func NewTickPump(prices Presenter, cache CacheInvalidator, metrics drepo.Metrics, opts ...TickPumpOption) *TickPump {
	if metrics == nil {
		metrics = drepo.NopMetrics{}
	}
	p := &TickPump{
		prices:   prices,
		cache:    cache,
		metrics:  metrics,
		maxRPS:   4,
		now:      time.Now,
		lastSeen: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run consumes ticks until the channel closes or ctx is done.
func (p *TickPump) Run(ctx context.Context, ticks <-chan models.Tick) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case t, ok := <-ticks:
			if !ok {
				return nil
			}
			_ = p.Process(ctx, t)
		}
	}
}

func (p *TickPump) Process(ctx context.Context, t models.Tick) error {
	if err := validateTick(t); err != nil {
		p.metrics.RecordError("tick_validate")
		return err
	}
	p.metrics.RecordLastPrice(t.Symbol, t.Price)

	if t.Closed {
		if p.cache != nil {
			p.cache.Invalidate(t.Symbol, t.Timeframe)
		}
		if p.recorder != nil {
			tf, _ := drepo.ParseTimeframe(t.Timeframe)
			if err := p.recorder.StoreCandles(ctx, t.Symbol, tf, []models.Candle{t.Candle}); err != nil {
				p.metrics.RecordError("tick_record")
				return fmt.Errorf("record candle: %w", err)
			}
		}
	}

	if !t.Closed && !p.allow(t.Symbol) {
		return nil
	}
	if p.prices != nil {
		p.prices.PublishPrice(t.Symbol, t.Price)
	}
	return nil
}

func validateTick(t models.Tick) error {
	if t.Symbol == "" {
		return fmt.Errorf("tick symbol empty")
	}
	if t.Candle.Timestamp <= 0 {
		return fmt.Errorf("tick timestamp invalid")
	}
	if t.Price <= 0 || t.Candle.Volume < 0 {
		return fmt.Errorf("tick price/volume invalid")
	}
	return nil
}

func (p *TickPump) allow(symbol string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.now()
	last, ok := p.lastSeen[symbol]
	if ok && now.Sub(last) < time.Second/time.Duration(p.maxRPS) {
		return false
	}
	p.lastSeen[symbol] = now
	return true
}
