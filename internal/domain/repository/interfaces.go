package repository

import (
	"context"

	"TradeLens/internal/domain/models"
)

// CandleSource returns the most recent candles, ascending by timestamp.
type CandleSource interface {
	LatestCandles(ctx context.Context, symbol string, tf Timeframe, limit int) ([]models.Candle, error)
}

// MarketStream follows live klines for one symbol/timeframe at a time.
type MarketStream interface {
	Run(ctx context.Context) error
	Follow(symbol string, tf Timeframe)
	Ticks() <-chan models.Tick
	IsConnected() bool
}

// JournalSink delivers a batch of journal events.
type JournalSink interface {
	Submit(ctx context.Context, sessionID string, events []models.JournalEvent) error
}

// StateStore persists local companion state. Missing keys are not errors.
type StateStore interface {
	SessionID(ctx context.Context) (string, error)
	ClientID(ctx context.Context) (string, error)
	PanelPosition(ctx context.Context) (*models.PanelPosition, error)
	SetPanelPosition(ctx context.Context, p models.PanelPosition) error
	Bookmarks(ctx context.Context) ([]models.Bookmark, error)
	AddBookmark(ctx context.Context, b models.Bookmark) ([]models.Bookmark, error)
	Debug(ctx context.Context) (bool, error)
	SetDebug(ctx context.Context, enabled bool) error
}

type Metrics interface {
	RecordTier(tier, outcome string, seconds float64)
	RecordCache(name string, hit bool)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
	RecordJournalFlush(ok bool, events int)
	RecordLastPrice(symbol string, price float64)
}

// NopMetrics discards everything.
type NopMetrics struct{}

func (NopMetrics) RecordTier(string, string, float64) {}
func (NopMetrics) RecordCache(string, bool)           {}
func (NopMetrics) RecordError(string)                 {}
func (NopMetrics) RecordLatency(string, float64)      {}
func (NopMetrics) RecordJournalFlush(bool, int)       {}
func (NopMetrics) RecordLastPrice(string, float64)    {}
