package models

import (
	"fmt"
	"time"
)

// Position sides as shown by the exchange position panel.
const (
	SideLong  = "long"
	SideShort = "short"
)

// Margin modes.
const (
	MarginCross    = "cross"
	MarginIsolated = "isolated"
)

// Position is the open position visible on the page, if any.
type Position struct {
	Side       string  `json:"side"`
	Size       float64 `json:"size"`
	EntryPrice float64 `json:"entry_price"`
}

// MarketContext is what the user is currently looking at.
type MarketContext struct {
	Symbol     string    `json:"symbol"`
	Timeframe  string    `json:"timeframe"`
	Leverage   int       `json:"leverage,omitempty"`
	Position   *Position `json:"position,omitempty"`
	MarginType string    `json:"margin_type,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Key is the refresh dedup key: symbol, timeframe and leverage.
func (c MarketContext) Key() string {
	return fmt.Sprintf("%s|%s|%d", c.Symbol, c.Timeframe, c.Leverage)
}

// AnalysisKey identifies the analysis cache slot. Leverage and position are
// presentation-only and not part of it.
func (c MarketContext) AnalysisKey() string {
	return c.Symbol + "|" + c.Timeframe
}

// Equal reports whether both contexts share the same dedup key.
func (c MarketContext) Equal(o MarketContext) bool {
	return c.Key() == o.Key()
}

// SameAs compares every observed field, ignoring the timestamp.
func (c MarketContext) SameAs(o MarketContext) bool {
	if c.Symbol != o.Symbol || c.Timeframe != o.Timeframe || c.Leverage != o.Leverage || c.MarginType != o.MarginType {
		return false
	}
	switch {
	case c.Position == nil && o.Position == nil:
		return true
	case c.Position == nil || o.Position == nil:
		return false
	default:
		return *c.Position == *o.Position
	}
}

// IsZero reports whether no instrument has been detected.
func (c MarketContext) IsZero() bool { return c.Symbol == "" }
