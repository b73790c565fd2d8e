package models

import "time"

// Bookmark is a saved symbol/timeframe pair.
type Bookmark struct {
	Symbol    string    `json:"symbol"`
	Timeframe string    `json:"timeframe"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// PanelPosition is where the companion panel sits on the page.
type PanelPosition struct {
	X      int    `json:"x"`
	Y      int    `json:"y"`
	Docked string `json:"docked,omitempty"`
}

// Settings is the persisted local state as one view.
type Settings struct {
	SessionID     string         `json:"session_id"`
	ClientID      string         `json:"client_id"`
	PanelPosition *PanelPosition `json:"panel_position,omitempty"`
	Debug         bool           `json:"debug"`
	Bookmarks     int            `json:"bookmarks"`
}

// TierStats summarises one tier for the performance report.
type TierStats struct {
	Attempts     int64   `json:"attempts"`
	Successes    int64   `json:"successes"`
	Failures     int64   `json:"failures"`
	AvgLatencyMS float64 `json:"avg_latency_ms"`
}

// EngineStats is the orchestrator snapshot.
type EngineStats struct {
	Tiers       map[string]TierStats `json:"tiers"`
	CacheHits   int64                `json:"cache_hits"`
	CacheMisses int64                `json:"cache_misses"`
	Errors      int64                `json:"errors"`
}
