package models

import "time"

// Journal event types emitted by the engine itself.
const (
	EventAnalysis      = "analysis"
	EventContextChange = "context_change"
	EventCooldownStart = "cooldown_start"
	EventCooldownEnd   = "cooldown_end"
	EventBookmark      = "bookmark"
	EventPerfReport    = "perf_report"
	EventLogDigest     = "log_digest"
)

// JournalEvent is one buffered telemetry record.
type JournalEvent struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Symbol    string                 `json:"symbol,omitempty"`
	Timeframe string                 `json:"timeframe,omitempty"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// JournalBatch is the POST /journal body.
type JournalBatch struct {
	SessionID string         `json:"session_id"`
	Events    []JournalEvent `json:"events"`
}
