package models

import "encoding/json"

// Message types accepted from the host page.
const (
	MsgGetContext       = "get_context"
	MsgGetState         = "get_state"
	MsgAnalyze          = "analyze"
	MsgRefresh          = "refresh"
	MsgAnalyzeMTF       = "analyze_mtf"
	MsgExplain          = "explain"
	MsgBookmark         = "bookmark"
	MsgListBookmarks    = "list_bookmarks"
	MsgStartCooldown    = "start_cooldown"
	MsgEndCooldown      = "end_cooldown"
	MsgCheckCooldown    = "check_cooldown"
	MsgSync             = "sync"
	MsgLogEvent         = "log_event"
	MsgSetDebug         = "set_debug"
	MsgSetPanelPosition = "set_panel_position"
)

// Message is a typed request from the host page.
type Message struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type" validate:"required"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response is the envelope every message is answered with.
type Response struct {
	ID    string      `json:"id,omitempty"`
	OK    bool        `json:"ok"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

// AnalyzeRequest overrides the observed context when fields are set.
type AnalyzeRequest struct {
	Symbol    string `json:"symbol" validate:"omitempty,min=2,max=32"`
	Timeframe string `json:"timeframe" validate:"omitempty,max=4"`
	Force     bool   `json:"force"`
}

type MTFRequest struct {
	Symbol     string   `json:"symbol" validate:"omitempty,min=2,max=32"`
	Timeframes []string `json:"timeframes" validate:"omitempty,max=6,dive,max=4"`
}

type BookmarkRequest struct {
	Symbol    string `json:"symbol" validate:"omitempty,min=2,max=32"`
	Timeframe string `json:"timeframe" validate:"omitempty,max=4"`
	Note      string `json:"note" validate:"max=200"`
}

type StartCooldownRequest struct {
	Minutes int    `json:"minutes" default:"15" validate:"gte=1,lte=1440"`
	Reason  string `json:"reason" default:"manual break" validate:"max=200"`
}

type LogEventRequest struct {
	Type    string                 `json:"type" validate:"required,max=64"`
	Payload map[string]interface{} `json:"payload"`
}

type SetDebugRequest struct {
	Enabled bool `json:"enabled"`
}

type PanelPositionRequest struct {
	X      int    `json:"x" validate:"gte=0"`
	Y      int    `json:"y" validate:"gte=0"`
	Docked string `json:"docked" validate:"omitempty,oneof=left right top bottom"`
}

// AnalysisQuery is the GET /api/analysis query.
type AnalysisQuery struct {
	Symbol    string `query:"symbol" validate:"required,min=2,max=32"`
	Timeframe string `query:"timeframe" default:"1h" validate:"max=4"`
	Force     bool   `query:"force"`
}

// CandlesQuery is the GET /api/candles query.
type CandlesQuery struct {
	Symbol    string `query:"symbol" validate:"required,min=2,max=32"`
	Timeframe string `query:"timeframe" default:"1h" validate:"max=4"`
	Limit     int    `query:"limit" default:"300" validate:"gte=1,lte=1000"`
}

// Explanation lists each scorer contribution.
type Explanation struct {
	Score      int                `json:"score"`
	Band       string             `json:"band"`
	Components map[string]float64 `json:"components"`
	Result     AnalysisResult     `json:"result"`
	Enrichment *Enrichment        `json:"enrichment,omitempty"`
}
