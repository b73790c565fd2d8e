package models

import (
	"encoding/json"
	"time"
)

type MarketState string

const (
	StateTrend         MarketState = "trend"
	StateTrendVolatile MarketState = "trend_volatile"
	StateRange         MarketState = "range"
	StateChop          MarketState = "chop"
	StateUndefined     MarketState = "undefined"
	StateError         MarketState = "error"
)

// TrendDirection is up, down or sideways. The zero value encodes as JSON null.
type TrendDirection string

const (
	TrendUp       TrendDirection = "up"
	TrendDown     TrendDirection = "down"
	TrendSideways TrendDirection = "sideways"
)

func (d TrendDirection) MarshalJSON() ([]byte, error) {
	if d == "" {
		return []byte("null"), nil
	}
	return json.Marshal(string(d))
}

func (d *TrendDirection) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*d = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*d = TrendDirection(s)
	return nil
}

// Directional reports whether the trend points up or down.
func (d TrendDirection) Directional() bool {
	return d == TrendUp || d == TrendDown
}

type VolatilityRegime string

const (
	VolatilityLow    VolatilityRegime = "low"
	VolatilityNormal VolatilityRegime = "normal"
	VolatilityHigh   VolatilityRegime = "high"
)

// Source records which tier answered.
type Source string

const (
	SourceBackend   Source = "backend"
	SourceEphemeral Source = "ephemeral"
	SourceClient    Source = "client"
	SourceError     Source = "error"
)

// Risk flags.
const (
	FlagLowVolume         = "low_volume"
	FlagExtremeVolatility = "extreme_volatility"
	FlagOverbought        = "overbought"
	FlagOversold          = "oversold"
	FlagChoppyMomentum    = "choppy_momentum"
	FlagInsufficientData  = "insufficient_data"
	FlagAPIError          = "api_error"
	FlagConnectionError   = "connection_error"
)

// Setup candidates.
const (
	SetupPullbackContinuation = "pullback_continuation"
)

const (
	MinLeverage = 1
	MaxLeverage = 125
)

// LeverageBand is [min, max], ordered and within [MinLeverage, MaxLeverage].
type LeverageBand [2]int

// NewLeverageBand clamps both ends into range and orders them.
func NewLeverageBand(lo, hi int) LeverageBand {
	lo, hi = clampLeverage(lo), clampLeverage(hi)
	if lo > hi {
		lo, hi = hi, lo
	}
	return LeverageBand{lo, hi}
}

func (b LeverageBand) Min() int { return b[0] }
func (b LeverageBand) Max() int { return b[1] }

func clampLeverage(v int) int {
	if v < MinLeverage {
		return MinLeverage
	}
	if v > MaxLeverage {
		return MaxLeverage
	}
	return v
}

// AnalysisResult is the output of one analysis cycle. Treat it as a value:
// callers that need to change fields work on a Clone.
type AnalysisResult struct {
	TradeAllowed          bool               `json:"trade_allowed"`
	MarketState           MarketState        `json:"market_state"`
	TrendDirection        TrendDirection     `json:"trend_direction"`
	VolatilityRegime      VolatilityRegime   `json:"volatility_regime"`
	SetupCandidates       []string           `json:"setup_candidates"`
	RiskFlags             []string           `json:"risk_flags"`
	SuggestedLeverageBand LeverageBand       `json:"suggested_leverage_band"`
	ConfidencePattern     float64            `json:"confidence_pattern"`
	Reason                string             `json:"reason"`
	Source                Source             `json:"source"`
	LatencyMS             int64              `json:"latency_ms"`
	Cached                bool               `json:"cached"`
	Symbol                string             `json:"symbol"`
	Timeframe             string             `json:"timeframe"`
	Leverage              int                `json:"leverage,omitempty"`
	Position              *Position          `json:"position,omitempty"`
	MarginType            string             `json:"margin_type,omitempty"`
	Score                 int                `json:"score"`
	Band                  string             `json:"band"`
	Indicators            map[string]float64 `json:"indicators,omitempty"`
	Timestamp             time.Time          `json:"timestamp"`
}

// Clone returns a deep copy.
func (r AnalysisResult) Clone() AnalysisResult {
	out := r
	out.SetupCandidates = append([]string(nil), r.SetupCandidates...)
	out.RiskFlags = append([]string(nil), r.RiskFlags...)
	if r.Position != nil {
		p := *r.Position
		out.Position = &p
	}
	if r.Indicators != nil {
		out.Indicators = make(map[string]float64, len(r.Indicators))
		for k, v := range r.Indicators {
			out.Indicators[k] = v
		}
	}
	return out
}

// WithContext returns a copy carrying the presentation fields of mc.
func (r AnalysisResult) WithContext(mc MarketContext) AnalysisResult {
	out := r.Clone()
	out.Leverage = mc.Leverage
	out.MarginType = mc.MarginType
	out.Position = nil
	if mc.Position != nil {
		p := *mc.Position
		out.Position = &p
	}
	return out
}

// HasFlag reports whether flag is among the risk flags.
func (r AnalysisResult) HasFlag(flag string) bool {
	for _, f := range r.RiskFlags {
		if f == flag {
			return true
		}
	}
	return false
}

// Normalize enforces the value invariants on results that arrived from a
// remote tier: ordered leverage band inside [1,125], confidence in [0,100]
// and non-nil lists.
func (r AnalysisResult) Normalize() AnalysisResult {
	out := r.Clone()
	out.SuggestedLeverageBand = NewLeverageBand(r.SuggestedLeverageBand[0], r.SuggestedLeverageBand[1])
	if out.ConfidencePattern < 0 {
		out.ConfidencePattern = 0
	}
	if out.ConfidencePattern > 100 {
		out.ConfidencePattern = 100
	}
	if out.SetupCandidates == nil {
		out.SetupCandidates = []string{}
	}
	if out.RiskFlags == nil {
		out.RiskFlags = []string{}
	}
	if out.MarketState == "" {
		out.MarketState = StateUndefined
	}
	return out
}

// ErrorResult is the terminal sentinel returned when every tier failed.
func ErrorResult(mc MarketContext, reason string) AnalysisResult {
	r := AnalysisResult{
		TradeAllowed:          false,
		MarketState:           StateError,
		VolatilityRegime:      VolatilityNormal,
		SetupCandidates:       []string{},
		RiskFlags:             []string{FlagConnectionError},
		SuggestedLeverageBand: NewLeverageBand(1, 1),
		Reason:                reason,
		Source:                SourceError,
		Symbol:                mc.Symbol,
		Timeframe:             mc.Timeframe,
		Timestamp:             time.Now(),
	}
	return r.WithContext(mc)
}

// MTFResult is the multi-timeframe analysis answer.
type MTFResult struct {
	Symbol     string                    `json:"symbol"`
	Timeframes map[string]AnalysisResult `json:"timeframes"`
	Alignment  string                    `json:"alignment"`
	Confidence float64                   `json:"confidence"`
	LatencyMS  int64                     `json:"latency_ms"`
}
