// Package scoring turns an analysis result plus optional enrichment into a
// single 0..100 score and a coarse band.
package scoring

import (
	"math"

	"TradeLens/internal/domain/models"
)

// Bands, highest first.
const (
	BandStrongBuy = "strong_buy"
	BandBuy       = "buy"
	BandWait      = "wait"
	BandCaution   = "caution"
	BandNoTrade   = "no_trade"
)

const (
	baseScore          = 50
	blockedPenalty     = -30
	setupBonus         = 15
	directionalBonus   = 10
	unknownFlagPenalty = -5
	confidenceWeight   = 15
	sentimentWeight    = 15
	newsWeight         = 10
)

var stateAdjustments = map[models.MarketState]float64{
	models.StateTrend:         15,
	models.StateTrendVolatile: 5,
	models.StateRange:         0,
	models.StateChop:          -25,
	models.StateUndefined:     -20,
	models.StateError:         -30,
}

var flagPenalties = map[string]float64{
	models.FlagExtremeVolatility: -20,
	models.FlagLowVolume:         -10,
	models.FlagOverbought:        -15,
	models.FlagOversold:          -10,
	models.FlagChoppyMomentum:    -15,
	models.FlagInsufficientData:  -25,
	models.FlagAPIError:          -30,
}

var volumeSpikeBonus = map[string]float64{
	models.VolumeSpikeModerate: 5,
	models.VolumeSpikeStrong:   10,
}

// componentOrder fixes the summation order so rounding never depends on map
// iteration.
var componentOrder = []string{
	"base", "trade_gate", "state", "setup", "direction",
	"risk_flags", "confidence", "sentiment", "volume", "news",
}

// Components returns every additive contribution by name. Their sum before
// rounding and clamping is the raw score.
func Components(r models.AnalysisResult, e *models.Enrichment) map[string]float64 {
	c := map[string]float64{
		"base":       baseScore,
		"trade_gate": 0,
		"state":      stateAdjustments[r.MarketState],
		"setup":      0,
		"direction":  0,
		"risk_flags": 0,
		"confidence": ((r.ConfidencePattern - 50) / 50) * confidenceWeight,
		"sentiment":  0,
		"volume":     0,
		"news":       0,
	}
	if !r.TradeAllowed {
		c["trade_gate"] = blockedPenalty
	}
	if len(r.SetupCandidates) > 0 {
		c["setup"] = setupBonus
	}
	if r.TrendDirection.Directional() {
		c["direction"] = directionalBonus
	}
	for _, f := range r.RiskFlags {
		if p, ok := flagPenalties[f]; ok {
			c["risk_flags"] += p
		} else {
			c["risk_flags"] += unknownFlagPenalty
		}
	}
	if e != nil {
		c["sentiment"] = clampUnit(e.Sentiment) * sentimentWeight
		c["volume"] = volumeSpikeBonus[e.VolumeSpike]
		c["news"] = clampUnit(e.NewsSentiment) * newsWeight
	}
	return c
}

// Score is a pure function of its inputs, clamped to [0,100].
func Score(r models.AnalysisResult, e *models.Enrichment) int {
	c := Components(r, e)
	sum := 0.0
	for _, k := range componentOrder {
		sum += c[k]
	}
	s := int(math.Round(sum))
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}

// Band classifies a score. Total and stable over all ints.
func Band(score int) string {
	switch {
	case score >= 75:
		return BandStrongBuy
	case score >= 60:
		return BandBuy
	case score >= 45:
		return BandWait
	case score >= 30:
		return BandCaution
	default:
		return BandNoTrade
	}
}

// Apply returns a copy of r carrying its score and band.
func Apply(r models.AnalysisResult, e *models.Enrichment) models.AnalysisResult {
	out := r.Clone()
	out.Score = Score(r, e)
	out.Band = Band(out.Score)
	return out
}

// Explain returns the breakdown used by the explain action.
func Explain(r models.AnalysisResult, e *models.Enrichment) models.Explanation {
	score := Score(r, e)
	return models.Explanation{
		Score:      score,
		Band:       Band(score),
		Components: Components(r, e),
		Result:     r,
		Enrichment: e,
	}
}

func clampUnit(v float64) float64 {
	return math.Max(-1, math.Min(1, v))
}
