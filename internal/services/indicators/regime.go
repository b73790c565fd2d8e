package indicators

import (
	"fmt"
	"math"
	"strings"
	"time"

	"TradeLens/internal/domain/models"
)

// Classification thresholds.
const (
	trendUpRatio   = 1.002
	trendDownRatio = 0.998

	highVolATRPct     = 3.0
	lowVolATRPct      = 1.0
	volatileTrendPct  = 1.5
	elevatedATRPct    = 2.0
	extremeVolATRPct  = 5.0
	lowVolumeRatio    = 0.3
	overboughtRSI     = 80
	oversoldRSI       = 20
	pullbackBandRatio = 0.5

	baseMaxLeverage = 20
	highVolLeverage = 8
	atr3Leverage    = 10
	atr2Leverage    = 15
	chopLeverage    = 5
)

// Regime is the classified market behaviour.
type Regime struct {
	Trend      models.TrendDirection
	Volatility models.VolatilityRegime
	State      models.MarketState
}

// TrendOf compares the fast and slow EMA.
func TrendOf(ind Indicators) models.TrendDirection {
	switch {
	case ind.EMAFast > ind.EMASlow*trendUpRatio:
		return models.TrendUp
	case ind.EMAFast < ind.EMASlow*trendDownRatio:
		return models.TrendDown
	default:
		return models.TrendSideways
	}
}

// VolatilityOf buckets atr_pct.
func VolatilityOf(ind Indicators) models.VolatilityRegime {
	switch {
	case ind.ATRPct > highVolATRPct:
		return models.VolatilityHigh
	case ind.ATRPct < lowVolATRPct:
		return models.VolatilityLow
	default:
		return models.VolatilityNormal
	}
}

// Classify derives trend, volatility bucket and market state.
func Classify(ind Indicators) Regime {
	r := Regime{Trend: TrendOf(ind), Volatility: VolatilityOf(ind)}
	trending := r.Trend.Directional()
	switch {
	case r.Volatility == models.VolatilityHigh && !trending:
		r.State = models.StateChop
	case trending && ind.ATRPct > volatileTrendPct:
		if r.Volatility == models.VolatilityHigh {
			r.State = models.StateTrendVolatile
		} else {
			r.State = models.StateTrend
		}
	default:
		r.State = models.StateRange
	}
	return r
}

// Setups flags a pullback continuation when price sits inside the EMA band
// widened by half its width on each side, in a directional trend.
func Setups(ind Indicators, r Regime) []string {
	setups := []string{}
	if !r.Trend.Directional() {
		return setups
	}
	lo := math.Min(ind.EMAFast, ind.EMASlow)
	hi := math.Max(ind.EMAFast, ind.EMASlow)
	pad := (hi - lo) * pullbackBandRatio
	if ind.Price >= lo-pad && ind.Price <= hi+pad {
		setups = append(setups, models.SetupPullbackContinuation)
	}
	return setups
}

// RiskFlags lists the risk conditions present.
func RiskFlags(ind Indicators) []string {
	flags := []string{}
	if ind.VolumeRatio < lowVolumeRatio {
		flags = append(flags, models.FlagLowVolume)
	}
	if ind.ATRPct > extremeVolATRPct {
		flags = append(flags, models.FlagExtremeVolatility)
	}
	if ind.RSI > overboughtRSI {
		flags = append(flags, models.FlagOverbought)
	}
	if ind.RSI < oversoldRSI {
		flags = append(flags, models.FlagOversold)
	}
	return flags
}

// LeverageBandFor starts from 20x and applies the most restrictive cap.
func LeverageBandFor(ind Indicators, r Regime) models.LeverageBand {
	maxLev := baseMaxLeverage
	if r.Volatility == models.VolatilityHigh {
		maxLev = minInt(maxLev, highVolLeverage)
	}
	if ind.ATRPct > highVolATRPct {
		maxLev = minInt(maxLev, atr3Leverage)
	}
	if ind.ATRPct > elevatedATRPct {
		maxLev = minInt(maxLev, atr2Leverage)
	}
	if r.State == models.StateChop {
		maxLev = minInt(maxLev, chopLeverage)
	}
	minLev := maxLev / 3
	if minLev < 1 {
		minLev = 1
	}
	return models.NewLeverageBand(minLev, maxLev)
}

// Confidence is (100 - |RSI-50|) * 0.8.
func Confidence(ind Indicators) float64 {
	return (100 - math.Abs(ind.RSI-50)) * 0.8
}

// Analyze runs the local tier over candles. Fewer than MinCandles yields an
// undefined result carrying the insufficient_data flag.
func Analyze(symbol, timeframe string, candles []models.Candle) models.AnalysisResult {
	ind, ok := Compute(candles)
	if !ok {
		return models.AnalysisResult{
			MarketState:           models.StateUndefined,
			VolatilityRegime:      models.VolatilityNormal,
			SetupCandidates:       []string{},
			RiskFlags:             []string{models.FlagInsufficientData},
			SuggestedLeverageBand: models.NewLeverageBand(1, 1),
			Reason:                fmt.Sprintf("insufficient data: %d candles, need %d", len(candles), MinCandles),
			Source:                models.SourceClient,
			Symbol:                symbol,
			Timeframe:             timeframe,
			Timestamp:             time.Now(),
		}
	}

	r := Classify(ind)
	flags := RiskFlags(ind)
	res := models.AnalysisResult{
		MarketState:           r.State,
		TrendDirection:        r.Trend,
		VolatilityRegime:      r.Volatility,
		SetupCandidates:       Setups(ind, r),
		RiskFlags:             flags,
		SuggestedLeverageBand: LeverageBandFor(ind, r),
		ConfidencePattern:     Confidence(ind),
		Source:                models.SourceClient,
		Symbol:                symbol,
		Timeframe:             timeframe,
		Indicators:            ind.Map(),
		Timestamp:             time.Now(),
	}
	res.TradeAllowed = r.State != models.StateChop && r.State != models.StateUndefined && !res.HasFlag(models.FlagExtremeVolatility)
	res.Reason = reason(r, flags)
	return res
}

func reason(r Regime, flags []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s, trend %s, %s volatility", r.State, r.Trend, r.Volatility)
	if len(flags) > 0 {
		fmt.Fprintf(&b, "; flags: %s", strings.Join(flags, ", "))
	}
	return b.String()
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
