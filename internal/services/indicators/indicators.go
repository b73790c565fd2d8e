package indicators

import (
	"math"

	"TradeLens/internal/domain/models"
)

// MinCandles is the shortest series indicators are computed on.
const MinCandles = 50

const (
	FastEMAPeriod    = 9
	SlowEMAPeriod    = 21
	RSIPeriod        = 14
	ATRPeriod        = 14
	VolumeBasePeriod = 20

	rsiEpsilon = 0.0001
)

// Indicators is the snapshot the regime classifier works on.
type Indicators struct {
	Price       float64
	EMAFast     float64
	EMASlow     float64
	RSI         float64
	ATR         float64
	ATRPct      float64
	VolumeRatio float64
}

// Map flattens the snapshot for transport.
func (ind Indicators) Map() map[string]float64 {
	return map[string]float64{
		"price":        ind.Price,
		"ema9":         ind.EMAFast,
		"ema21":        ind.EMASlow,
		"rsi":          ind.RSI,
		"atr":          ind.ATR,
		"atr_pct":      ind.ATRPct,
		"volume_ratio": ind.VolumeRatio,
	}
}

// Compute derives indicators from an ascending candle series.
// It returns false when fewer than MinCandles are given.
func Compute(candles []models.Candle) (Indicators, bool) {
	if len(candles) < MinCandles {
		return Indicators{}, false
	}
	closes := models.Closes(candles)
	volumes := models.Volumes(candles)
	last := candles[len(candles)-1]

	ind := Indicators{
		Price:   last.Close,
		EMAFast: EMA(closes, FastEMAPeriod),
		EMASlow: EMA(closes, SlowEMAPeriod),
		RSI:     RSI(closes, RSIPeriod),
		ATR:     ATR(candles, ATRPeriod),
	}
	if ind.Price > 0 {
		ind.ATRPct = ind.ATR / ind.Price * 100
	}
	ind.VolumeRatio = 1
	if base := SMA(volumes, VolumeBasePeriod); base > 0 {
		ind.VolumeRatio = last.Volume / base
	}
	return ind, true
}

// EMA seeds with the simple average of the first period values and smooths
// the remainder with k = 2/(period+1). Shorter inputs average what exists.
func EMA(values []float64, period int) float64 {
	if len(values) == 0 || period <= 0 {
		return 0
	}
	if len(values) < period {
		return mean(values)
	}
	ema := mean(values[:period])
	k := 2 / float64(period+1)
	for _, v := range values[period:] {
		ema = v*k + ema*(1-k)
	}
	return ema
}

// SMA averages the last min(period, len(values)) values.
func SMA(values []float64, period int) float64 {
	if len(values) == 0 || period <= 0 {
		return 0
	}
	if period > len(values) {
		period = len(values)
	}
	return mean(values[len(values)-period:])
}

// RSI uses simple averages of gains and losses over the trailing period
// deltas. A series without losses divides by rsiEpsilon instead of zero.
func RSI(closes []float64, period int) float64 {
	if len(closes) < 2 || period <= 0 {
		return 50
	}
	start := len(closes) - period - 1
	if start < 0 {
		start = 0
	}
	var gains, losses float64
	n := 0
	for i := start + 1; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			gains += d
		} else {
			losses -= d
		}
		n++
	}
	avgGain := gains / float64(n)
	avgLoss := losses / float64(n)
	if avgLoss == 0 {
		avgLoss = rsiEpsilon
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// TrueRanges returns max(high-low, |high-prevClose|, |low-prevClose|) per bar.
// The first bar has no previous close and uses high-low.
func TrueRanges(candles []models.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		tr := c.High - c.Low
		if i > 0 {
			prev := candles[i-1].Close
			tr = math.Max(tr, math.Max(math.Abs(c.High-prev), math.Abs(c.Low-prev)))
		}
		out[i] = tr
	}
	return out
}

// ATR smooths true ranges with SMA(period).
func ATR(candles []models.Candle, period int) float64 {
	return SMA(TrueRanges(candles), period)
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
