package repository

import (
	"strings"
	"time"
)

// Timeframe is an exchange kline interval.
type Timeframe string

const (
	TF1m  Timeframe = "1m"
	TF3m  Timeframe = "3m"
	TF5m  Timeframe = "5m"
	TF15m Timeframe = "15m"
	TF30m Timeframe = "30m"
	TF1h  Timeframe = "1h"
	TF2h  Timeframe = "2h"
	TF4h  Timeframe = "4h"
	TF6h  Timeframe = "6h"
	TF8h  Timeframe = "8h"
	TF12h Timeframe = "12h"
	TF1d  Timeframe = "1d"
	TF3d  Timeframe = "3d"
	TF1w  Timeframe = "1w"
	TF1M  Timeframe = "1M"
)

var durations = map[Timeframe]time.Duration{
	TF1m:  time.Minute,
	TF3m:  3 * time.Minute,
	TF5m:  5 * time.Minute,
	TF15m: 15 * time.Minute,
	TF30m: 30 * time.Minute,
	TF1h:  time.Hour,
	TF2h:  2 * time.Hour,
	TF4h:  4 * time.Hour,
	TF6h:  6 * time.Hour,
	TF8h:  8 * time.Hour,
	TF12h: 12 * time.Hour,
	TF1d:  24 * time.Hour,
	TF3d:  72 * time.Hour,
	TF1w:  7 * 24 * time.Hour,
	TF1M:  30 * 24 * time.Hour,
}

// aliases maps labels seen on exchange pages to intervals.
var aliases = map[string]Timeframe{
	"1":   TF1m,
	"3":   TF3m,
	"5":   TF5m,
	"15":  TF15m,
	"30":  TF30m,
	"60":  TF1h,
	"120": TF2h,
	"240": TF4h,
	"360": TF6h,
	"480": TF8h,
	"720": TF12h,
	"1H":  TF1h,
	"2H":  TF2h,
	"4H":  TF4h,
	"6H":  TF6h,
	"8H":  TF8h,
	"12H": TF12h,
	"D":   TF1d,
	"1D":  TF1d,
	"3D":  TF3d,
	"W":   TF1w,
	"1W":  TF1w,
	"M":   TF1M,
	"1MO": TF1M,
}

// IsValidTimeframe returns true if tf is a supported timeframe.
func IsValidTimeframe(tf Timeframe) bool {
	_, ok := durations[tf]
	return ok
}

// DefaultTimeframe returns the default timeframe.
func DefaultTimeframe() Timeframe { return TF1h }

// ParseTimeframe converts a raw label ("15m", "1H", "240", "D") to an interval.
func ParseTimeframe(s string) (Timeframe, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	if tf := Timeframe(s); IsValidTimeframe(tf) {
		return tf, true
	}
	if tf, ok := aliases[strings.ToUpper(s)]; ok {
		return tf, true
	}
	if tf := Timeframe(strings.ToLower(s)); IsValidTimeframe(tf) && tf != "1m" {
		return tf, true
	}
	return "", false
}

// NormalizeTimeframe converts raw string to a valid timeframe (or default).
func NormalizeTimeframe(s string) Timeframe {
	if tf, ok := ParseTimeframe(s); ok {
		return tf
	}
	return DefaultTimeframe()
}

// Duration returns the bar length of tf.
func (tf Timeframe) Duration() time.Duration {
	return durations[tf]
}
