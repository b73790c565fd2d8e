package observer

import (
	"net/url"
	"strings"
	"unicode"

	"TradeLens/internal/domain/models"
	drepo "TradeLens/internal/domain/repository"
	"TradeLens/pkg/util"
)

var quoteAssets = []string{"FDUSD", "USDT", "USDC", "BUSD", "USD", "BTC", "ETH"}

// ParseSymbol normalises a displayed instrument name to BASEQUOTE form.
// "btc/usdt Perpetual" and "BTCUSDT PERP" both give "BTCUSDT"; a bare base
// gets USDT appended.
func ParseSymbol(text string) string {
	fields := strings.Fields(strings.ToUpper(text))
	if len(fields) == 0 {
		return ""
	}
	s := alnum(fields[0])
	s = strings.TrimSuffix(s, "PERP")
	if s == "" {
		return ""
	}
	if _, ok := quoteOf(s); !ok {
		s += "USDT"
	}
	return s
}

// SymbolFromURL takes the last path segment when it looks like a pair.
func SymbolFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	path := strings.TrimRight(u.Path, "/")
	seg := path[strings.LastIndex(path, "/")+1:]
	s := strings.TrimSuffix(alnum(strings.ToUpper(seg)), "PERP")
	if _, ok := quoteOf(s); !ok {
		return ""
	}
	return s
}

func quoteOf(s string) (string, bool) {
	for _, q := range quoteAssets {
		if len(s) > len(q) && strings.HasSuffix(s, q) {
			return q, true
		}
	}
	return "", false
}

func alnum(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

var unitWords = []struct{ word, unit string }{
	{"minutes", "m"}, {"minute", "m"}, {"mins", "m"}, {"min", "m"},
	{"hours", "h"}, {"hour", "h"}, {"hrs", "h"}, {"hr", "h"},
	{"days", "d"}, {"day", "d"},
	{"weeks", "w"}, {"week", "w"},
	{"months", "M"}, {"month", "M"},
}

// ParseTimeframe maps a timeframe label ("15m", "4H", "1 hour", "D") to an
// exchange interval. Case matters only for 1m versus 1M.
func ParseTimeframe(text string) (string, bool) {
	s := strings.Join(strings.Fields(text), "")
	lower := strings.ToLower(s)
	for _, u := range unitWords {
		if len(lower) > len(u.word) && strings.HasSuffix(lower, u.word) {
			s = lower[:len(lower)-len(u.word)] + u.unit
			break
		}
	}
	tf, ok := drepo.ParseTimeframe(s)
	return string(tf), ok
}

// ParseLeverage reads "20x" or "Leverage 20X". Zero means unknown.
func ParseLeverage(text string) int {
	for _, f := range strings.Fields(text) {
		if v, ok := util.ParseFloat(strings.TrimPrefix(strings.ToLower(f), "x")); ok && v > 0 {
			lev := int(v)
			if lev < models.MinLeverage {
				lev = models.MinLeverage
			}
			if lev > models.MaxLeverage {
				lev = models.MaxLeverage
			}
			return lev
		}
	}
	return 0
}

// ParseMargin returns cross, isolated or "".
func ParseMargin(text string) string {
	s := strings.ToLower(text)
	switch {
	case strings.Contains(s, "cross"):
		return models.MarginCross
	case strings.Contains(s, "iso"):
		return models.MarginIsolated
	}
	return ""
}

// ParsePosition reads a position row such as "Long 0.5 BTC @ 42,000".
// The first number is the size, the second the entry price. A negative size
// without a side word is a short.
func ParsePosition(text string) *models.Position {
	var side string
	var nums []float64
	for _, f := range strings.Fields(strings.ToLower(text)) {
		switch strings.Trim(f, ":,") {
		case "long", "buy":
			side = models.SideLong
			continue
		case "short", "sell":
			side = models.SideShort
			continue
		}
		if v, ok := util.ParseFloat(strings.TrimPrefix(f, "@")); ok {
			nums = append(nums, v)
		}
	}
	if len(nums) == 0 || nums[0] == 0 {
		return nil
	}
	size := nums[0]
	if side == "" {
		side = models.SideLong
		if size < 0 {
			side = models.SideShort
		}
	}
	if size < 0 {
		size = -size
	}
	p := &models.Position{Side: side, Size: size}
	if len(nums) > 1 {
		p.EntryPrice = nums[1]
	}
	return p
}
