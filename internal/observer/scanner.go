package observer

import (
	"time"

	"TradeLens/internal/domain/models"
	drepo "TradeLens/internal/domain/repository"
	"TradeLens/internal/service/cache"
)

// Logical fields looked up on the page.
const (
	FieldSymbol    = "symbol"
	FieldTimeframe = "timeframe"
	FieldLeverage  = "leverage"
	FieldMargin    = "margin"
	FieldPosition  = "position"
)

// Scanner resolves logical fields to page nodes through the DOM-lookup
// cache and parses them into a MarketContext.
type Scanner struct {
	doc       Document
	selectors map[string][]string
	cache     *cache.TTLCache[Node]
	metrics   drepo.Metrics
}

func NewScanner(doc Document, selectors map[string][]string, ttl time.Duration, metrics drepo.Metrics, opts ...cache.Option[Node]) *Scanner {
	if metrics == nil {
		metrics = drepo.NopMetrics{}
	}
	opts = append(opts, cache.WithLiveness[Node](func(n Node) bool { return n.Attached() }))
	return &Scanner{
		doc:       doc,
		selectors: selectors,
		cache:     cache.NewTTLCache[Node](ttl, opts...),
		metrics:   metrics,
	}
}

// Lookup returns the node for a logical field, trying candidate selectors
// in order on a cache miss.
func (s *Scanner) Lookup(field string) (Node, bool) {
	if n, ok := s.cache.Get(field); ok {
		s.metrics.RecordCache("dom", true)
		return n, true
	}
	s.metrics.RecordCache("dom", false)
	for _, sel := range s.selectors[field] {
		if n, ok := s.doc.Query(sel); ok {
			s.cache.Set(field, n)
			return n, true
		}
	}
	return nil, false
}

func (s *Scanner) text(field string) string {
	if n, ok := s.Lookup(field); ok {
		return n.Text()
	}
	return ""
}

// Scan reads the whole context. The symbol falls back to the URL; a missing
// timeframe reads as the default interval.
func (s *Scanner) Scan(now time.Time) models.MarketContext {
	mc := models.MarketContext{Timestamp: now}
	mc.Symbol = ParseSymbol(s.text(FieldSymbol))
	if mc.Symbol == "" {
		mc.Symbol = SymbolFromURL(s.doc.URL())
	}
	if tf, ok := ParseTimeframe(s.text(FieldTimeframe)); ok {
		mc.Timeframe = tf
	} else {
		mc.Timeframe = string(drepo.DefaultTimeframe())
	}
	mc.Leverage = ParseLeverage(s.text(FieldLeverage))
	mc.MarginType = ParseMargin(s.text(FieldMargin))
	mc.Position = ParsePosition(s.text(FieldPosition))
	return mc
}

// Clear drops every cached node, used on navigation.
func (s *Scanner) Clear() { s.cache.Clear() }
