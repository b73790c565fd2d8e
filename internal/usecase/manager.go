package usecase

import (
	"context"
	"sync"
	"time"

	"TradeLens/internal/domain/models"
)

// Analyzer is the orchestrator seen from the manager.
type Analyzer interface {
	Analyze(ctx context.Context, mc models.MarketContext) models.AnalysisResult
}

// AnalysisManager keeps duplicate refreshes away from the orchestrator. A
// request is skipped while another one is in flight, or when the context
// key is unchanged and its last successful analysis is still fresh. Force
// bypasses both checks.
type AnalysisManager struct {
	analyzer  Analyzer
	freshness time.Duration
	now       func() time.Time

	mu         sync.Mutex
	inFlight   bool
	lastKey    string
	successKey string
	successAt  time.Time
	last       *models.AnalysisResult
}

func NewAnalysisManager(analyzer Analyzer, freshness time.Duration) *AnalysisManager {
	if freshness <= 0 {
		freshness = 30 * time.Second
	}
	return &AnalysisManager{analyzer: analyzer, freshness: freshness, now: time.Now}
}

// Request analyses mc unless suppressed. ran is false when the request was
// skipped; the last result, if any, is returned instead.
func (m *AnalysisManager) Request(ctx context.Context, mc models.MarketContext, force bool) (res models.AnalysisResult, ran bool) {
	key := mc.Key()

	m.mu.Lock()
	if !force && m.skipLocked(key) {
		var last models.AnalysisResult
		if m.last != nil {
			last = m.last.WithContext(mc)
		}
		m.mu.Unlock()
		return last, false
	}
	m.inFlight = true
	m.lastKey = key
	m.mu.Unlock()

	r := m.analyzer.Analyze(ctx, mc)

	m.mu.Lock()
	m.inFlight = false
	if r.Source != models.SourceError {
		m.successKey = key
		m.successAt = m.now()
	}
	m.last = &r
	m.mu.Unlock()
	return r, true
}

func (m *AnalysisManager) skipLocked(key string) bool {
	if m.inFlight {
		return true
	}
	return key == m.lastKey && key == m.successKey && m.now().Sub(m.successAt) < m.freshness
}

// Last returns the most recent result.
func (m *AnalysisManager) Last() (models.AnalysisResult, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.last == nil {
		return models.AnalysisResult{}, false
	}
	return m.last.Clone(), true
}
