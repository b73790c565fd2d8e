package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"TradeLens/internal/domain/models"
)

type countingAnalyzer struct {
	mu      sync.Mutex
	calls   int
	source  models.Source
	release chan struct{}
	started chan struct{}
}

func (a *countingAnalyzer) Analyze(_ context.Context, mc models.MarketContext) models.AnalysisResult {
	a.mu.Lock()
	a.calls++
	src := a.source
	a.mu.Unlock()
	if a.started != nil {
		a.started <- struct{}{}
	}
	if a.release != nil {
		<-a.release
	}
	if src == "" {
		src = models.SourceBackend
	}
	return models.AnalysisResult{Symbol: mc.Symbol, Timeframe: mc.Timeframe, Source: src}
}

func (a *countingAnalyzer) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

func TestManager_SkipsFreshDuplicate(t *testing.T) {
	clock := newManualClock()
	an := &countingAnalyzer{}
	m := NewAnalysisManager(an, 30*time.Second)
	m.now = clock.Now

	_, ran := m.Request(context.Background(), btc1h(), false)
	assert.True(t, ran)

	clock.Advance(10 * time.Second)
	r, ran := m.Request(context.Background(), btc1h(), false)
	assert.False(t, ran)
	assert.Equal(t, "BTCUSDT", r.Symbol)
	assert.Equal(t, 1, an.count())

	clock.Advance(25 * time.Second)
	_, ran = m.Request(context.Background(), btc1h(), false)
	assert.True(t, ran)
	assert.Equal(t, 2, an.count())
}

func TestManager_NewKeyAndForceRun(t *testing.T) {
	an := &countingAnalyzer{}
	m := NewAnalysisManager(an, time.Minute)

	m.Request(context.Background(), btc1h(), false)
	mc := btc1h()
	mc.Leverage = 20
	_, ran := m.Request(context.Background(), mc, false)
	assert.True(t, ran)

	_, ran = m.Request(context.Background(), mc, true)
	assert.True(t, ran)
	assert.Equal(t, 3, an.count())
}

func TestManager_FailedKeyIsRetried(t *testing.T) {
	an := &countingAnalyzer{source: models.SourceError}
	m := NewAnalysisManager(an, time.Minute)

	m.Request(context.Background(), btc1h(), false)
	_, ran := m.Request(context.Background(), btc1h(), false)
	assert.True(t, ran)
	assert.Equal(t, 2, an.count())
}

func TestManager_SkipsWhileInFlight(t *testing.T) {
	an := &countingAnalyzer{release: make(chan struct{}), started: make(chan struct{}, 1)}
	m := NewAnalysisManager(an, time.Minute)

	done := make(chan struct{})
	go func() {
		m.Request(context.Background(), btc1h(), false)
		close(done)
	}()
	<-an.started

	mc := btc1h()
	mc.Symbol = "ETHUSDT"
	_, ran := m.Request(context.Background(), mc, false)
	assert.False(t, ran)

	close(an.release)
	<-done
	last, ok := m.Last()
	assert.True(t, ok)
	assert.Equal(t, "BTCUSDT", last.Symbol)
	assert.Equal(t, 1, an.count())
}
