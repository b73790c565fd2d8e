package logger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	mu      sync.Mutex
	topic   string
	digests [][]AggregatedLogEntry
}

func (p *capturePublisher) PublishMessage(_ context.Context, topic string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topic = topic
	p.digests = append(p.digests, payload.([]AggregatedLogEntry))
	return nil
}

func (p *capturePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.digests)
}

func TestCollectorFoldsDuplicates(t *testing.T) {
	pub := &capturePublisher{}
	c := NewLogCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 10, Topic: "log_digest", Publisher: pub})

	for i := 0; i < 3; i++ {
		c.AddLog("error", "tier failed", map[string]interface{}{"tier": "remote"}, "x.go:1")
	}
	c.AddLog("error", "tier failed", map[string]interface{}{"tier": "ephemeral"}, "x.go:1")
	assert.Equal(t, 2, c.Pending())

	c.Close()
	require.Equal(t, 1, pub.count())
	assert.Equal(t, "log_digest", pub.topic)
	total := 0
	for _, e := range pub.digests[0] {
		total += e.Count
	}
	assert.Equal(t, 4, total)
}

func TestCollectorFlushesOnThreshold(t *testing.T) {
	pub := &capturePublisher{}
	c := NewLogCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 2, Publisher: pub})
	defer c.Close()

	c.AddLog("error", "a", nil, "x.go:1")
	c.AddLog("error", "b", nil, "x.go:2")
	assert.Eventually(t, func() bool { return pub.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, c.Pending())
}

func TestLoggerFeedsCollectorOnError(t *testing.T) {
	pub := &capturePublisher{}
	l := Nop()
	col := l.AddCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 100, Publisher: pub})
	l.Warn("not collected")
	l.Error("collected", String("symbol", "BTCUSDT"))
	assert.Equal(t, 1, col.Pending())
	l.RemoveCollector()
	assert.Equal(t, 1, pub.count())
}

func TestChildLoggerSeesLaterCollector(t *testing.T) {
	pub := &capturePublisher{}
	l := Nop()
	child := l.With(String("component", "orchestrator"))
	col := l.AddCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 100, Publisher: pub})
	child.Error("tier failed")
	assert.Equal(t, 1, col.Pending())
	l.RemoveCollector()
	child.Error("after removal")
	assert.Equal(t, 1, pub.count())
}
