package server

import (
	"context"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"TradeLens/pkg/cache"
	"TradeLens/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type blockingRunner struct {
	started atomic.Bool
	stopped atomic.Bool
}

func (r *blockingRunner) Run(ctx context.Context) error {
	r.started.Store(true)
	<-ctx.Done()
	r.stopped.Store(true)
	return ctx.Err()
}

type exitingRunner struct{}

func (exitingRunner) Run(context.Context) error { return nil }

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte("server:\n  port: 0\n"))
	require.NoError(t, err)
	return cfg
}

func TestAppStopsComponentsOnSignal(t *testing.T) {
	bridge, engine := &blockingRunner{}, &blockingRunner{}
	kv := cache.NewMemoryCache()
	app := New(testConfig(t), nil, prometheus.NewRegistry(), nil, bridge, engine, nil, nil, kv)

	stop := make(chan os.Signal, 1)
	done := make(chan error, 1)
	go func() { done <- app.run(stop) }()

	require.Eventually(t, func() bool { return bridge.started.Load() && engine.started.Load() }, time.Second, 5*time.Millisecond)
	stop <- os.Interrupt

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop")
	}
	assert.True(t, bridge.stopped.Load())
	assert.True(t, engine.stopped.Load())
}

func TestAppReportsEngineExit(t *testing.T) {
	app := New(testConfig(t), nil, nil, nil, &blockingRunner{}, exitingRunner{}, nil, nil, nil)

	err := app.run(make(chan os.Signal))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "engine stopped unexpectedly")
}
