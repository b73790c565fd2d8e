package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TradeLens/internal/domain/models"
	"TradeLens/pkg/config"
)

func testConfig(baseURL string) *config.Config {
	cfg := &config.Config{}
	cfg.Analytics.BaseURL = baseURL
	cfg.Analytics.RemoteTimeout = time.Second
	cfg.Analytics.EphemeralTimeout = time.Second
	cfg.Analytics.MTFTimeout = time.Second
	cfg.Analytics.BehaviorTimeout = time.Second
	cfg.Analytics.Breaker.MaxFailures = 2
	cfg.Analytics.Breaker.OpenTimeout = time.Minute
	return cfg
}

func TestContextClient_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/context", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		assert.Equal(t, "1h", r.URL.Query().Get("timeframe"))
		_, _ = w.Write([]byte(`{
			"trade_allowed": true,
			"market_state": "trend",
			"trend_direction": "up",
			"volatility_regime": "normal",
			"setup_candidates": ["pullback_continuation"],
			"suggested_leverage_band": [20, 4],
			"confidence_pattern": 140
		}`))
	}))
	defer srv.Close()

	c := NewContextClient(testConfig(srv.URL), nil)
	res, err := c.AnalyzeContext(context.Background(), "BTCUSDT", "1h")
	require.NoError(t, err)
	assert.Equal(t, models.SourceBackend, res.Source)
	assert.Equal(t, models.StateTrend, res.MarketState)
	assert.Equal(t, models.TrendUp, res.TrendDirection)
	assert.Equal(t, models.LeverageBand{4, 20}, res.SuggestedLeverageBand)
	assert.Equal(t, 100.0, res.ConfidencePattern)
	assert.Equal(t, "BTCUSDT", res.Symbol)
	assert.NotNil(t, res.RiskFlags)
}

func TestContextClient_InsufficientData(t *testing.T) {
	cases := map[string]func(w http.ResponseWriter){
		"status field": func(w http.ResponseWriter) {
			_, _ = w.Write([]byte(`{"status":"insufficient_data"}`))
		},
		"error field": func(w http.ResponseWriter) {
			_, _ = w.Write([]byte(`{"error":"Insufficient candles for BTCUSDT"}`))
		},
		"flag": func(w http.ResponseWriter) {
			_, _ = w.Write([]byte(`{"market_state":"undefined","risk_flags":["insufficient_data"]}`))
		},
		"422": func(w http.ResponseWriter) {
			w.WriteHeader(http.StatusUnprocessableEntity)
		},
	}
	for name, reply := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { reply(w) }))
			defer srv.Close()

			c := NewContextClient(testConfig(srv.URL), nil)
			for i := 0; i < 5; i++ {
				_, err := c.AnalyzeContext(context.Background(), "BTCUSDT", "1h")
				assert.ErrorIs(t, err, ErrInsufficientData)
			}
			assert.Equal(t, gobreaker.StateClosed, c.State())
		})
	}
}

func TestContextClient_BreakerOpens(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewContextClient(testConfig(srv.URL), nil)
	for i := 0; i < 2; i++ {
		_, err := c.AnalyzeContext(context.Background(), "ETHUSDT", "4h")
		require.Error(t, err)
		assert.False(t, errors.Is(err, ErrUnavailable))
	}
	_, err := c.AnalyzeContext(context.Background(), "ETHUSDT", "4h")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, gobreaker.StateOpen, c.State())
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestContextClient_Malformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"market_state":`))
	}))
	defer srv.Close()

	_, err := NewContextClient(testConfig(srv.URL), nil).AnalyzeContext(context.Background(), "BTCUSDT", "1h")
	require.Error(t, err)
}

func TestContextClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := NewContextClient(testConfig(srv.URL), nil).AnalyzeContext(ctx, "BTCUSDT", "1h")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNotConfigured(t *testing.T) {
	_, err := NewContextClient(testConfig(""), nil).AnalyzeContext(context.Background(), "BTCUSDT", "1h")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestEphemeralClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		switch r.URL.Path {
		case "/analyze-ephemeral":
			var req ephemeralRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "SOLUSDT", req.Symbol)
			assert.Len(t, req.Candles, 2)
			_, _ = w.Write([]byte(`{"market_state":"range","trend_direction":null,"suggested_leverage_band":[3,10],"confidence_pattern":55}`))
		case "/analyze-mtf":
			var req mtfRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, []string{"15m", "1h"}, req.Timeframes)
			_, _ = w.Write([]byte(`{"timeframes":{"15m":{"market_state":"trend"},"1h":{"market_state":"range"}},"alignment":"mixed","confidence":120}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewEphemeralClient(testConfig(srv.URL), nil)
	res, err := c.AnalyzeEphemeral(context.Background(), "SOLUSDT", "15m", []models.Candle{{Close: 1}, {Close: 2}})
	require.NoError(t, err)
	assert.Equal(t, models.SourceEphemeral, res.Source)
	assert.Equal(t, models.StateRange, res.MarketState)
	assert.Equal(t, models.TrendDirection(""), res.TrendDirection)

	_, err = c.AnalyzeEphemeral(context.Background(), "SOLUSDT", "15m", nil)
	assert.ErrorIs(t, err, ErrInsufficientData)

	mtf, err := c.AnalyzeMTF(context.Background(), "SOLUSDT", []string{"15m", "1h"})
	require.NoError(t, err)
	assert.Equal(t, "SOLUSDT", mtf.Symbol)
	assert.Equal(t, 100.0, mtf.Confidence)
	require.Contains(t, mtf.Timeframes, "1h")
	assert.Equal(t, "1h", mtf.Timeframes["1h"].Timeframe)
	assert.Equal(t, models.SourceEphemeral, mtf.Timeframes["15m"].Source)
}

func TestBehaviorAndJournal(t *testing.T) {
	var journal models.JournalBatch
	var report models.CooldownReport
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/behavior/analyze":
			assert.Equal(t, "sess-1", r.URL.Query().Get("session_id"))
			_, _ = w.Write([]byte(`{"in_cooldown":true,"cooldown_minutes":20,"reason":"revenge trading","risk_score":0.8}`))
		case "/behavior/cooldown":
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&report))
			w.WriteHeader(http.StatusNoContent)
		case "/journal":
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&journal))
			w.WriteHeader(http.StatusAccepted)
		}
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	b := NewBehaviorClient(cfg, nil)
	rep, err := b.Analyze(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.True(t, rep.InCooldown)
	assert.Equal(t, 20, rep.CooldownMinutes)

	require.NoError(t, b.ReportCooldown(context.Background(), models.CooldownReport{SessionID: "sess-1", Action: "start", Minutes: 15}))
	assert.Equal(t, "start", report.Action)

	j := NewJournalClient(cfg, nil)
	require.NoError(t, j.Submit(context.Background(), "sess-1", nil))
	require.NoError(t, j.Submit(context.Background(), "sess-1", []models.JournalEvent{{ID: "e1", Type: models.EventAnalysis}}))
	assert.Equal(t, "sess-1", journal.SessionID)
	require.Len(t, journal.Events, 1)
	assert.Equal(t, "e1", journal.Events[0].ID)
}

func TestJournalClient_Non2xxFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := NewJournalClient(testConfig(srv.URL), nil).Submit(context.Background(), "s", []models.JournalEvent{{ID: "x"}})
	assert.Error(t, err)
}

func TestEnrichmentClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		_, _ = w.Write([]byte(`{"sentiment":3,"news_sentiment":-0.5,"volume_spike":"huge"}`))
	}))
	defer srv.Close()

	e, err := NewEnrichmentClient(testConfig(srv.URL), nil).Enrichment(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, 1.0, e.Sentiment)
	assert.Equal(t, -0.5, e.NewsSentiment)
	assert.Equal(t, models.VolumeSpikeNone, e.VolumeSpike)
	assert.False(t, e.FetchedAt.IsZero())
}

func TestRetryOn5xx(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"sentiment":0.2}`))
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.Analytics.Retries = 1
	e, err := NewEnrichmentClient(cfg, nil).Enrichment(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, 0.2, e.Sentiment)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}
