package marketdata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	drepo "TradeLens/internal/domain/repository"
	"TradeLens/internal/service/ratelimit"
	"TradeLens/pkg/config"
)

func TestParseKlines(t *testing.T) {
	body := `[
		[1700000060000, "101.5", "103", "100", "102", "12.5", 1700000119999, "0", 10],
		[1700000000000, 100, 102, 99, 101.5, 10, 1700000059999],
		[1700000060000, "101.5", "104", "100", "103", "13", 1700000119999]
	]`
	cs, err := ParseKlines([]byte(body))
	require.NoError(t, err)
	require.Len(t, cs, 2)
	assert.Equal(t, int64(1700000000000), cs[0].Timestamp)
	assert.Equal(t, 101.5, cs[0].Close)
	assert.Equal(t, 103.0, cs[1].Close)
	assert.Equal(t, 13.0, cs[1].Volume)
}

func TestParseKlines_Malformed(t *testing.T) {
	_, err := ParseKlines([]byte(`[[1700000000000, "1", "2"]]`))
	assert.ErrorIs(t, err, ErrMalformedKline)

	_, err = ParseKlines([]byte(`[[1700000000000, "x", "2", "1", "1", "1"]]`))
	assert.ErrorIs(t, err, ErrMalformedKline)

	_, err = ParseKlines([]byte(`{"code":-1121}`))
	assert.Error(t, err)
}

func TestKlinesClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "BTCUSDT", q.Get("symbol"))
		assert.Equal(t, "15m", q.Get("interval"))
		assert.Equal(t, "300", q.Get("limit"))
		_, _ = w.Write([]byte(`[[1700000000000,"1","2","0.5","1.5","100"]]`))
	}))
	defer srv.Close()

	cfg := &config.Config{}
	cfg.MarketData.KlinesURL = srv.URL + "/api/v3/klines"
	cfg.MarketData.RequestTimeout = time.Second
	c := NewKlinesClient(cfg, ratelimit.New(0, 1))

	cs, err := c.LatestCandles(context.Background(), "btcusdt", drepo.TF15m, 300)
	require.NoError(t, err)
	require.Len(t, cs, 1)
	assert.Equal(t, 1.5, cs[0].Close)

	_, err = c.LatestCandles(context.Background(), "BTCUSDT", drepo.Timeframe("7m"), 300)
	assert.Error(t, err)
}

func TestKlinesClient_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	cfg := &config.Config{}
	cfg.MarketData.KlinesURL = srv.URL
	cfg.MarketData.RequestTimeout = time.Second
	_, err := NewKlinesClient(cfg, nil).LatestCandles(context.Background(), "BTCUSDT", drepo.TF1h, 10)
	assert.Error(t, err)
}

func TestParseKlineEvent(t *testing.T) {
	tick, ok := ParseKlineEvent([]byte(`{"e":"kline","s":"BTCUSDT","k":{"t":1700000000000,"i":"1m","o":"1","h":"3","l":"0.5","c":"2.5","v":"7","x":true}}`))
	require.True(t, ok)
	assert.Equal(t, "BTCUSDT", tick.Symbol)
	assert.Equal(t, "1m", tick.Timeframe)
	assert.True(t, tick.Closed)
	assert.Equal(t, 2.5, tick.Price)
	assert.Equal(t, 3.0, tick.Candle.High)

	_, ok = ParseKlineEvent([]byte(`{"result":null,"id":1}`))
	assert.False(t, ok)
}

func TestKlineStream_FollowAndReconnect(t *testing.T) {
	var mu sync.Mutex
	var paths []string
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		sym := strings.ToUpper(strings.SplitN(strings.TrimPrefix(r.URL.Path, "/ws/"), "@", 2)[0])
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"e":"kline","s":"`+sym+`","k":{"t":1,"i":"1m","o":"1","h":"1","l":"1","c":"1","v":"1","x":false}}`))
		// close after one frame to force a reconnect
		_ = conn.Close()
	}))
	defer srv.Close()

	cfg := &config.Config{}
	cfg.MarketData.StreamURL = "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	cfg.MarketData.ReconnectDelay = 20 * time.Millisecond
	s := NewKlineStream(cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = s.Run(ctx)
		close(done)
	}()

	s.Follow("btcusdt", drepo.TF1m)
	first := <-s.Ticks()
	assert.Equal(t, "BTCUSDT", first.Symbol)
	second := <-s.Ticks()
	assert.Equal(t, "BTCUSDT", second.Symbol)

	s.Follow("ETHUSDT", drepo.TF1m)
	require.Eventually(t, func() bool {
		select {
		case tk := <-s.Ticks():
			return tk.Symbol == "ETHUSDT"
		default:
			return false
		}
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, paths, "/ws/btcusdt@kline_1m")
	assert.Contains(t, paths, "/ws/ethusdt@kline_1m")
}
