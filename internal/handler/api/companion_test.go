package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TradeLens/internal/domain/models"
	"TradeLens/internal/usecase"
	xhttp "TradeLens/pkg/http"
)

type fakeEngine struct {
	ctx      models.MarketContext
	cooldown *models.CooldownState
	err      error
	gotForce bool
}

func (f *fakeEngine) Analyze(_ context.Context, symbol, timeframe string, force bool) (models.AnalysisResult, error) {
	f.gotForce = force
	if f.err != nil {
		return models.AnalysisResult{}, f.err
	}
	return models.AnalysisResult{Symbol: symbol, Timeframe: timeframe, Source: models.SourceClient, Score: 61, Band: "buy"}, nil
}

func (f *fakeEngine) Context() (models.MarketContext, bool) { return f.ctx, !f.ctx.IsZero() }
func (f *fakeEngine) Cooldown() *models.CooldownState      { return f.cooldown }
func (f *fakeEngine) Stats() models.EngineStats {
	return models.EngineStats{CacheHits: 4, Tiers: map[string]models.TierStats{}}
}

type fakeDispatcher struct{ got []models.Message }

func (f *fakeDispatcher) Dispatch(_ context.Context, m models.Message) models.Response {
	f.got = append(f.got, m)
	if m.Type == "fail" {
		return models.Response{ID: m.ID, Error: "nope"}
	}
	return models.Response{ID: m.ID, OK: true, Data: m.Type}
}

type fakeCandleReader struct{ err error }

func (f fakeCandleReader) GetCandles(_ context.Context, p usecase.GetCandlesParams) (*usecase.GetCandlesResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &usecase.GetCandlesResult{Symbol: p.Symbol, Timeframe: p.Timeframe, Count: p.Limit}, nil
}

type connected bool

func (c connected) IsConnected() bool { return bool(c) }

func newTestEcho(h xhttp.Handler) *echo.Echo {
	e := echo.New()
	h.RegisterRoutes(e)
	return e
}

func do(e *echo.Echo, method, target, body string) (*httptest.ResponseRecorder, xhttp.APIResponse) {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	var out xhttp.APIResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	return rec, out
}

func TestCompanionHandler_Analysis(t *testing.T) {
	eng := &fakeEngine{}
	e := newTestEcho(NewCompanionHandler(nil, eng, &fakeDispatcher{}, fakeCandleReader{}, nil))

	rec, out := do(e, http.MethodGet, "/api/analysis?symbol=BTCUSDT&timeframe=4h&force=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	data := out.Data.(map[string]interface{})
	assert.Equal(t, "BTCUSDT", data["symbol"])
	assert.Equal(t, "4h", data["timeframe"])
	assert.True(t, eng.gotForce)

	rec, _ = do(e, http.MethodGet, "/api/analysis", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCompanionHandler_AnalysisDefaultsTimeframe(t *testing.T) {
	e := newTestEcho(NewCompanionHandler(nil, &fakeEngine{}, &fakeDispatcher{}, fakeCandleReader{}, nil))
	_, out := do(e, http.MethodGet, "/api/analysis?symbol=ETHUSDT", "")
	assert.Equal(t, "1h", out.Data.(map[string]interface{})["timeframe"])
}

func TestCompanionHandler_AnalysisErrors(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{fmt.Errorf("%w %q", usecase.ErrInvalidTimeframe, "9y"), http.StatusBadRequest},
		{usecase.ErrNoContext, http.StatusNotFound},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		e := newTestEcho(NewCompanionHandler(nil, &fakeEngine{err: tc.err}, &fakeDispatcher{}, fakeCandleReader{}, nil))
		rec, _ := do(e, http.MethodGet, "/api/analysis?symbol=BTCUSDT", "")
		assert.Equal(t, tc.code, rec.Code, tc.err.Error())
	}
}

func TestCompanionHandler_Message(t *testing.T) {
	d := &fakeDispatcher{}
	e := newTestEcho(NewCompanionHandler(nil, &fakeEngine{}, d, fakeCandleReader{}, nil))

	rec, out := do(e, http.MethodPost, "/api/message", `{"id":"7","type":"get_state"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := out.Data.(map[string]interface{})
	assert.Equal(t, "7", resp["id"])
	assert.Equal(t, true, resp["ok"])
	require.Len(t, d.got, 1)
	assert.Equal(t, models.MsgGetState, d.got[0].Type)

	rec, out = do(e, http.MethodPost, "/api/message", `{"id":"8","type":"fail"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, out.Data.(map[string]interface{})["ok"])

	rec, _ = do(e, http.MethodPost, "/api/message", `{"id":"9"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCompanionHandler_ContextCooldownStats(t *testing.T) {
	eng := &fakeEngine{}
	e := newTestEcho(NewCompanionHandler(nil, eng, &fakeDispatcher{}, fakeCandleReader{}, connected(true)))

	rec, _ := do(e, http.MethodGet, "/api/context", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	eng.ctx = models.MarketContext{Symbol: "BTCUSDT", Timeframe: "1h"}
	rec, out := do(e, http.MethodGet, "/api/context", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "BTCUSDT", out.Data.(map[string]interface{})["symbol"])

	_, out = do(e, http.MethodGet, "/api/cooldown", "")
	assert.Equal(t, false, out.Data.(map[string]interface{})["active"])

	_, out = do(e, http.MethodGet, "/api/stats", "")
	assert.EqualValues(t, 4, out.Data.(map[string]interface{})["cache_hits"])

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Contains(t, rec.Body.String(), `"stream_connected":true`)
}

func TestCompanionHandler_Candles(t *testing.T) {
	e := newTestEcho(NewCompanionHandler(nil, &fakeEngine{}, &fakeDispatcher{}, fakeCandleReader{}, nil))
	rec, out := do(e, http.MethodGet, "/api/candles?symbol=BTCUSDT", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 300, out.Data.(map[string]interface{})["count"])

	rec, _ = do(e, http.MethodGet, "/api/candles?symbol=BTCUSDT&limit=5000", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	e = newTestEcho(NewCompanionHandler(nil, &fakeEngine{}, &fakeDispatcher{}, fakeCandleReader{err: usecase.ErrTierUnavailable}, nil))
	rec, _ = do(e, http.MethodGet, "/api/candles?symbol=BTCUSDT", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
