package usecase

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TradeLens/internal/domain/models"
	"TradeLens/pkg/logger"
)

func TestDispatch_UnknownType(t *testing.T) {
	f := newCompanionFixture(btc1h())
	resp := f.send(t, "teleport", nil)
	assert.False(t, resp.OK)
	assert.Contains(t, resp.Error, "unknown message type")
}

func TestDispatch_UnknownTypeIsLogged(t *testing.T) {
	f := newCompanionFixture(btc1h())
	var buf bytes.Buffer
	d := NewDispatcher(f.c, logger.NewWriter(&buf))

	resp := d.Dispatch(context.Background(), models.Message{ID: "m7", Type: "teleport"})
	assert.False(t, resp.OK)

	line := buf.String()
	assert.Contains(t, line, `"level":"warn"`)
	assert.Contains(t, line, "unknown message type")
	assert.Contains(t, line, `"type":"teleport"`)
	assert.Contains(t, line, `"id":"m7"`)
}

func TestDispatch_KnownTypeLogsNoWarning(t *testing.T) {
	f := newCompanionFixture(btc1h())
	var buf bytes.Buffer
	d := NewDispatcher(f.c, logger.NewWriter(&buf))

	resp := d.Dispatch(context.Background(), models.Message{ID: "m8", Type: models.MsgGetContext})
	assert.True(t, resp.OK)
	assert.NotContains(t, buf.String(), "unknown message type")
}

func TestDispatch_RecoversPanics(t *testing.T) {
	f := newCompanionFixture(btc1h())
	f.d.handlers["boom"] = func(context.Context, models.Message) (interface{}, error) { panic("kaboom") }
	resp := f.send(t, "boom", nil)
	assert.False(t, resp.OK)
	assert.Equal(t, "internal error", resp.Error)
}

func TestDispatch_GetContext(t *testing.T) {
	f := newCompanionFixture(btc1h())
	resp := f.send(t, models.MsgGetContext, nil)
	require.True(t, resp.OK)
	assert.Equal(t, "BTCUSDT", resp.Data.(models.MarketContext).Symbol)

	empty := newCompanionFixture(models.MarketContext{})
	resp = empty.send(t, models.MsgGetContext, nil)
	require.True(t, resp.OK)
	assert.Nil(t, resp.Data)
}

func TestDispatch_Analyze(t *testing.T) {
	f := newCompanionFixture(btc1h())

	resp := f.send(t, models.MsgAnalyze, nil)
	require.True(t, resp.OK, resp.Error)
	r := resp.Data.(models.AnalysisResult)
	assert.Equal(t, "BTCUSDT", r.Symbol)
	assert.Equal(t, 10, r.Leverage)

	resp = f.send(t, models.MsgAnalyze, map[string]interface{}{"symbol": "ethusdt", "timeframe": "4h"})
	require.True(t, resp.OK, resp.Error)
	r = resp.Data.(models.AnalysisResult)
	assert.Equal(t, "ETHUSDT", r.Symbol)
	assert.Equal(t, "4h", r.Timeframe)
	assert.Equal(t, 2, f.pres.analysisCount())

	resp = f.send(t, models.MsgAnalyze, map[string]interface{}{"timeframe": "9y"})
	assert.False(t, resp.OK)

	resp = f.send(t, models.MsgAnalyze, map[string]interface{}{"symbol": "X"})
	assert.False(t, resp.OK)
	assert.Contains(t, resp.Error, "Symbol")
}

func TestDispatch_AnalyzeWithoutContext(t *testing.T) {
	f := newCompanionFixture(models.MarketContext{})
	resp := f.send(t, models.MsgAnalyze, nil)
	assert.False(t, resp.OK)
	assert.Equal(t, ErrNoContext.Error(), resp.Error)
}

func TestDispatch_RefreshForcesAnalysis(t *testing.T) {
	f := newCompanionFixture(btc1h())
	f.send(t, models.MsgAnalyze, nil)
	resp := f.send(t, models.MsgRefresh, nil)
	require.True(t, resp.OK, resp.Error)
	assert.Equal(t, 1, f.contexts.rescans)
	assert.Equal(t, 2, f.remote.calls)
	assert.False(t, resp.Data.(models.AnalysisResult).Cached)
}

func TestDispatch_AnalyzeMTFDefaults(t *testing.T) {
	f := newCompanionFixture(btc1h())
	resp := f.send(t, models.MsgAnalyzeMTF, nil)
	require.True(t, resp.OK, resp.Error)
	res := resp.Data.(models.MTFResult)
	assert.Len(t, res.Timeframes, 3)
	assert.Contains(t, res.Timeframes, "4h")
}

func TestDispatch_Explain(t *testing.T) {
	f := newCompanionFixture(btc1h())
	resp := f.send(t, models.MsgExplain, nil)
	require.True(t, resp.OK, resp.Error)
	ex := resp.Data.(models.Explanation)
	assert.Equal(t, ex.Result.Score, ex.Score)
}

func TestDispatch_Bookmarks(t *testing.T) {
	f := newCompanionFixture(btc1h())

	resp := f.send(t, models.MsgListBookmarks, nil)
	require.True(t, resp.OK)
	assert.Empty(t, resp.Data.([]models.Bookmark))

	resp = f.send(t, models.MsgBookmark, map[string]interface{}{"note": "breakout"})
	require.True(t, resp.OK, resp.Error)
	list := resp.Data.([]models.Bookmark)
	require.Len(t, list, 1)
	assert.Equal(t, "BTCUSDT", list[0].Symbol)
	assert.Equal(t, "1h", list[0].Timeframe)
	assert.Contains(t, f.journalTypes(), models.EventBookmark)
}

func TestDispatch_CooldownLifecycle(t *testing.T) {
	f := newCompanionFixture(btc1h())

	resp := f.send(t, models.MsgStartCooldown, nil)
	require.True(t, resp.OK, resp.Error)
	st := resp.Data.(*models.CooldownState)
	assert.Equal(t, "manual break", st.Reason)
	assert.InDelta(t, 900, st.RemainingSeconds, 1)

	resp = f.send(t, models.MsgStartCooldown, map[string]interface{}{"minutes": 5000})
	assert.False(t, resp.OK)

	resp = f.send(t, models.MsgCheckCooldown, nil)
	require.True(t, resp.OK)
	assert.NotNil(t, resp.Data.(*models.CooldownState))

	resp = f.send(t, models.MsgEndCooldown, nil)
	require.True(t, resp.OK)
	assert.Equal(t, map[string]bool{"ended": true}, resp.Data)

	resp = f.send(t, models.MsgEndCooldown, nil)
	assert.Equal(t, map[string]bool{"ended": false}, resp.Data)
}

func TestDispatch_LogEventAndSync(t *testing.T) {
	f := newCompanionFixture(btc1h())

	resp := f.send(t, models.MsgLogEvent, map[string]interface{}{"type": "panel_open", "payload": map[string]interface{}{"x": 1}})
	require.True(t, resp.OK, resp.Error)
	assert.Equal(t, map[string]int{"pending": 1}, resp.Data)

	resp = f.send(t, models.MsgLogEvent, map[string]interface{}{})
	assert.False(t, resp.OK)

	resp = f.send(t, models.MsgSync, nil)
	require.True(t, resp.OK)
	v := resp.Data.(syncView)
	assert.Equal(t, 0, v.Pending)
	assert.Empty(t, v.Error)
	require.Equal(t, 1, f.sink.count())
	assert.Equal(t, "BTCUSDT", f.sink.batches[0][0].Symbol)
}

func TestDispatch_SettingsAndState(t *testing.T) {
	f := newCompanionFixture(btc1h())

	resp := f.send(t, models.MsgSetDebug, map[string]interface{}{"enabled": true})
	require.True(t, resp.OK, resp.Error)
	t.Cleanup(func() { f.send(t, models.MsgSetDebug, map[string]interface{}{"enabled": false}) })

	resp = f.send(t, models.MsgSetPanelPosition, map[string]interface{}{"x": 10, "y": 20, "docked": "right"})
	require.True(t, resp.OK, resp.Error)

	resp = f.send(t, models.MsgSetPanelPosition, map[string]interface{}{"x": 10, "y": 20, "docked": "middle"})
	assert.False(t, resp.OK)

	f.send(t, models.MsgAnalyze, nil)
	resp = f.send(t, models.MsgGetState, nil)
	require.True(t, resp.OK, resp.Error)
	v := resp.Data.(stateView)
	assert.Equal(t, "sess-1", v.Settings.SessionID)
	assert.Equal(t, "client-1", v.Settings.ClientID)
	assert.True(t, v.Settings.Debug)
	require.NotNil(t, v.Settings.PanelPosition)
	assert.Equal(t, "right", v.Settings.PanelPosition.Docked)
	require.NotNil(t, v.Analysis)
	assert.Equal(t, "BTCUSDT", v.Analysis.Symbol)
	require.NotNil(t, v.Context)
}
