package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"TradeLens/internal/domain/models"
	xhttp "TradeLens/pkg/http"
	"TradeLens/pkg/logger"
)

var (
	ErrNoContext        = errors.New("no market context detected")
	ErrUnknownMessage   = errors.New("unknown message type")
	ErrInvalidTimeframe = errors.New("invalid timeframe")
)

func errInvalidTimeframe(tf string) error {
	return fmt.Errorf("%w %q", ErrInvalidTimeframe, tf)
}

var defaultMTFTimeframes = []string{"15m", "1h", "4h"}

type handlerFunc func(ctx context.Context, m models.Message) (interface{}, error)

// Dispatcher answers typed messages from the host page. Every message gets
// exactly one Response; handler errors and panics become ok=false.
type Dispatcher struct {
	c        *Companion
	handlers map[string]handlerFunc
	log      *logger.Logger
}

func NewDispatcher(c *Companion, log *logger.Logger) *Dispatcher {
	if log == nil {
		log = logger.Nop()
	}
	d := &Dispatcher{c: c, log: log}
	d.handlers = map[string]handlerFunc{
		models.MsgGetContext:       d.getContext,
		models.MsgGetState:         d.getState,
		models.MsgAnalyze:          d.analyze,
		models.MsgRefresh:          d.refresh,
		models.MsgAnalyzeMTF:       d.analyzeMTF,
		models.MsgExplain:          d.explain,
		models.MsgBookmark:         d.bookmark,
		models.MsgListBookmarks:    d.listBookmarks,
		models.MsgStartCooldown:    d.startCooldown,
		models.MsgEndCooldown:      d.endCooldown,
		models.MsgCheckCooldown:    d.checkCooldown,
		models.MsgSync:             d.sync,
		models.MsgLogEvent:         d.logEvent,
		models.MsgSetDebug:         d.setDebug,
		models.MsgSetPanelPosition: d.setPanelPosition,
	}
	return d
}

// Dispatch routes m to its handler.
func (d *Dispatcher) Dispatch(ctx context.Context, m models.Message) (resp models.Response) {
	resp.ID = m.ID
	defer func() {
		if rec := recover(); rec != nil {
			d.log.Error("message handler panicked", logger.String("type", m.Type), logger.Any("panic", rec))
			resp = models.Response{ID: m.ID, OK: false, Error: "internal error"}
		}
	}()

	h, ok := d.handlers[m.Type]
	if !ok {
		d.log.Warn("unknown message type", logger.String("type", m.Type), logger.String("id", m.ID))
		resp.Error = fmt.Sprintf("%s: %q", ErrUnknownMessage, m.Type)
		return resp
	}
	data, err := h(ctx, m)
	if err != nil {
		d.log.Debug("message failed", logger.String("type", m.Type), logger.Error(err))
		resp.Error = err.Error()
		return resp
	}
	resp.OK = true
	resp.Data = data
	return resp
}

func (d *Dispatcher) getContext(_ context.Context, _ models.Message) (interface{}, error) {
	mc, ok := d.c.Context()
	if !ok {
		return nil, nil
	}
	return mc, nil
}

type stateView struct {
	Settings models.Settings        `json:"settings"`
	Context  *models.MarketContext  `json:"context,omitempty"`
	Analysis *models.AnalysisResult `json:"analysis,omitempty"`
	Cooldown *models.CooldownState  `json:"cooldown,omitempty"`
}

func (d *Dispatcher) getState(ctx context.Context, _ models.Message) (interface{}, error) {
	settings, err := d.settings(ctx)
	if err != nil {
		return nil, err
	}
	v := stateView{Settings: settings, Cooldown: d.c.Cooldown()}
	if mc, ok := d.c.Context(); ok {
		v.Context = &mc
	}
	if r, ok := d.c.manager.Last(); ok {
		v.Analysis = &r
	}
	return v, nil
}

func (d *Dispatcher) settings(ctx context.Context) (models.Settings, error) {
	var s models.Settings
	var err error
	st := d.c.state
	if s.SessionID, err = st.SessionID(ctx); err != nil {
		return s, err
	}
	if s.ClientID, err = st.ClientID(ctx); err != nil {
		return s, err
	}
	if s.PanelPosition, err = st.PanelPosition(ctx); err != nil {
		return s, err
	}
	if s.Debug, err = st.Debug(ctx); err != nil {
		return s, err
	}
	bms, err := st.Bookmarks(ctx)
	if err != nil {
		return s, err
	}
	s.Bookmarks = len(bms)
	return s, nil
}

func (d *Dispatcher) analyze(ctx context.Context, m models.Message) (interface{}, error) {
	var req models.AnalyzeRequest
	if err := xhttp.DecodeAndValidate(ctx, m.Payload, &req); err != nil {
		return nil, err
	}
	return d.c.Analyze(ctx, req.Symbol, req.Timeframe, req.Force)
}

// refresh rescans the page and forces a new analysis of the current context.
func (d *Dispatcher) refresh(ctx context.Context, _ models.Message) (interface{}, error) {
	d.c.contexts.Rescan()
	mc, err := d.c.resolveContext("", "")
	if err != nil {
		return nil, err
	}
	d.c.orch.Invalidate(mc.Symbol, mc.Timeframe)
	r, _ := d.c.analyze(ctx, mc, true)
	return r, nil
}

func (d *Dispatcher) analyzeMTF(ctx context.Context, m models.Message) (interface{}, error) {
	var req models.MTFRequest
	if err := xhttp.DecodeAndValidate(ctx, m.Payload, &req); err != nil {
		return nil, err
	}
	mc, err := d.c.resolveContext(req.Symbol, "")
	if err != nil {
		return nil, err
	}
	tfs := req.Timeframes
	if len(tfs) == 0 {
		tfs = defaultMTFTimeframes
	}
	return d.c.orch.AnalyzeMTF(ctx, mc.Symbol, tfs)
}

func (d *Dispatcher) explain(ctx context.Context, m models.Message) (interface{}, error) {
	var req models.AnalyzeRequest
	if err := xhttp.DecodeAndValidate(ctx, m.Payload, &req); err != nil {
		return nil, err
	}
	mc, err := d.c.resolveContext(req.Symbol, req.Timeframe)
	if err != nil {
		return nil, err
	}
	return d.c.orch.Explain(ctx, mc), nil
}

func (d *Dispatcher) bookmark(ctx context.Context, m models.Message) (interface{}, error) {
	var req models.BookmarkRequest
	if err := xhttp.DecodeAndValidate(ctx, m.Payload, &req); err != nil {
		return nil, err
	}
	mc, err := d.c.resolveContext(req.Symbol, req.Timeframe)
	if err != nil {
		return nil, err
	}
	b := models.Bookmark{Symbol: mc.Symbol, Timeframe: mc.Timeframe, Note: req.Note, CreatedAt: time.Now()}
	list, err := d.c.state.AddBookmark(ctx, b)
	if err != nil {
		return nil, err
	}
	d.c.journal.Log(models.JournalEvent{
		Type:      models.EventBookmark,
		Symbol:    b.Symbol,
		Timeframe: b.Timeframe,
		Payload:   map[string]interface{}{"note": b.Note},
	})
	return list, nil
}

func (d *Dispatcher) listBookmarks(ctx context.Context, _ models.Message) (interface{}, error) {
	list, err := d.c.state.Bookmarks(ctx)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []models.Bookmark{}
	}
	return list, nil
}

func (d *Dispatcher) startCooldown(ctx context.Context, m models.Message) (interface{}, error) {
	var req models.StartCooldownRequest
	if err := xhttp.DecodeAndValidate(ctx, m.Payload, &req); err != nil {
		return nil, err
	}
	return d.c.cooldown.Start(ctx, req.Minutes, req.Reason)
}

func (d *Dispatcher) endCooldown(ctx context.Context, _ models.Message) (interface{}, error) {
	ended := d.c.cooldown.End(ctx, "user")
	return map[string]bool{"ended": ended}, nil
}

func (d *Dispatcher) checkCooldown(ctx context.Context, _ models.Message) (interface{}, error) {
	st, err := d.c.cooldown.Check(ctx)
	if err != nil {
		// the local state is still a valid answer
		d.log.Warn("cooldown check failed", logger.Error(err))
	}
	return st, nil
}

type syncView struct {
	Pending  int                   `json:"pending"`
	Cooldown *models.CooldownState `json:"cooldown,omitempty"`
	Error    string                `json:"error,omitempty"`
}

// sync flushes the journal and re-checks the cooldown.
func (d *Dispatcher) sync(ctx context.Context, _ models.Message) (interface{}, error) {
	var v syncView
	var errs []string
	if err := d.c.journal.Flush(ctx); err != nil {
		errs = append(errs, "journal: "+err.Error())
	}
	st, err := d.c.cooldown.Check(ctx)
	if err != nil {
		errs = append(errs, "cooldown: "+err.Error())
	}
	v.Pending = d.c.journal.Len()
	v.Cooldown = st
	v.Error = strings.Join(errs, "; ")
	return v, nil
}

func (d *Dispatcher) logEvent(ctx context.Context, m models.Message) (interface{}, error) {
	var req models.LogEventRequest
	if err := xhttp.DecodeAndValidate(ctx, m.Payload, &req); err != nil {
		return nil, err
	}
	ev := models.JournalEvent{Type: req.Type, Payload: req.Payload}
	if mc, ok := d.c.Context(); ok {
		ev.Symbol, ev.Timeframe = mc.Symbol, mc.Timeframe
	}
	d.c.journal.Log(ev)
	return map[string]int{"pending": d.c.journal.Len()}, nil
}

func (d *Dispatcher) setDebug(ctx context.Context, m models.Message) (interface{}, error) {
	var req models.SetDebugRequest
	if err := xhttp.DecodeAndValidate(ctx, m.Payload, &req); err != nil {
		return nil, err
	}
	if err := d.c.state.SetDebug(ctx, req.Enabled); err != nil {
		return nil, err
	}
	logger.SetDebug(req.Enabled, d.c.cfg.LogLevel)
	return map[string]bool{"debug": req.Enabled}, nil
}

func (d *Dispatcher) setPanelPosition(ctx context.Context, m models.Message) (interface{}, error) {
	var req models.PanelPositionRequest
	if err := xhttp.DecodeAndValidate(ctx, m.Payload, &req); err != nil {
		return nil, err
	}
	p := models.PanelPosition{X: req.X, Y: req.Y, Docked: req.Docked}
	if err := d.c.state.SetPanelPosition(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

