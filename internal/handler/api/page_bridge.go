package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"TradeLens/internal/domain/models"
	"TradeLens/internal/observer"
	applogger "TradeLens/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024
	sendBuffer     = 64
)

// Outbound frame types.
const (
	OutContext  = "context"
	OutAnalysis = "analysis"
	OutCooldown = "cooldown"
	OutPrice    = "price"
	OutBind     = "bind"
	OutResponse = "response"
)

// Outbound is what the bridge writes to the page.
type Outbound struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// FrameHandler takes page observation frames.
type FrameHandler interface {
	HandleFrame(f observer.Frame) error
}

// MessageDispatcher answers typed page messages.
type MessageDispatcher interface {
	Dispatch(ctx context.Context, m models.Message) models.Response
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type client struct {
	bridge *PageBridge
	conn   *websocket.Conn
	send   chan Outbound
}

// PageBridge is the websocket hub between the host page and the engine. It
// feeds observation frames to the observer, answers typed messages, and
// pushes engine output to every connected page. The latest context,
// analysis, cooldown and region binding are replayed to new connections.
type PageBridge struct {
	log *applogger.Logger

	mu       sync.RWMutex
	frames   FrameHandler
	dispatch MessageDispatcher

	register   chan *client
	unregister chan *client
	broadcast  chan Outbound
	clients    map[*client]struct{}
	connected  atomic.Int64
	done       chan struct{}

	stateMu sync.Mutex
	latest  map[string]Outbound
}

func NewPageBridge(log *applogger.Logger) *PageBridge {
	if log == nil {
		log = applogger.Nop()
	}
	return &PageBridge{
		log:        log,
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan Outbound, 256),
		clients:    make(map[*client]struct{}),
		done:       make(chan struct{}),
		latest:     make(map[string]Outbound),
	}
}

// Attach sets the inbound collaborators. The observer needs the bridge as
// its binder, so they are wired after construction.
func (b *PageBridge) Attach(frames FrameHandler, dispatch MessageDispatcher) {
	b.mu.Lock()
	b.frames = frames
	b.dispatch = dispatch
	b.mu.Unlock()
}

func (b *PageBridge) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws/page", b.ServeWS)
}

// Run is the hub loop. It must run before pages connect.
func (b *PageBridge) Run(ctx context.Context) error {
	defer close(b.done)
	for {
		select {
		case <-ctx.Done():
			for c := range b.clients {
				b.drop(c)
			}
			return nil
		case c := <-b.register:
			b.clients[c] = struct{}{}
			b.connected.Add(1)
			for _, out := range b.snapshot() {
				select {
				case c.send <- out:
				default:
				}
			}
		case c := <-b.unregister:
			if _, ok := b.clients[c]; ok {
				b.drop(c)
			}
		case out := <-b.broadcast:
			for c := range b.clients {
				select {
				case c.send <- out:
				default:
					// slow page, drop it rather than stall the hub
					b.drop(c)
				}
			}
		}
	}
}

func (b *PageBridge) drop(c *client) {
	delete(b.clients, c)
	close(c.send)
	b.connected.Add(-1)
}

// Clients is the number of connected pages.
func (b *PageBridge) Clients() int {
	return int(b.connected.Load())
}

func (b *PageBridge) snapshot() []Outbound {
	b.stateMu.Lock()
	defer b.stateMu.Unlock()
	out := make([]Outbound, 0, len(b.latest))
	for _, typ := range []string{OutBind, OutContext, OutAnalysis, OutCooldown} {
		if o, ok := b.latest[typ]; ok {
			out = append(out, o)
		}
	}
	return out
}

func (b *PageBridge) publish(out Outbound, keep bool) {
	if keep {
		b.stateMu.Lock()
		b.latest[out.Type] = out
		b.stateMu.Unlock()
	}
	select {
	case b.broadcast <- out:
	default:
		b.log.Warn("page broadcast dropped", applogger.String("type", out.Type))
	}
}

func (b *PageBridge) PublishContext(mc models.MarketContext) {
	b.publish(Outbound{Type: OutContext, Data: mc}, true)
}

func (b *PageBridge) PublishAnalysis(r models.AnalysisResult) {
	b.publish(Outbound{Type: OutAnalysis, Data: r}, true)
}

func (b *PageBridge) PublishCooldown(st *models.CooldownState) {
	b.publish(Outbound{Type: OutCooldown, Data: st}, true)
}

func (b *PageBridge) PublishPrice(symbol string, price float64) {
	b.publish(Outbound{Type: OutPrice, Data: map[string]interface{}{"symbol": symbol, "price": price}}, false)
}

// Bind asks every page to (re)attach its region watchers.
func (b *PageBridge) Bind(regions map[string]string) error {
	b.publish(Outbound{Type: OutBind, Data: regions}, true)
	return nil
}

// ServeWS upgrades the request and starts the client pumps.
func (b *PageBridge) ServeWS(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		b.log.Warn("websocket upgrade failed", applogger.Error(err))
		return nil
	}
	cl := &client{bridge: b, conn: conn, send: make(chan Outbound, sendBuffer)}
	select {
	case b.register <- cl:
	case <-b.done:
		_ = conn.Close()
		return nil
	}
	b.log.Info("page connected", applogger.String("remote", c.RealIP()))

	go cl.writePump()
	go cl.readPump(c.Request().Context())
	return nil
}

type inbound struct {
	Type string `json:"type"`
}

func isFrame(typ string) bool {
	switch typ {
	case observer.FrameSnapshot, observer.FrameMutation, observer.FrameRegion, observer.FrameNavigation:
		return true
	}
	return false
}

// handle routes one inbound payload. Frames go to the observer in order;
// typed messages are answered on their own goroutine so a slow analysis
// does not hold up observation.
func (b *PageBridge) handle(ctx context.Context, cl *client, raw []byte) {
	var head inbound
	if err := json.Unmarshal(raw, &head); err != nil {
		cl.reply(models.Response{Error: "malformed message"})
		return
	}

	b.mu.RLock()
	frames, dispatch := b.frames, b.dispatch
	b.mu.RUnlock()

	if isFrame(head.Type) {
		if frames == nil {
			return
		}
		var f observer.Frame
		if err := json.Unmarshal(raw, &f); err != nil {
			b.log.Debug("bad page frame", applogger.Error(err))
			return
		}
		if err := frames.HandleFrame(f); err != nil {
			b.log.Debug("page frame rejected", applogger.String("type", f.Type), applogger.Error(err))
		}
		return
	}

	var m models.Message
	if err := json.Unmarshal(raw, &m); err != nil {
		cl.reply(models.Response{Error: "malformed message"})
		return
	}
	if dispatch == nil {
		cl.reply(models.Response{ID: m.ID, Error: "engine not ready"})
		return
	}
	go func() {
		cl.reply(dispatch.Dispatch(context.WithoutCancel(ctx), m))
	}()
}

func (c *client) reply(resp models.Response) {
	defer func() {
		// send may already be closed by the hub
		_ = recover()
	}()
	select {
	case c.send <- Outbound{Type: OutResponse, Data: resp}:
	default:
		c.bridge.log.Warn("page response dropped", applogger.String("id", resp.ID))
	}
}

func (c *client) readPump(ctx context.Context) {
	defer func() {
		select {
		case c.bridge.unregister <- c:
		case <-c.bridge.done:
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.bridge.log.Warn("page connection error", applogger.Error(err))
			}
			return
		}
		c.bridge.handle(ctx, c, msg)
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case out, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(out); err != nil {
				c.bridge.log.Debug("page write failed", applogger.Error(err))
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
