package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"TradeLens/internal/domain/models"
	drepo "TradeLens/internal/domain/repository"
	"TradeLens/pkg/config"
	"TradeLens/pkg/logger"
)

var errRetarget = errors.New("stream retargeted")

type target struct {
	symbol string
	tf     drepo.Timeframe
}

// KlineStream follows the live kline channel of one symbol/timeframe.
// A dropped connection is re-dialed after a fixed delay; Follow switches
// the channel immediately.
type KlineStream struct {
	baseURL        string
	reconnectDelay time.Duration
	pingInterval   time.Duration
	dialer         *websocket.Dialer
	log            *logger.Logger

	mu        sync.Mutex
	target    target
	retarget  chan struct{}
	ticks     chan models.Tick
	connected atomic.Bool
}

func NewKlineStream(cfg *config.Config, log *logger.Logger) *KlineStream {
	if log == nil {
		log = logger.Nop()
	}
	delay := cfg.MarketData.ReconnectDelay
	if delay <= 0 {
		delay = 5 * time.Second
	}
	ping := cfg.MarketData.PingInterval
	if ping <= 0 {
		ping = 30 * time.Second
	}
	return &KlineStream{
		baseURL:        strings.TrimRight(cfg.MarketData.StreamURL, "/"),
		reconnectDelay: delay,
		pingInterval:   ping,
		dialer:         &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		log:            log,
		retarget:       make(chan struct{}, 1),
		ticks:          make(chan models.Tick, 256),
	}
}

// Ticks is closed when Run returns.
func (s *KlineStream) Ticks() <-chan models.Tick { return s.ticks }

func (s *KlineStream) IsConnected() bool { return s.connected.Load() }

// Follow points the stream at symbol/tf. Repeating the current target is a no-op.
func (s *KlineStream) Follow(symbol string, tf drepo.Timeframe) {
	t := target{symbol: strings.ToUpper(symbol), tf: tf}
	s.mu.Lock()
	if s.target == t {
		s.mu.Unlock()
		return
	}
	s.target = t
	s.mu.Unlock()

	select {
	case s.retarget <- struct{}{}:
	default:
	}
}

func (s *KlineStream) current() target {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.target
}

// Run blocks until ctx is done.
func (s *KlineStream) Run(ctx context.Context) error {
	defer close(s.ticks)
	for {
		select {
		case <-s.retarget:
		default:
		}
		t := s.current()
		if t.symbol == "" {
			select {
			case <-ctx.Done():
				return nil
			case <-s.retarget:
				continue
			}
		}

		err := s.session(ctx, t)
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, errRetarget) {
			continue
		}
		s.log.Warn("kline stream disconnected",
			logger.String("symbol", t.symbol),
			logger.String("timeframe", string(t.tf)),
			logger.Error(err),
			logger.Duration("retry_in", s.reconnectDelay),
		)
		select {
		case <-ctx.Done():
			return nil
		case <-s.retarget:
		case <-time.After(s.reconnectDelay):
		}
	}
}

func (s *KlineStream) streamURL(t target) string {
	return fmt.Sprintf("%s/%s@kline_%s", s.baseURL, strings.ToLower(t.symbol), t.tf)
}

func (s *KlineStream) session(ctx context.Context, t target) error {
	conn, _, err := s.dialer.DialContext(ctx, s.streamURL(t), nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	s.connected.Store(true)
	defer s.connected.Store(false)
	s.log.Info("kline stream connected", logger.String("symbol", t.symbol), logger.String("timeframe", string(t.tf)))

	var retargeted atomic.Bool
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(s.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				_ = conn.Close()
				return
			case <-s.retarget:
				retargeted.Store(true)
				_ = conn.Close()
				return
			case <-ticker.C:
				_ = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			}
		}
	}()

	for {
		_, b, err := conn.ReadMessage()
		if err != nil {
			_ = conn.Close()
			if retargeted.Load() {
				return errRetarget
			}
			return fmt.Errorf("read: %w", err)
		}
		tick, ok := ParseKlineEvent(b)
		if !ok {
			continue
		}
		if tick.Timeframe == "" {
			tick.Timeframe = string(t.tf)
		}
		select {
		case s.ticks <- tick:
		default:
			// drop on backpressure
		}
	}
}

type klineEvent struct {
	Event  string `json:"e"`
	Symbol string `json:"s"`
	Kline  struct {
		OpenTime int64       `json:"t"`
		Interval string      `json:"i"`
		Open     json.Number `json:"o"`
		High     json.Number `json:"h"`
		Low      json.Number `json:"l"`
		Close    json.Number `json:"c"`
		Volume   json.Number `json:"v"`
		Closed   bool        `json:"x"`
	} `json:"k"`
}

// ParseKlineEvent decodes one kline frame. Other frames report false.
func ParseKlineEvent(b []byte) (models.Tick, bool) {
	var ev klineEvent
	if err := json.Unmarshal(b, &ev); err != nil || ev.Event != "kline" {
		return models.Tick{}, false
	}
	k := ev.Kline
	f := func(n json.Number) float64 {
		v, _ := n.Float64()
		return v
	}
	c := models.Candle{
		Timestamp: k.OpenTime,
		Open:      f(k.Open),
		High:      f(k.High),
		Low:       f(k.Low),
		Close:     f(k.Close),
		Volume:    f(k.Volume),
	}
	return models.Tick{
		Symbol:    ev.Symbol,
		Timeframe: k.Interval,
		Candle:    c,
		Closed:    k.Closed,
		Price:     c.Close,
	}, true
}
