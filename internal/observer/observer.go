package observer

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"TradeLens/internal/domain/models"
	drepo "TradeLens/internal/domain/repository"
	"TradeLens/pkg/logger"
)

// Mutation kinds, as named by the browser.
const (
	MutationCharacterData = "characterData"
	MutationChildList     = "childList"
	MutationAttributes    = "attributes"
)

// Mutation is one structural change reported inside a watched region. When
// Selector is set the page node it names is updated (or removed) in place.
type Mutation struct {
	Region   string `json:"region"`
	Kind     string `json:"kind"`
	Class    string `json:"class"`
	Added    int    `json:"added"`
	Selector string `json:"selector,omitempty"`
	Text     string `json:"text,omitempty"`
	Removed  bool   `json:"removed,omitempty"`
}

// Relevant passes character-data and node-added mutations only. Attribute
// churn never triggers a rescan, and neither does anything on a price
// element other than the entry price.
func Relevant(m Mutation) bool {
	class := strings.ToLower(m.Class)
	if strings.Contains(class, "price") && !strings.Contains(class, "entry") {
		return false
	}
	switch m.Kind {
	case MutationCharacterData:
		return true
	case MutationChildList:
		return m.Added > 0
	}
	return false
}

// RegionBinder (re)attaches region-scoped mutation subscriptions in the host.
type RegionBinder interface {
	Bind(regions map[string]string) error
}

type BinderFunc func(regions map[string]string) error

func (f BinderFunc) Bind(regions map[string]string) error { return f(regions) }

// Frame types sent by the host page.
const (
	FrameSnapshot   = "snapshot"
	FrameMutation   = "mutation"
	FrameRegion     = "region"
	FrameNavigation = "navigation"
)

// Frame is one page event.
type Frame struct {
	Type     string            `json:"type"`
	URL      string            `json:"url,omitempty"`
	Nodes    map[string]string `json:"nodes,omitempty"`
	Mutation *Mutation         `json:"mutation,omitempty"`
	Region   string            `json:"region,omitempty"`
	Kind     string            `json:"kind,omitempty"`
}

type Config struct {
	Throttle           time.Duration
	NavigationDebounce time.Duration
	DOMTTL             time.Duration
	Regions            map[string]string
	Selectors          map[string][]string
}

// Observer turns page events into a stream of MarketContext values. A value
// is emitted only when it differs from the previous one.
type Observer struct {
	cfg     Config
	page    *PageState
	scanner *Scanner
	nav     NavigationSignal
	binder  RegionBinder
	log     *logger.Logger
	now     func() time.Time

	throttle *Throttler
	debounce *Debouncer
	scanReq  chan struct{}
	out      chan models.MarketContext

	mu      sync.RWMutex
	last    models.MarketContext
	emitted bool
}

func New(cfg Config, page *PageState, nav NavigationSignal, binder RegionBinder, metrics drepo.Metrics, log *logger.Logger) *Observer {
	if log == nil {
		log = logger.Nop()
	}
	if cfg.Throttle <= 0 {
		cfg.Throttle = 500 * time.Millisecond
	}
	if cfg.NavigationDebounce <= 0 {
		cfg.NavigationDebounce = 300 * time.Millisecond
	}
	if cfg.DOMTTL <= 0 {
		cfg.DOMTTL = 5 * time.Second
	}
	o := &Observer{
		cfg:     cfg,
		page:    page,
		scanner: NewScanner(page, cfg.Selectors, cfg.DOMTTL, metrics),
		nav:     nav,
		binder:  binder,
		log:     log,
		now:     time.Now,
		scanReq: make(chan struct{}, 1),
		out:     make(chan models.MarketContext, 8),
	}
	o.throttle = NewThrottler(cfg.Throttle, o.requestScan)
	o.debounce = NewDebouncer(cfg.NavigationDebounce, o.requestScan)
	return o
}

// Contexts delivers each distinct context once.
func (o *Observer) Contexts() <-chan models.MarketContext { return o.out }

// Current returns the last emitted context.
func (o *Observer) Current() (models.MarketContext, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.last, o.emitted
}

// Run binds the regions, scans once eagerly, then serves scan requests and
// navigation until ctx is done.
func (o *Observer) Run(ctx context.Context) error {
	defer o.throttle.Stop()
	defer o.debounce.Stop()

	o.bind()
	o.scanAndEmit(ctx)

	var navCh <-chan NavigationEvent
	if o.nav != nil {
		navCh = o.nav.Events()
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-o.scanReq:
			o.scanAndEmit(ctx)
		case ev, ok := <-navCh:
			if !ok {
				navCh = nil
				continue
			}
			o.onNavigation(ev)
		}
	}
}

// HandleFrame applies one page event.
func (o *Observer) HandleFrame(f Frame) error {
	switch f.Type {
	case FrameSnapshot:
		o.HandleSnapshot(f.URL, f.Nodes)
	case FrameMutation:
		if f.Mutation == nil {
			return fmt.Errorf("mutation frame without mutation")
		}
		o.HandleMutation(*f.Mutation)
	case FrameRegion:
		o.RegionAppeared(f.Region)
	case FrameNavigation:
		cn, ok := o.nav.(*ChannelNavigation)
		if !ok {
			return fmt.Errorf("navigation frames need a channel navigation signal")
		}
		cn.Push(NavigationEvent{Kind: f.Kind, URL: f.URL})
	default:
		return fmt.Errorf("unknown frame type %q", f.Type)
	}
	return nil
}

func (o *Observer) HandleSnapshot(url string, nodes map[string]string) {
	o.page.Snapshot(url, nodes)
	o.scanner.Clear()
	o.throttle.Trigger()
}

func (o *Observer) HandleMutation(m Mutation) {
	if m.Selector != "" {
		if m.Removed {
			o.page.Remove(m.Selector)
		} else {
			o.page.SetText(m.Selector, m.Text)
		}
	}
	if Relevant(m) {
		o.throttle.Trigger()
	}
}

// RegionAppeared re-attaches the region subscriptions after the app
// re-rendered one of them.
func (o *Observer) RegionAppeared(name string) {
	o.log.Debug("observer region appeared", logger.String("region", name))
	o.bind()
	o.throttle.Trigger()
}

// Rescan forces a fresh lookup of every field.
func (o *Observer) Rescan() {
	o.scanner.Clear()
	o.requestScan()
}

func (o *Observer) onNavigation(ev NavigationEvent) {
	o.log.Debug("observer navigation", logger.String("kind", ev.Kind), logger.String("url", ev.URL))
	if ev.URL != "" {
		o.page.SetURL(ev.URL)
	}
	o.scanner.Clear()
	o.debounce.Trigger()
}

func (o *Observer) requestScan() {
	select {
	case o.scanReq <- struct{}{}:
	default:
	}
}

func (o *Observer) bind() {
	if o.binder == nil {
		return
	}
	if err := o.binder.Bind(o.cfg.Regions); err != nil {
		o.log.Warn("observer bind regions failed", logger.Error(err))
	}
}

func (o *Observer) scanAndEmit(ctx context.Context) {
	mc := o.scanner.Scan(o.now())
	if mc.Symbol == "" {
		return
	}
	o.mu.Lock()
	if o.emitted && o.last.SameAs(mc) {
		o.mu.Unlock()
		return
	}
	o.last = mc
	o.emitted = true
	o.mu.Unlock()

	select {
	case o.out <- mc:
	case <-ctx.Done():
	}
}
