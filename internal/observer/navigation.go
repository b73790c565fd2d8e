package observer

import "time"

// Navigation kinds reported by the host page.
const (
	NavPopState     = "popstate"
	NavPushState    = "pushstate"
	NavReplaceState = "replacestate"
)

// NavigationEvent is one history change inside the single-page app.
type NavigationEvent struct {
	Kind string    `json:"kind"`
	URL  string    `json:"url"`
	At   time.Time `json:"at"`
}

// NavigationSignal is a stream of history changes. How the host detects
// them is its own concern.
type NavigationSignal interface {
	Events() <-chan NavigationEvent
}

// ChannelNavigation is a NavigationSignal fed by Push.
type ChannelNavigation struct {
	ch chan NavigationEvent
}

func NewChannelNavigation(buffer int) *ChannelNavigation {
	if buffer < 1 {
		buffer = 16
	}
	return &ChannelNavigation{ch: make(chan NavigationEvent, buffer)}
}

func (c *ChannelNavigation) Events() <-chan NavigationEvent { return c.ch }

// Push never blocks; navigation is debounced downstream so a full buffer
// loses nothing that matters.
func (c *ChannelNavigation) Push(ev NavigationEvent) bool {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	select {
	case c.ch <- ev:
		return true
	default:
		return false
	}
}
