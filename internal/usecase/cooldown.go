package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"TradeLens/internal/domain/models"
	"TradeLens/internal/domain/service"
	"TradeLens/pkg/logger"
	"TradeLens/pkg/util"
)

// Cooldown report actions.
const (
	cooldownActionStart = "start"
	cooldownActionEnd   = "end"
)

var ErrInvalidCooldown = errors.New("cooldown minutes must be positive")

// SessionProvider yields the persisted session id.
type SessionProvider interface {
	SessionID(ctx context.Context) (string, error)
}

// CooldownMachine is Idle (nil state) or Active until EndsAt. The remote
// behavioral service is authoritative; the local ticker only refreshes the
// remaining time and runs the end hooks once EndsAt passes.
type CooldownMachine struct {
	behavior service.BehaviorService
	sessions SessionProvider
	tick     time.Duration
	poll     time.Duration
	log      *logger.Logger
	now      func() time.Time

	mu       sync.Mutex
	state    *models.CooldownState
	onChange []func(*models.CooldownState)
	onEnd    []func(models.CooldownState)
}

func NewCooldownMachine(behavior service.BehaviorService, sessions SessionProvider, tick, poll time.Duration, log *logger.Logger) *CooldownMachine {
	if tick <= 0 {
		tick = time.Second
	}
	if poll <= 0 {
		poll = time.Minute
	}
	if log == nil {
		log = logger.Nop()
	}
	return &CooldownMachine{behavior: behavior, sessions: sessions, tick: tick, poll: poll, log: log, now: time.Now}
}

// OnChange registers a hook called with the new state (nil when idle) and
// on every display tick while active.
func (c *CooldownMachine) OnChange(fn func(*models.CooldownState)) {
	c.mu.Lock()
	c.onChange = append(c.onChange, fn)
	c.mu.Unlock()
}

// OnEnd registers the deactivation hook.
func (c *CooldownMachine) OnEnd(fn func(models.CooldownState)) {
	c.mu.Lock()
	c.onEnd = append(c.onEnd, fn)
	c.mu.Unlock()
}

// Current returns a copy of the state with the remaining time filled in.
func (c *CooldownMachine) Current() *models.CooldownState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked(c.now())
}

// Active reports whether trading is paused.
func (c *CooldownMachine) Active() bool {
	return c.Current() != nil
}

// Start begins a user break of the given length.
func (c *CooldownMachine) Start(ctx context.Context, minutes int, reason string) (*models.CooldownState, error) {
	if minutes <= 0 {
		return nil, ErrInvalidCooldown
	}
	endsAt := c.now().Add(time.Duration(minutes) * time.Minute)
	st := c.activate(endsAt, reason, models.CooldownByUser)
	c.report(ctx, models.CooldownReport{Action: cooldownActionStart, Minutes: minutes, Reason: reason, EndsAt: endsAt})
	return st, nil
}

// End returns to Idle. Ending an idle machine is a no-op.
func (c *CooldownMachine) End(ctx context.Context, reason string) bool {
	ended, ok := c.deactivate()
	if !ok {
		return false
	}
	c.report(ctx, models.CooldownReport{Action: cooldownActionEnd, Reason: reason, EndsAt: ended.EndsAt})
	return true
}

// Check re-validates against the behavioral service. A remote cooldown
// activates or extends the local one; a remote all-clear ends only a
// cooldown the service itself started.
func (c *CooldownMachine) Check(ctx context.Context) (*models.CooldownState, error) {
	if c.behavior == nil {
		return c.Current(), nil
	}
	sid, err := c.sessionID(ctx)
	if err != nil {
		return c.Current(), err
	}
	rep, err := c.behavior.Analyze(ctx, sid)
	if err != nil {
		return c.Current(), fmt.Errorf("behavior check: %w", err)
	}

	now := c.now()
	if rep.InCooldown {
		endsAt, ok := util.ParseTime(rep.CooldownEndsAt)
		if !ok {
			minutes := rep.CooldownMinutes
			if minutes <= 0 {
				minutes = 15
			}
			endsAt = now.Add(time.Duration(minutes) * time.Minute)
		}
		if endsAt.After(now) {
			cur := c.Current()
			if cur == nil || endsAt.After(cur.EndsAt) {
				c.activate(endsAt, rep.Reason, models.CooldownByBehavior)
			}
		}
		return c.Current(), nil
	}

	if cur := c.Current(); cur != nil && cur.Origin == models.CooldownByBehavior {
		c.deactivate()
	}
	return c.Current(), nil
}

// Tick refreshes the display and ends an expired cooldown.
func (c *CooldownMachine) Tick(ctx context.Context) {
	c.mu.Lock()
	st := c.state
	now := c.now()
	expired := st != nil && st.Expired(now)
	snap := c.snapshotLocked(now)
	hooks := c.onChange
	c.mu.Unlock()

	if st == nil {
		return
	}
	if expired {
		c.End(ctx, "expired")
		return
	}
	for _, fn := range hooks {
		fn(snap)
	}
}

// Run drives the display tick and the behavioral poll until ctx is done.
func (c *CooldownMachine) Run(ctx context.Context) error {
	tick := time.NewTicker(c.tick)
	defer tick.Stop()
	poll := time.NewTicker(c.poll)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick.C:
			c.Tick(ctx)
		case <-poll.C:
			if _, err := c.Check(ctx); err != nil {
				c.log.Warn("cooldown poll failed", logger.Error(err))
			}
		}
	}
}

func (c *CooldownMachine) activate(endsAt time.Time, reason, origin string) *models.CooldownState {
	c.mu.Lock()
	c.state = &models.CooldownState{Active: true, EndsAt: endsAt, Reason: reason, Origin: origin}
	snap := c.snapshotLocked(c.now())
	hooks := c.onChange
	c.mu.Unlock()

	c.log.Info("cooldown started",
		logger.String("origin", origin),
		logger.String("reason", reason),
		logger.Time("ends_at", endsAt),
	)
	for _, fn := range hooks {
		fn(snap)
	}
	return snap
}

func (c *CooldownMachine) deactivate() (models.CooldownState, bool) {
	c.mu.Lock()
	if c.state == nil {
		c.mu.Unlock()
		return models.CooldownState{}, false
	}
	ended := *c.state
	ended.Active = false
	ended.RemainingSeconds = 0
	c.state = nil
	changes := c.onChange
	ends := c.onEnd
	c.mu.Unlock()

	c.log.Info("cooldown ended", logger.String("origin", ended.Origin))
	for _, fn := range ends {
		fn(ended)
	}
	for _, fn := range changes {
		fn(nil)
	}
	return ended, true
}

func (c *CooldownMachine) snapshotLocked(now time.Time) *models.CooldownState {
	if c.state == nil {
		return nil
	}
	s := *c.state
	s.RemainingSeconds = int(s.Remaining(now).Round(time.Second) / time.Second)
	return &s
}

func (c *CooldownMachine) sessionID(ctx context.Context) (string, error) {
	if c.sessions == nil {
		return "", nil
	}
	return c.sessions.SessionID(ctx)
}

func (c *CooldownMachine) report(ctx context.Context, rep models.CooldownReport) {
	if c.behavior == nil {
		return
	}
	sid, err := c.sessionID(ctx)
	if err != nil {
		c.log.Warn("cooldown report skipped", logger.Error(err))
		return
	}
	rep.SessionID = sid
	if err := c.behavior.ReportCooldown(ctx, rep); err != nil {
		c.log.Warn("cooldown report failed", logger.String("action", rep.Action), logger.Error(err))
	}
}
