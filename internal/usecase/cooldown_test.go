package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TradeLens/internal/domain/models"
	"TradeLens/internal/domain/service"
)

func newTestCooldown(b *fakeBehavior) (*CooldownMachine, *manualClock) {
	clock := newManualClock()
	var svc service.BehaviorService
	if b != nil {
		svc = b
	}
	c := NewCooldownMachine(svc, fakeSessions{id: "s1"}, time.Second, time.Minute, nil)
	c.now = clock.Now
	return c, clock
}

func TestCooldown_StartTickExpire(t *testing.T) {
	b := &fakeBehavior{}
	c, clock := newTestCooldown(b)

	var changes []*models.CooldownState
	var ended []models.CooldownState
	c.OnChange(func(st *models.CooldownState) { changes = append(changes, st) })
	c.OnEnd(func(st models.CooldownState) { ended = append(ended, st) })

	st, err := c.Start(context.Background(), 15, "tilt")
	require.NoError(t, err)
	assert.True(t, st.Active)
	assert.Equal(t, 900, st.RemainingSeconds)
	assert.Equal(t, models.CooldownByUser, st.Origin)
	assert.True(t, c.Active())

	clock.Advance(5 * time.Minute)
	c.Tick(context.Background())
	assert.Equal(t, 600, c.Current().RemainingSeconds)

	clock.Advance(10 * time.Minute)
	c.Tick(context.Background())
	assert.Nil(t, c.Current())
	assert.False(t, c.Active())
	require.Len(t, ended, 1)
	assert.Equal(t, "tilt", ended[0].Reason)
	assert.Nil(t, changes[len(changes)-1])
	assert.Equal(t, []string{cooldownActionStart, cooldownActionEnd}, b.actions())
}

func TestCooldown_InvalidMinutes(t *testing.T) {
	c, _ := newTestCooldown(nil)
	_, err := c.Start(context.Background(), 0, "x")
	assert.ErrorIs(t, err, ErrInvalidCooldown)
	assert.False(t, c.End(context.Background(), "user"))
}

func TestCooldown_RemoteActivatesAndExtends(t *testing.T) {
	b := &fakeBehavior{}
	c, clock := newTestCooldown(b)

	b.report = models.BehaviorReport{InCooldown: true, CooldownMinutes: 10, Reason: "overtrading"}
	st, err := c.Check(context.Background())
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, models.CooldownByBehavior, st.Origin)
	assert.Equal(t, clock.Now().Add(10*time.Minute), st.EndsAt)

	later := clock.Now().Add(30 * time.Minute)
	b.report = models.BehaviorReport{InCooldown: true, CooldownEndsAt: later.Format(time.RFC3339), Reason: "losses"}
	st, err = c.Check(context.Background())
	require.NoError(t, err)
	assert.True(t, st.EndsAt.Equal(later))
	assert.Equal(t, "losses", st.Reason)
}

func TestCooldown_AllClearEndsOnlyBehaviorOrigin(t *testing.T) {
	b := &fakeBehavior{}
	c, _ := newTestCooldown(b)

	_, err := c.Start(context.Background(), 5, "break")
	require.NoError(t, err)
	st, err := c.Check(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, st, "user cooldown survives all-clear")

	c.End(context.Background(), "user")
	b.report = models.BehaviorReport{InCooldown: true, CooldownMinutes: 5}
	_, _ = c.Check(context.Background())
	require.NotNil(t, c.Current())

	b.report = models.BehaviorReport{}
	st, err = c.Check(context.Background())
	require.NoError(t, err)
	assert.Nil(t, st)
}

func TestCooldown_CheckErrorKeepsState(t *testing.T) {
	b := &fakeBehavior{err: errors.New("down")}
	c, _ := newTestCooldown(b)
	_, _ = c.Start(context.Background(), 5, "break")

	st, err := c.Check(context.Background())
	assert.Error(t, err)
	assert.NotNil(t, st)
}
