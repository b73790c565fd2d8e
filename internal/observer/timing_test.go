package observer

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestThrottler_LeadingAndTrailing(t *testing.T) {
	var calls int32
	th := NewThrottler(40*time.Millisecond, func() { atomic.AddInt32(&calls, 1) })
	defer th.Stop()

	th.Trigger()
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	for i := 0; i < 10; i++ {
		th.Trigger()
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&calls) == 2 }, time.Second, 5*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestThrottler_NoTrailingWithoutEvents(t *testing.T) {
	var calls int32
	th := NewThrottler(20*time.Millisecond, func() { atomic.AddInt32(&calls, 1) })
	defer th.Stop()

	th.Trigger()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	th.Trigger()
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestDebouncer(t *testing.T) {
	var calls int32
	d := NewDebouncer(30*time.Millisecond, func() { atomic.AddInt32(&calls, 1) })
	defer d.Stop()

	for i := 0; i < 5; i++ {
		d.Trigger()
		time.Sleep(5 * time.Millisecond)
	}
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&calls) == 1 }, time.Second, 5*time.Millisecond)
}

func TestStoppedTimersDoNothing(t *testing.T) {
	var calls int32
	th := NewThrottler(10*time.Millisecond, func() { atomic.AddInt32(&calls, 1) })
	th.Stop()
	th.Trigger()

	d := NewDebouncer(10*time.Millisecond, func() { atomic.AddInt32(&calls, 1) })
	d.Trigger()
	d.Stop()

	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}
