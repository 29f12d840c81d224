package scheduler

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScheduler() (*Scheduler, *time.Time) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	s := New(logger)

	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	s.clock = func() time.Time { return now }

	return s, &now
}

func TestTickRunsByPriorityThenArrival(t *testing.T) {
	s, now := newTestScheduler()

	var order []string

	record := func(id string) func() {
		return func() { order = append(order, id) }
	}

	s.Schedule("low-1", PriorityLow, record("low-1"))
	s.Schedule("normal-1", PriorityNormal, record("normal-1"))
	s.Schedule("critical-1", PriorityCritical, record("critical-1"))
	s.Schedule("normal-2", PriorityNormal, record("normal-2"))
	s.Schedule("high-1", PriorityHigh, record("high-1"))

	ran := s.Tick(*now)
	assert.Equal(t, 5, ran)
	assert.Equal(t, []string{"critical-1", "high-1", "normal-1", "normal-2", "low-1"}, order)
	assert.Zero(t, s.Pending())
	assert.False(t, s.Running())
}

func TestScheduleDeduplicatesById(t *testing.T) {
	s, now := newTestScheduler()

	calls := 0
	s.Schedule("redraw", PriorityNormal, func() { calls++ })
	s.Schedule("redraw", PriorityNormal, func() { calls += 10 })

	require.Equal(t, 1, s.Pending())

	s.Tick(*now)
	assert.Equal(t, 10, calls, "re-scheduling replaces the callback")
}

func TestRescheduleKeepsArrivalOrder(t *testing.T) {
	s, now := newTestScheduler()

	var order []string

	s.Schedule("a", PriorityNormal, func() { order = append(order, "a") })
	s.Schedule("b", PriorityNormal, func() { order = append(order, "b") })
	s.Schedule("a", PriorityNormal, func() { order = append(order, "a") })

	s.Tick(*now)
	assert.Equal(t, []string{"a", "b"}, order)
}

func TestCancel(t *testing.T) {
	s, now := newTestScheduler()

	ran := false
	s.Schedule("doomed", PriorityHigh, func() { ran = true })

	assert.True(t, s.Cancel("doomed"))
	assert.False(t, s.Cancel("doomed"))

	s.Tick(*now)
	assert.False(t, ran)
}

func TestCancelAllStopsLoop(t *testing.T) {
	s, now := newTestScheduler()

	s.Schedule("a", PriorityNormal, func() {})
	s.Schedule("b", PriorityLow, func() {})
	require.True(t, s.Running())

	s.CancelAll()
	assert.Zero(t, s.Pending())
	assert.False(t, s.Running())
	assert.Zero(t, s.Tick(*now))

	// Scheduling again restarts the loop.
	s.Schedule("c", PriorityNormal, func() {})
	assert.True(t, s.Running())
}

func TestFrameBudgetRollsOverRemainingTasks(t *testing.T) {
	s, now := newTestScheduler()

	// Each task burns 6ms of the 16ms frame, so only two fit before the
	// remaining time dips below the next task's budget.
	burn := func() { *now = now.Add(6 * time.Millisecond) }

	s.Schedule("a", PriorityNormal, burn)
	s.Schedule("b", PriorityNormal, burn)
	s.Schedule("c", PriorityNormal, burn)
	s.Schedule("d", PriorityNormal, burn)

	start := *now
	ran := s.Tick(start)
	assert.Equal(t, 2, ran)
	assert.Equal(t, 2, s.Pending())
	assert.True(t, s.Running(), "rolled-over tasks keep the loop alive")

	*now = now.Add(time.Second)
	ran = s.Tick(*now)
	assert.Equal(t, 2, ran)
	assert.Zero(t, s.Pending())
}

func TestOverrunHaltsTick(t *testing.T) {
	s, now := newTestScheduler()

	var order []string

	// Normal budget is 3ms; 10ms is well past the 1.5x allowance.
	s.Schedule("slow", PriorityNormal, func() {
		order = append(order, "slow")
		*now = now.Add(10 * time.Millisecond)
	})
	s.Schedule("after", PriorityNormal, func() { order = append(order, "after") })

	ran := s.Tick(*now)
	assert.Equal(t, 1, ran)
	assert.Equal(t, []string{"slow"}, order)
	assert.Equal(t, 1, s.Pending(), "the halted task rolls to the next tick")

	*now = now.Add(time.Second)
	s.Tick(*now)
	assert.Equal(t, []string{"slow", "after"}, order)
}

func TestPanicIsolatedPerTask(t *testing.T) {
	s, now := newTestScheduler()

	var order []string

	s.Schedule("boom", PriorityCritical, func() { panic("render exploded") })
	s.Schedule("fine", PriorityNormal, func() { order = append(order, "fine") })

	ran := s.Tick(*now)
	assert.Equal(t, 2, ran)
	assert.Equal(t, []string{"fine"}, order)
	assert.Zero(t, s.Pending(), "a panicking task is discarded, not retried")
}
