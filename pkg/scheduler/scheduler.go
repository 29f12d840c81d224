// Package scheduler implements a cooperative, frame-budgeted task
// coordinator. Deferred recomputation is queued by id and priority and
// drained by an external driver calling Tick once per display refresh.
package scheduler

import (
	"log/slog"
	"sort"
	"time"
)

// Priority orders pending tasks within a tick. Critical runs first.
type Priority int

const (
	PriorityCritical Priority = iota
	PriorityHigh
	PriorityNormal
	PriorityLow
)

func (p Priority) String() string {
	switch p {
	case PriorityCritical:
		return "critical"
	case PriorityHigh:
		return "high"
	case PriorityNormal:
		return "normal"
	case PriorityLow:
		return "low"
	default:
		return "unknown"
	}
}

// Per-priority time budgets and the overall frame budget, in the spirit
// of a 60 Hz refresh.
const (
	FrameBudget = 16 * time.Millisecond

	// overrunFactor is how far past its budget a task may run before
	// the rest of the tick is abandoned.
	overrunFactor = 1.5
)

func budgetFor(p Priority) time.Duration {
	switch p {
	case PriorityCritical:
		return 8 * time.Millisecond
	case PriorityHigh:
		return 5 * time.Millisecond
	case PriorityNormal:
		return 3 * time.Millisecond
	default:
		return 2 * time.Millisecond
	}
}

type task struct {
	id       string
	priority Priority
	seq      uint64
	run      func()
}

// Scheduler holds pending tasks between ticks. It is not safe for
// concurrent use; all calls belong on the single control thread, same as
// the graph store's callers.
type Scheduler struct {
	logger  *slog.Logger
	pending map[string]*task
	nextSeq uint64
	running bool
	clock   func() time.Time
}

func New(logger *slog.Logger) *Scheduler {
	return &Scheduler{
		logger:  logger.With("module", "scheduler"),
		pending: make(map[string]*task),
		clock:   time.Now,
	}
}

// Schedule queues callback under id. Re-scheduling an id that is already
// pending replaces the callback but keeps the original arrival order, so
// a repeated logical update cannot starve older work.
func (s *Scheduler) Schedule(id string, priority Priority, callback func()) {
	s.running = true

	if existing, ok := s.pending[id]; ok {
		existing.priority = priority
		existing.run = callback

		return
	}

	s.nextSeq++
	s.pending[id] = &task{id: id, priority: priority, seq: s.nextSeq, run: callback}
}

// Cancel removes a pending task before it runs.
func (s *Scheduler) Cancel(id string) bool {
	_, ok := s.pending[id]
	delete(s.pending, id)

	return ok
}

// CancelAll clears every pending task and stops the tick loop until the
// next Schedule call.
func (s *Scheduler) CancelAll() {
	s.pending = make(map[string]*task)
	s.running = false
}

// Pending reports how many tasks are queued.
func (s *Scheduler) Pending() int {
	return len(s.pending)
}

// Running reports whether the tick loop has work or recently had work.
func (s *Scheduler) Running() bool {
	return s.running
}

// Tick drains pending tasks for one display refresh starting at now.
// Tasks run in priority order, FIFO within a priority, while the frame
// budget still covers their declared budget. A task overrunning 1.5x its
// budget halts the rest of the tick; unrun tasks roll over. Panicking
// tasks are logged and discarded without disturbing the others.
func (s *Scheduler) Tick(now time.Time) int {
	if len(s.pending) == 0 {
		s.running = false

		return 0
	}

	queue := make([]*task, 0, len(s.pending))
	for _, t := range s.pending {
		queue = append(queue, t)
	}

	sort.Slice(queue, func(i, j int) bool {
		if queue[i].priority != queue[j].priority {
			return queue[i].priority < queue[j].priority
		}

		return queue[i].seq < queue[j].seq
	})

	deadline := now.Add(FrameBudget)
	ran := 0

	for _, t := range queue {
		budget := budgetFor(t.priority)

		remaining := deadline.Sub(s.clock())
		if remaining < budget {
			break
		}

		delete(s.pending, t.id)

		started := s.clock()
		s.runIsolated(t)
		ran++

		elapsed := s.clock().Sub(started)
		if float64(elapsed) > float64(budget)*overrunFactor {
			s.logger.Warn("task overran its budget, halting tick",
				"task_id", t.id,
				"priority", t.priority.String(),
				"budget", budget,
				"elapsed", elapsed)

			break
		}
	}

	if len(s.pending) == 0 {
		s.running = false
	}

	return ran
}

func (s *Scheduler) runIsolated(t *task) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("task panicked, discarding",
				"task_id", t.id,
				"priority", t.priority.String(),
				"panic", r)
		}
	}()

	t.run()
}
