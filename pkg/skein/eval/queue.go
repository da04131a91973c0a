package eval

import (
	"reflect"
	"time"

	"github.com/wayneeseguin/skein/internal/config"
	"github.com/wayneeseguin/skein/log"
	"github.com/wayneeseguin/skein/pkg/skein"
)

// CycleNotifiee is a time-sensitive node registered for cycle-boundary
// hooks. Both registration lists are one-shot: a node re-adds itself if
// it wants the next cycle too.
type CycleNotifiee interface {
	PreWriteNotification(cycle int)
	EndOfEvaluationCycleNotification(cycle int)
}

// Mergeable is a pending write merger held until positioning completes.
type Mergeable interface {
	Commit()
}

// Latchable is a writable node whose release is latched until the
// content cycle completes.
type Latchable interface {
	Release()
}

// Queue is the global evaluation scheduler: one SinglePriorityQueue per
// priority, drained in (priority descending, step ascending) order with
// time-sliced execution.
type Queue struct {
	queues []*SinglePriorityQueue

	runningPrio int
	suspended   bool

	cycle       int
	nrProcessed int

	maxEvaluationsPerSlice int
	queueResetWarn         int
	resetCount             int

	stepBoundaryHooks []func()

	preWrite   []CycleNotifiee
	endOfCycle []CycleNotifiee

	held       []Mergeable
	latched    []Latchable
	latchedSet map[Latchable]bool

	nextWatcherID skein.WatcherID

	metrics *skein.MetricsRegistry
}

// NewQueue creates an evaluation queue from the given configuration.
func NewQueue(cfg *config.Config, metrics *skein.MetricsRegistry) *Queue {
	if cfg == nil {
		cfg = config.Current()
	}
	q := &Queue{
		queues:                 make([]*SinglePriorityQueue, cfg.Scheduler.Priorities),
		runningPrio:            -1,
		maxEvaluationsPerSlice: cfg.Scheduler.MaxEvaluationsPerSlice,
		queueResetWarn:         cfg.Scheduler.QueueResetWarn,
		latchedSet:             make(map[Latchable]bool),
		metrics:                metrics,
	}
	for p := range q.queues {
		q.queues[p] = newSinglePriorityQueue(p)
	}
	return q
}

// AllocateWatcherID returns the next monotone watcher id.
func (q *Queue) AllocateWatcherID() skein.WatcherID {
	q.nextWatcherID++
	return q.nextWatcherID
}

// NumPriorities returns the number of scheduling priorities.
func (q *Queue) NumPriorities() int {
	return len(q.queues)
}

// Cycle returns the current evaluation cycle number.
func (q *Queue) Cycle() int {
	return q.cycle
}

// NrScheduled returns the number of nodes in the active queues.
func (q *Queue) NrScheduled() int {
	n := 0
	for _, spq := range q.queues {
		n += spq.schedCnt
	}
	return n
}

// Schedule queues the node at its (priority, step). A node that is
// already queued is left where it is. Scheduling above the currently
// running priority interrupts the lower-priority drains; scheduling
// below the low watermark of the running priority rewinds it, which is
// the only mechanism that can repeat an evaluation within one cycle.
func (q *Queue) Schedule(en Node, acceptQueueReset bool) {
	if en.ScheduledAtPosition() != -1 {
		return
	}
	prio := en.GetSchedulePriority()
	if prio < 0 || prio >= len(q.queues) {
		panic(skein.NewInvariantError("schedule: priority %d out of range [0,%d)", prio, len(q.queues)))
	}
	spq := q.queues[prio]

	if en.IsDeferred() {
		spq.scheduleDeferred(en)
		return
	}

	rewound := spq.schedule(en)
	if q.metrics != nil {
		q.metrics.NodesScheduled.Inc()
	}
	if rewound && !acceptQueueReset {
		q.resetCount++
		if q.metrics != nil {
			q.metrics.QueueRewinds.Inc()
		}
		if q.queueResetWarn > 0 && q.resetCount >= q.queueResetWarn {
			log.PrintfStdErr("warning: evaluation queue rewound %d times in one cycle\n", q.resetCount)
			q.resetCount = 0
		}
	}

	if q.runningPrio >= 0 && prio > q.runningPrio {
		for p := 0; p < prio; p++ {
			q.queues[p].interrupted = true
		}
	}
}

// Unschedule withdraws a scheduled node. Withdrawing a node that is not
// scheduled is a programming invariant violation.
func (q *Queue) Unschedule(en Node) {
	if en.ScheduledAtPosition() == -1 {
		panic(skein.NewInvariantError("unschedule: node %d is not scheduled", en.WatcherID()))
	}
	spq := q.queues[en.GetSchedulePriority()]
	if en.IsDeferred() {
		spq.unscheduleDeferred(en)
	} else {
		spq.unschedule(en)
		if q.metrics != nil {
			q.metrics.NodesScheduled.Dec()
		}
	}
}

// Defer moves the node from the active to the deferred queue.
func (q *Queue) Defer(en Node) {
	if en.IsDeferred() {
		return
	}
	spq := q.queues[en.GetSchedulePriority()]
	wasScheduled := en.ScheduledAtPosition() != -1
	if wasScheduled {
		spq.unschedule(en)
		if q.metrics != nil {
			q.metrics.NodesScheduled.Dec()
		}
	}
	en.markDeferred(true)
	if wasScheduled {
		spq.scheduleDeferred(en)
	}
}

// Undefer moves the node back to the active queue, rescheduling it if
// it was scheduled while deferred.
func (q *Queue) Undefer(en Node) {
	if !en.IsDeferred() {
		return
	}
	spq := q.queues[en.GetSchedulePriority()]
	wasScheduled := en.ScheduledAtPosition() != -1
	if wasScheduled {
		spq.unscheduleDeferred(en)
	}
	en.markDeferred(false)
	if wasScheduled {
		q.Schedule(en, false)
	}
}

// RegisterStepBoundaryHook registers a hook flushed at every step
// boundary of the drain loop. The indexer registers its pending
// query-calc work here.
func (q *Queue) RegisterStepBoundaryHook(hook func()) {
	q.stepBoundaryHooks = append(q.stepBoundaryHooks, hook)
}

func (q *Queue) flushStepBoundary() {
	for _, hook := range q.stepBoundaryHooks {
		hook()
	}
}

// RunQueue drains the queues from the highest priority down to
// minPriority. It returns false when the deadline expired or the slice
// budget ran out; the caller is expected to reschedule.
func (q *Queue) RunQueue(minPriority int, deadline time.Time) bool {
	if q.suspended {
		return true
	}
	q.nrProcessed = 0

	for {
		restart := false
		for p := len(q.queues) - 1; p >= minPriority; p-- {
			spq := q.queues[p]
			if spq.empty() {
				continue
			}
			q.runningPrio = p
			status := q.drain(spq, deadline, nil)
			q.runningPrio = -1
			switch status {
			case drainOverrun:
				if q.metrics != nil {
					q.metrics.SlicesExpired.Inc()
				}
				return false
			case drainInterrupted:
				if q.suspended {
					return true
				}
				restart = true
			}
			if restart {
				break
			}
		}
		if !restart {
			return true
		}
	}
}

// RunUntil drains until the target node becomes unscheduled, either by
// being evaluated or by being withdrawn. Re-entrant calls from inside
// an UpdateOutput are supported: a target evaluated by an outer drain
// is simply observed as unscheduled.
func (q *Queue) RunUntil(target Node) {
	q.nrProcessed = 0
	for target.ScheduledAtPosition() != -1 {
		if q.suspended {
			return
		}
		progressed := false
		for p := len(q.queues) - 1; p >= 0; p-- {
			spq := q.queues[p]
			if spq.empty() {
				continue
			}
			prevPrio := q.runningPrio
			q.runningPrio = p
			status := q.drain(spq, time.Time{}, target)
			q.runningPrio = prevPrio
			progressed = true
			if status == drainTargetDone || target.ScheduledAtPosition() == -1 {
				return
			}
			break
		}
		if !progressed {
			// Target is scheduled but nothing is drainable: it must be
			// sitting in a deferred queue. Nothing more to do.
			return
		}
	}
}

type drainStatus int

const (
	drainDone drainStatus = iota
	drainOverrun
	drainInterrupted
	drainTargetDone
)

// drain runs one priority's steps in ascending order. A single step is
// drained before low is advanced; at each step boundary the deferred
// internal query-calc work is flushed.
func (q *Queue) drain(spq *SinglePriorityQueue, deadline time.Time, target Node) drainStatus {
	spq.interrupted = false

	for spq.schedCnt > 0 && spq.low <= spq.high {
		step := spq.low
		if step >= len(spq.steps) {
			break
		}
		lst := spq.steps[step]
		spq.drainStep = step

		for {
			en := lst.Pop()
			if en == nil {
				break
			}
			spq.schedCnt--
			if q.metrics != nil {
				q.metrics.NodesScheduled.Dec()
				q.metrics.EvaluationsRun.Inc()
			}
			q.nrProcessed++

			q.safeUpdateOutput(en)

			if target != nil && target.ScheduledAtPosition() == -1 {
				spq.drainStep = -1
				return drainTargetDone
			}
			if q.suspended || spq.interrupted {
				spq.drainStep = -1
				return drainInterrupted
			}
			if q.nrProcessed >= q.maxEvaluationsPerSlice {
				spq.drainStep = -1
				return drainOverrun
			}
			if !deadline.IsZero() && time.Now().After(deadline) {
				spq.drainStep = -1
				return drainOverrun
			}
			if spq.low < step {
				// An evaluation scheduled a predecessor: rewind.
				break
			}
		}
		spq.drainStep = -1

		if spq.low == step && lst.Empty() {
			q.flushStepBoundary()
			spq.low++
		}
	}

	if spq.schedCnt <= 0 {
		spq.schedCnt = 0
		spq.low = 0
		spq.high = -1
	}
	return drainDone
}

// safeUpdateOutput runs one recomputation; no panic may escape an
// evaluator callback into the scheduler.
func (q *Queue) safeUpdateOutput(en Node) {
	defer func() {
		if r := recover(); r != nil {
			log.PrintfStdErr("evaluator %d panicked during updateOutput: %v\n", en.WatcherID(), r)
		}
	}()
	en.UpdateOutput()
}

// Suspend sets the process-wide suspension flag and interrupts every
// priority queue; RunQueue returns immediately while suspended.
func (q *Queue) Suspend() {
	q.suspended = true
	for _, spq := range q.queues {
		spq.interrupted = true
	}
}

// Resume clears the suspension flag.
func (q *Queue) Resume() {
	q.suspended = false
}

// IsSuspended ...
func (q *Queue) IsSuspended() bool {
	return q.suspended
}

// RegisterPreWriteNotification registers a one-shot pre-write hook for
// the next cycle boundary.
func (q *Queue) RegisterPreWriteNotification(n CycleNotifiee) {
	q.preWrite = append(q.preWrite, n)
}

// RegisterEndOfEvaluationCycleNotification registers a one-shot
// end-of-cycle hook for the next cycle boundary.
func (q *Queue) RegisterEndOfEvaluationCycleNotification(n CycleNotifiee) {
	q.endOfCycle = append(q.endOfCycle, n)
}

// Hold keeps a pending write merger until CommitWrites.
func (q *Queue) Hold(m Mergeable) {
	q.held = append(q.held, m)
}

// Latch registers a writable node for release after the content cycle
// completes. Latching a node twice in one cycle is idempotent. A
// latchable whose type is not comparable (a func adapter, say) cannot
// be told apart from another and is queued on every call.
func (q *Queue) Latch(l Latchable) {
	if !reflect.TypeOf(l).Comparable() {
		q.latched = append(q.latched, l)
		return
	}
	if q.latchedSet[l] {
		return
	}
	q.latchedSet[l] = true
	q.latched = append(q.latched, l)
}

// CommitWrites commits the held write mergers and then releases the
// nodes latched during the cycle.
func (q *Queue) CommitWrites() {
	held := q.held
	q.held = nil
	for _, m := range held {
		m.Commit()
	}
	q.ReleaseLatched()
}

// ReleaseLatched releases every latched node exactly once.
func (q *Queue) ReleaseLatched() {
	latched := q.latched
	q.latched = nil
	q.latchedSet = make(map[Latchable]bool)
	for _, l := range latched {
		l.Release()
	}
}

// MarkEndOfEvaluationMoment closes the current evaluation cycle: the
// cycle counter advances, pre-write hooks fire, held writes commit,
// latched nodes release, and end-of-cycle hooks fire last.
func (q *Queue) MarkEndOfEvaluationMoment() {
	q.cycle++
	q.resetCount = 0
	if q.metrics != nil {
		q.metrics.CyclesCompleted.Inc()
	}

	preWrite := q.preWrite
	q.preWrite = nil
	for _, n := range preWrite {
		n.PreWriteNotification(q.cycle)
	}

	q.CommitWrites()

	endOfCycle := q.endOfCycle
	q.endOfCycle = nil
	for _, n := range endOfCycle {
		n.EndOfEvaluationCycleNotification(q.cycle)
	}
}
