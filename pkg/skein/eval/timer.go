package eval

import (
	"time"

	"github.com/wayneeseguin/skein/pkg/skein"
)

// TimerNode is an external watcher in the test-node sense: it is not
// part of the reactive graph but schedules itself on the evaluation
// queue to run a callback at its scheduling class.
type TimerNode struct {
	BaseNode

	// OnFire runs when the node's turn comes.
	OnFire func()

	fired int
}

// NewTimerNode registers a timer node at the given scheduling class.
func NewTimerNode(q *Queue, priority, step int) *TimerNode {
	t := &TimerNode{}
	t.Init(q, t, priority, step)
	t.Activate()
	return t
}

// UpdateInput ...
func (t *TimerNode) UpdateInput(id skein.WatcherID, result *skein.Result) {
	if t.IsActive() {
		t.Schedule()
	}
}

// UpdateOutput ...
func (t *TimerNode) UpdateOutput() {
	t.fired++
	if t.OnFire != nil {
		t.OnFire()
	}
}

// Fired returns how many times the node has run.
func (t *TimerNode) Fired() int {
	return t.fired
}

// Sleep suspends the evaluation queue around an external wait and
// re-schedules the node afterwards. A non-positive duration is
// reported as a failure: the scheduler has nothing to wait for, and
// silently succeeding would mask a miscomputed delay in the caller.
func (t *TimerNode) Sleep(d time.Duration) error {
	if d <= 0 {
		return skein.NewInputError("sleep duration %s is not positive", d)
	}
	q := t.Queue()
	q.Suspend()
	time.Sleep(d)
	q.Resume()
	q.Schedule(t, false)
	return nil
}
