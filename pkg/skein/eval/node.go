package eval

import (
	"github.com/wayneeseguin/skein/pkg/skein"
)

// Node is what the queue schedules: the public Evaluator contract plus
// the queueing bookkeeping the scheduler maintains on each node.
type Node interface {
	skein.Evaluator

	// ScheduledAtPosition returns the node's slot in its evaluator
	// list, or -1 when the node is not queued.
	ScheduledAtPosition() int
	SetScheduledAtPosition(pos int)

	markDeferred(deferred bool)
}

// BaseNode carries the queueing bookkeeping every evaluation node
// composes. Concrete nodes embed it and call Init before first use.
type BaseNode struct {
	self      Node
	queue     *Queue
	watcherID skein.WatcherID

	priority int
	step     int

	scheduledAt int
	deferred    bool
	active      bool
}

// Init wires the embedded BaseNode to its queue and concrete node.
// Priority and step are immutable afterwards.
func (b *BaseNode) Init(q *Queue, self Node, priority, step int) {
	b.self = self
	b.queue = q
	b.watcherID = q.AllocateWatcherID()
	b.priority = priority
	b.step = step
	b.scheduledAt = -1
}

// WatcherID ...
func (b *BaseNode) WatcherID() skein.WatcherID {
	return b.watcherID
}

// GetSchedulePriority ...
func (b *BaseNode) GetSchedulePriority() int {
	return b.priority
}

// GetScheduleStep ...
func (b *BaseNode) GetScheduleStep() int {
	return b.step
}

// IsActive ...
func (b *BaseNode) IsActive() bool {
	return b.active
}

// IsScheduled ...
func (b *BaseNode) IsScheduled() bool {
	return b.scheduledAt != -1
}

// IsDeferred ...
func (b *BaseNode) IsDeferred() bool {
	return b.deferred
}

// ScheduledAtPosition ...
func (b *BaseNode) ScheduledAtPosition() int {
	return b.scheduledAt
}

// SetScheduledAtPosition ...
func (b *BaseNode) SetScheduledAtPosition(pos int) {
	b.scheduledAt = pos
}

func (b *BaseNode) markDeferred(deferred bool) {
	b.deferred = deferred
}

// Activate marks the node active. Concrete nodes register their inputs
// on top of this.
func (b *BaseNode) Activate() {
	b.active = true
}

// Deactivate unregisters the node: if scheduled it is withdrawn from
// the queue first.
func (b *BaseNode) Deactivate() {
	if b.scheduledAt != -1 {
		b.queue.Unschedule(b.self)
	}
	b.active = false
}

// Defer moves the node to the deferred queue.
func (b *BaseNode) Defer() {
	b.queue.Defer(b.self)
}

// Undefer moves the node back to the active queue.
func (b *BaseNode) Undefer() {
	b.queue.Undefer(b.self)
}

// Schedule queues the node if it is not queued already.
func (b *BaseNode) Schedule() {
	b.queue.Schedule(b.self, false)
}

// Queue returns the evaluation queue this node was initialized with.
func (b *BaseNode) Queue() *Queue {
	return b.queue
}
