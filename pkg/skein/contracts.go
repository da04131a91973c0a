package skein

// Watcher is any object receiving UpdateInput callbacks from an
// evaluator it watches.
type Watcher interface {
	// WatcherID returns the watcher's unique id.
	WatcherID() WatcherID

	// UpdateInput receives a result from a watched evaluator.
	UpdateInput(id WatcherID, result *Result)
}

// Evaluator is a reactive computation cell with inputs, an output and a
// scheduling class (priority, step). Priority and step are immutable
// after registration with the queue.
type Evaluator interface {
	Watcher

	GetSchedulePriority() int
	GetScheduleStep() int

	IsActive() bool
	IsScheduled() bool
	IsDeferred() bool

	// UpdateOutput is called by the scheduler when the node's turn
	// comes; it may schedule other nodes.
	UpdateOutput()

	// Defer and Undefer move the node between the active and deferred
	// queues.
	Defer()
	Undefer()
}

// QueryCalc is a query calculation node registered with an indexer path
// node. The indexer delivers incremental match updates through it.
type QueryCalc interface {
	GetID() QueryID
	GetPathID() PathID

	// IsSelection distinguishes selections (indexed lookup values) from
	// projections.
	IsSelection() bool

	// NoPathNodeTracing is set by queries that must not force path
	// tracing on registration.
	NoPathNodeTracing() bool

	// DoNotIndex is set by queries that want add/remove lists instead
	// of sub-index match counting.
	DoNotIndex() bool

	SetMatchPoints(pathIDs []PathID)
	AddToMatchPoints(pathID PathID)
	RemoveFromMatchPoints(pathID PathID)

	// UpdateMatchCount receives the net per-element match-count deltas
	// accumulated over one update round.
	UpdateMatchCount(deltas map[ElementID]int)

	AddMatches(elementIDs []ElementID)
	RemoveMatches(elementIDs []ElementID)
	RemoveAllIndexerMatches()

	// UpdateKeys receives parallel arrays describing key transitions.
	UpdateKeys(elementIDs []ElementID, types []string, keys []interface{}, prevTypes []string, prevKeys []interface{})

	// GetDisjointValueIDs lists the selection value ids this query
	// registered, known to be pairwise disjoint.
	GetDisjointValueIDs() []ValueID
}

// SubTreeMonitor is an external subscriber receiving terminal-value
// updates for a named sub-tree.
type SubTreeMonitor interface {
	MonitorID() int

	// SubTreeUpdate is the batch notification delivered once per
	// update round for each changed root.
	SubTreeUpdate(pathID PathID, elementIDs []ElementID, monitorID int)

	UpdateSimpleElement(pathID PathID, elementID ElementID, terminalType string, key interface{}, simpleCompression int)
	RemoveSimpleElement(pathID PathID, elementID ElementID)

	// CompleteUpdate is called once per changed root prior to
	// SubTreeUpdate.
	CompleteUpdate(rootElementID ElementID)
}

// PathActiveListener is notified when paths flip between active and
// inactive.
type PathActiveListener interface {
	PathActivated(pathID PathID)
	PathDeactivated(pathID PathID)
}
