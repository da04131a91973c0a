package indexer

import (
	"sort"

	"github.com/wayneeseguin/skein/log"
	"github.com/wayneeseguin/skein/pkg/skein"
)

// prevKey is the pre-update snapshot of a node's (type, key) taken the
// first time the node changes within an update round. Range keys are
// cloned into the snapshot, never aliased.
type prevKey struct {
	typ     string
	key     interface{}
	existed bool
}

// PathNode holds all per-path state of one indexer: the node entries,
// sub-indexes, subscribed queries, sub-tree monitors and the pending
// update queues flushed by the epilogue.
type PathNode struct {
	pathID     skein.PathID
	indexer    *Indexer
	parent     *PathNode
	parentAttr string
	children   map[string]*PathNode

	tracingChildren    map[string]*PathNode
	numTracingChildren int

	// Mode reference counts.
	needTracing int
	needIndex   int
	subTree     int
	keepActive  int

	trace             bool
	alphabeticRanges  bool
	deactivateBlocked bool

	nodes        map[skein.ElementID]*NodeEntry
	addedNodes   map[skein.ElementID]bool
	removedNodes map[skein.ElementID]*NodeEntry

	// removedSubTrees keeps the aggregators of removed roots until the
	// epilogue closes their revival window.
	removedSubTrees map[skein.ElementID]*SubTree

	prevKeys map[skein.ElementID]prevKey

	subIndexes map[string]SubIndex

	queryCalcs           map[skein.QueryID]skein.QueryCalc
	nonIndexedQueryCalcs map[skein.QueryID]skein.QueryCalc
	keyUpdateQueryCalcs  map[skein.QueryID]skein.QueryCalc

	queryValueIDs map[skein.QueryID][]skein.ValueID
	valueOwners   map[skein.ValueID]skein.QueryID
	valueLookups  map[skein.ValueID]valueLookup

	queryMatchList map[skein.QueryID]map[skein.ElementID]int

	// initialMatches holds existing nodes owed to freshly registered
	// non-indexed queries, delivered in the next epilogue.
	initialMatches map[skein.QueryID][]skein.ElementID

	subTreeMonitors map[int]skein.SubTreeMonitor

	// subTreeRootUpdateIDs lists roots whose registration completes in
	// the next epilogue; subTreeMonitorUpdateIDs lists roots with
	// changed terminals per monitor.
	subTreeRootUpdateIDs    []skein.ElementID
	subTreeMonitorUpdateIDs map[int][]skein.ElementID

	operandCount     int
	dataElementCount int

	scheduled bool
}

type valueLookup struct {
	typ    string
	lookup Lookup
}

func newPathNode(ix *Indexer, pathID skein.PathID, parent *PathNode, parentAttr string) *PathNode {
	return &PathNode{
		pathID:                  pathID,
		indexer:                 ix,
		parent:                  parent,
		parentAttr:              parentAttr,
		children:                make(map[string]*PathNode),
		tracingChildren:         make(map[string]*PathNode),
		nodes:                   make(map[skein.ElementID]*NodeEntry),
		addedNodes:              make(map[skein.ElementID]bool),
		removedNodes:            make(map[skein.ElementID]*NodeEntry),
		removedSubTrees:         make(map[skein.ElementID]*SubTree),
		prevKeys:                make(map[skein.ElementID]prevKey),
		queryCalcs:              make(map[skein.QueryID]skein.QueryCalc),
		nonIndexedQueryCalcs:    make(map[skein.QueryID]skein.QueryCalc),
		keyUpdateQueryCalcs:     make(map[skein.QueryID]skein.QueryCalc),
		queryValueIDs:           make(map[skein.QueryID][]skein.ValueID),
		valueOwners:             make(map[skein.ValueID]skein.QueryID),
		valueLookups:            make(map[skein.ValueID]valueLookup),
		queryMatchList:          make(map[skein.QueryID]map[skein.ElementID]int),
		initialMatches:          make(map[skein.QueryID][]skein.ElementID),
		subTreeMonitors:         make(map[int]skein.SubTreeMonitor),
		subTreeMonitorUpdateIDs: make(map[int][]skein.ElementID),
	}
}

// PathID ...
func (pn *PathNode) PathID() skein.PathID {
	return pn.pathID
}

// IsActive reports whether the path is active: traced or covered by
// sub-tree monitoring.
func (pn *PathNode) IsActive() bool {
	return pn.trace || pn.subTree > 0
}

// Child returns the child path node under the attribute, or nil.
func (pn *PathNode) Child(attr string) *PathNode {
	return pn.children[attr]
}

// Entry returns the node entry for an element, or nil.
func (pn *PathNode) Entry(e skein.ElementID) *NodeEntry {
	return pn.nodes[e]
}

// NumNodes returns the number of live node entries.
func (pn *PathNode) NumNodes() int {
	return len(pn.nodes)
}

// ElementIDs returns the live element ids at this path in ascending
// order.
func (pn *PathNode) ElementIDs() []skein.ElementID {
	out := make([]skein.ElementID, 0, len(pn.nodes))
	for e := range pn.nodes {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// SubIndex returns the sub-index for a value type, or nil.
func (pn *PathNode) SubIndex(typ string) SubIndex {
	if pn.subIndexes == nil {
		return nil
	}
	return pn.subIndexes[typ]
}

// schedule marks the path node for the next epilogue round.
func (pn *PathNode) schedule() {
	if pn.scheduled {
		return
	}
	pn.scheduled = true
	pn.indexer.scheduledNodes = append(pn.indexer.scheduledNodes, pn)
}

// snapshotPrevKey records the node's pre-update (type, key) once per
// round. Range keys are cloned so later mutation cannot leak into the
// snapshot.
func (pn *PathNode) snapshotPrevKey(e skein.ElementID, entry *NodeEntry) {
	if _, done := pn.prevKeys[e]; done {
		return
	}
	snap := prevKey{existed: entry != nil}
	if entry != nil {
		snap.typ = entry.entryType
		if rk, ok := entry.key.(*RangeKey); ok {
			snap.key = rk.Clone()
		} else {
			snap.key = entry.key
		}
	}
	pn.prevKeys[e] = snap
	pn.schedule()
}

// ---------------------------------------------------------------------
// Path-node modes.

// incNeedTracing raises the tracing requirement on this path and every
// path above it; tracing is turned on immediately.
func (pn *PathNode) incNeedTracing() {
	pn.needTracing++
	if pn.parent != nil {
		pn.parent.incNeedTracing()
	}
	if !pn.trace {
		wasActive := pn.IsActive()
		pn.markTrace()
		if !wasActive {
			pn.indexer.notifyPathActivated(pn)
		}
	}
}

// decNeedTracing lowers the tracing requirement; deactivation is
// scheduled, not immediate.
func (pn *PathNode) decNeedTracing() {
	if pn.needTracing <= 0 {
		panic(skein.NewInvariantError("needTracing underflow on path %d", pn.pathID))
	}
	pn.needTracing--
	if pn.parent != nil {
		pn.parent.decNeedTracing()
	}
	if pn.needTracing == 0 {
		pn.indexer.scheduleDeactivation(pn)
	}
}

// markTrace flips the trace flag and the parent's tracing-children
// bookkeeping without emitting activation notices.
func (pn *PathNode) markTrace() {
	if pn.trace {
		return
	}
	pn.trace = true
	if pn.parent != nil {
		if _, ok := pn.parent.tracingChildren[pn.parentAttr]; !ok {
			pn.parent.tracingChildren[pn.parentAttr] = pn
			pn.parent.numTracingChildren++
		}
	}
}

func (pn *PathNode) clearTrace() {
	if !pn.trace {
		return
	}
	pn.trace = false
	if pn.parent != nil {
		if _, ok := pn.parent.tracingChildren[pn.parentAttr]; ok {
			delete(pn.parent.tracingChildren, pn.parentAttr)
			pn.parent.numTracingChildren--
		}
	}
	if !pn.IsActive() {
		pn.indexer.notifyPathDeactivated(pn)
	}
}

// tryDeactivate runs the scheduled deactivation check. While
// keepActive is held the check is deferred; it re-fires when the hold
// is released.
func (pn *PathNode) tryDeactivate() {
	if pn.needIndex == 0 && pn.subIndexes != nil {
		pn.destroySubIndexes()
	}
	if pn.needTracing > 0 || pn.subTree > 0 {
		return
	}
	if pn.keepActive > 0 {
		pn.deactivateBlocked = true
		return
	}
	pn.deactivateBlocked = false
	pn.clearTrace()
}

func (pn *PathNode) destroySubIndexes() {
	pn.subIndexes = nil
	for _, entry := range pn.nodes {
		entry.indexedType = ""
	}
}

// incNeedIndex creates the sub-indexes on first demand and loads the
// existing nodes into them once.
func (pn *PathNode) incNeedIndex() {
	pn.needIndex++
	if pn.subIndexes == nil {
		pn.subIndexes = make(map[string]SubIndex)
		pn.loadNodesIntoSubIndexes()
	}
}

// decNeedIndex schedules sub-index destruction at zero.
func (pn *PathNode) decNeedIndex() {
	if pn.needIndex <= 0 {
		panic(skein.NewInvariantError("needIndex underflow on path %d", pn.pathID))
	}
	pn.needIndex--
	if pn.needIndex == 0 {
		pn.indexer.scheduleDeactivation(pn)
	}
}

func (pn *PathNode) loadNodesIntoSubIndexes() {
	for e, entry := range pn.nodes {
		typ, key, indexable := entry.effectiveIndexKey(pn)
		if !indexable || !entry.visible {
			continue
		}
		pn.subIndexFor(typ).AddNode(e, key)
		entry.indexedType = typ
	}
}

// subIndexFor returns (creating if needed) the sub-index for a type.
// Creating the first sub-index loads the existing nodes.
func (pn *PathNode) subIndexFor(typ string) SubIndex {
	if pn.subIndexes == nil {
		pn.subIndexes = make(map[string]SubIndex)
		pn.loadNodesIntoSubIndexes()
	}
	si, ok := pn.subIndexes[typ]
	if !ok {
		if discreteType(typ, pn.alphabeticRanges) {
			si = NewDiscreteSubIndex(typ)
		} else {
			si = NewLinearSubIndex(typ)
		}
		pn.subIndexes[typ] = si
	}
	return si
}

// incSubTree raises the sub-tree requirement; monitoring requires path
// tracing even with no query attached, and keeps the ancestors traced
// through the parent's tracing requirement.
func (pn *PathNode) incSubTree() {
	wasActive := pn.IsActive()
	pn.subTree++
	if pn.subTree == 1 && pn.parent != nil {
		pn.parent.incNeedTracing()
	}
	pn.markTrace()
	if !wasActive {
		pn.indexer.notifyPathActivated(pn)
	}
}

func (pn *PathNode) decSubTree() {
	if pn.subTree <= 0 {
		panic(skein.NewInvariantError("subTree underflow on path %d", pn.pathID))
	}
	pn.subTree--
	if pn.subTree == 0 {
		if pn.parent != nil {
			pn.parent.decNeedTracing()
		}
		pn.indexer.scheduleDeactivation(pn)
	}
}

// KeepActive blocks deactivation of the path node.
func (pn *PathNode) KeepActive() {
	pn.keepActive++
}

// ReleaseKeepActive drops the deactivation block; a deactivation
// requested while blocked fires now if no reason to stay active
// remains.
func (pn *PathNode) ReleaseKeepActive() {
	if pn.keepActive <= 0 {
		panic(skein.NewInvariantError("keepActive underflow on path %d", pn.pathID))
	}
	pn.keepActive--
	if pn.keepActive == 0 && pn.deactivateBlocked {
		pn.tryDeactivate()
	}
}

// SetAlphabeticRanges enables ordered interpretation of string keys on
// this path; an existing discrete string sub-index is upgraded to a
// linear one in place.
func (pn *PathNode) SetAlphabeticRanges(on bool) {
	if pn.alphabeticRanges == on {
		return
	}
	pn.alphabeticRanges = on
	if !on || pn.subIndexes == nil {
		return
	}
	if d, ok := pn.subIndexes[TypeString].(*DiscreteSubIndex); ok {
		pn.subIndexes[TypeString] = upgradeToLinear(d)
		log.DEBUG("path %d: string sub-index upgraded to linear", pn.pathID)
	}
}

// HasDataElements reports whether data elements are defined at this
// path.
func (pn *PathNode) HasDataElements() bool {
	return pn.dataElementCount > 0
}

// OperandCount returns the number of operator/operand pairs at this
// path.
func (pn *PathNode) OperandCount() int {
	return pn.operandCount
}
