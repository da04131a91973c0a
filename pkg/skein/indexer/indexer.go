package indexer

import (
	"github.com/wayneeseguin/skein/internal/config"
	"github.com/wayneeseguin/skein/log"
	"github.com/wayneeseguin/skein/pkg/skein"
)

// Indexer owns a tree of path nodes over a shared path-id allocator,
// the data-element table, and the update queues drained by Flush.
type Indexer struct {
	id int

	paths       *PathIDAllocator
	compression *CompressionRegistry

	root          *PathNode
	pathNodesByID map[skein.PathID]*PathNode

	dataElements *DataElementTable

	scheduledNodes    []*PathNode
	deactivationQueue []*PathNode

	pathActiveListeners []skein.PathActiveListener

	// Hooks for derived collaborators observing root-only transitions
	// of sub-tree roots.
	OnSubTreeOnlyAsRootActivated   func(pathID skein.PathID, elem skein.ElementID)
	OnSubTreeOnlyAsRootDeactivated func(pathID skein.PathID, elem skein.ElementID)

	cfg     *config.Config
	metrics *skein.MetricsRegistry
}

var nextIndexerID int

// NewIndexer creates an indexer over the given allocator and
// compression registry; both may be shared between indexers.
func NewIndexer(paths *PathIDAllocator, compression *CompressionRegistry, cfg *config.Config, metrics *skein.MetricsRegistry) *Indexer {
	if paths == nil {
		paths = NewPathIDAllocator()
	}
	if compression == nil {
		compression = NewCompressionRegistry()
	}
	if cfg == nil {
		cfg = config.Current()
	}
	nextIndexerID++
	ix := &Indexer{
		id:            nextIndexerID,
		paths:         paths,
		compression:   compression,
		pathNodesByID: make(map[skein.PathID]*PathNode),
		cfg:           cfg,
		metrics:       metrics,
	}
	ix.dataElements = NewDataElementTable(paths)
	ix.root = newPathNode(ix, paths.RootID(), nil, "")
	ix.root.alphabeticRanges = cfg.Indexer.AlphabeticRanges
	ix.pathNodesByID[paths.RootID()] = ix.root
	return ix
}

// ID ...
func (ix *Indexer) ID() int {
	return ix.id
}

// Paths returns the shared path-id allocator.
func (ix *Indexer) Paths() *PathIDAllocator {
	return ix.paths
}

// DataElements returns the indexer's data-element table.
func (ix *Indexer) DataElements() *DataElementTable {
	return ix.dataElements
}

// Root returns the root path node.
func (ix *Indexer) Root() *PathNode {
	return ix.root
}

// PathNode returns the path node for an id, or nil.
func (ix *Indexer) PathNode(pathID skein.PathID) *PathNode {
	return ix.pathNodesByID[pathID]
}

// AddPath ensures path nodes exist for the id and every prefix, and
// returns the node for the id.
func (ix *Indexer) AddPath(pathID skein.PathID) *PathNode {
	if pn, ok := ix.pathNodesByID[pathID]; ok {
		return pn
	}
	parentID, attr, ok := ix.paths.Parent(pathID)
	if !ok {
		panic(skein.NewInvariantError("addPath: unknown path id %d", pathID))
	}
	parent := ix.AddPath(parentID)
	pn := newPathNode(ix, pathID, parent, attr)
	pn.alphabeticRanges = ix.cfg.Indexer.AlphabeticRanges
	parent.children[attr] = pn
	ix.pathNodesByID[pathID] = pn
	return pn
}

// AddDataElementNode creates a data element at the path under the
// given parent element and a node entry for it at the path's node.
func (ix *Indexer) AddDataElementNode(pathID skein.PathID, parent skein.ElementID) skein.ElementID {
	pn := ix.AddPath(pathID)
	e := ix.dataElements.AddElement(pathID, parent)
	pn.AddNode(e)
	if ix.metrics != nil {
		ix.metrics.DataElements.Set(int64(ix.dataElements.Size()))
	}
	return e
}

// RemoveNode removes the element's node entry at the path, deferring
// the releases to the epilogue.
func (ix *Indexer) RemoveNode(pathID skein.PathID, e skein.ElementID) {
	if pn := ix.pathNodesByID[pathID]; pn != nil {
		pn.RemoveNode(e)
	}
}

// SetKeyValue sets the element's key at the path node.
func (ix *Indexer) SetKeyValue(pathID skein.PathID, e skein.ElementID, typ string, key interface{}, isNewNode bool) {
	ix.AddPath(pathID).SetKeyValue(e, typ, key, isNewNode)
}

// ---------------------------------------------------------------------
// Path activation.

// AddPathActiveListener registers a listener for path activation
// transitions.
func (ix *Indexer) AddPathActiveListener(l skein.PathActiveListener) {
	ix.pathActiveListeners = append(ix.pathActiveListeners, l)
}

func (ix *Indexer) notifyPathActivated(pn *PathNode) {
	if ix.metrics != nil {
		ix.metrics.ActivePathNodes.Inc()
	}
	for _, l := range ix.pathActiveListeners {
		l.PathActivated(pn.pathID)
	}
}

func (ix *Indexer) notifyPathDeactivated(pn *PathNode) {
	if ix.metrics != nil {
		ix.metrics.ActivePathNodes.Dec()
	}
	for _, l := range ix.pathActiveListeners {
		l.PathDeactivated(pn.pathID)
	}
}

func (ix *Indexer) scheduleDeactivation(pn *PathNode) {
	ix.deactivationQueue = append(ix.deactivationQueue, pn)
}

// KeepPathNodeActive blocks deactivation of the path node.
func (ix *Indexer) KeepPathNodeActive(pathID skein.PathID) {
	ix.AddPath(pathID).KeepActive()
}

// ReleaseKeepPathNodeActive releases the block; a pending deactivation
// fires when the counter reaches zero.
func (ix *Indexer) ReleaseKeepPathNodeActive(pathID skein.PathID) {
	if pn := ix.pathNodesByID[pathID]; pn != nil {
		pn.ReleaseKeepActive()
	}
}

func (ix *Indexer) subTreeOnlyAsRootActivated(pathID skein.PathID, elem skein.ElementID) {
	if ix.OnSubTreeOnlyAsRootActivated != nil {
		ix.OnSubTreeOnlyAsRootActivated(pathID, elem)
	}
}

func (ix *Indexer) subTreeOnlyAsRootDeactivated(pathID skein.PathID, elem skein.ElementID) {
	if ix.OnSubTreeOnlyAsRootDeactivated != nil {
		ix.OnSubTreeOnlyAsRootDeactivated(pathID, elem)
	}
}

// ---------------------------------------------------------------------
// Match points.

// matchPointActivated notifies the queries registered at this path and
// below that data elements are now defined here.
func (ix *Indexer) matchPointActivated(pn *PathNode) {
	pn.forEachDescendantQuery(func(qc skein.QueryCalc) {
		qc.AddToMatchPoints(pn.pathID)
	})
}

func (ix *Indexer) matchPointDeactivated(pn *PathNode) {
	pn.forEachDescendantQuery(func(qc skein.QueryCalc) {
		qc.RemoveFromMatchPoints(pn.pathID)
	})
}

func (pn *PathNode) forEachDescendantQuery(f func(qc skein.QueryCalc)) {
	for _, qc := range pn.queryCalcs {
		f(qc)
	}
	for _, qc := range pn.nonIndexedQueryCalcs {
		f(qc)
	}
	for _, child := range pn.children {
		child.forEachDescendantQuery(f)
	}
}

// matchPointsFor collects the prefix paths (including the query's own)
// on which data elements are defined.
func (ix *Indexer) matchPointsFor(pathID skein.PathID) []skein.PathID {
	var points []skein.PathID
	for pn := ix.pathNodesByID[pathID]; pn != nil; pn = pn.parent {
		if pn.dataElementCount > 0 {
			points = append(points, pn.pathID)
		}
	}
	for i, j := 0, len(points)-1; i < j; i, j = i+1, j-1 {
		points[i], points[j] = points[j], points[i]
	}
	return points
}

// ---------------------------------------------------------------------
// Query registration.

// AddQueryCalc registers a query calculation node at its path.
func (ix *Indexer) AddQueryCalc(qc skein.QueryCalc) {
	pn := ix.AddPath(qc.GetPathID())
	if !qc.NoPathNodeTracing() {
		pn.incNeedTracing()
	}
	if qc.IsSelection() && !qc.DoNotIndex() {
		pn.incNeedIndex()
		pn.queryCalcs[qc.GetID()] = qc
	} else {
		pn.nonIndexedQueryCalcs[qc.GetID()] = qc
		var existing []skein.ElementID
		for e, entry := range pn.nodes {
			if entry.visible {
				existing = append(existing, e)
			}
		}
		if len(existing) > 0 {
			pn.initialMatches[qc.GetID()] = existing
			pn.schedule()
		}
	}
	qc.SetMatchPoints(ix.matchPointsFor(qc.GetPathID()))
	log.DEBUG("indexer %d: query %d registered at path %d", ix.id, qc.GetID(), qc.GetPathID())
}

// RemoveQueryCalc unregisters a query and its values.
func (ix *Indexer) RemoveQueryCalc(qc skein.QueryCalc) {
	pn := ix.pathNodesByID[qc.GetPathID()]
	if pn == nil {
		return
	}
	id := qc.GetID()
	for _, v := range pn.queryValueIDs[id] {
		if lk, ok := pn.valueLookups[v]; ok {
			if si := pn.SubIndex(lk.typ); si != nil {
				si.RemoveValue(v)
			}
		}
		delete(pn.valueOwners, v)
		delete(pn.valueLookups, v)
	}
	delete(pn.queryValueIDs, id)
	delete(pn.queryMatchList, id)
	delete(pn.initialMatches, id)

	if _, indexed := pn.queryCalcs[id]; indexed {
		delete(pn.queryCalcs, id)
		pn.decNeedIndex()
	} else if _, ok := pn.nonIndexedQueryCalcs[id]; ok {
		delete(pn.nonIndexedQueryCalcs, id)
	} else {
		return
	}
	if !qc.NoPathNodeTracing() {
		pn.decNeedTracing()
	}
	qc.RemoveAllIndexerMatches()
}

// AddKeyUpdateQueryCalc subscribes a query to key transitions at its
// path.
func (ix *Indexer) AddKeyUpdateQueryCalc(qc skein.QueryCalc) {
	pn := ix.AddPath(qc.GetPathID())
	pn.keyUpdateQueryCalcs[qc.GetID()] = qc
}

// RemoveKeyUpdateQueryCalc ...
func (ix *Indexer) RemoveKeyUpdateQueryCalc(qc skein.QueryCalc) {
	if pn := ix.pathNodesByID[qc.GetPathID()]; pn != nil {
		delete(pn.keyUpdateQueryCalcs, qc.GetID())
	}
}

// RegisterQueryValue registers one selection value for a query; the
// value's current matches are delivered as deltas in the next
// epilogue.
func (ix *Indexer) RegisterQueryValue(qc skein.QueryCalc, v skein.ValueID, typ string, lookup Lookup) {
	pn := ix.AddPath(qc.GetPathID())
	id := qc.GetID()
	pn.valueOwners[v] = id
	pn.valueLookups[v] = valueLookup{typ: typ, lookup: lookup}
	pn.queryValueIDs[id] = append(pn.queryValueIDs[id], v)

	matches := pn.subIndexFor(typ).AddValue(v, lookup)
	for _, e := range matches {
		if pn.queryMatchList[id] == nil {
			pn.queryMatchList[id] = make(map[skein.ElementID]int)
		}
		pn.queryMatchList[id][e]++
	}
	if len(matches) > 0 {
		pn.schedule()
	}
}

// UnregisterQueryValue removes a selection value; its current matches
// are delivered as negative deltas.
func (ix *Indexer) UnregisterQueryValue(qc skein.QueryCalc, v skein.ValueID) {
	pn := ix.pathNodesByID[qc.GetPathID()]
	if pn == nil {
		return
	}
	id := qc.GetID()
	lk, ok := pn.valueLookups[v]
	if !ok {
		return
	}
	si := pn.SubIndex(lk.typ)
	if si != nil {
		for _, e := range si.NodesMatching(lk.lookup) {
			if pn.queryMatchList[id] == nil {
				pn.queryMatchList[id] = make(map[skein.ElementID]int)
			}
			pn.queryMatchList[id][e]--
		}
		si.RemoveValue(v)
		pn.schedule()
	}
	delete(pn.valueOwners, v)
	delete(pn.valueLookups, v)
	ids := pn.queryValueIDs[id]
	for i, x := range ids {
		if x == v {
			pn.queryValueIDs[id] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
}

// NodesMatching answers an ad-hoc lookup against the path's sub-index.
func (ix *Indexer) NodesMatching(pathID skein.PathID, typ string, lookup Lookup) []skein.ElementID {
	pn := ix.pathNodesByID[pathID]
	if pn == nil {
		return nil
	}
	si := pn.SubIndex(typ)
	if si == nil {
		return nil
	}
	return si.NodesMatching(lookup)
}

// ---------------------------------------------------------------------
// Sub-tree monitors.

// AddSubTreeMonitor registers a monitor at a path; monitoring requires
// path tracing even when no query is attached.
func (ix *Indexer) AddSubTreeMonitor(pathID skein.PathID, monitor skein.SubTreeMonitor) {
	pn := ix.AddPath(pathID)
	pn.subTreeMonitors[monitor.MonitorID()] = monitor
	pn.incSubTree()
}

// RemoveSubTreeMonitor ...
func (ix *Indexer) RemoveSubTreeMonitor(pathID skein.PathID, monitorID int) {
	pn := ix.pathNodesByID[pathID]
	if pn == nil {
		return
	}
	if _, ok := pn.subTreeMonitors[monitorID]; !ok {
		return
	}
	delete(pn.subTreeMonitors, monitorID)
	pn.decSubTree()
}

// RequestSubTreeRetrieval attaches a monitor to one (path, element)
// root; registration completes in the next epilogue with the initial
// terminal set.
func (ix *Indexer) RequestSubTreeRetrieval(pathID skein.PathID, e skein.ElementID, monitor skein.SubTreeMonitor, fullCompression bool) error {
	pn := ix.pathNodesByID[pathID]
	if pn == nil {
		return skein.NewInputError("no path node for path %d", pathID)
	}
	entry := pn.nodes[e]
	if entry == nil {
		return skein.NewInputError("no node for element %d at path %d", e, pathID)
	}
	if entry.subTree == nil {
		entry.subTree = NewSubTree(ix, pathID, e)
		pn.cover(e, entry, pathID, e)
	}
	entry.numSubTreeRequests++
	entry.subTree.monitors[monitor.MonitorID()] = monitor
	entry.subTree.fullCompression[monitor.MonitorID()] = fullCompression

	pn.subTreeRootUpdateIDs = append(pn.subTreeRootUpdateIDs, e)
	pn.schedule()
	return nil
}

// ReleaseSubTreeRetrieval detaches a monitor from a root; when the
// last request goes, the sub-tree coverage is torn down.
func (ix *Indexer) ReleaseSubTreeRetrieval(pathID skein.PathID, e skein.ElementID, monitorID int) {
	pn := ix.pathNodesByID[pathID]
	if pn == nil {
		return
	}
	entry := pn.nodes[e]
	if entry == nil || entry.subTree == nil {
		return
	}
	delete(entry.subTree.monitors, monitorID)
	delete(entry.subTree.fullCompression, monitorID)
	entry.numSubTreeRequests--
	if entry.numSubTreeRequests > 0 {
		return
	}
	pn.uncover(e, entry, pathID, e)
	entry.subTree.release()
	entry.subTree = nil
}

// SubTreeOf returns the aggregator rooted at (path, element), or nil.
func (ix *Indexer) SubTreeOf(pathID skein.PathID, e skein.ElementID) *SubTree {
	pn := ix.pathNodesByID[pathID]
	if pn == nil {
		return nil
	}
	entry := pn.nodes[e]
	if entry == nil {
		return nil
	}
	return entry.subTree
}
