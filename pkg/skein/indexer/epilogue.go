package indexer

import (
	"sort"

	"github.com/wayneeseguin/skein/pkg/skein"
)

// Flush drains every scheduled path node's epilogue and then runs the
// deferred deactivation checks. It is registered as a step-boundary
// hook of the evaluation queue.
func (ix *Indexer) Flush() {
	for len(ix.scheduledNodes) > 0 {
		nodes := ix.scheduledNodes
		ix.scheduledNodes = nil
		for _, pn := range nodes {
			pn.epilogue()
		}
	}
	if len(ix.deactivationQueue) > 0 {
		queue := ix.deactivationQueue
		ix.deactivationQueue = nil
		for _, pn := range queue {
			pn.tryDeactivate()
		}
	}
}

func sortedElementIDs(set map[skein.ElementID]bool) []skein.ElementID {
	out := make([]skein.ElementID, 0, len(set))
	for e := range set {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// epilogue flushes one path node's pending updates in the fixed order:
// additions to non-indexed queries, match-count deltas to selections,
// removals to non-indexed queries, suspended sub-tree destruction, key
// updates, the sub-tree epilogue, and finally the prev-key snapshot
// reset.
func (pn *PathNode) epilogue() {
	pn.scheduled = false

	// The pending state is detached up front: anything a callback adds
	// during this epilogue belongs to the next round and must not be
	// wiped by the snapshot reset at the end.
	addedNodes := pn.addedNodes
	removedNodes := pn.removedNodes
	removedSubTrees := pn.removedSubTrees
	prevKeys := pn.prevKeys
	initialMatches := pn.initialMatches
	matchLists := pn.queryMatchList
	pn.addedNodes = make(map[skein.ElementID]bool)
	pn.removedNodes = make(map[skein.ElementID]*NodeEntry)
	pn.removedSubTrees = make(map[skein.ElementID]*SubTree)
	pn.prevKeys = make(map[skein.ElementID]prevKey)
	pn.initialMatches = make(map[skein.QueryID][]skein.ElementID)
	pn.queryMatchList = make(map[skein.QueryID]map[skein.ElementID]int)

	// Additions and removals that cancelled out inside one round are
	// delivered to nobody.
	added := make(map[skein.ElementID]bool, len(addedNodes))
	for e := range addedNodes {
		if _, alsoRemoved := removedNodes[e]; !alsoRemoved {
			added[e] = true
		}
	}
	removed := make(map[skein.ElementID]bool, len(removedNodes))
	for e := range removedNodes {
		if _, alsoAdded := addedNodes[e]; !alsoAdded {
			removed[e] = true
		}
	}

	// (1) additions to non-indexed queries
	if len(pn.nonIndexedQueryCalcs) > 0 {
		addedList := sortedElementIDs(added)
		for _, qc := range pn.nonIndexedQueryCalcs {
			pending := initialMatches[qc.GetID()]
			if len(pending) > 0 {
				qc.AddMatches(pending)
			}
			if len(addedList) > 0 {
				qc.AddMatches(addedList)
			}
		}
	}

	// (2) match-count deltas to selections; zero net deltas are
	// dropped so a remove-and-re-add within the round is invisible.
	for qid, deltas := range matchLists {
		qc := pn.queryCalcs[qid]
		if qc == nil {
			qc = pn.nonIndexedQueryCalcs[qid]
		}
		if qc == nil {
			continue
		}
		net := make(map[skein.ElementID]int, len(deltas))
		for e, d := range deltas {
			if d != 0 {
				net[e] = d
			}
		}
		if len(net) > 0 {
			qc.UpdateMatchCount(net)
			if pn.indexer.metrics != nil {
				pn.indexer.metrics.MatchDeltasFlushed.Add(int64(len(net)))
			}
		}
	}

	// (3) removals to non-indexed queries
	if len(pn.nonIndexedQueryCalcs) > 0 && len(removed) > 0 {
		removedList := sortedElementIDs(removed)
		for _, qc := range pn.nonIndexedQueryCalcs {
			qc.RemoveMatches(removedList)
		}
	}

	// (4) destroy suspended sub-trees whose revival window has closed,
	// and finalize the deferred releases of removed nodes.
	for e, st := range removedSubTrees {
		if _, revived := pn.nodes[e]; revived {
			continue
		}
		for _, child := range pn.indexer.dataElements.AllChildren(e) {
			childElem := pn.indexer.dataElements.Get(child)
			if childElem == nil {
				continue
			}
			if childPN := pn.indexer.pathNodesByID[childElem.PathID]; childPN != nil {
				if childEntry := childPN.nodes[child]; childEntry != nil {
					childPN.uncover(child, childEntry, st.rootPathID, st.rootElem)
				}
			}
		}
		st.release()
	}

	for e, entry := range removedNodes {
		if _, stillPresent := pn.nodes[e]; stillPresent {
			// A visibility flip, not a removal: the entry lives on.
			continue
		}
		if entry.simpleCompressedValue != 0 {
			pn.indexer.compression.Release(entry.simpleCompressedValue)
			entry.simpleCompressedValue = 0
		}
		pn.indexer.dataElements.Release(e)
	}

	// (5) key updates
	pn.flushKeyUpdates(prevKeys)

	// (6) sub-tree epilogue: registration completion first, then the
	// monitor update callbacks. (7) The pre-update snapshots were
	// detached on entry and die with this frame.
	pn.subTreeEpilogue()
}

// flushKeyUpdates builds the parallel key-update arrays from the
// pre-update snapshots and delivers the net transitions.
func (pn *PathNode) flushKeyUpdates(snapshots map[skein.ElementID]prevKey) {
	if len(pn.keyUpdateQueryCalcs) == 0 || len(snapshots) == 0 {
		return
	}

	elems := make([]skein.ElementID, 0, len(snapshots))
	for e := range snapshots {
		elems = append(elems, e)
	}
	sort.Slice(elems, func(i, j int) bool { return elems[i] < elems[j] })

	var (
		ids       []skein.ElementID
		types     []string
		keys      []interface{}
		prevTypes []string
		prevKeys  []interface{}
	)
	for _, e := range elems {
		snap := snapshots[e]
		var curType string
		var curKey interface{}
		if entry := pn.nodes[e]; entry != nil {
			curType = entry.entryType
			curKey = entry.key
		}
		if curType == snap.typ && sameKey(curKey, snap.key) {
			continue
		}
		ids = append(ids, e)
		types = append(types, curType)
		keys = append(keys, curKey)
		prevTypes = append(prevTypes, snap.typ)
		prevKeys = append(prevKeys, snap.key)
	}
	if len(ids) == 0 {
		return
	}
	for _, qc := range pn.keyUpdateQueryCalcs {
		qc.UpdateKeys(ids, types, keys, prevTypes, prevKeys)
	}
	if pn.indexer.metrics != nil {
		pn.indexer.metrics.KeyUpdatesFlushed.Add(int64(len(ids)))
	}
}

func sameKey(a, b interface{}) bool {
	ra, aIsRange := a.(*RangeKey)
	rb, bIsRange := b.(*RangeKey)
	if aIsRange != bIsRange {
		return false
	}
	if aIsRange {
		if ra.Active() != rb.Active() || ra.Size() != rb.Size() {
			return false
		}
		if !ra.Active() {
			return ra.Size() == rb.Size()
		}
		return ra.Type() == rb.Type() &&
			compareKeys(ra.Type(), ra.Min(), rb.Min()) == 0 &&
			compareKeys(ra.Type(), ra.Max(), rb.Max()) == 0
	}
	return a == b
}

// subTreeEpilogue completes fresh root registrations and then flushes
// the pending monitor updates. CompleteUpdate fires once per changed
// root before its SubTreeUpdate.
func (pn *PathNode) subTreeEpilogue() {
	// Detach the pending lists: terminal feeds triggered by monitor
	// callbacks during this flush queue for the next round.
	rootUpdateIDs := pn.subTreeRootUpdateIDs
	monitorUpdateIDs := pn.subTreeMonitorUpdateIDs
	pn.subTreeRootUpdateIDs = nil
	pn.subTreeMonitorUpdateIDs = make(map[int][]skein.ElementID)

	freshRoots := make(map[skein.ElementID]bool, len(rootUpdateIDs))

	for _, root := range rootUpdateIDs {
		if freshRoots[root] {
			continue
		}
		freshRoots[root] = true
		entry := pn.nodes[root]
		if entry == nil || entry.subTree == nil {
			continue
		}
		st := entry.subTree
		for id, monitor := range st.monitors {
			for ref, t := range st.terminals {
				comp := 0
				if st.fullCompression[id] || !t.needFull {
					comp = t.simpleComp
				}
				monitor.UpdateSimpleElement(ref.pathID, ref.elem, t.typ, t.key, comp)
			}
			monitor.CompleteUpdate(root)
			monitor.SubTreeUpdate(pn.pathID, []skein.ElementID{root}, id)
			if pn.indexer.metrics != nil {
				pn.indexer.metrics.SubTreeUpdates.Inc()
			}
		}
		st.changed = nil
		st.removed = nil
	}

	for id, roots := range monitorUpdateIDs {
		var notified []skein.ElementID
		for _, root := range roots {
			if freshRoots[root] {
				continue
			}
			entry := pn.nodes[root]
			if entry == nil || entry.subTree == nil {
				continue
			}
			st := entry.subTree
			monitor := st.monitors[id]
			if monitor == nil {
				continue
			}
			for _, ref := range st.changed {
				if t, ok := st.terminals[ref]; ok {
					comp := 0
					if st.fullCompression[id] || !t.needFull {
						comp = t.simpleComp
					}
					monitor.UpdateSimpleElement(ref.pathID, ref.elem, t.typ, t.key, comp)
				}
			}
			for _, ref := range st.removed {
				monitor.RemoveSimpleElement(ref.pathID, ref.elem)
			}
			monitor.CompleteUpdate(root)
			notified = append(notified, root)
			st.changed = nil
			st.removed = nil
		}
		if len(notified) > 0 {
			entry := pn.nodes[notified[0]]
			if entry != nil && entry.subTree != nil {
				if monitor := entry.subTree.monitors[id]; monitor != nil {
					monitor.SubTreeUpdate(pn.pathID, notified, id)
					if pn.indexer.metrics != nil {
						pn.indexer.metrics.SubTreeUpdates.Inc()
					}
				}
			}
		}
	}
}
