package indexer

import (
	"github.com/wayneeseguin/skein/log"
	"github.com/wayneeseguin/skein/pkg/skein"
)

// NodeEntry is the per-(path node, element) state.
type NodeEntry struct {
	entryType string
	key       interface{} // scalar, or *RangeKey for range nodes

	// rangeNodeID is the directly dominating range element at the same
	// path, or NoElement.
	rangeNodeID skein.ElementID

	hasAttrs bool
	nonAttrs map[string]bool

	subTree            *SubTree
	numSubTreeRequests int

	// subTreeRoots maps covering root path ids to root element ids.
	subTreeRoots     map[skein.PathID]skein.ElementID
	subTreeRootCount int

	simpleCompressedValue int

	// visible tracks whether the node is currently active: present in
	// sub-indexes and seen by queries and monitors.
	visible bool

	// indexedType names the sub-index currently holding the node, ""
	// when unindexed.
	indexedType string
}

// Type returns the node's value type ("" when untyped).
func (ne *NodeEntry) Type() string {
	return ne.entryType
}

// Key returns the node's key.
func (ne *NodeEntry) Key() interface{} {
	return ne.key
}

// IsVisible reports whether the node is active.
func (ne *NodeEntry) IsVisible() bool {
	return ne.visible
}

// HasAttrs ...
func (ne *NodeEntry) HasAttrs() bool {
	return ne.hasAttrs
}

// RangeNode returns the directly dominating range element.
func (ne *NodeEntry) RangeNode() skein.ElementID {
	return ne.rangeNodeID
}

// effectiveIndexKey returns the node's presence in the sub-indexes:
// its value type, index key, and whether it is indexable at all.
func (ne *NodeEntry) effectiveIndexKey(pn *PathNode) (string, nodeKey, bool) {
	if ne.entryType == TypeRange {
		rk, ok := ne.key.(*RangeKey)
		if !ok || !rk.Active() {
			return "", nodeKey{}, false
		}
		typ := rk.Type()
		if discreteType(typ, pn.alphabeticRanges) {
			// A hull cannot live in a discrete index; without
			// alphabetic ranges a string range stays unindexed.
			return "", nodeKey{}, false
		}
		return typ, hullNodeKey(rk.Hull()), true
	}
	if ne.entryType == "" || neverIndexed(ne.entryType) {
		return "", nodeKey{}, false
	}
	return ne.entryType, scalarNodeKey(ne.entryType, ne.key), true
}

// computeVisible applies the activation rule: a node is active iff it
// is neither directly dominated by an active non-empty range, nor
// itself an inactive range.
func (pn *PathNode) computeVisible(ne *NodeEntry) bool {
	if ne.rangeNodeID != skein.NoElement {
		if dom := pn.nodes[ne.rangeNodeID]; dom != nil && dom.entryType == TypeRange {
			if rk, ok := dom.key.(*RangeKey); ok && rk.Active() {
				return false
			}
		}
	}
	if ne.entryType == TypeRange {
		rk, ok := ne.key.(*RangeKey)
		return ok && rk.Active()
	}
	return true
}

// ---------------------------------------------------------------------
// Node addition and removal.

// AddNode creates (or revives) the node entry for an element at this
// path. A re-add within the removal cycle restores the suspended state
// and nets out to no update.
func (pn *PathNode) AddNode(e skein.ElementID) *NodeEntry {
	if entry, ok := pn.nodes[e]; ok {
		return entry
	}
	if entry, ok := pn.removedNodes[e]; ok {
		// Revival inside the removal window: restore the suspended
		// state so the cycle nets out to no update.
		delete(pn.removedNodes, e)
		pn.nodes[e] = entry
		if st, ok := pn.removedSubTrees[e]; ok {
			delete(pn.removedSubTrees, e)
			entry.subTree = st
		}
		if elem := pn.indexer.dataElements.Get(e); elem != nil && elem.PathID == pn.pathID {
			pn.dataElementCount++
			if pn.dataElementCount == 1 {
				pn.indexer.matchPointActivated(pn)
			}
			if entry.rangeNodeID != skein.NoElement {
				pn.operandCount++
			}
		}
		pn.refreshEntryState(e, entry)
		pn.schedule()
		return entry
	}

	entry := &NodeEntry{
		rangeNodeID: skein.NoElement,
	}
	pn.nodes[e] = entry
	pn.indexer.dataElements.AddReference(e)

	if elem := pn.indexer.dataElements.Get(e); elem != nil {
		if elem.PathID == pn.pathID {
			pn.dataElementCount++
			if pn.dataElementCount == 1 {
				pn.indexer.matchPointActivated(pn)
			}
			if elem.Parent != skein.NoElement {
				if p := pn.indexer.dataElements.Get(elem.Parent); p != nil && p.PathID == pn.pathID {
					pn.operandCount++
					entry.rangeNodeID = elem.Parent
				}
			}
		}
	}

	entry.visible = pn.computeVisible(entry)
	if entry.visible {
		pn.addedNodes[e] = true
	}
	pn.schedule()

	pn.extendSubTreeCoverageTo(e, entry)
	return entry
}

// RemoveNode removes the node entry. The entry leaves nodes
// immediately, but its prior key, sub-tree aggregator and data-element
// reference release are deferred to the epilogue so queries can still
// see the previous state and a re-add within the cycle is a no-op.
func (pn *PathNode) RemoveNode(e skein.ElementID) {
	entry, ok := pn.nodes[e]
	if !ok {
		// Removal of a node already removed earlier in the cycle is
		// tolerated silently.
		log.TRACE("path %d: removal of absent node %d ignored", pn.pathID, e)
		return
	}
	pn.snapshotPrevKey(e, entry)

	if entry.indexedType != "" {
		pn.dropFromSubIndex(e, entry)
	}
	if entry.visible {
		pn.subTreeTerminalRemove(e, entry)
	}

	delete(pn.nodes, e)
	pn.removedNodes[e] = entry
	if entry.subTree != nil {
		pn.removedSubTrees[e] = entry.subTree
	}

	if elem := pn.indexer.dataElements.Get(e); elem != nil && elem.PathID == pn.pathID {
		pn.dataElementCount--
		if pn.dataElementCount == 0 {
			pn.indexer.matchPointDeactivated(pn)
		}
		if entry.rangeNodeID != skein.NoElement {
			pn.operandCount--
		}
	}

	// An operand leaving a range updates the dominating range key.
	if entry.rangeNodeID != skein.NoElement {
		if dom := pn.nodes[entry.rangeNodeID]; dom != nil && dom.entryType == TypeRange {
			pn.recomputeRangeState(entry.rangeNodeID)
		}
	}

	pn.schedule()
}

// dropFromSubIndex removes the node from its sub-index, accumulating
// the lost-match deltas.
func (pn *PathNode) dropFromSubIndex(e skein.ElementID, entry *NodeEntry) {
	si := pn.SubIndex(entry.indexedType)
	if si != nil {
		lost := si.RemoveNode(e)
		pn.accumulateMatchDeltas(e, nil, lost)
	}
	entry.indexedType = ""
}

// accumulateMatchDeltas folds gained/lost value ids into the per-query
// match lists flushed by the epilogue.
func (pn *PathNode) accumulateMatchDeltas(e skein.ElementID, gained, lost []skein.ValueID) {
	add := func(v skein.ValueID, delta int) {
		q, ok := pn.valueOwners[v]
		if !ok {
			return
		}
		if pn.queryMatchList[q] == nil {
			pn.queryMatchList[q] = make(map[skein.ElementID]int)
		}
		pn.queryMatchList[q][e] += delta
	}
	for _, v := range gained {
		add(v, 1)
	}
	for _, v := range lost {
		add(v, -1)
	}
	if len(gained) > 0 || len(lost) > 0 {
		pn.schedule()
	}
}

// ---------------------------------------------------------------------
// SetKeyValue.

// SetKeyValue mutates the node entry for an element. The special type
// values "attribute", "nonAttribute" and "range" adjust attribute
// coverage, the non-attribute set, and range conversion respectively;
// any other type sets the node's terminal value.
func (pn *PathNode) SetKeyValue(e skein.ElementID, typ string, key interface{}, isNewNode bool) {
	switch typ {
	case TypeAttribute:
		pn.setAttributeFlag(e, key)
		return
	case TypeNonAttribute:
		pn.setNonAttribute(e, key)
		return
	}

	entry := pn.nodes[e]
	if entry == nil || isNewNode {
		entry = pn.AddNode(e)
	}
	pn.snapshotPrevKey(e, entry)

	if typ == TypeRange {
		pn.convertToRange(e, entry)
		return
	}

	entry.entryType = typ
	entry.key = key

	// A key set below a dominating range propagates upward into the
	// range's key; the dominator's active status is recomputed and the
	// visibility of operator versus operand nodes flips accordingly.
	if entry.rangeNodeID != skein.NoElement {
		if dom := pn.nodes[entry.rangeNodeID]; dom != nil && dom.entryType == TypeRange {
			pn.recomputeRangeState(entry.rangeNodeID)
			return
		}
	}

	pn.refreshEntryState(e, entry)
}

// setAttributeFlag toggles hasAttrs; turning it on or off extends or
// detaches sub-tree coverage below the node.
func (pn *PathNode) setAttributeFlag(e skein.ElementID, key interface{}) {
	entry := pn.nodes[e]
	if entry == nil {
		entry = pn.AddNode(e)
	}
	on, _ := key.(bool)
	if entry.hasAttrs == on {
		return
	}
	entry.hasAttrs = on
	if on {
		pn.extendSubTreeCoverageBelow(e, entry)
	} else {
		pn.detachSubTreeCoverageBelow(e, entry)
	}
	pn.schedule()
}

// setNonAttribute adds or removes an entry from nonAttrs: a negative
// element id removes the attribute from the entry of its negation, an
// undefined key clears the whole set.
func (pn *PathNode) setNonAttribute(e skein.ElementID, key interface{}) {
	remove := false
	if e < 0 {
		remove = true
		e = -e
	}
	entry := pn.nodes[e]
	if entry == nil {
		if remove {
			return
		}
		entry = pn.AddNode(e)
	}

	if key == nil {
		for attr := range entry.nonAttrs {
			pn.nonAttrChanged(e, entry, attr, false)
		}
		entry.nonAttrs = nil
		return
	}

	attr, _ := key.(string)
	if remove {
		if entry.nonAttrs != nil && entry.nonAttrs[attr] {
			delete(entry.nonAttrs, attr)
			pn.nonAttrChanged(e, entry, attr, false)
		}
		return
	}
	if entry.nonAttrs == nil {
		entry.nonAttrs = make(map[string]bool)
	}
	if !entry.nonAttrs[attr] {
		entry.nonAttrs[attr] = true
		pn.nonAttrChanged(e, entry, attr, true)
	}
}

// convertToRange turns the node into a range node: the existing key is
// replaced with a RangeKey built from the node's operands.
func (pn *PathNode) convertToRange(e skein.ElementID, entry *NodeEntry) {
	entry.entryType = TypeRange
	entry.key = NewRangeKey()
	for _, op := range pn.indexer.dataElements.Operands(e) {
		if opEntry := pn.nodes[op]; opEntry != nil {
			opEntry.rangeNodeID = e
		}
	}
	pn.recomputeRangeState(e)
}

// recomputeRangeState rebuilds the range key of a range node from its
// operand entries, recomputes its active status and flips the
// visibility of the operator versus the operand nodes. Nested ranges
// resolve bottom-up: an active descendant contributes its hull ends;
// a descendant that cannot be active forces the ancestors inactive.
func (pn *PathNode) recomputeRangeState(rangeElem skein.ElementID) {
	entry := pn.nodes[rangeElem]
	if entry == nil || entry.entryType != TypeRange {
		return
	}
	old, _ := entry.key.(*RangeKey)
	pn.snapshotPrevKey(rangeElem, entry)

	rk := NewRangeKey()
	if old != nil {
		rk.MinOpen = old.MinOpen
		rk.MaxOpen = old.MaxOpen
	}
	forced := false
	operands := pn.indexer.dataElements.Operands(rangeElem)
	for _, op := range operands {
		opEntry := pn.nodes[op]
		if opEntry == nil || opEntry.entryType == "" {
			continue
		}
		if opEntry.entryType == TypeRange {
			nested, ok := opEntry.key.(*RangeKey)
			if !ok || !nested.Active() {
				forced = true
				continue
			}
			rk.SetOperandKey(op, nested.Type(), nested.Min())
			rk.SetOperandKey(-op, nested.Type(), nested.Max())
			continue
		}
		rk.SetOperandKey(op, opEntry.entryType, opEntry.key)
	}
	rk.SetForcedInactive(forced)
	entry.key = rk

	// The operator node is visible exactly when the range is active;
	// the operand nodes are visible exactly when it is not.
	pn.refreshEntryState(rangeElem, entry)
	for _, op := range operands {
		if opEntry := pn.nodes[op]; opEntry != nil {
			pn.snapshotPrevKey(op, opEntry)
			pn.refreshEntryState(op, opEntry)
		}
	}

	// Propagate into a dominating range, if any.
	if entry.rangeNodeID != skein.NoElement {
		if dom := pn.nodes[entry.rangeNodeID]; dom != nil && dom.entryType == TypeRange {
			pn.recomputeRangeState(entry.rangeNodeID)
		}
	}
}

// refreshEntryState recomputes the node's visibility and re-applies
// its sub-index membership, query deltas and sub-tree terminal state.
func (pn *PathNode) refreshEntryState(e skein.ElementID, entry *NodeEntry) {
	wasVisible := entry.visible
	entry.visible = pn.computeVisible(entry)

	typ, key, indexable := entry.effectiveIndexKey(pn)

	if pn.subIndexes != nil {
		switch {
		case entry.indexedType != "" && (!entry.visible || !indexable || typ != entry.indexedType):
			pn.dropFromSubIndex(e, entry)
			if entry.visible && indexable {
				gained := pn.subIndexFor(typ).AddNode(e, key)
				pn.accumulateMatchDeltas(e, gained, nil)
				entry.indexedType = typ
			}
		case entry.indexedType != "":
			gained, lost := pn.SubIndex(entry.indexedType).UpdateNode(e, key)
			pn.accumulateMatchDeltas(e, gained, lost)
		case entry.visible && indexable:
			gained := pn.subIndexFor(typ).AddNode(e, key)
			pn.accumulateMatchDeltas(e, gained, nil)
			entry.indexedType = typ
		}
	}

	switch {
	case entry.visible && !wasVisible:
		pn.addedNodes[e] = true
		pn.subTreeTerminalUpdate(e, entry)
	case !entry.visible && wasVisible:
		if _, fresh := pn.addedNodes[e]; fresh {
			delete(pn.addedNodes, e)
		} else {
			pn.removedNodes[e] = entry
		}
		pn.subTreeTerminalRemove(e, entry)
	case entry.visible:
		pn.subTreeTerminalUpdate(e, entry)
	}

	pn.schedule()
}
