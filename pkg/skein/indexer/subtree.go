package indexer

import (
	"fmt"

	"github.com/wayneeseguin/skein/log"
	"github.com/wayneeseguin/skein/pkg/skein"
)

// terminalRef addresses one terminal inside a sub-tree.
type terminalRef struct {
	pathID skein.PathID
	elem   skein.ElementID
}

type terminalState struct {
	typ        string
	key        interface{}
	simpleComp int
	needFull   bool
}

func (t terminalState) describe(ref terminalRef) string {
	return fmt.Sprintf("%d.%d:%s=%v", ref.pathID, ref.elem, t.typ, t.key)
}

// SubTree is the per-root aggregator of sub-tree monitoring: it holds
// the contribution of every node in the sub-tree and exposes a
// compressed identity.
type SubTree struct {
	rootPathID skein.PathID
	rootElem   skein.ElementID
	indexer    *Indexer

	monitors        map[int]skein.SubTreeMonitor
	fullCompression map[int]bool

	terminals map[terminalRef]terminalState

	// changed and removed accumulate pending monitor work flushed by
	// the epilogue.
	changed []terminalRef
	removed []terminalRef
}

// NewSubTree ...
func NewSubTree(ix *Indexer, rootPathID skein.PathID, rootElem skein.ElementID) *SubTree {
	return &SubTree{
		rootPathID:      rootPathID,
		rootElem:        rootElem,
		indexer:         ix,
		monitors:        make(map[int]skein.SubTreeMonitor),
		fullCompression: make(map[int]bool),
		terminals:       make(map[terminalRef]terminalState),
	}
}

// setTerminal records or replaces one terminal contribution.
func (st *SubTree) setTerminal(pathID skein.PathID, elem skein.ElementID, typ string, key interface{}) {
	ref := terminalRef{pathID: pathID, elem: elem}
	if prev, ok := st.terminals[ref]; ok {
		if prev.typ == typ && fmt.Sprintf("%v", prev.key) == fmt.Sprintf("%v", key) {
			return
		}
		st.indexer.compression.Release(prev.simpleComp)
	}
	comp, needFull := st.indexer.compression.Get(typ, key)
	st.terminals[ref] = terminalState{typ: typ, key: key, simpleComp: comp, needFull: needFull}
	st.changed = append(st.changed, ref)
	st.markChanged()
}

// removeTerminal drops one terminal contribution.
func (st *SubTree) removeTerminal(pathID skein.PathID, elem skein.ElementID) {
	ref := terminalRef{pathID: pathID, elem: elem}
	prev, ok := st.terminals[ref]
	if !ok {
		return
	}
	st.indexer.compression.Release(prev.simpleComp)
	delete(st.terminals, ref)
	st.removed = append(st.removed, ref)
	st.markChanged()
}

func (st *SubTree) markChanged() {
	rootPN := st.indexer.pathNodesByID[st.rootPathID]
	if rootPN == nil {
		return
	}
	for id := range st.monitors {
		found := false
		for _, e := range rootPN.subTreeMonitorUpdateIDs[id] {
			if e == st.rootElem {
				found = true
				break
			}
		}
		if !found {
			rootPN.subTreeMonitorUpdateIDs[id] = append(rootPN.subTreeMonitorUpdateIDs[id], st.rootElem)
		}
	}
	rootPN.schedule()
}

// QuickCompression returns the order-independent compressed identity;
// it may collide when string terminals are present.
func (st *SubTree) QuickCompression() int {
	values := make([]int, 0, len(st.terminals))
	for _, t := range st.terminals {
		values = append(values, t.simpleComp)
	}
	return QuickCompression(values)
}

// NeedsFullCompression reports whether a string terminal makes the
// quick value ambiguous.
func (st *SubTree) NeedsFullCompression() bool {
	for _, t := range st.terminals {
		if t.needFull {
			return true
		}
	}
	return false
}

// FullCompression returns the collision-resistant identity.
func (st *SubTree) FullCompression() uint64 {
	descs := make([]string, 0, len(st.terminals))
	for ref, t := range st.terminals {
		descs = append(descs, t.describe(ref))
	}
	return FullCompression(descs)
}

// NumTerminals ...
func (st *SubTree) NumTerminals() int {
	return len(st.terminals)
}

// release drops every terminal's compression reference; called when
// the sub-tree is destroyed.
func (st *SubTree) release() {
	for _, t := range st.terminals {
		st.indexer.compression.Release(t.simpleComp)
	}
	st.terminals = make(map[terminalRef]terminalState)
}

// ---------------------------------------------------------------------
// Coverage maintenance on path nodes.

// subTreeKeyRepr is the value a node contributes as a terminal.
func subTreeKeyRepr(entry *NodeEntry) (string, interface{}, bool) {
	if entry.entryType == "" {
		return "", nil, false
	}
	if entry.entryType == TypeRange {
		rk, ok := entry.key.(*RangeKey)
		if !ok || !rk.Active() {
			return "", nil, false
		}
		return TypeRange, fmt.Sprintf("[%v,%v]", rk.Min(), rk.Max()), true
	}
	return entry.entryType, entry.key, true
}

// coveringAggregators returns the aggregators of every root covering
// the entry, including the entry's own sub-tree when it is a root.
func (pn *PathNode) coveringAggregators(entry *NodeEntry) []*SubTree {
	var aggs []*SubTree
	if entry.subTree != nil {
		aggs = append(aggs, entry.subTree)
	}
	for rootPath, rootElem := range entry.subTreeRoots {
		rootPN := pn.indexer.pathNodesByID[rootPath]
		if rootPN == nil {
			continue
		}
		if rootEntry := rootPN.nodes[rootElem]; rootEntry != nil && rootEntry.subTree != nil {
			aggs = append(aggs, rootEntry.subTree)
		}
	}
	return aggs
}

// subTreeTerminalUpdate feeds the node's current terminal value into
// every covering aggregator.
func (pn *PathNode) subTreeTerminalUpdate(e skein.ElementID, entry *NodeEntry) {
	if entry.subTree == nil && entry.subTreeRootCount == 0 {
		return
	}
	typ, key, ok := subTreeKeyRepr(entry)
	for _, agg := range pn.coveringAggregators(entry) {
		if ok {
			agg.setTerminal(pn.pathID, e, typ, key)
		} else {
			agg.removeTerminal(pn.pathID, e)
		}
	}
}

// subTreeTerminalRemove removes the node's contribution from every
// covering aggregator.
func (pn *PathNode) subTreeTerminalRemove(e skein.ElementID, entry *NodeEntry) {
	if entry.subTree == nil && entry.subTreeRootCount == 0 {
		return
	}
	for _, agg := range pn.coveringAggregators(entry) {
		agg.removeTerminal(pn.pathID, e)
	}
}

// cover marks the entry as part of the root's sub-tree and recurses
// into the dominated nodes: operands always, attribute children when
// the entry's hasAttrs permits and nonAttrs does not exclude them.
func (pn *PathNode) cover(e skein.ElementID, entry *NodeEntry, rootPath skein.PathID, rootElem skein.ElementID) {
	self := rootPath == pn.pathID && rootElem == e
	if !self {
		if entry.subTreeRoots == nil {
			entry.subTreeRoots = make(map[skein.PathID]skein.ElementID)
		}
		if _, ok := entry.subTreeRoots[rootPath]; ok {
			return
		}
		entry.subTreeRoots[rootPath] = rootElem
		entry.subTreeRootCount++
		pn.incSubTree()
		if entry.subTree != nil && entry.subTreeRootCount == 1 {
			pn.indexer.subTreeOnlyAsRootDeactivated(pn.pathID, e)
		}
	}

	if typ, key, ok := subTreeKeyRepr(entry); ok && entry.visible {
		if rootPN := pn.indexer.pathNodesByID[rootPath]; rootPN != nil {
			if rootEntry := rootPN.nodes[rootElem]; rootEntry != nil && rootEntry.subTree != nil {
				rootEntry.subTree.setTerminal(pn.pathID, e, typ, key)
			}
		}
	}

	pn.coverChildren(e, entry, rootPath, rootElem)
}

func (pn *PathNode) coverChildren(e skein.ElementID, entry *NodeEntry, rootPath skein.PathID, rootElem skein.ElementID) {
	elems := pn.indexer.dataElements
	for _, child := range elems.AllChildren(e) {
		childElem := elems.Get(child)
		if childElem == nil {
			continue
		}
		childPN := pn.indexer.pathNodesByID[childElem.PathID]
		if childPN == nil {
			continue
		}
		childEntry := childPN.nodes[child]
		if childEntry == nil {
			continue
		}
		if childElem.PathID == pn.pathID {
			// Operand descent.
			childPN.cover(child, childEntry, rootPath, rootElem)
			continue
		}
		if !entry.hasAttrs {
			continue
		}
		if entry.nonAttrs != nil && entry.nonAttrs[childPN.parentAttr] {
			continue
		}
		childPN.cover(child, childEntry, rootPath, rootElem)
	}
}

// uncover reverses cover.
func (pn *PathNode) uncover(e skein.ElementID, entry *NodeEntry, rootPath skein.PathID, rootElem skein.ElementID) {
	self := rootPath == pn.pathID && rootElem == e
	if !self {
		if entry.subTreeRoots == nil {
			return
		}
		if _, ok := entry.subTreeRoots[rootPath]; !ok {
			return
		}
		delete(entry.subTreeRoots, rootPath)
		entry.subTreeRootCount--
		pn.decSubTree()
		if entry.subTree != nil && entry.subTreeRootCount == 0 {
			pn.indexer.subTreeOnlyAsRootActivated(pn.pathID, e)
		}
		if rootPN := pn.indexer.pathNodesByID[rootPath]; rootPN != nil {
			if rootEntry := rootPN.nodes[rootElem]; rootEntry != nil && rootEntry.subTree != nil {
				rootEntry.subTree.removeTerminal(pn.pathID, e)
			}
		}
	}

	elems := pn.indexer.dataElements
	for _, child := range elems.AllChildren(e) {
		childElem := elems.Get(child)
		if childElem == nil {
			continue
		}
		childPN := pn.indexer.pathNodesByID[childElem.PathID]
		if childPN == nil {
			continue
		}
		childEntry := childPN.nodes[child]
		if childEntry == nil {
			continue
		}
		childPN.uncover(child, childEntry, rootPath, rootElem)
	}
}

// extendSubTreeCoverageTo covers a freshly created node entry with the
// roots already covering its parent.
func (pn *PathNode) extendSubTreeCoverageTo(e skein.ElementID, entry *NodeEntry) {
	elem := pn.indexer.dataElements.Get(e)
	if elem == nil || elem.Parent == skein.NoElement {
		return
	}
	parentElem := pn.indexer.dataElements.Get(elem.Parent)
	if parentElem == nil {
		return
	}
	parentPN := pn.indexer.pathNodesByID[parentElem.PathID]
	if parentPN == nil {
		return
	}
	parentEntry := parentPN.nodes[elem.Parent]
	if parentEntry == nil {
		return
	}

	operand := parentElem.PathID == pn.pathID
	if !operand {
		if !parentEntry.hasAttrs {
			return
		}
		if parentEntry.nonAttrs != nil && parentEntry.nonAttrs[pn.parentAttr] {
			return
		}
	}

	if parentEntry.subTree != nil {
		pn.cover(e, entry, parentElem.PathID, elem.Parent)
	}
	for rootPath, rootElem := range parentEntry.subTreeRoots {
		pn.cover(e, entry, rootPath, rootElem)
	}
}

// extendSubTreeCoverageBelow extends coverage through a node whose
// hasAttrs was just turned on.
func (pn *PathNode) extendSubTreeCoverageBelow(e skein.ElementID, entry *NodeEntry) {
	if entry.subTree != nil {
		pn.coverChildren(e, entry, pn.pathID, e)
	}
	for rootPath, rootElem := range entry.subTreeRoots {
		pn.coverChildren(e, entry, rootPath, rootElem)
	}
}

// detachSubTreeCoverageBelow detaches coverage that descended through
// this node's attributes.
func (pn *PathNode) detachSubTreeCoverageBelow(e skein.ElementID, entry *NodeEntry) {
	roots := make(map[skein.PathID]skein.ElementID, len(entry.subTreeRoots)+1)
	if entry.subTree != nil {
		roots[pn.pathID] = e
	}
	for rootPath, rootElem := range entry.subTreeRoots {
		roots[rootPath] = rootElem
	}

	elems := pn.indexer.dataElements
	for _, child := range elems.AllChildren(e) {
		childElem := elems.Get(child)
		if childElem == nil || childElem.PathID == pn.pathID {
			continue // operand coverage is unaffected by hasAttrs
		}
		childPN := pn.indexer.pathNodesByID[childElem.PathID]
		if childPN == nil {
			continue
		}
		childEntry := childPN.nodes[child]
		if childEntry == nil {
			continue
		}
		for rootPath, rootElem := range roots {
			childPN.uncover(child, childEntry, rootPath, rootElem)
		}
	}
}

// nonAttrChanged extends or detaches coverage under one attribute when
// the non-attribute set changes.
func (pn *PathNode) nonAttrChanged(e skein.ElementID, entry *NodeEntry, attr string, excluded bool) {
	childPN := pn.children[attr]
	if childPN == nil || !entry.hasAttrs {
		return
	}
	roots := make(map[skein.PathID]skein.ElementID, len(entry.subTreeRoots)+1)
	if entry.subTree != nil {
		roots[pn.pathID] = e
	}
	for rootPath, rootElem := range entry.subTreeRoots {
		roots[rootPath] = rootElem
	}

	for _, child := range pn.indexer.dataElements.Children(e, childPN.pathID) {
		childEntry := childPN.nodes[child]
		if childEntry == nil {
			continue
		}
		for rootPath, rootElem := range roots {
			if excluded {
				childPN.uncover(child, childEntry, rootPath, rootElem)
			} else {
				childPN.cover(child, childEntry, rootPath, rootElem)
			}
		}
	}
	log.TRACE("path %d: nonAttr %q %v for element %d", pn.pathID, attr, excluded, e)
}
