package indexer

import (
	"github.com/wayneeseguin/skein/pkg/skein"
)

// nodeKey is a node's presence in a sub-index: an exact scalar or, for
// an active range node, its hull.
type nodeKey struct {
	isHull bool
	scalar interface{}
	hull   Interval
}

func scalarNodeKey(typ string, key interface{}) nodeKey {
	return nodeKey{scalar: normalizeKey(typ, key)}
}

func hullNodeKey(hull Interval) nodeKey {
	return nodeKey{isHull: true, hull: hull}
}

// SubIndex indexes the nodes of one (path node, value type) pair and
// answers, per key transition, which registered lookup values gained
// or lost the node.
type SubIndex interface {
	AddValue(v skein.ValueID, lookup Lookup) []skein.ElementID
	RemoveValue(v skein.ValueID)

	AddNode(e skein.ElementID, key nodeKey) []skein.ValueID
	RemoveNode(e skein.ElementID) []skein.ValueID
	UpdateNode(e skein.ElementID, key nodeKey) (gained, lost []skein.ValueID)

	// NodesMatching returns the element ids currently matching the
	// lookup.
	NodesMatching(lookup Lookup) []skein.ElementID

	Size() int
	SupportsRangeLookups() bool

	// Entries iterates the indexed nodes.
	Entries(f func(e skein.ElementID, key nodeKey))
}

// ---------------------------------------------------------------------
// Discrete sub-index: exact equality over hashable keys.

// DiscreteSubIndex is the hash sub-index used for boolean,
// element-reference and (without alphabetic ranges) string types.
type DiscreteSubIndex struct {
	typ    string
	byKey  map[interface{}]map[skein.ElementID]bool
	nodes  map[skein.ElementID]interface{}
	values map[skein.ValueID]interface{}
	byVal  map[interface{}]map[skein.ValueID]bool
}

// NewDiscreteSubIndex ...
func NewDiscreteSubIndex(typ string) *DiscreteSubIndex {
	return &DiscreteSubIndex{
		typ:    typ,
		byKey:  make(map[interface{}]map[skein.ElementID]bool),
		nodes:  make(map[skein.ElementID]interface{}),
		values: make(map[skein.ValueID]interface{}),
		byVal:  make(map[interface{}]map[skein.ValueID]bool),
	}
}

// AddValue registers a lookup value and returns its current matches.
func (d *DiscreteSubIndex) AddValue(v skein.ValueID, lookup Lookup) []skein.ElementID {
	if lookup.IsRange {
		// A discrete index cannot serve interval lookups; the value
		// is not recorded, matches nothing, and is not carried over
		// by upgradeToLinear.
		return nil
	}
	d.values[v] = lookup.Scalar
	if d.byVal[lookup.Scalar] == nil {
		d.byVal[lookup.Scalar] = make(map[skein.ValueID]bool)
	}
	d.byVal[lookup.Scalar][v] = true

	var matches []skein.ElementID
	for e := range d.byKey[lookup.Scalar] {
		matches = append(matches, e)
	}
	return matches
}

// RemoveValue unregisters a lookup value.
func (d *DiscreteSubIndex) RemoveValue(v skein.ValueID) {
	key, ok := d.values[v]
	if !ok {
		return
	}
	delete(d.values, v)
	if set := d.byVal[key]; set != nil {
		delete(set, v)
		if len(set) == 0 {
			delete(d.byVal, key)
		}
	}
}

func (d *DiscreteSubIndex) valuesFor(key interface{}) []skein.ValueID {
	set := d.byVal[key]
	if len(set) == 0 {
		return nil
	}
	out := make([]skein.ValueID, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	return out
}

// AddNode indexes a node and returns the values it matches.
func (d *DiscreteSubIndex) AddNode(e skein.ElementID, key nodeKey) []skein.ValueID {
	if key.isHull {
		// Hull keys arise only for ordered types; a discrete index
		// cannot host them.
		return nil
	}
	d.nodes[e] = key.scalar
	if d.byKey[key.scalar] == nil {
		d.byKey[key.scalar] = make(map[skein.ElementID]bool)
	}
	d.byKey[key.scalar][e] = true
	return d.valuesFor(key.scalar)
}

// RemoveNode drops a node and returns the values that lose it.
func (d *DiscreteSubIndex) RemoveNode(e skein.ElementID) []skein.ValueID {
	key, ok := d.nodes[e]
	if !ok {
		return nil
	}
	delete(d.nodes, e)
	if set := d.byKey[key]; set != nil {
		delete(set, e)
		if len(set) == 0 {
			delete(d.byKey, key)
		}
	}
	return d.valuesFor(key)
}

// UpdateNode rekeys a node and returns the value deltas.
func (d *DiscreteSubIndex) UpdateNode(e skein.ElementID, key nodeKey) (gained, lost []skein.ValueID) {
	prev, had := d.nodes[e]
	if had && !key.isHull && prev == key.scalar {
		return nil, nil
	}
	lost = d.RemoveNode(e)
	gained = d.AddNode(e, key)
	return gained, lost
}

// NodesMatching ...
func (d *DiscreteSubIndex) NodesMatching(lookup Lookup) []skein.ElementID {
	if lookup.IsRange {
		return nil
	}
	var out []skein.ElementID
	for e := range d.byKey[lookup.Scalar] {
		out = append(out, e)
	}
	return out
}

// Size ...
func (d *DiscreteSubIndex) Size() int {
	return len(d.nodes)
}

// SupportsRangeLookups ...
func (d *DiscreteSubIndex) SupportsRangeLookups() bool {
	return false
}

// Entries ...
func (d *DiscreteSubIndex) Entries(f func(e skein.ElementID, key nodeKey)) {
	for e, key := range d.nodes {
		f(e, nodeKey{scalar: key})
	}
}

// ---------------------------------------------------------------------
// Linear sub-index: ordered keys with interval lookups.

// LinearSubIndex is the ordered sub-index for comparable types. Nodes
// may be keyed by a scalar or, for active range nodes, by their hull.
type LinearSubIndex struct {
	typ    string
	nodes  map[skein.ElementID]nodeKey
	values map[skein.ValueID]Lookup
}

// NewLinearSubIndex ...
func NewLinearSubIndex(typ string) *LinearSubIndex {
	return &LinearSubIndex{
		typ:    typ,
		nodes:  make(map[skein.ElementID]nodeKey),
		values: make(map[skein.ValueID]Lookup),
	}
}

// matches tests one lookup against one node key.
func (l *LinearSubIndex) matches(lookup Lookup, key nodeKey) bool {
	switch {
	case !lookup.IsRange && !key.isHull:
		return compareKeys(l.typ, lookup.Scalar, key.scalar) == 0
	case !lookup.IsRange && key.isHull:
		return key.hull.ContainsScalar(l.typ, lookup.Scalar)
	case lookup.IsRange && !key.isHull:
		return lookup.Interval.ContainsScalar(l.typ, key.scalar)
	default:
		return lookup.Interval.Intersects(key.hull)
	}
}

// AddValue registers a lookup value and returns its current matches.
func (l *LinearSubIndex) AddValue(v skein.ValueID, lookup Lookup) []skein.ElementID {
	l.values[v] = lookup
	var out []skein.ElementID
	for e, key := range l.nodes {
		if l.matches(lookup, key) {
			out = append(out, e)
		}
	}
	return out
}

// RemoveValue ...
func (l *LinearSubIndex) RemoveValue(v skein.ValueID) {
	delete(l.values, v)
}

func (l *LinearSubIndex) matchingValues(key nodeKey) []skein.ValueID {
	var out []skein.ValueID
	for v, lookup := range l.values {
		if l.matches(lookup, key) {
			out = append(out, v)
		}
	}
	return out
}

// AddNode ...
func (l *LinearSubIndex) AddNode(e skein.ElementID, key nodeKey) []skein.ValueID {
	l.nodes[e] = key
	return l.matchingValues(key)
}

// RemoveNode ...
func (l *LinearSubIndex) RemoveNode(e skein.ElementID) []skein.ValueID {
	key, ok := l.nodes[e]
	if !ok {
		return nil
	}
	delete(l.nodes, e)
	return l.matchingValues(key)
}

// UpdateNode rekeys a node; values matching both old and new key are
// reported in neither delta.
func (l *LinearSubIndex) UpdateNode(e skein.ElementID, key nodeKey) (gained, lost []skein.ValueID) {
	prev, had := l.nodes[e]
	l.nodes[e] = key
	if !had {
		return l.matchingValues(key), nil
	}
	for v, lookup := range l.values {
		before := l.matches(lookup, prev)
		after := l.matches(lookup, key)
		switch {
		case after && !before:
			gained = append(gained, v)
		case before && !after:
			lost = append(lost, v)
		}
	}
	return gained, lost
}

// NodesMatching ...
func (l *LinearSubIndex) NodesMatching(lookup Lookup) []skein.ElementID {
	var out []skein.ElementID
	for e, key := range l.nodes {
		if l.matches(lookup, key) {
			out = append(out, e)
		}
	}
	return out
}

// Size ...
func (l *LinearSubIndex) Size() int {
	return len(l.nodes)
}

// SupportsRangeLookups ...
func (l *LinearSubIndex) SupportsRangeLookups() bool {
	return true
}

// Entries ...
func (l *LinearSubIndex) Entries(f func(e skein.ElementID, key nodeKey)) {
	for e, key := range l.nodes {
		f(e, key)
	}
}

// upgradeToLinear rebuilds a discrete string sub-index as a linear one
// in place of the old index; used when alphabetic ranges are enabled
// on a path that already indexes strings.
func upgradeToLinear(d *DiscreteSubIndex) *LinearSubIndex {
	l := NewLinearSubIndex(d.typ)
	for e, key := range d.nodes {
		l.nodes[e] = nodeKey{scalar: key}
	}
	for v, key := range d.values {
		l.values[v] = Lookup{Scalar: key}
	}
	return l
}
