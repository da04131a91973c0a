package indexer

import (
	"github.com/wayneeseguin/skein/pkg/skein"
)

// comparableType reports whether keys of this type carry an ordering a
// range can be interpreted over.
func comparableType(typ string) bool {
	return typ == TypeNumber || typ == TypeString
}

// compareKeys orders two keys of one comparable type. The result is
// negative, zero or positive.
func compareKeys(typ string, a, b interface{}) int {
	switch typ {
	case TypeNumber:
		fa, fb := toFloat(a), toFloat(b)
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	case TypeString:
		sa, _ := a.(string)
		sb, _ := b.(string)
		switch {
		case sa < sb:
			return -1
		case sa > sb:
			return 1
		}
		return 0
	}
	return 0
}

func toFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}

type typedKey struct {
	typ string
	key interface{}
}

// RangeKey encapsulates the ordered multiset of typed keys under a
// range operator, with open/closed end flags. It is active when all
// contained keys share one comparable type and the multiset is
// non-empty; inactive otherwise (the range degenerates to ordered-set
// semantics and the operand nodes become the visible terminals).
type RangeKey struct {
	keys         map[skein.ElementID]typedKey
	countPerType map[string]int

	MinOpen bool
	MaxOpen bool

	// forcedInactive is set when a nested descendant range cannot be
	// active, which forces every ancestor inactive.
	forcedInactive bool
}

// NewRangeKey ...
func NewRangeKey() *RangeKey {
	return &RangeKey{
		keys:         make(map[skein.ElementID]typedKey),
		countPerType: make(map[string]int),
	}
}

// SetOperandKey records the key contributed by an operand element,
// replacing any earlier contribution of the same operand.
func (r *RangeKey) SetOperandKey(elem skein.ElementID, typ string, key interface{}) {
	if prev, ok := r.keys[elem]; ok {
		r.countPerType[prev.typ]--
		if r.countPerType[prev.typ] == 0 {
			delete(r.countPerType, prev.typ)
		}
	}
	r.keys[elem] = typedKey{typ: typ, key: key}
	r.countPerType[typ]++
}

// RemoveOperand drops an operand's contribution.
func (r *RangeKey) RemoveOperand(elem skein.ElementID) {
	prev, ok := r.keys[elem]
	if !ok {
		return
	}
	delete(r.keys, elem)
	r.countPerType[prev.typ]--
	if r.countPerType[prev.typ] == 0 {
		delete(r.countPerType, prev.typ)
	}
}

// SetForcedInactive marks the range inactive regardless of its own
// keys; a descendant range with mixed types forces this.
func (r *RangeKey) SetForcedInactive(forced bool) {
	r.forcedInactive = forced
}

// Size returns the number of contained keys.
func (r *RangeKey) Size() int {
	return len(r.keys)
}

// Active reports whether the range is interpretable as a convex hull.
func (r *RangeKey) Active() bool {
	if r.forcedInactive || len(r.keys) == 0 || len(r.countPerType) != 1 {
		return false
	}
	return comparableType(r.Type())
}

// Type returns the single contained type, or "" when mixed.
func (r *RangeKey) Type() string {
	if len(r.countPerType) != 1 {
		return ""
	}
	for typ := range r.countPerType {
		return typ
	}
	return ""
}

// Min returns the smallest contained key; only meaningful when active.
func (r *RangeKey) Min() interface{} {
	typ := r.Type()
	var min interface{}
	for _, tk := range r.keys {
		if min == nil || compareKeys(typ, tk.key, min) < 0 {
			min = tk.key
		}
	}
	return min
}

// Max returns the largest contained key; only meaningful when active.
func (r *RangeKey) Max() interface{} {
	typ := r.Type()
	var max interface{}
	for _, tk := range r.keys {
		if max == nil || compareKeys(typ, tk.key, max) > 0 {
			max = tk.key
		}
	}
	return max
}

// Clone returns a persistent copy, used when snapshotting a range key
// into the pre-update state instead of mutating it in place.
func (r *RangeKey) Clone() *RangeKey {
	c := NewRangeKey()
	for e, tk := range r.keys {
		c.keys[e] = tk
	}
	for t, n := range r.countPerType {
		c.countPerType[t] = n
	}
	c.MinOpen = r.MinOpen
	c.MaxOpen = r.MaxOpen
	c.forcedInactive = r.forcedInactive
	return c
}

// Hull returns the range's interval representation.
func (r *RangeKey) Hull() Interval {
	return Interval{
		Min:     r.Min(),
		Max:     r.Max(),
		MinOpen: r.MinOpen,
		MaxOpen: r.MaxOpen,
		Type:    r.Type(),
	}
}

// Interval is a typed closed/open interval over one comparable type.
type Interval struct {
	Type    string
	Min     interface{}
	Max     interface{}
	MinOpen bool
	MaxOpen bool
}

// ContainsScalar reports whether the scalar key of the given type lies
// within the interval.
func (iv Interval) ContainsScalar(typ string, key interface{}) bool {
	if typ != iv.Type {
		return false
	}
	lo := compareKeys(typ, key, iv.Min)
	hi := compareKeys(typ, key, iv.Max)
	if lo < 0 || (lo == 0 && iv.MinOpen) {
		return false
	}
	if hi > 0 || (hi == 0 && iv.MaxOpen) {
		return false
	}
	return true
}

// Intersects reports whether two intervals of the same type overlap.
func (iv Interval) Intersects(other Interval) bool {
	if iv.Type != other.Type {
		return false
	}
	c := compareKeys(iv.Type, iv.Max, other.Min)
	if c < 0 || (c == 0 && (iv.MaxOpen || other.MinOpen)) {
		return false
	}
	c = compareKeys(iv.Type, other.Max, iv.Min)
	if c < 0 || (c == 0 && (other.MaxOpen || iv.MinOpen)) {
		return false
	}
	return true
}
