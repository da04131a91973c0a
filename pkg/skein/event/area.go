package event

// AreaRef is the reference handle of an area in the external display
// hierarchy.
type AreaRef string

// PropagationEdge names a relation along which pointer-in-area state
// propagates from an area.
type PropagationEdge string

const (
	PropagateEmbedding  PropagationEdge = "embedding"
	PropagateExpression PropagationEdge = "expression"
	PropagateReferred   PropagationEdge = "referred"
)

// PropagateDirective overrides the default embedding propagation of
// pointer-in-area state: the listed edges and named areas are followed
// instead.
type PropagateDirective struct {
	Edges []PropagationEdge
	Areas []AreaRef
}

// Area is the external collaborator contract for display areas. The
// event queue only reads geometry-independent facts from it and writes
// param updates back.
type Area interface {
	Ref() AreaRef

	IsOpaque() bool
	CanReceiveFocus() bool
	HandlesClick() bool
	IsDestroyed() bool

	Embedding() Area
	Expression() Area
	Referred() Area

	// PropagatePointerInArea returns the area's propagation directive,
	// or nil for the default (propagate to embedding).
	PropagatePointerInArea() *PropagateDirective

	// ClickableChild returns a wrapped native clickable child that is
	// not at the area's root, or nil.
	ClickableChild() Area

	// SetParam is the area's param update sink.
	SetParam(name string, value interface{})
}

// SimpleArea is a plain Area implementation used by tests and the CLI.
type SimpleArea struct {
	Reference AreaRef
	Opaque    bool
	Focusable bool
	Clickable bool
	Destroyed bool

	EmbeddingArea  Area
	ExpressionArea Area
	ReferredArea   Area
	Directive      *PropagateDirective
	NativeChild    Area

	// Offset of the area's origin relative to its embedding area.
	OffsetX, OffsetY int

	Params map[string]interface{}
}

// Ref ...
func (a *SimpleArea) Ref() AreaRef { return a.Reference }

// IsOpaque ...
func (a *SimpleArea) IsOpaque() bool { return a.Opaque }

// CanReceiveFocus ...
func (a *SimpleArea) CanReceiveFocus() bool { return a.Focusable }

// HandlesClick ...
func (a *SimpleArea) HandlesClick() bool { return a.Clickable }

// IsDestroyed ...
func (a *SimpleArea) IsDestroyed() bool { return a.Destroyed }

// Embedding ...
func (a *SimpleArea) Embedding() Area { return a.EmbeddingArea }

// Expression ...
func (a *SimpleArea) Expression() Area { return a.ExpressionArea }

// Referred ...
func (a *SimpleArea) Referred() Area { return a.ReferredArea }

// PropagatePointerInArea ...
func (a *SimpleArea) PropagatePointerInArea() *PropagateDirective { return a.Directive }

// ClickableChild ...
func (a *SimpleArea) ClickableChild() Area { return a.NativeChild }

// SetParam records the param update.
func (a *SimpleArea) SetParam(name string, value interface{}) {
	if a.Params == nil {
		a.Params = make(map[string]interface{})
	}
	a.Params[name] = value
}

// AbsolutePosition resolves the area's origin by summing offsets along
// the embedding chain.
func (a *SimpleArea) AbsolutePosition() (int, int) {
	x, y := a.OffsetX, a.OffsetY
	for emb := a.EmbeddingArea; emb != nil; emb = emb.Embedding() {
		if s, ok := emb.(*SimpleArea); ok {
			x += s.OffsetX
			y += s.OffsetY
		} else {
			break
		}
	}
	return x, y
}

// AreaRegistry keeps areas by reference.
type AreaRegistry struct {
	areas map[AreaRef]Area
}

// NewAreaRegistry ...
func NewAreaRegistry() *AreaRegistry {
	return &AreaRegistry{areas: make(map[AreaRef]Area)}
}

// Register adds or replaces an area.
func (r *AreaRegistry) Register(a Area) {
	r.areas[a.Ref()] = a
}

// Unregister removes an area by reference.
func (r *AreaRegistry) Unregister(ref AreaRef) {
	delete(r.areas, ref)
}

// Get returns the area for a reference, or nil.
func (r *AreaRegistry) Get(ref AreaRef) Area {
	return r.areas[ref]
}
