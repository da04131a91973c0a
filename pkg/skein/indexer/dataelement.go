package indexer

import (
	"github.com/wayneeseguin/skein/pkg/skein"
)

// DataElement is an identity for a node occurrence inside an
// ordered-set-like subtree. Elements at the root path have no parent.
type DataElement struct {
	ID       skein.ElementID
	PathID   skein.PathID
	Parent   skein.ElementID
	RefCount int

	// children lists child element ids per child path.
	children map[skein.PathID]map[skein.ElementID]bool
}

// DataElementTable is the per-indexer table of data elements.
type DataElementTable struct {
	elements map[skein.ElementID]*DataElement
	nextID   skein.ElementID
	paths    *PathIDAllocator
}

// NewDataElementTable ...
func NewDataElementTable(paths *PathIDAllocator) *DataElementTable {
	return &DataElementTable{
		elements: make(map[skein.ElementID]*DataElement),
		nextID:   1,
		paths:    paths,
	}
}

// Get returns a data element by id, or nil.
func (t *DataElementTable) Get(id skein.ElementID) *DataElement {
	return t.elements[id]
}

// Size returns the number of live elements.
func (t *DataElementTable) Size() int {
	return len(t.elements)
}

// isPrefixPath reports whether candidate is a strict prefix path of
// pathID.
func (t *DataElementTable) isPrefixPath(candidate, pathID skein.PathID) bool {
	for id := pathID; ; {
		parent, _, ok := t.paths.Parent(id)
		if !ok {
			return false
		}
		if parent == candidate {
			return true
		}
		id = parent
	}
}

// AddElement creates a data element at the given path under the given
// parent element (NoElement for root-path elements). A parent at the
// same path is an operator and the new element its operand; a parent
// at a prefix of the child's path is ordinary dominance. Any other
// configuration violates the ancestry invariant.
func (t *DataElementTable) AddElement(pathID skein.PathID, parent skein.ElementID) skein.ElementID {
	if parent != skein.NoElement {
		p := t.elements[parent]
		if p == nil {
			panic(skein.NewInvariantError("data element parent %d does not exist", parent))
		}
		if p.PathID != pathID && !t.isPrefixPath(p.PathID, pathID) {
			panic(skein.NewInvariantError(
				"data element at path %d cannot dominate child at path %d", p.PathID, pathID))
		}
	}

	id := t.nextID
	t.nextID++
	elem := &DataElement{
		ID:       id,
		PathID:   pathID,
		Parent:   parent,
		RefCount: 1,
	}
	t.elements[id] = elem

	if parent != skein.NoElement {
		p := t.elements[parent]
		if p.children == nil {
			p.children = make(map[skein.PathID]map[skein.ElementID]bool)
		}
		if p.children[pathID] == nil {
			p.children[pathID] = make(map[skein.ElementID]bool)
		}
		p.children[pathID][id] = true
		p.RefCount++
	}
	return id
}

// AddReference takes one reference on an element.
func (t *DataElementTable) AddReference(id skein.ElementID) {
	elem := t.elements[id]
	if elem == nil {
		panic(skein.NewInvariantError("reference to unknown data element %d", id))
	}
	elem.RefCount++
}

// Release drops one reference; the element is removed at zero and its
// parent released in turn.
func (t *DataElementTable) Release(id skein.ElementID) {
	elem := t.elements[id]
	if elem == nil {
		panic(skein.NewInvariantError("release of unknown data element %d", id))
	}
	elem.RefCount--
	if elem.RefCount > 0 {
		return
	}
	delete(t.elements, id)
	if elem.Parent != skein.NoElement {
		if p := t.elements[elem.Parent]; p != nil {
			if set := p.children[elem.PathID]; set != nil {
				delete(set, id)
				if len(set) == 0 {
					delete(p.children, elem.PathID)
				}
			}
			t.Release(elem.Parent)
		}
	}
}

// Children returns the element's children at the given path.
func (t *DataElementTable) Children(id skein.ElementID, pathID skein.PathID) []skein.ElementID {
	elem := t.elements[id]
	if elem == nil || elem.children == nil {
		return nil
	}
	var out []skein.ElementID
	for child := range elem.children[pathID] {
		out = append(out, child)
	}
	return out
}

// AllChildren returns every child element id regardless of path.
func (t *DataElementTable) AllChildren(id skein.ElementID) []skein.ElementID {
	elem := t.elements[id]
	if elem == nil {
		return nil
	}
	var out []skein.ElementID
	for _, set := range elem.children {
		for child := range set {
			out = append(out, child)
		}
	}
	return out
}

// Operands returns the element's children at its own path (the
// operator/operand relation).
func (t *DataElementTable) Operands(id skein.ElementID) []skein.ElementID {
	elem := t.elements[id]
	if elem == nil {
		return nil
	}
	return t.Children(id, elem.PathID)
}
