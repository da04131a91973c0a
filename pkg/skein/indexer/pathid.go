package indexer

import (
	"github.com/wayneeseguin/skein/pkg/skein"
)

// PathIDAllocator assigns stable integer ids to path tuples (sequences
// of string attributes): the same tuple always yields the same id, so
// ids can be shared across indexer instances. Ids are reference
// counted; release decrements and frees the tuple when unused.
type pathIDEntry struct {
	id       skein.PathID
	parent   *pathIDEntry
	attr     string
	children map[string]*pathIDEntry
	refCount int
}

// PathIDAllocator ...
type PathIDAllocator struct {
	root *pathIDEntry
	byID map[skein.PathID]*pathIDEntry
	next skein.PathID
}

// NewPathIDAllocator creates an allocator with the root path
// pre-allocated as id 0.
func NewPathIDAllocator() *PathIDAllocator {
	root := &pathIDEntry{
		id:       0,
		children: make(map[string]*pathIDEntry),
		refCount: 1,
	}
	return &PathIDAllocator{
		root: root,
		byID: map[skein.PathID]*pathIDEntry{0: root},
		next: 1,
	}
}

// RootID returns the id of the empty path.
func (a *PathIDAllocator) RootID() skein.PathID {
	return a.root.id
}

// Allocate returns the id for the given attribute tuple, creating
// entries for every prefix as needed and taking a reference on the
// final entry.
func (a *PathIDAllocator) Allocate(attrs []string) skein.PathID {
	entry := a.root
	for _, attr := range attrs {
		child, ok := entry.children[attr]
		if !ok {
			child = &pathIDEntry{
				id:       a.next,
				parent:   entry,
				attr:     attr,
				children: make(map[string]*pathIDEntry),
			}
			a.next++
			entry.children[attr] = child
			a.byID[child.id] = child
		}
		entry = child
	}
	entry.refCount++
	return entry.id
}

// ExtendPath returns the id of the path one attribute below the given
// id, taking a reference on it.
func (a *PathIDAllocator) ExtendPath(id skein.PathID, attr string) skein.PathID {
	entry := a.byID[id]
	if entry == nil {
		panic(skein.NewInvariantError("extend of unknown path id %d", id))
	}
	child, ok := entry.children[attr]
	if !ok {
		child = &pathIDEntry{
			id:       a.next,
			parent:   entry,
			attr:     attr,
			children: make(map[string]*pathIDEntry),
		}
		a.next++
		entry.children[attr] = child
		a.byID[child.id] = child
	}
	child.refCount++
	return child.id
}

// Release drops one reference on a path id. Entries with children are
// kept so descendant ids stay resolvable.
func (a *PathIDAllocator) Release(id skein.PathID) {
	entry := a.byID[id]
	if entry == nil {
		panic(skein.NewInvariantError("release of unknown path id %d", id))
	}
	if entry.refCount <= 0 {
		panic(skein.NewInvariantError("double release of path id %d", id))
	}
	entry.refCount--
	for entry != nil && entry != a.root && entry.refCount == 0 && len(entry.children) == 0 {
		parent := entry.parent
		delete(parent.children, entry.attr)
		delete(a.byID, entry.id)
		entry = parent
		// A parent kept alive only for this child may now be freeable,
		// but only if nothing holds a reference to it.
		if entry.refCount > 0 {
			break
		}
	}
}

// Path returns the attribute tuple for an id.
func (a *PathIDAllocator) Path(id skein.PathID) ([]string, bool) {
	entry := a.byID[id]
	if entry == nil {
		return nil, false
	}
	var attrs []string
	for e := entry; e.parent != nil; e = e.parent {
		attrs = append(attrs, e.attr)
	}
	for i, j := 0, len(attrs)-1; i < j; i, j = i+1, j-1 {
		attrs[i], attrs[j] = attrs[j], attrs[i]
	}
	return attrs, true
}

// Parent returns the id of the path's parent and the final attribute.
func (a *PathIDAllocator) Parent(id skein.PathID) (skein.PathID, string, bool) {
	entry := a.byID[id]
	if entry == nil || entry.parent == nil {
		return skein.NoPath, "", false
	}
	return entry.parent.id, entry.attr, true
}
