// Package document maps YAML-shaped data structures into an indexer:
// maps become data elements with attribute children, lists become
// ordered sets of sibling elements, scalars become typed terminal
// keys.
package document

import (
	"github.com/starkandwayne/goutils/tree"

	"github.com/wayneeseguin/skein/log"
	"github.com/wayneeseguin/skein/pkg/skein"
	"github.com/wayneeseguin/skein/pkg/skein/indexer"
)

// Loader writes one document into an indexer.
type Loader struct {
	ix *indexer.Indexer

	// Roots lists the top-level element ids created by Load.
	Roots []skein.ElementID
}

// NewLoader ...
func NewLoader(ix *indexer.Indexer) *Loader {
	return &Loader{ix: ix}
}

// Load walks the document and creates data elements and keys. The
// returned element is the document root.
func (l *Loader) Load(doc interface{}) skein.ElementID {
	rootPath := l.ix.Paths().RootID()
	root := l.ix.AddDataElementNode(rootPath, skein.NoElement)
	l.Roots = append(l.Roots, root)
	l.loadValue(rootPath, root, doc)
	return root
}

func (l *Loader) loadValue(pathID skein.PathID, elem skein.ElementID, value interface{}) {
	switch v := value.(type) {
	case map[interface{}]interface{}:
		l.ix.SetKeyValue(pathID, elem, indexer.TypeAttribute, true, false)
		for key, child := range v {
			attr, ok := key.(string)
			if !ok {
				log.DEBUG("dropping non-string key %v", key)
				continue
			}
			l.loadAttr(pathID, elem, attr, child)
		}

	case map[string]interface{}:
		l.ix.SetKeyValue(pathID, elem, indexer.TypeAttribute, true, false)
		for attr, child := range v {
			l.loadAttr(pathID, elem, attr, child)
		}

	case []interface{}:
		// An ordered set: sibling elements at the same path under the
		// same parent.
		for _, item := range v {
			sibling := l.ix.AddDataElementNode(pathID, elem)
			l.loadValue(pathID, sibling, item)
		}

	case string:
		l.ix.SetKeyValue(pathID, elem, indexer.TypeString, v, false)
	case bool:
		l.ix.SetKeyValue(pathID, elem, indexer.TypeBool, v, false)
	case int:
		l.ix.SetKeyValue(pathID, elem, indexer.TypeNumber, v, false)
	case int64:
		l.ix.SetKeyValue(pathID, elem, indexer.TypeNumber, v, false)
	case float64:
		l.ix.SetKeyValue(pathID, elem, indexer.TypeNumber, v, false)
	case nil:
		// untyped node; nothing to key

	default:
		log.DEBUG("dropping value of unsupported type %T", value)
	}
}

func (l *Loader) loadAttr(parentPath skein.PathID, parent skein.ElementID, attr string, value interface{}) {
	childPath := l.ix.Paths().ExtendPath(parentPath, attr)
	child := l.ix.AddDataElementNode(childPath, parent)
	l.loadValue(childPath, child, value)
}

// Elements returns the number of live data elements in the loader's
// indexer.
func (l *Loader) Elements() int {
	return l.ix.DataElements().Size()
}

// PathID resolves a dotted cursor string to a path id.
func (l *Loader) PathID(path string) (skein.PathID, error) {
	c, err := tree.ParseCursor(path)
	if err != nil {
		return skein.NoPath, err
	}
	return l.ix.Paths().Allocate(c.Nodes), nil
}

// Snapshot rebuilds the value tree under one element, the inverse of
// Load for the covered sub-tree.
func Snapshot(ix *indexer.Indexer, pathID skein.PathID, elem skein.ElementID) interface{} {
	pn := ix.PathNode(pathID)
	if pn == nil {
		return nil
	}
	entry := pn.Entry(elem)
	if entry == nil {
		return nil
	}

	if entry.HasAttrs() {
		out := map[string]interface{}{}
		for _, child := range ix.DataElements().AllChildren(elem) {
			childElem := ix.DataElements().Get(child)
			if childElem == nil || childElem.PathID == pathID {
				continue
			}
			childPN := ix.PathNode(childElem.PathID)
			if childPN == nil {
				continue
			}
			attr := lastAttr(ix, childElem.PathID)
			childVal := Snapshot(ix, childElem.PathID, child)
			if existing, ok := out[attr]; ok {
				// Sibling elements under one attribute collapse into a
				// list.
				if lst, isList := existing.([]interface{}); isList {
					out[attr] = append(lst, childVal)
				} else {
					out[attr] = []interface{}{existing, childVal}
				}
			} else {
				out[attr] = childVal
			}
		}
		return out
	}

	if entry.Type() != "" {
		return entry.Key()
	}

	// An untyped element with same-path children is an ordered set.
	children := ix.DataElements().Children(elem, pathID)
	if len(children) > 0 {
		var out []interface{}
		for _, child := range children {
			out = append(out, Snapshot(ix, pathID, child))
		}
		return out
	}
	return nil
}

func lastAttr(ix *indexer.Indexer, pathID skein.PathID) string {
	_, attr, _ := ix.Paths().Parent(pathID)
	return attr
}
