package indexer

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/wayneeseguin/skein/internal/config"
	"github.com/wayneeseguin/skein/pkg/skein"
)

func testIndexer() *Indexer {
	return NewIndexer(NewPathIDAllocator(), NewCompressionRegistry(), config.DefaultConfig(), nil)
}

func TestPathIDAllocator(t *testing.T) {
	Convey("Path id allocation", t, func() {
		a := NewPathIDAllocator()

		Convey("the same tuple yields the same id", func() {
			id1 := a.Allocate([]string{"jobs", "web", "port"})
			id2 := a.Allocate([]string{"jobs", "web", "port"})
			So(id1, ShouldEqual, id2)
		})

		Convey("prefix tuples resolve to prefix ids", func() {
			id := a.Allocate([]string{"jobs", "web"})
			parent, attr, ok := a.Parent(id)
			So(ok, ShouldBeTrue)
			So(attr, ShouldEqual, "web")
			jobs := a.Allocate([]string{"jobs"})
			So(parent, ShouldEqual, jobs)
		})

		Convey("paths round-trip through their ids", func() {
			id := a.Allocate([]string{"a", "b", "c"})
			attrs, ok := a.Path(id)
			So(ok, ShouldBeTrue)
			So(attrs, ShouldResemble, []string{"a", "b", "c"})
		})

		Convey("release frees unreferenced leaves", func() {
			id := a.Allocate([]string{"tmp", "leaf"})
			a.Release(id)
			_, ok := a.Path(id)
			So(ok, ShouldBeFalse)
		})

		Convey("double release is an invariant violation", func() {
			id := a.Allocate([]string{"x"})
			a.Release(id)
			So(func() { a.Release(id) }, ShouldPanic)
		})
	})
}

func TestCompressionRegistry(t *testing.T) {
	Convey("Compression registry", t, func() {
		c := NewCompressionRegistry()

		Convey("equal (type, key) pairs share one value", func() {
			v1, _ := c.Get(TypeNumber, 42)
			v2, _ := c.Get(TypeNumber, 42.0)
			So(v1, ShouldEqual, v2)
			So(c.RefCount(v1), ShouldEqual, 2)
		})

		Convey("string keys need full compression", func() {
			_, needFull := c.Get(TypeString, "hello")
			So(needFull, ShouldBeTrue)
			_, needFull = c.Get(TypeNumber, 1)
			So(needFull, ShouldBeFalse)
		})

		Convey("double release is an invariant violation", func() {
			v, _ := c.Get(TypeBool, true)
			c.Release(v)
			So(func() { c.Release(v) }, ShouldPanic)
		})
	})
}

func TestSelectionMatching(t *testing.T) {
	Convey("Selection match counting", t, func() {
		ix := testIndexer()
		pathID := ix.Paths().Allocate([]string{"items"})

		q := newMockQuery(1, pathID, true)
		ix.AddQueryCalc(q)

		e1 := ix.AddDataElementNode(pathID, skein.NoElement)
		e2 := ix.AddDataElementNode(pathID, skein.NoElement)
		ix.SetKeyValue(pathID, e1, TypeNumber, 3, false)
		ix.SetKeyValue(pathID, e2, TypeNumber, 8, false)

		ix.RegisterQueryValue(q, 101, TypeNumber, RangeLookup(TypeNumber, 0, 5, false, false))
		ix.Flush()

		Convey("registration delivers the existing matches", func() {
			So(q.matchCounts[e1], ShouldEqual, 1)
			So(q.matchCounts[e2], ShouldEqual, 0)
		})

		Convey("a key change delivers the net delta exactly once", func() {
			ix.SetKeyValue(pathID, e2, TypeNumber, 4, false)
			ix.Flush()
			So(q.matchCounts[e2], ShouldEqual, 1)

			ix.SetKeyValue(pathID, e1, TypeNumber, 100, false)
			ix.Flush()
			So(q.matchCounts[e1], ShouldEqual, 0)
		})

		Convey("an exact-value lookup matches discrete keys", func() {
			q2 := newMockQuery(2, pathID, true)
			ix.AddQueryCalc(q2)
			e3 := ix.AddDataElementNode(pathID, skein.NoElement)
			ix.SetKeyValue(pathID, e3, TypeString, "spruce", false)
			ix.RegisterQueryValue(q2, 201, TypeString, ScalarLookup(TypeString, "spruce"))
			ix.Flush()
			So(q2.matchCounts[e3], ShouldEqual, 1)
		})

		Convey("value unregistration delivers negative deltas", func() {
			ix.UnregisterQueryValue(q, 101)
			ix.Flush()
			So(q.matchCounts[e1], ShouldEqual, 0)
		})
	})
}

func TestNonIndexedQueries(t *testing.T) {
	Convey("Non-indexed queries", t, func() {
		ix := testIndexer()
		pathID := ix.Paths().Allocate([]string{"items"})

		e1 := ix.AddDataElementNode(pathID, skein.NoElement)
		ix.SetKeyValue(pathID, e1, TypeNumber, 1, false)
		ix.Flush()

		q := newMockQuery(1, pathID, false)
		ix.AddQueryCalc(q)
		ix.Flush()

		Convey("registration delivers the existing nodes", func() {
			So(q.added, ShouldResemble, []skein.ElementID{e1})
		})

		Convey("additions and removals arrive as element lists", func() {
			e2 := ix.AddDataElementNode(pathID, skein.NoElement)
			ix.Flush()
			So(q.added, ShouldContain, e2)

			ix.RemoveNode(pathID, e2)
			ix.Flush()
			So(q.removed, ShouldResemble, []skein.ElementID{e2})
		})

		Convey("the epilogue orders adds, counts, removes", func() {
			callLog := []string{}
			q.callLog = &callLog

			sel := newMockQuery(2, pathID, true)
			sel.callLog = &callLog
			ix.AddQueryCalc(sel)
			ix.RegisterQueryValue(sel, 300, TypeNumber, ScalarLookup(TypeNumber, 2))

			e2 := ix.AddDataElementNode(pathID, skein.NoElement)
			ix.SetKeyValue(pathID, e2, TypeNumber, 2, false)
			ix.RemoveNode(pathID, e1)
			ix.Flush()

			So(callLog, ShouldResemble, []string{"addMatches", "updateMatchCount", "removeMatches"})
		})
	})
}

func TestIdempotentReAdd(t *testing.T) {
	Convey("Idempotent re-add within one cycle", t, func() {
		ix := testIndexer()
		pathID := ix.Paths().Allocate([]string{"items"})

		sel := newMockQuery(1, pathID, true)
		ix.AddQueryCalc(sel)
		nonIdx := newMockQuery(2, pathID, false)
		ix.AddQueryCalc(nonIdx)

		e := ix.AddDataElementNode(pathID, skein.NoElement)
		ix.SetKeyValue(pathID, e, TypeNumber, 7, false)
		ix.RegisterQueryValue(sel, 100, TypeNumber, ScalarLookup(TypeNumber, 7))
		ix.Flush()

		So(sel.matchCounts[e], ShouldEqual, 1)
		countCallsBefore := sel.countCalls
		addedBefore := len(nonIdx.added)
		removedBefore := len(nonIdx.removed)

		ix.RemoveNode(pathID, e)
		revived := ix.PathNode(pathID).AddNode(e)
		So(revived, ShouldNotBeNil)
		ix.Flush()

		Convey("no net update reaches queries or the element table", func() {
			So(sel.matchCounts[e], ShouldEqual, 1)
			So(sel.countCalls, ShouldEqual, countCallsBefore)
			So(len(nonIdx.added), ShouldEqual, addedBefore)
			So(len(nonIdx.removed), ShouldEqual, removedBefore)
			So(ix.DataElements().Get(e), ShouldNotBeNil)
		})
	})
}

func TestKeyUpdates(t *testing.T) {
	Convey("Key-update subscribers", t, func() {
		ix := testIndexer()
		pathID := ix.Paths().Allocate([]string{"items"})

		q := newMockQuery(1, pathID, true)
		q.noTracing = true
		ix.AddKeyUpdateQueryCalc(q)

		e := ix.AddDataElementNode(pathID, skein.NoElement)
		ix.SetKeyValue(pathID, e, TypeNumber, 1, false)
		ix.Flush()

		Convey("a transition carries current and previous state", func() {
			ix.SetKeyValue(pathID, e, TypeNumber, 2, false)
			ix.Flush()
			So(q.keyUpdates, ShouldContain, "1:number=2<-number=1")
		})

		Convey("several changes in one round net to one transition", func() {
			q.keyUpdates = nil
			ix.SetKeyValue(pathID, e, TypeNumber, 5, false)
			ix.SetKeyValue(pathID, e, TypeNumber, 9, false)
			ix.Flush()
			So(len(q.keyUpdates), ShouldEqual, 1)
			So(q.keyUpdates[0], ShouldEqual, "1:number=9<-number=1")
		})

		Convey("a change back to the original state nets to nothing", func() {
			q.keyUpdates = nil
			ix.SetKeyValue(pathID, e, TypeNumber, 5, false)
			ix.SetKeyValue(pathID, e, TypeNumber, 1, false)
			ix.Flush()
			So(q.keyUpdates, ShouldBeEmpty)
		})
	})
}

func TestDeactivationBlocking(t *testing.T) {
	Convey("Deactivation blocking", t, func() {
		ix := testIndexer()
		listener := newMockPathListener()
		ix.AddPathActiveListener(listener)

		pathID := ix.Paths().Allocate([]string{"watched"})
		q := newMockQuery(1, pathID, true)
		ix.AddQueryCalc(q)
		So(listener.activated[pathID], ShouldEqual, 1)

		ix.KeepPathNodeActive(pathID)
		ix.RemoveQueryCalc(q)
		ix.Flush()

		Convey("deactivation is blocked while keepActive is held", func() {
			So(listener.deactivated[pathID], ShouldEqual, 0)

			ix.ReleaseKeepPathNodeActive(pathID)
			So(listener.deactivated[pathID], ShouldEqual, 1)
		})
	})
}

func TestAlphabeticRanges(t *testing.T) {
	Convey("Alphabetic ranges", t, func() {
		ix := testIndexer()
		pathID := ix.Paths().Allocate([]string{"names"})

		q := newMockQuery(1, pathID, true)
		ix.AddQueryCalc(q)

		e := ix.AddDataElementNode(pathID, skein.NoElement)
		ix.SetKeyValue(pathID, e, TypeString, "graft", false)

		pn := ix.PathNode(pathID)
		_, isDiscrete := pn.SubIndex(TypeString).(*DiscreteSubIndex)
		So(isDiscrete, ShouldBeTrue)

		Convey("enabling upgrades the string sub-index in place", func() {
			pn.SetAlphabeticRanges(true)
			_, isLinear := pn.SubIndex(TypeString).(*LinearSubIndex)
			So(isLinear, ShouldBeTrue)

			Convey("and interval lookups work afterwards", func() {
				ix.RegisterQueryValue(q, 100, TypeString, RangeLookup(TypeString, "a", "m", false, false))
				ix.Flush()
				So(q.matchCounts[e], ShouldEqual, 1)
			})
		})
	})
}

func TestMatchPoints(t *testing.T) {
	Convey("Match points", t, func() {
		ix := testIndexer()
		parentID := ix.Paths().Allocate([]string{"jobs"})
		childID := ix.Paths().Allocate([]string{"jobs", "port"})

		parent := ix.AddDataElementNode(parentID, skein.NoElement)

		q := newMockQuery(1, childID, true)
		ix.AddQueryCalc(q)

		Convey("registration reports prefix paths with data elements", func() {
			So(q.matchPoints[parentID], ShouldBeTrue)
			So(q.matchPoints[childID], ShouldBeFalse)
		})

		Convey("a new data element path is added incrementally", func() {
			ix.AddDataElementNode(childID, parent)
			So(q.matchPoints[childID], ShouldBeTrue)
		})

		Convey("removing the last data element retracts the path", func() {
			e := ix.AddDataElementNode(childID, parent)
			So(q.matchPoints[childID], ShouldBeTrue)
			ix.RemoveNode(childID, e)
			So(q.matchPoints[childID], ShouldBeFalse)
		})
	})
}
