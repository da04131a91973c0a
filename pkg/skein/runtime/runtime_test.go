package runtime

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/wayneeseguin/skein/pkg/skein"
	"github.com/wayneeseguin/skein/pkg/skein/eval"
	"github.com/wayneeseguin/skein/pkg/skein/event"
	"github.com/wayneeseguin/skein/pkg/skein/indexer"
)

// countingQuery adapts match-count deltas into an expression input.
type countingQuery struct {
	id     skein.QueryID
	pathID skein.PathID
	counts map[skein.ElementID]int
	onNet  func(total int)
}

func (q *countingQuery) GetID() skein.QueryID    { return q.id }
func (q *countingQuery) GetPathID() skein.PathID { return q.pathID }
func (q *countingQuery) IsSelection() bool       { return true }
func (q *countingQuery) NoPathNodeTracing() bool { return false }
func (q *countingQuery) DoNotIndex() bool        { return false }

func (q *countingQuery) SetMatchPoints([]skein.PathID)           {}
func (q *countingQuery) AddToMatchPoints(skein.PathID)           {}
func (q *countingQuery) RemoveFromMatchPoints(skein.PathID)      {}
func (q *countingQuery) AddMatches([]skein.ElementID)            {}
func (q *countingQuery) RemoveMatches([]skein.ElementID)         {}
func (q *countingQuery) RemoveAllIndexerMatches()                {}
func (q *countingQuery) GetDisjointValueIDs() []skein.ValueID    { return nil }
func (q *countingQuery) UpdateKeys([]skein.ElementID, []string, []interface{}, []string, []interface{}) {
}

func (q *countingQuery) UpdateMatchCount(deltas map[skein.ElementID]int) {
	if q.counts == nil {
		q.counts = make(map[skein.ElementID]int)
	}
	total := 0
	for e, d := range deltas {
		q.counts[e] += d
	}
	for _, c := range q.counts {
		if c > 0 {
			total++
		}
	}
	if q.onNet != nil {
		q.onNet(total)
	}
}

func TestRuntimeAssembly(t *testing.T) {
	Convey("Runtime assembly", t, func() {
		r := New(WithProfile("testing"))

		Convey("fresh runtimes are independent", func() {
			r2 := New()
			So(r.Eval, ShouldNotEqual, r2.Eval)
			So(r.Paths, ShouldNotPointTo, r2.Paths)
		})

		Convey("indexers share the runtime's path allocator", func() {
			ix1 := r.NewIndexer()
			ix2 := r.NewIndexer()
			id1 := ix1.Paths().Allocate([]string{"a", "b"})
			id2 := ix2.Paths().Allocate([]string{"a", "b"})
			So(id1, ShouldEqual, id2)
		})
	})
}

func TestReactiveFlow(t *testing.T) {
	Convey("End-to-end reactive flow", t, func() {
		r := New(WithProfile("testing"))
		ix := r.NewIndexer()

		pathID := r.Paths.Allocate([]string{"sensors", "value"})

		// An expression node over the query's match total.
		en, err := eval.NewExprNode(r.Eval, 1, 0, "matches > 1")
		So(err, ShouldBeNil)
		en.Activate()

		q := &countingQuery{id: 1, pathID: pathID}
		q.onNet = func(total int) {
			en.SetInput("matches", skein.NewResult(float64(total)))
		}
		ix.AddQueryCalc(q)
		ix.RegisterQueryValue(q, 10, indexer.TypeNumber, indexer.RangeLookup(indexer.TypeNumber, 0, 100, false, false))

		e1 := ix.AddDataElementNode(pathID, skein.NoElement)
		ix.SetKeyValue(pathID, e1, indexer.TypeNumber, 40, false)

		So(r.Run(time.Time{}), ShouldBeTrue)
		So(en.Result(), ShouldNotBeNil)
		So(en.Result().Value, ShouldEqual, false)

		Convey("a second match flips the expression", func() {
			e2 := ix.AddDataElementNode(pathID, skein.NoElement)
			ix.SetKeyValue(pathID, e2, indexer.TypeNumber, 60, false)

			So(r.Run(time.Time{}), ShouldBeTrue)
			So(en.Result().Value, ShouldEqual, true)
		})

		Convey("an out-of-range write does not", func() {
			e2 := ix.AddDataElementNode(pathID, skein.NoElement)
			ix.SetKeyValue(pathID, e2, indexer.TypeNumber, 4000, false)

			So(r.Run(time.Time{}), ShouldBeTrue)
			So(en.Result().Value, ShouldEqual, false)
		})
	})
}

func TestEventDrivenWrite(t *testing.T) {
	Convey("Events drive indexer writes", t, func() {
		r := New(WithProfile("testing"))
		ix := r.NewIndexer()
		pathID := r.Paths.Allocate([]string{"clicks"})

		q := &countingQuery{id: 1, pathID: pathID}
		ix.AddQueryCalc(q)
		ix.RegisterQueryValue(q, 20, indexer.TypeBool, indexer.ScalarLookup(indexer.TypeBool, true))

		target := &event.SimpleArea{Reference: "button", Clickable: true}
		r.Events.Areas().Register(target)

		// A click on the button records a boolean terminal.
		clicks := 0
		r.Events.FocusChanged = func(area event.Area) {
			clicks++
			e := ix.AddDataElementNode(pathID, skein.NoElement)
			ix.SetKeyValue(pathID, e, indexer.TypeBool, true, false)
		}

		ev := event.FromMouseEvent(event.MouseEvent{Type: event.MouseDown, ClientX: 3, ClientY: 3, Button: 0})
		ev.OverlappingAreas = []event.AreaRef{"button"}
		So(r.Events.Enqueue(ev), ShouldBeNil)

		So(r.Run(time.Time{}), ShouldBeTrue)

		So(clicks, ShouldEqual, 1)
		So(q.counts, ShouldNotBeEmpty)
	})
}

func TestCycleBoundaryIntegration(t *testing.T) {
	Convey("Run marks the cycle boundary", t, func() {
		r := New(WithProfile("testing"))

		before := r.Eval.Cycle()
		So(r.Run(time.Time{}), ShouldBeTrue)
		So(r.Eval.Cycle(), ShouldEqual, before+1)
	})
}
