package event

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/wayneeseguin/skein/internal/config"
)

func testEventQueue() (*Queue, *AreaRegistry) {
	reg := NewAreaRegistry()
	return NewQueue(config.DefaultConfig(), reg, nil), reg
}

func area(reg *AreaRegistry, ref AreaRef) *SimpleArea {
	a := &SimpleArea{Reference: ref}
	reg.Register(a)
	return a
}

func TestEventSerialization(t *testing.T) {
	Convey("Event serialization", t, func() {
		q, reg := testEventQueue()
		area(reg, "x")

		e1 := FromMouseEvent(MouseEvent{Type: MouseDown, ClientX: 1, ClientY: 1, Button: 0})
		e1.OverlappingAreas = []AreaRef{"x"}
		e2 := FromMouseEvent(MouseEvent{Type: MouseUp, ClientX: 1, ClientY: 1, Button: 0})
		e2.OverlappingAreas = []AreaRef{"x"}

		So(q.Enqueue(e1), ShouldBeNil)
		So(q.Enqueue(e2), ShouldBeNil)

		Convey("the second event stays waiting until the first is done", func() {
			for e1.State != StateDone {
				So(e2.State, ShouldEqual, StateWaiting)
				So(q.NextQueuedEvent(), ShouldBeTrue)
			}
			So(e1.State, ShouldEqual, StateDone)
			So(e2.State, ShouldEqual, StateWaiting)
		})
	})
}

func TestMoveCoalescing(t *testing.T) {
	Convey("Move coalescing", t, func() {
		q, _ := testEventQueue()

		Convey("repeated moves never grow the queue beyond one move", func() {
			for i := 0; i < 100; i++ {
				ev := FromMouseEvent(MouseEvent{Type: MouseMove, ClientX: i, ClientY: i})
				So(q.Enqueue(ev), ShouldBeNil)
				So(q.Len(), ShouldBeLessThanOrEqualTo, 1)
			}
			So(q.Len(), ShouldEqual, 1)
		})

		Convey("the mouse/pointer/touch move cluster is one family", func() {
			So(q.Enqueue(FromMouseEvent(MouseEvent{Type: MouseMove})), ShouldBeNil)
			So(q.Enqueue(NewQueuedEvent(PointerMove, nil)), ShouldBeNil)
			So(q.Enqueue(NewQueuedEvent(TouchMove, nil)), ShouldBeNil)
			So(q.Len(), ShouldEqual, 1)
		})

		Convey("wheel coalesces separately from moves", func() {
			So(q.Enqueue(FromMouseEvent(MouseEvent{Type: MouseMove})), ShouldBeNil)
			So(q.Enqueue(NewQueuedEvent(Wheel, nil)), ShouldBeNil)
			So(q.Enqueue(NewQueuedEvent(Wheel, nil)), ShouldBeNil)
			So(q.Len(), ShouldEqual, 2)
		})

		Convey("non-continuous events are never coalesced", func() {
			So(q.Enqueue(FromMouseEvent(MouseEvent{Type: MouseDown, Button: 0})), ShouldBeNil)
			So(q.Enqueue(FromMouseEvent(MouseEvent{Type: MouseDown, Button: 1})), ShouldBeNil)
			So(q.Len(), ShouldEqual, 2)
		})
	})
}

func TestClickPropagation(t *testing.T) {
	Convey("Click propagation", t, func() {
		q, reg := testEventQueue()

		// z-order front to back: Z (opaque), Y, X; Z embedded in Y
		// embedded in X.
		x := area(reg, "X")
		y := area(reg, "Y")
		y.EmbeddingArea = x
		z := area(reg, "Z")
		z.EmbeddingArea = y
		z.Opaque = true

		ev := FromMouseEvent(MouseEvent{Type: MouseDown, ClientX: 5, ClientY: 5, Button: 0})
		ev.OverlappingAreas = []AreaRef{"Z", "Y", "X"}
		So(q.Enqueue(ev), ShouldBeNil)

		q.ProcessEvents()

		Convey("pointer-in-area covers the opaque area and its embedding chain", func() {
			So(z.Params["pointerInArea"], ShouldEqual, true)
			So(y.Params["pointerInArea"], ShouldEqual, true)
			So(x.Params["pointerInArea"], ShouldEqual, true)
		})

		Convey("the message stops at the opaque area", func() {
			So(ev.HandledBy, ShouldResemble, []AreaRef{"Z"})
			So(q.MessageFor("Z"), ShouldNotBeNil)
			So(q.MessageFor("Y"), ShouldBeNil)
		})

		Convey("without an opaque stop the message continues through the list", func() {
			z.Opaque = false
			ev2 := FromMouseEvent(MouseEvent{Type: MouseDown, ClientX: 5, ClientY: 5, Button: 0})
			ev2.OverlappingAreas = []AreaRef{"Z", "Y", "X"}
			So(q.Enqueue(ev2), ShouldBeNil)
			q.ProcessEvents()
			So(ev2.HandledBy, ShouldResemble, []AreaRef{"Z", "Y", "X"})
		})
	})
}

func TestPointerInAreaPropagation(t *testing.T) {
	Convey("Pointer-in-area propagation", t, func() {
		q, reg := testEventQueue()

		Convey("a directive overrides embedding propagation", func() {
			named := area(reg, "named")
			hit := area(reg, "hit")
			hit.Directive = &PropagateDirective{Areas: []AreaRef{"named"}}
			embedding := area(reg, "embedding")
			hit.EmbeddingArea = embedding

			ev := FromMouseEvent(MouseEvent{Type: MouseMove, ClientX: 1, ClientY: 1})
			ev.OverlappingAreas = []AreaRef{"hit"}
			So(q.Enqueue(ev), ShouldBeNil)
			q.ProcessEvents()

			So(named.Params["pointerInArea"], ShouldEqual, true)
			So(embedding.Params["pointerInArea"], ShouldBeNil)
		})

		Convey("leaving an area emits only the delta", func() {
			a := area(reg, "a")
			b := area(reg, "b")

			ev := FromMouseEvent(MouseEvent{Type: MouseMove, ClientX: 1, ClientY: 1})
			ev.OverlappingAreas = []AreaRef{"a"}
			So(q.Enqueue(ev), ShouldBeNil)
			q.ProcessEvents()
			So(a.Params["pointerInArea"], ShouldEqual, true)

			ev2 := FromMouseEvent(MouseEvent{Type: MouseMove, ClientX: 2, ClientY: 2})
			ev2.OverlappingAreas = []AreaRef{"b"}
			So(q.Enqueue(ev2), ShouldBeNil)
			q.ProcessEvents()

			So(a.Params["pointerInArea"], ShouldEqual, false)
			So(b.Params["pointerInArea"], ShouldEqual, true)
		})

		Convey("a destroyed area is cleared without a param write", func() {
			a := area(reg, "gone")
			ev := FromMouseEvent(MouseEvent{Type: MouseMove, ClientX: 1, ClientY: 1})
			ev.OverlappingAreas = []AreaRef{"gone"}
			So(q.Enqueue(ev), ShouldBeNil)
			q.ProcessEvents()
			So(a.Params["pointerInArea"], ShouldEqual, true)

			a.Destroyed = true
			a.Params = nil
			ev2 := FromMouseEvent(MouseEvent{Type: MouseMove, ClientX: 9, ClientY: 9})
			So(q.Enqueue(ev2), ShouldBeNil)
			q.ProcessEvents()

			So(q.PointerIn("gone"), ShouldBeFalse)
			So(a.Params, ShouldBeNil)
		})
	})
}

func TestFocusTransfer(t *testing.T) {
	Convey("Focus transfer", t, func() {
		q, reg := testEventQueue()

		input := area(reg, "input")
		input.Focusable = true
		other := area(reg, "other")
		_ = other

		ev := FromMouseEvent(MouseEvent{Type: MouseDown, ClientX: 1, ClientY: 1, Button: 0})
		ev.OverlappingAreas = []AreaRef{"other", "input"}

		Convey("focus shifts only after the event is done", func() {
			So(q.Enqueue(ev), ShouldBeNil)
			for ev.State != StateEnd {
				So(q.Focussed(), ShouldBeNil)
				So(q.NextQueuedEvent(), ShouldBeTrue)
			}
			So(q.Focussed(), ShouldBeNil)
			So(q.NextQueuedEvent(), ShouldBeTrue) // end -> done
			So(q.Focussed(), ShouldEqual, input)
			So(input.Params["focus"], ShouldEqual, true)
		})

		Convey("a wrapped native clickable child gets a synthesized click", func() {
			child := area(reg, "child")
			child.Clickable = true
			input.NativeChild = child

			So(q.Enqueue(ev), ShouldBeNil)
			q.ProcessEvents()

			So(q.MessageFor("child"), ShouldNotBeNil)
			So(q.MessageFor("child").Attributes["type"], ShouldEqual, string(MsgClick))
		})
	})
}

func TestAbortPropagation(t *testing.T) {
	Convey("Abort propagation", t, func() {
		q, reg := testEventQueue()

		area(reg, "a")
		area(reg, "b")
		area(reg, "c")

		ev := FromMouseEvent(MouseEvent{Type: MouseDown, ClientX: 1, ClientY: 1, Button: 0})
		ev.OverlappingAreas = []AreaRef{"a", "b", "c"}
		So(q.Enqueue(ev), ShouldBeNil)

		// waiting -> start -> recipients, deliver to "a"
		So(q.NextQueuedEvent(), ShouldBeTrue)
		So(q.NextQueuedEvent(), ShouldBeTrue)
		So(q.NextQueuedEvent(), ShouldBeTrue)
		So(ev.HandledBy, ShouldResemble, []AreaRef{"a"})

		Convey("remaining recipients collapse to the end marker", func() {
			So(q.AbortMessagePropagation("handled", false), ShouldBeNil)
			q.ProcessEvents()
			So(ev.HandledBy, ShouldResemble, []AreaRef{"a"})
			So(ev.AbortPropagation, ShouldEqual, "handled")
			So(ev.State, ShouldEqual, StateDone)
		})
	})

	Convey("Default abort is refused for key events", t, func() {
		q, _ := testEventQueue()
		ev := FromKeyEvent(KeyEvent{Type: KeyDown, Key: "a"})
		So(q.Enqueue(ev), ShouldBeNil)
		So(q.NextQueuedEvent(), ShouldBeTrue)
		So(q.AbortMessagePropagation("", true), ShouldNotBeNil)
		So(q.AbortMessagePropagation("nonDefault", false), ShouldBeNil)
	})
}

func TestGestureRestriction(t *testing.T) {
	Convey("Gesture follow-up restriction", t, func() {
		q, reg := testEventQueue()

		clicked := area(reg, "clicked")
		clicked.Clickable = true
		area(reg, "unclicked")

		click := NewQueuedEvent(MsgClick, nil)
		click.OverlappingAreas = []AreaRef{"clicked"}
		So(q.Enqueue(click), ShouldBeNil)
		q.ProcessEvents()

		dbl := NewQueuedEvent(MsgDoubleClick, nil)
		dbl.OverlappingAreas = []AreaRef{"unclicked", "clicked"}
		So(q.Enqueue(dbl), ShouldBeNil)
		q.ProcessEvents()

		So(dbl.HandledBy, ShouldResemble, []AreaRef{"clicked"})
	})
}

func TestCancellation(t *testing.T) {
	Convey("Cancellation", t, func() {
		q, _ := testEventQueue()

		So(q.Enqueue(FromMouseEvent(MouseEvent{Type: MouseDown, Button: 0})), ShouldBeNil)
		So(q.Enqueue(FromMouseEvent(MouseEvent{Type: MouseUp, Button: 0})), ShouldBeNil)
		So(q.Enqueue(FromKeyEvent(KeyEvent{Type: KeyUp, Key: "x"})), ShouldBeNil)
		So(q.Enqueue(FromKeyEvent(KeyEvent{Type: KeyDown, Key: "y"})), ShouldBeNil)

		Convey("cancel by type drops only that type", func() {
			q.CancelEventsOfType(MouseDown)
			So(q.Len(), ShouldEqual, 3)
		})

		Convey("timeout discard spares protected events", func() {
			q.DiscardUnprotected()
			So(q.Len(), ShouldEqual, 2)
			for _, ev := range q.events {
				So(ev.IsProtected, ShouldBeTrue)
			}
		})
	})
}
