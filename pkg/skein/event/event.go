package event

import (
	"time"
)

// EventType names a raw or synthesized input event type.
type EventType string

const (
	MouseDown   EventType = "mousedown"
	MouseUp     EventType = "mouseup"
	MouseMove   EventType = "mousemove"
	PointerMove EventType = "pointermove"
	TouchMove   EventType = "touchmove"
	TouchStart  EventType = "touchstart"
	TouchEnd    EventType = "touchend"
	Wheel       EventType = "wheel"
	KeyDown     EventType = "keydown"
	KeyUp       EventType = "keyup"
	Drop        EventType = "drop"

	// Synthesized message types
	MsgMouseDown           EventType = "MouseDown"
	MsgClick               EventType = "Click"
	MsgDoubleClick         EventType = "DoubleClick"
	MsgMouseGestureExpired EventType = "MouseGestureExpired"
	MsgFileChoice          EventType = "FileChoice"
)

// EventState is the staging state of a queued event.
type EventState string

const (
	StateWaiting    EventState = "waiting"
	StateStart      EventState = "start"
	StateRecipients EventState = "recipients"
	StateEnd        EventState = "end"
	StateDone       EventState = "done"
)

// moveFamily returns the coalescing family of continuous event types;
// the mouse/pointer/touch move cluster is considered one family.
func moveFamily(t EventType) string {
	switch t {
	case MouseMove, PointerMove, TouchMove:
		return "move"
	case Wheel:
		return "wheel"
	}
	return ""
}

// isProtectedType reports whether events of this type must survive
// queue discards (button-up and key-up always replay).
func isProtectedType(t EventType) bool {
	return t == MouseUp || t == KeyUp || t == TouchEnd
}

func isKeyType(t EventType) bool {
	return t == KeyDown || t == KeyUp
}

// SubType is a synthesized message sub-type restricted to a set of
// recipient areas.
type SubType struct {
	Value string
	Areas []AreaRef
}

// appliesTo reports whether the sub-type may be emitted to the area.
func (s SubType) appliesTo(ref AreaRef) bool {
	for _, a := range s.Areas {
		if a == ref {
			return true
		}
	}
	return false
}

// RecipientEntry is one slot of a queued event's recipient list: a
// "start"/"end" marker or an area reference.
type RecipientEntry struct {
	Marker string
	Area   Area
}

// PointerUpdate carries the pointer position and modifier state an
// event applies on first contact. PositionValid is false for events
// that carry no coordinates (key events).
type PointerUpdate struct {
	X, Y          int
	PositionValid bool
	Modifiers     []string
}

// QueuedEvent is one staged entry of the event queue.
type QueuedEvent struct {
	Time        time.Time
	Original    interface{}
	Type        EventType
	IsProtected bool

	State                EventState
	HandledBy            []AreaRef
	AbortPropagation     string
	FocussedInputElement Area
	HadRecipients        bool

	Message  *Message
	SubTypes []SubType

	Recipients   []RecipientEntry
	recipientIdx int

	ButtonStateChanges map[int]bool
	Pointer            *PointerUpdate
	Dragging           bool

	// OverlappingAreas lists area references front-to-back in z-order.
	OverlappingAreas []AreaRef

	Changes          map[string]interface{}
	CheckExistence   bool
	Touch            interface{}
	ClickableElement AreaRef
}

// NewQueuedEvent builds a queued event in the waiting state.
func NewQueuedEvent(t EventType, original interface{}) *QueuedEvent {
	return &QueuedEvent{
		Time:        time.Now(),
		Original:    original,
		Type:        t,
		IsProtected: isProtectedType(t),
		State:       StateWaiting,
	}
}

// MouseEvent is the raw mouse event payload.
type MouseEvent struct {
	Type      EventType
	SubType   string
	ClientX   int
	ClientY   int
	Button    int
	Modifiers []string
}

// KeyEvent is the raw keyboard event payload.
type KeyEvent struct {
	Type      EventType
	Key       string
	Char      string
	Modifiers []string
}

// TouchEvent is the raw touch event payload.
type TouchEvent struct {
	Type    EventType
	SubType string
}

// FileChoiceEvent carries chosen file names and a target area.
type FileChoiceEvent struct {
	Files  []string
	Target AreaRef
}

// FromMouseEvent builds a queued event from a raw mouse event.
func FromMouseEvent(m MouseEvent) *QueuedEvent {
	ev := NewQueuedEvent(m.Type, m)
	ev.Pointer = &PointerUpdate{X: m.ClientX, Y: m.ClientY, PositionValid: true, Modifiers: m.Modifiers}
	switch m.Type {
	case MouseDown:
		ev.ButtonStateChanges = map[int]bool{m.Button: true}
	case MouseUp:
		ev.ButtonStateChanges = map[int]bool{m.Button: false}
	}
	if m.SubType != "" {
		ev.SubTypes = []SubType{{Value: m.SubType}}
	}
	return ev
}

// FromKeyEvent builds a queued event from a raw key event.
func FromKeyEvent(k KeyEvent) *QueuedEvent {
	ev := NewQueuedEvent(k.Type, k)
	ev.Pointer = &PointerUpdate{Modifiers: k.Modifiers}
	return ev
}

// FromFileChoice builds a queued event from a file choice.
func FromFileChoice(f FileChoiceEvent) *QueuedEvent {
	ev := NewQueuedEvent(MsgFileChoice, f)
	ev.OverlappingAreas = []AreaRef{f.Target}
	ev.Changes = map[string]interface{}{"files": f.Files}
	return ev
}
