package event

import (
	"github.com/wayneeseguin/skein/internal/config"
	"github.com/wayneeseguin/skein/log"
	"github.com/wayneeseguin/skein/pkg/skein"
)

// Queue is the serialized, staged dispatcher for input events. Events
// advance one state per NextQueuedEvent call; only one event is in
// flight at a time.
type Queue struct {
	areas *AreaRegistry

	events  []*QueuedEvent
	current *QueuedEvent

	pointer       PointerState
	pointerInArea map[AreaRef]Area

	// clickReceivers lists the areas that received a preceding Click;
	// gesture follow-ups (DoubleClick, MouseGestureExpired) are
	// restricted to them.
	clickReceivers map[AreaRef]bool

	focussed Area

	// lastMessage is the global message slot; areaMessages are the
	// recipient-local slots.
	lastMessage  *Message
	areaMessages map[AreaRef]*Message

	coalesce  bool
	maxQueued int

	// FocusChanged is invoked when focus transfer completes.
	FocusChanged func(area Area)

	metrics *skein.MetricsRegistry
}

// NewQueue creates an event queue over the given area registry.
func NewQueue(cfg *config.Config, areas *AreaRegistry, metrics *skein.MetricsRegistry) *Queue {
	if cfg == nil {
		cfg = config.Current()
	}
	if areas == nil {
		areas = NewAreaRegistry()
	}
	return &Queue{
		areas:          areas,
		pointer:        newPointerState(),
		pointerInArea:  make(map[AreaRef]Area),
		clickReceivers: make(map[AreaRef]bool),
		areaMessages:   make(map[AreaRef]*Message),
		coalesce:       cfg.Events.Coalesce,
		maxQueued:      cfg.Events.MaxQueued,
		metrics:        metrics,
	}
}

// Areas returns the queue's area registry.
func (q *Queue) Areas() *AreaRegistry {
	return q.areas
}

// Len returns the number of events waiting, including the in-flight one.
func (q *Queue) Len() int {
	n := len(q.events)
	if q.current != nil {
		n++
	}
	return n
}

// Enqueue appends an event. Continuous event types replace any prior
// queued event of the same family instead of growing the queue.
func (q *Queue) Enqueue(ev *QueuedEvent) error {
	if family := moveFamily(ev.Type); q.coalesce && family != "" {
		for i, queued := range q.events {
			if moveFamily(queued.Type) == family {
				q.events[i] = ev
				if q.metrics != nil {
					q.metrics.EventsCoalesced.Inc()
				}
				log.TRACE("coalesced %s event into slot %d", ev.Type, i)
				return nil
			}
		}
	}
	if len(q.events) >= q.maxQueued {
		return skein.NewInputError("event queue full (%d events)", len(q.events))
	}
	q.events = append(q.events, ev)
	if q.metrics != nil {
		q.metrics.EventsQueued.Set(int64(q.Len()))
	}
	return nil
}

// CancelEventsOfType drops all queued events of the given type. The
// in-flight event is not affected.
func (q *Queue) CancelEventsOfType(t EventType) {
	kept := q.events[:0]
	for _, ev := range q.events {
		if ev.Type == t {
			if q.metrics != nil {
				q.metrics.EventsCancelled.Inc()
			}
			continue
		}
		kept = append(kept, ev)
	}
	q.events = kept
}

// DiscardUnprotected drops queued events except protected ones
// (button-up / key-up always replay).
func (q *Queue) DiscardUnprotected() {
	kept := q.events[:0]
	for _, ev := range q.events {
		if ev.IsProtected {
			kept = append(kept, ev)
			continue
		}
		if q.metrics != nil {
			q.metrics.EventsCancelled.Inc()
		}
	}
	q.events = kept
}

// AbortMessagePropagation collapses the in-flight event's remaining
// recipients to the end marker. Default aborts are not allowed for key
// events.
func (q *Queue) AbortMessagePropagation(abortID string, defaultAbort bool) error {
	ev := q.current
	if ev == nil {
		return skein.NewInputError("no event in flight to abort")
	}
	if defaultAbort && isKeyType(ev.Type) {
		return skein.NewInputError("default abort not allowed for key event %s", ev.Type)
	}
	ev.AbortPropagation = abortID
	if ev.State == StateRecipients {
		ev.Recipients = append(ev.Recipients[:ev.recipientIdx+1], RecipientEntry{Marker: "end"})
	}
	return nil
}

// NextQueuedEvent advances the in-flight event by exactly one state,
// picking up the next waiting event when none is in flight. It returns
// false when there is nothing to do.
func (q *Queue) NextQueuedEvent() bool {
	if q.current == nil {
		if len(q.events) == 0 {
			return false
		}
		q.current = q.events[0]
		q.events = q.events[1:]
		if q.metrics != nil {
			q.metrics.EventsQueued.Set(int64(len(q.events)))
		}
	}
	ev := q.current

	switch ev.State {
	case StateWaiting:
		q.firstContact(ev)
		ev.State = StateStart

	case StateStart:
		q.buildRecipients(ev)
		ev.State = StateRecipients

	case StateRecipients:
		q.deliverNext(ev)

	case StateEnd:
		q.completeEvent(ev)
		ev.State = StateDone
		q.current = nil
		if q.metrics != nil {
			q.metrics.EventsDispatched.Inc()
		}

	case StateDone:
		q.current = nil
	}
	return true
}

// ProcessEvents drives the queue until it is empty.
func (q *Queue) ProcessEvents() {
	for q.NextQueuedEvent() {
	}
}

// firstContact applies the waiting → start work: button state changes,
// pointer position and modifiers, the pointer-in-area recompute, and
// sub-type propagation restrictions.
func (q *Queue) firstContact(ev *QueuedEvent) {
	q.pointer.applyButtonChanges(ev.ButtonStateChanges)
	q.pointer.applyUpdate(ev.Pointer)
	q.updatePointerInArea(ev)

	// Gesture follow-ups only reach areas that received the preceding
	// Click.
	if ev.Type == MsgDoubleClick || ev.Type == MsgMouseGestureExpired {
		filtered := ev.OverlappingAreas[:0]
		for _, ref := range ev.OverlappingAreas {
			if q.clickReceivers[ref] {
				filtered = append(filtered, ref)
			}
		}
		ev.OverlappingAreas = filtered
	}
}

// buildRecipients fixes the ordered recipient list: a start marker, the
// z-ordered overlap prefix up to the first opaque area, and an end
// marker.
func (q *Queue) buildRecipients(ev *QueuedEvent) {
	if len(ev.Recipients) > 0 {
		return
	}
	ev.Recipients = append(ev.Recipients, RecipientEntry{Marker: "start"})
	for _, ref := range ev.OverlappingAreas {
		area := q.areas.Get(ref)
		if area == nil || area.IsDestroyed() {
			continue
		}
		ev.Recipients = append(ev.Recipients, RecipientEntry{Area: area})
		if area.IsOpaque() {
			break
		}
	}
	ev.Recipients = append(ev.Recipients, RecipientEntry{Marker: "end"})
	ev.recipientIdx = 0
}

// deliverNext synthesizes and publishes the message for the next
// recipient; reaching the end marker moves the event to the end state.
func (q *Queue) deliverNext(ev *QueuedEvent) {
	for ev.recipientIdx < len(ev.Recipients) {
		ev.recipientIdx++
		if ev.recipientIdx >= len(ev.Recipients) {
			break
		}
		entry := ev.Recipients[ev.recipientIdx]
		if entry.Marker == "end" {
			ev.State = StateEnd
			return
		}
		if entry.Marker != "" || entry.Area == nil {
			continue
		}
		q.deliver(ev, entry.Area)
		return
	}
	ev.State = StateEnd
}

func (q *Queue) deliver(ev *QueuedEvent, area Area) {
	msg := synthesizeMessage(ev, area)

	// A focus candidate absorbs the message without sub-type emission
	// this tick.
	if area.CanReceiveFocus() || area.HandlesClick() {
		ev.FocussedInputElement = area
		msg.SubTypes = nil
	}

	if len(ev.Changes) > 0 && area.HandlesClick() {
		for k, v := range ev.Changes {
			area.SetParam(k, v)
		}
	}

	q.lastMessage = msg
	q.areaMessages[area.Ref()] = msg

	ev.HandledBy = append(ev.HandledBy, area.Ref())
	ev.HadRecipients = true

	if ev.Type == MsgClick {
		q.clickReceivers[area.Ref()] = true
	}
	log.TRACE("delivered %s to area %s", ev.Type, area.Ref())
}

// completeEvent runs the end → done work: focus transfer for the
// terminating event types, plus the synthesized click for wrapped
// native clickable children.
func (q *Queue) completeEvent(ev *QueuedEvent) {
	switch ev.Type {
	case MouseDown, Drop, MsgMouseDown, MsgFileChoice:
	default:
		return
	}
	if !ev.HadRecipients {
		return
	}
	q.focusChanged(ev.FocussedInputElement)
}

func (q *Queue) focusChanged(target Area) {
	if target == nil || q.focussed == target {
		return
	}
	if q.focussed != nil && !q.focussed.IsDestroyed() {
		q.focussed.SetParam("focus", false)
	}
	q.focussed = target
	target.SetParam("focus", true)
	if q.FocusChanged != nil {
		q.FocusChanged(target)
	}

	// A wrapped native clickable child not at the area's root gets a
	// synthesized click dispatch.
	if child := target.ClickableChild(); child != nil && !child.IsDestroyed() {
		click := NewQueuedEvent(MsgClick, nil)
		click.OverlappingAreas = []AreaRef{child.Ref()}
		if err := q.Enqueue(click); err != nil {
			log.DEBUG("synthesized click for %s dropped: %s", child.Ref(), err)
		}
	}
}

// Focussed returns the currently focussed area, or nil.
func (q *Queue) Focussed() Area {
	return q.focussed
}

// LastMessage returns the last globally published message.
func (q *Queue) LastMessage() *Message {
	return q.lastMessage
}

// MessageFor returns the last message published to the given area.
func (q *Queue) MessageFor(ref AreaRef) *Message {
	return q.areaMessages[ref]
}

// PointerIn reports whether the pointer is currently in the area.
func (q *Queue) PointerIn(ref AreaRef) bool {
	_, ok := q.pointerInArea[ref]
	return ok
}

// Pointer returns the current pointer state.
func (q *Queue) Pointer() PointerState {
	return q.pointer
}
