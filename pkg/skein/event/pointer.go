package event

import (
	"github.com/wayneeseguin/skein/log"
)

// PointerState tracks the global pointer: position, button and
// modifier state, and whether a drag is in progress.
type PointerState struct {
	X, Y      int
	Buttons   map[int]bool
	Modifiers map[string]bool
	Dragging  bool
}

func newPointerState() PointerState {
	return PointerState{
		Buttons:   make(map[int]bool),
		Modifiers: make(map[string]bool),
	}
}

// applyButtonChanges applies an event's button transitions; a drag is
// in progress while any button is held.
func (p *PointerState) applyButtonChanges(changes map[int]bool) {
	for button, down := range changes {
		if down {
			p.Buttons[button] = true
		} else {
			delete(p.Buttons, button)
		}
	}
	p.Dragging = len(p.Buttons) > 0
}

func (p *PointerState) applyUpdate(u *PointerUpdate) {
	if u == nil {
		return
	}
	if u.PositionValid {
		p.X, p.Y = u.X, u.Y
	}
	p.Modifiers = make(map[string]bool, len(u.Modifiers))
	for _, m := range u.Modifiers {
		p.Modifiers[m] = true
	}
}

// computePointerInArea derives the new pointer-in-area set from the
// event's overlapping areas (front-to-back in z-order, stopping at the
// first opaque area) and then propagates along each area's
// propagatePointerInArea directive, or to its embedding by default.
func (q *Queue) computePointerInArea(ev *QueuedEvent) map[AreaRef]Area {
	inArea := make(map[AreaRef]Area)
	var work []Area

	for _, ref := range ev.OverlappingAreas {
		area := q.areas.Get(ref)
		if area == nil || area.IsDestroyed() {
			continue
		}
		if _, seen := inArea[ref]; !seen {
			inArea[ref] = area
			work = append(work, area)
		}
		if area.IsOpaque() {
			break
		}
	}

	for len(work) > 0 {
		area := work[len(work)-1]
		work = work[:len(work)-1]

		for _, target := range q.propagationTargets(area) {
			if target == nil || target.IsDestroyed() {
				continue
			}
			if _, seen := inArea[target.Ref()]; !seen {
				inArea[target.Ref()] = target
				work = append(work, target)
			}
		}
	}
	return inArea
}

func (q *Queue) propagationTargets(area Area) []Area {
	d := area.PropagatePointerInArea()
	if d == nil {
		return []Area{area.Embedding()}
	}
	var targets []Area
	for _, edge := range d.Edges {
		switch edge {
		case PropagateEmbedding:
			targets = append(targets, area.Embedding())
		case PropagateExpression:
			targets = append(targets, area.Expression())
		case PropagateReferred:
			targets = append(targets, area.Referred())
		}
	}
	for _, ref := range d.Areas {
		targets = append(targets, q.areas.Get(ref))
	}
	return targets
}

// updatePointerInArea recomputes the pointer-in-area set and emits
// pointerInArea/dragInArea param updates only on the delta between the
// old and new sets. Destroyed areas are cleared from the old set
// without param writes.
func (q *Queue) updatePointerInArea(ev *QueuedEvent) {
	newSet := q.computePointerInArea(ev)

	for ref, area := range q.pointerInArea {
		if _, still := newSet[ref]; still {
			continue
		}
		delete(q.pointerInArea, ref)
		if area.IsDestroyed() {
			continue
		}
		area.SetParam("pointerInArea", false)
		if q.pointer.Dragging {
			area.SetParam("dragInArea", false)
		}
		log.TRACE("pointer left area %s", ref)
	}

	for ref, area := range newSet {
		if _, had := q.pointerInArea[ref]; had {
			continue
		}
		q.pointerInArea[ref] = area
		area.SetParam("pointerInArea", true)
		if q.pointer.Dragging || ev.Dragging {
			area.SetParam("dragInArea", true)
		}
		log.TRACE("pointer entered area %s", ref)
	}
}
