package event

// Message is the attribute/value record synthesized for each recipient
// of a queued event.
type Message struct {
	Attributes map[string]interface{}
	Recipient  AreaRef
	SubTypes   []string
}

// synthesizeMessage builds the per-recipient shallow copy of the
// event's message. SubTypes are filtered to those whose area list
// contains the recipient; a sub-type with no area list is kept for
// every recipient.
func synthesizeMessage(ev *QueuedEvent, recipient Area) *Message {
	msg := &Message{
		Attributes: map[string]interface{}{
			"type": string(ev.Type),
			"time": ev.Time,
		},
		Recipient: recipient.Ref(),
	}
	if ev.Message != nil {
		for k, v := range ev.Message.Attributes {
			msg.Attributes[k] = v
		}
	}
	if ev.Pointer != nil && ev.Pointer.PositionValid {
		msg.Attributes["absX"] = ev.Pointer.X
		msg.Attributes["absY"] = ev.Pointer.Y
		if s, ok := recipient.(*SimpleArea); ok {
			ax, ay := s.AbsolutePosition()
			msg.Attributes["relX"] = ev.Pointer.X - ax
			msg.Attributes["relY"] = ev.Pointer.Y - ay
		}
	}
	if ev.Pointer != nil && len(ev.Pointer.Modifiers) > 0 {
		msg.Attributes["modifiers"] = ev.Pointer.Modifiers
	}
	for _, st := range ev.SubTypes {
		if len(st.Areas) == 0 || st.appliesTo(recipient.Ref()) {
			msg.SubTypes = append(msg.SubTypes, st.Value)
		}
	}
	return msg
}
