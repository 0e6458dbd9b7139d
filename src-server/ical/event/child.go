package event

import "lcal/src-server/ical/utils"

// Event that overrides one occurrence of a recurring master event.
type ChildEvent struct {
	EventInfo

	recurrenceID utils.CalDateTime
}

// Turn a ChildEvent into an UndecidedEvent for modification.
func (e *ChildEvent) ToUndecidedEvent() UndecidedEvent {
	return UndecidedEvent{
		EventInfo:    e.EventInfo,
		recurrenceID: e.recurrenceID,
	}
}

// Get the event recurrence ID.
func (e *ChildEvent) GetRecurrenceID() utils.CalDateTime {
	return e.recurrenceID
}
