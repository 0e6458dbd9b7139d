// Package `event` contains the `MasterEvent`, `ChildEvent` and `UndecidedEvent`
// structs, which are used to represent events in the calendar.
//
// The `MasterEvent` struct represents one event series: a single event, or a
// recurring one when it carries an RRULE. The `ChildEvent` struct represents a
// stored override of one occurrence of a recurring series, keyed by its
// recurrence id. Both structs are immutable once decided.
//
// To create a new event, use the `NewUndecidedEvent` function, fill it via the
// chaining setters or `AddIcalProperty`, then call the `DecideEventType`
// method to validate missing or invalid data and return a `MasterEvent` or
// `ChildEvent` struct. Example usage:
//
//	blankEvent := event.NewUndecidedEvent()
//	blankEvent.SetSummary("My Event").
//		SetStartDate(utils.NewFloating(time.Now())).
//		SetEndDate(utils.NewFloating(time.Now().Add(time.Hour)))
//	resultEvent, err := blankEvent.DecideEventType()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	switch resultEvent := resultEvent.(type) {
//	case *event.MasterEvent:
//	    // do something with the MasterEvent
//	case *event.ChildEvent:
//	    // do something with the ChildEvent
//	}
//
// To modify an existing `MasterEvent` or `ChildEvent`, turn it back into an
// `UndecidedEvent` with `ToUndecidedEvent` and decide it again.

package event
