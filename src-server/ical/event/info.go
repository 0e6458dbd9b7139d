package event

import (
	"fmt"
	"strconv"
	"time"

	"lcal/src-server/ical/utils"
)

type Status string

const (
	StatusConfirmed Status = "CONFIRMED"
	StatusTentative Status = "TENTATIVE"
	StatusCancelled Status = "CANCELLED"
)

// Purely for reusing the same properties in all types of events.
// - Only getters are available as
//   - this struct is being used in UndecidedEvent, MasterEvent, and ChildEvent.
//   - MasterEvent and ChildEvent are immutable.
//   - UndecidedEvent is mutable.
type EventInfo struct {
	id string

	summary     string
	description string
	location    string
	url         string
	status      Status

	startDate utils.CalDateTime
	endDate   utils.CalDateTime

	createdAt time.Time
	updatedAt time.Time

	sequence         int
	customProperties []string
}

// Get the event ID
func (e *EventInfo) GetID() string {
	return e.id
}

// Get the event summary
func (e *EventInfo) GetSummary() string {
	return e.summary
}

// Get the event description
func (e *EventInfo) GetDescription() string {
	return e.description
}

// Get the event location
func (e *EventInfo) GetLocation() string {
	return e.location
}

// Get the event URL
func (e *EventInfo) GetURL() string {
	return e.url
}

// Get the event status
func (e *EventInfo) GetStatus() Status {
	return e.status
}

// Get the event start date
func (e *EventInfo) GetStartDate() utils.CalDateTime {
	return e.startDate
}

// Get the event end date
func (e *EventInfo) GetEndDate() utils.CalDateTime {
	return e.endDate
}

// Get the event created date
func (e *EventInfo) GetCreatedAt() time.Time {
	return e.createdAt
}

// Get the event updated date
func (e *EventInfo) GetUpdatedAt() time.Time {
	return e.updatedAt
}

// Get the event sequence
func (e *EventInfo) GetSequence() int {
	return e.sequence
}

// Get the event custom properties
func (e *EventInfo) GetCustomProperties() []string {
	return e.customProperties
}

func (e *EventInfo) validate() error {
	switch {
	case e.summary == "":
		return fmt.Errorf("summary is missing")
	case e.startDate.IsZero():
		return fmt.Errorf("start date is missing")
	case e.endDate.IsZero():
		return fmt.Errorf("end date is missing")
	case !e.startDate.SameKind(e.endDate):
		return fmt.Errorf("start and end must both be dates or both be date-times")
	case e.endDate.Before(e.startDate):
		return fmt.Errorf("start date must be before end date")
	case e.sequence < 0:
		return fmt.Errorf("sequence must be non-negative")
	default:
		return nil
	}
}

// Convert the EventInfo into iCalendar content lines. This method is intended
// to be used internally only. Example usage:
//
//	var sb strings.Builder
//	writer := utils.Split75wrapper(sb.WriteString)
//	// ...
//	if err := event.toIcal(writer); err != nil {
//	    log.Fatal(err)
//	}
func (e *EventInfo) toIcal(writer func(string)) error {
	if err := e.validate(); err != nil {
		return err
	}

	// basic properties
	writer("UID:" + e.id + "\n")
	writer("SUMMARY:" + e.summary + "\n")
	if e.description != "" {
		writer("DESCRIPTION:" + e.description + "\n")
	}
	if e.location != "" {
		writer("LOCATION:" + e.location + "\n")
	}
	if e.url != "" {
		writer("URL:" + e.url + "\n")
	}
	if e.status != "" {
		writer("STATUS:" + string(e.status) + "\n")
	}

	// dates
	startDateStr, err := e.startDate.FormatIcalProperty("DTSTART")
	if err != nil {
		return err
	}
	writer(startDateStr + "\n")
	endDateStr, err := e.endDate.FormatIcalProperty("DTEND")
	if err != nil {
		return err
	}
	writer(endDateStr + "\n")
	writer("DTSTAMP:" + time.Now().UTC().Format("20060102T150405Z") + "\n")
	if !e.createdAt.IsZero() {
		writer("CREATED:" + e.createdAt.UTC().Format("20060102T150405Z") + "\n")
	}
	if !e.updatedAt.IsZero() {
		writer("LAST-MODIFIED:" + e.updatedAt.UTC().Format("20060102T150405Z") + "\n")
	}

	// miscellaneous
	if e.sequence > 0 {
		writer("SEQUENCE:" + strconv.Itoa(e.sequence) + "\n")
	}

	// custom properties
	for _, customProperty := range e.customProperties {
		writer(customProperty + "\n")
	}

	return nil
}
