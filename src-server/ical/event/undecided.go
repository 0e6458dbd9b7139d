package event

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"lcal/src-server/ical/utils"

	"github.com/google/uuid"
)

// Holds everything an event could possibly hold
type UndecidedEvent struct {
	EventInfo

	rruleStr     string
	exDates      []utils.CalDateTime
	recurrenceID utils.CalDateTime
}

// Create a new undecided event with new UID
func NewUndecidedEvent() UndecidedEvent {
	return UndecidedEvent{
		EventInfo: EventInfo{
			id: uuid.NewString(),
		},
	}
}

// Set the event ID
func (e *UndecidedEvent) SetID(id string) *UndecidedEvent {
	e.id = id
	return e
}

// Set the event summary
func (e *UndecidedEvent) SetSummary(summary string) *UndecidedEvent {
	e.summary = summary
	return e
}

// Set the event description
func (e *UndecidedEvent) SetDescription(description string) *UndecidedEvent {
	e.description = description
	return e
}

// Set the event location.
// Returns itself for chaining.
func (e *UndecidedEvent) SetLocation(location string) *UndecidedEvent {
	e.location = location
	return e
}

// Set the event URL
func (e *UndecidedEvent) SetURL(url string) *UndecidedEvent {
	e.url = url
	return e
}

// Set the event status
func (e *UndecidedEvent) SetStatus(status Status) *UndecidedEvent {
	e.status = status
	return e
}

// Set the event start date
func (e *UndecidedEvent) SetStartDate(startDate utils.CalDateTime) *UndecidedEvent {
	e.startDate = startDate
	return e
}

// Set the event end date
func (e *UndecidedEvent) SetEndDate(endDate utils.CalDateTime) *UndecidedEvent {
	e.endDate = endDate
	return e
}

// Set the event created date
func (e *UndecidedEvent) SetCreatedAt(createdAt time.Time) *UndecidedEvent {
	e.createdAt = createdAt
	return e
}

// Set the event last modified date
func (e *UndecidedEvent) SetUpdatedAt(lastModified time.Time) *UndecidedEvent {
	e.updatedAt = lastModified
	return e
}

// Set the event sequence
func (e *UndecidedEvent) SetSequence(sequence int) *UndecidedEvent {
	e.sequence = sequence
	return e
}

// Set the recurrence rule as an RRULE grammar string, e.g.
// "FREQ=WEEKLY;BYDAY=MO,WE"
func (e *UndecidedEvent) SetRRule(rruleStr string) *UndecidedEvent {
	e.rruleStr = rruleStr
	return e
}

// Add an excluded occurrence to the event
func (e *UndecidedEvent) AddExDate(exDate utils.CalDateTime) *UndecidedEvent {
	e.exDates = append(e.exDates, exDate)
	return e
}

// Set the recurrence id, marking the event as an override of one
// occurrence of the series sharing its UID
func (e *UndecidedEvent) SetRecurrenceID(recurrenceID utils.CalDateTime) *UndecidedEvent {
	e.recurrenceID = recurrenceID
	return e
}

// Add a custom property to the event
func (e *UndecidedEvent) AddCustomProperty(property string) *UndecidedEvent {
	e.customProperties = append(e.customProperties, property)
	return e
}

// Get the recurrence rule string
func (e *UndecidedEvent) GetRRule() string {
	return e.rruleStr
}

// Get the recurrence id
func (e *UndecidedEvent) GetRecurrenceID() utils.CalDateTime {
	return e.recurrenceID
}

// Add an iCalendar content line to the event.
// Unhandled properties will be stored in the customProperties array.
func (e *UndecidedEvent) AddIcalProperty(property string) error {
	// some properties don't have the regular key:value format, or carry
	// parameters between the key and the value
	switch {
	case strings.HasPrefix(property, "X-"):
		e.customProperties = append(e.customProperties, property)
		return nil
	case strings.HasPrefix(property, "ATTENDEE"),
		strings.HasPrefix(property, "ORGANIZER"),
		strings.HasPrefix(property, "ATTACH"),
		strings.HasPrefix(property, "CATEGORIES"),
		strings.HasPrefix(property, "TRANSP"),
		strings.HasPrefix(property, "CLASS"):
		// kept opaquely for round-trip fidelity
		e.customProperties = append(e.customProperties, property)
		return nil
	case strings.HasPrefix(property, "DTSTART"):
		parsedDate, err := utils.ParseIcalDatetime(property)
		if err != nil {
			return err
		}
		e.startDate = parsedDate
		return nil
	case strings.HasPrefix(property, "DTEND"):
		parsedDate, err := utils.ParseIcalDatetime(property)
		if err != nil {
			return err
		}
		e.endDate = parsedDate
		return nil
	case strings.HasPrefix(property, "EXDATE"):
		// may carry several comma-separated values on one line
		slice := strings.SplitN(property, ":", 2)
		if len(slice) != 2 {
			return fmt.Errorf("invalid EXDATE: %s", property)
		}
		for _, one := range strings.Split(slice[1], ",") {
			parsedDate, err := utils.ParseIcalDatetime(slice[0] + ":" + one)
			if err != nil {
				return err
			}
			e.exDates = append(e.exDates, parsedDate)
		}
		return nil
	case strings.HasPrefix(property, "RECURRENCE-ID"):
		parsedDate, err := utils.ParseIcalDatetime(property)
		if err != nil {
			return err
		}
		// recurrence ids are kept as zoneless local timestamps; a
		// TZID-bearing one is reduced to its wall clock
		if !parsedDate.IsDateOnly() && !parsedDate.IsFloating() {
			parsedDate = utils.NewFloating(parsedDate.RRuleTime())
		}
		e.recurrenceID = parsedDate
		return nil
	case strings.HasPrefix(property, "DTSTAMP"):
		return nil
	case strings.HasPrefix(property, "CREATED"):
		parsedDate, err := utils.ParseIcalDatetime(property)
		if err != nil {
			return err
		}
		e.createdAt = parsedDate.Wall()
		return nil
	case strings.HasPrefix(property, "LAST-MODIFIED"):
		parsedDate, err := utils.ParseIcalDatetime(property)
		if err != nil {
			return err
		}
		e.updatedAt = parsedDate.Wall()
		return nil
	}

	slice := strings.SplitN(property, ":", 2)
	if len(slice) != 2 {
		return fmt.Errorf("property must be splitable by ':', got %s", property)
	}
	key := strings.ToUpper(strings.TrimSpace(slice[0]))
	val := strings.TrimSpace(slice[1])

	// text properties may carry parameters, e.g. SUMMARY;LANGUAGE=en:...
	if paramIdx := strings.Index(key, ";"); paramIdx >= 0 {
		switch key[:paramIdx] {
		case "SUMMARY", "DESCRIPTION", "LOCATION":
			key = key[:paramIdx]
		}
	}

	switch key {
	case "UID":
		if val == "" {
			return fmt.Errorf("UID must not be empty")
		}
		e.id = val
	case "SUMMARY":
		e.summary = val
	case "DESCRIPTION":
		e.description = val
	case "LOCATION":
		e.location = val
	case "STATUS":
		switch Status(val) {
		case StatusConfirmed, StatusTentative, StatusCancelled:
			e.status = Status(val)
		default:
			return fmt.Errorf("invalid STATUS: %s", val)
		}
	case "URL":
		if _, err := url.ParseRequestURI(val); err != nil {
			return fmt.Errorf("invalid URL")
		}
		e.url = val
	case "SEQUENCE":
		sequence, err := strconv.Atoi(val)
		if err != nil || sequence < 0 {
			return fmt.Errorf("invalid SEQUENCE")
		}
		e.sequence = sequence
	case "RRULE":
		if !e.recurrenceID.IsZero() {
			return fmt.Errorf("RRULE and RECURRENCE-ID are mutually exclusive")
		}
		e.rruleStr = val
	default:
		e.customProperties = append(e.customProperties, property)
	}
	return nil
}

// Convert the template event into a master or child event
func (e *UndecidedEvent) DecideEventType() (interface{}, error) {
	if err := e.validate(); err != nil {
		return nil, err
	}

	// the rule grammar can only be checked against its anchor, which is
	// only guaranteed to be known once the whole event has been read
	if e.rruleStr != "" {
		if _, err := BuildRecurrenceSet(e.startDate, e.rruleStr); err != nil {
			return nil, fmt.Errorf("invalid RRULE: %w", err)
		}
	}

	switch {
	// to be a child event has a more strict condition
	case !e.recurrenceID.IsZero() && e.rruleStr != "":
		return nil, fmt.Errorf("seems like a child event, but rrule is set")
	case !e.recurrenceID.IsZero() && len(e.exDates) > 0:
		return nil, fmt.Errorf("seems like a child event, but exdate is set")
	case !e.recurrenceID.IsZero() && !e.recurrenceID.SameKind(e.startDate):
		return nil, fmt.Errorf("recurrence id and start date must be the same kind")

	case e.rruleStr == "" && len(e.exDates) > 0:
		return nil, fmt.Errorf("exdate only works with recurring events")

	case e.recurrenceID.IsZero():
		// exclusions given in another zone are re-expressed in the
		// series' zone so they compare by the series' wall clock
		exDates := make([]utils.CalDateTime, len(e.exDates))
		for i, exDate := range e.exDates {
			exDates[i] = exDate.Rebase(e.startDate)
		}
		return &MasterEvent{
			EventInfo:   e.EventInfo,
			rruleStr:    e.rruleStr,
			exDates:     exDates,
			childEvents: make(map[string]*ChildEvent),
		}, nil

	default:
		return &ChildEvent{
			EventInfo:    e.EventInfo,
			recurrenceID: e.recurrenceID,
		}, nil
	}
}
