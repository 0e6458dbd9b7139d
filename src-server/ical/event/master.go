package event

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"lcal/src-server/ical/utils"

	"github.com/xyedo/rrule"
)

// One event series: a single event, or a recurring one when rruleStr is
// not empty. Overrides and exclusions of individual occurrences hang off
// the master.
type MasterEvent struct {
	EventInfo

	rruleStr    string
	exDates     []utils.CalDateTime
	childEvents map[string]*ChildEvent
}

// Build an expandable recurrence set from a rule string and its anchor.
// The anchor is fed to the rule library as a wall-clock-as-UTC DTSTART
// so that expansion is plain wall arithmetic regardless of zone.
func BuildRecurrenceSet(anchor utils.CalDateTime, rruleStr string) (*rrule.Set, error) {
	if rruleStr == "" {
		return nil, fmt.Errorf("BuildRecurrenceSet: rrule string is empty")
	}
	var sb strings.Builder
	sb.WriteString("DTSTART:" + anchor.RRuleTime().Format("20060102T150405Z"))
	sb.WriteString("\nRRULE:" + rruleStr)
	return rrule.StrToRRuleSet(sb.String())
}

// Whether the master carries a recurrence rule
func (e *MasterEvent) IsRecurring() bool {
	return e.rruleStr != ""
}

// Get the recurrence rule string, empty for single events
func (e *MasterEvent) GetRRule() string {
	return e.rruleStr
}

// Get the recurrence set anchored at the event start
func (e *MasterEvent) RecurrenceSet() (*rrule.Set, error) {
	return BuildRecurrenceSet(e.startDate, e.rruleStr)
}

// Wall-clock duration of one occurrence
func (e *MasterEvent) Duration() time.Duration {
	return e.endDate.Sub(e.startDate)
}

// Iterate over the exdates and apply a function to each
func (e *MasterEvent) IterateExDates(fn func(utils.CalDateTime)) {
	for _, exDate := range e.exDates {
		fn(exDate)
	}
}

// Get the exdates as a set of recurrence ids for pure set-difference
// during expansion
func (e *MasterEvent) ExDateSet() map[string]struct{} {
	out := make(map[string]struct{}, len(e.exDates))
	for _, exDate := range e.exDates {
		out[exDate.FormatRecurrenceID()] = struct{}{}
	}
	return out
}

// Whether the rule produces an occurrence starting at the given time,
// exclusions not considered
func (e *MasterEvent) HasOccurrence(recurrenceID utils.CalDateTime) (bool, error) {
	if !e.IsRecurring() {
		return false, nil
	}
	set, err := e.RecurrenceSet()
	if err != nil {
		return false, err
	}
	t := recurrenceID.RRuleTime()
	return len(set.Between(t, t, true)) > 0, nil
}

// Add a child event to the master event
func (e *MasterEvent) AddChildEvent(childEvent *ChildEvent) error {
	if e.rruleStr == "" {
		return fmt.Errorf("MasterEvent.AddChildEvent: master event does not have a rrule, child event cannot be added")
	}
	if !childEvent.recurrenceID.SameKind(e.startDate) {
		return fmt.Errorf("MasterEvent.AddChildEvent: child recurrence id kind does not match master start")
	}
	ok, err := e.HasOccurrence(childEvent.recurrenceID)
	if err != nil {
		return fmt.Errorf("MasterEvent.AddChildEvent: %w", err)
	}
	if !ok {
		return fmt.Errorf("MasterEvent.AddChildEvent: child event recurrence id not found in master event rrule")
	}
	if e.childEvents == nil {
		e.childEvents = make(map[string]*ChildEvent)
	}
	e.childEvents[childEvent.recurrenceID.FormatRecurrenceID()] = childEvent
	return nil
}

// Get a child event by recurrence id, nil when absent
func (e *MasterEvent) GetChildEvent(recurrenceID string) *ChildEvent {
	return e.childEvents[recurrenceID]
}

// Remove a child event by recurrence id
func (e *MasterEvent) RemoveChildEvent(recurrenceID string) {
	delete(e.childEvents, recurrenceID)
}

// Iterate over the child events and apply a function to each
func (e *MasterEvent) IterateChildEvents(fn func(recurrenceID string, event *ChildEvent)) {
	for recurrenceID, childEvent := range e.childEvents {
		fn(recurrenceID, childEvent)
	}
}

// Whether the occurrence at the given recurrence id has been excluded
func (e *MasterEvent) HasExDate(recurrenceID string) bool {
	for _, exDate := range e.exDates {
		if exDate.FormatRecurrenceID() == recurrenceID {
			return true
		}
	}
	return false
}

// Add an occurrence to the exclusion set
func (e *MasterEvent) AddExDate(exDate utils.CalDateTime) {
	if e.HasExDate(exDate.FormatRecurrenceID()) {
		return
	}
	e.exDates = append(e.exDates, exDate)
}

// The start of the first occurrence the rule generates, exclusions not
// considered; for single events this is the start date itself.
func (e *MasterEvent) FirstOccurrence() (utils.CalDateTime, error) {
	if !e.IsRecurring() {
		return e.startDate, nil
	}
	set, err := e.RecurrenceSet()
	if err != nil {
		return utils.CalDateTime{}, err
	}
	next := set.Iterator()
	t, ok := next()
	if !ok {
		return utils.CalDateTime{}, fmt.Errorf("MasterEvent.FirstOccurrence: rule yields no occurrences")
	}
	return e.startDate.WithWall(t), nil
}

// Deep-enough copy for copy-on-write edits: the returned master can be
// mutated without the original observing it
func (e *MasterEvent) Clone() *MasterEvent {
	out := &MasterEvent{
		EventInfo:   e.EventInfo,
		rruleStr:    e.rruleStr,
		exDates:     append([]utils.CalDateTime(nil), e.exDates...),
		childEvents: make(map[string]*ChildEvent, len(e.childEvents)),
	}
	out.customProperties = append([]string(nil), e.customProperties...)
	for recurrenceID, childEvent := range e.childEvents {
		out.childEvents[recurrenceID] = childEvent
	}
	return out
}

// Produce a copy of the master whose rule ends strictly before the
// given occurrence: COUNT is dropped, UNTIL is rewritten to just before
// it, and overrides/exclusions at or after it are discarded. The copy
// yields zero occurrences when the cut is at or before the first one;
// callers should then drop the series entirely.
func (e *MasterEvent) Truncated(before utils.CalDateTime) (*MasterEvent, int, error) {
	if !e.IsRecurring() {
		return nil, 0, fmt.Errorf("MasterEvent.Truncated: master event does not have a rrule")
	}

	until := before.RRuleTime().Add(-time.Second)
	parts := make([]string, 0, 4)
	for _, part := range strings.Split(e.rruleStr, ";") {
		upper := strings.ToUpper(part)
		if strings.HasPrefix(upper, "COUNT=") || strings.HasPrefix(upper, "UNTIL=") {
			continue
		}
		parts = append(parts, part)
	}
	parts = append(parts, "UNTIL="+until.Format("20060102T150405Z"))

	out := e.Clone()
	out.rruleStr = strings.Join(parts, ";")

	set, err := out.RecurrenceSet()
	if err != nil {
		return nil, 0, fmt.Errorf("MasterEvent.Truncated: %w", err)
	}
	remaining := len(set.All())

	validExDates := out.exDates[:0]
	for _, exDate := range out.exDates {
		if exDate.Before(before) {
			validExDates = append(validExDates, exDate)
		}
	}
	out.exDates = validExDates
	for recurrenceID, childEvent := range out.childEvents {
		if !childEvent.recurrenceID.Before(before) {
			delete(out.childEvents, recurrenceID)
		}
	}

	return out, remaining, nil
}

// Turn a MasterEvent into an UndecidedEvent for modification
func (e *MasterEvent) ToUndecidedEvent() UndecidedEvent {
	return UndecidedEvent{
		EventInfo: e.EventInfo,
		rruleStr:  e.rruleStr,
		exDates:   append([]utils.CalDateTime(nil), e.exDates...),
	}
}

// Convert the MasterEvent and its child events into iCalendar VEVENT
// components. This method is intended to be used internally by the
// calendar serializer.
func (e *MasterEvent) ToIcal() (string, error) {
	var sb strings.Builder
	writer := utils.Split75wrapper(sb.WriteString)

	// basic properties
	writer("BEGIN:VEVENT\n")
	if err := e.EventInfo.toIcal(writer); err != nil {
		return "", err
	}

	// recurrence
	if e.rruleStr != "" {
		writer("RRULE:" + e.rruleStr + "\n")
	}
	for _, exDate := range e.exDates {
		exDateStr, err := exDate.FormatIcalProperty("EXDATE")
		if err != nil {
			return "", err
		}
		writer(exDateStr + "\n")
	}
	writer("END:VEVENT\n")

	// overrides, in recurrence id order for reproducible output
	recurrenceIDs := make([]string, 0, len(e.childEvents))
	for recurrenceID := range e.childEvents {
		recurrenceIDs = append(recurrenceIDs, recurrenceID)
	}
	sort.Strings(recurrenceIDs)
	for _, recurrenceID := range recurrenceIDs {
		childEvent := e.childEvents[recurrenceID]
		writer("BEGIN:VEVENT\n")
		if err := childEvent.EventInfo.toIcal(writer); err != nil {
			return "", err
		}
		recurrenceIDStr, err := childEvent.recurrenceID.FormatIcalProperty("RECURRENCE-ID")
		if err != nil {
			return "", err
		}
		writer(recurrenceIDStr + "\n")
		writer("END:VEVENT\n")
	}

	return sb.String(), nil
}
