// The `ical` package parses and serializes iCalendar data and answers
// recurrence-aware queries over it.
//
// # References:
// - RFC5545: https://datatracker.ietf.org/doc/html/rfc5545
//
// # Notes:
// - Not all properties are supported when parsing, the rest are stored in the
//   custom property array for serialization back into iCalendar format.
// - VTIMEZONE and VALARM sections, including their sub-sections, are ignored.
//   Parsing local timezones is still supported; date-times keep their kind
//   (date, floating or zoned) via utils.CalDateTime.
// - There are 3 types of events: MasterEvent, ChildEvent and UndecidedEvent.
//   - MasterEvent: an event series (single, or recurring with an RRULE).
//   - ChildEvent: overrides one occurrence of a recurring MasterEvent.
//   - UndecidedEvent: a placeholder for a future Master/ChildEvent.
// - Calendar{} only holds MasterEvent (with their ChildEvents attached),
//   read-only and guaranteed to be valid.
//
// # Example usage:
//
// Parse from text
//	calendar, _ := ical.FromIcal(text)
//
// Marshal to a string -> file
//	output, _ := calendar.ToIcal()
//	_ = os.WriteFile("path/to/output/calendar.ics", []byte(output), 0600)
//
// Create a new Calendar struct
//	calendar := ical.NewCalendar()
//
// Query occurrences
//	occurrences := calendar.Timeline(time.Local).Overlapping(start, end)

package ical

import (
	"bufio"
	"log/slog"
	"sort"
	"strings"

	"lcal/src-server/ical/event"
)

// The main struct of the package
type Calendar struct {
	prodID       string
	name         string
	description  string
	masterEvents map[string]*event.MasterEvent
}

// Initialize a new Calendar{} struct
func NewCalendar() *Calendar {
	return &Calendar{
		masterEvents: make(map[string]*event.MasterEvent),
	}
}

// Unmarshal iCalendar text into a Calendar{} struct.
func FromIcal(text string) (*Calendar, *CustomError) {
	lineCh := make(chan string)

	go func() {
		defer close(lineCh)
		scanner := bufio.NewScanner(strings.NewReader(text))
		scanner.Buffer(make([]byte, 1024), 1024*1024)
		for scanner.Scan() {
			lineCh <- strings.TrimSuffix(scanner.Text(), "\r")
		}
	}()

	return iCalParser(lineCh)
}

// The shared parsing logic, consuming one raw line at a time.
func iCalParser(lineCh chan string) (*Calendar, *CustomError) {
	ignoredFields := map[string]struct{}{
		"X-APPLE-TRAVEL-ADVISORY-BEHAVIOR": {},
		"ACKNOWLEDGED":                     {},
		"X-APPLE-DEFAULT-ALARM":            {},
	}

	cal := NewCalendar()
	var mode string
	lineCount := 0

	// "lookahead" to merge lines that are split; each merged line keeps
	// the raw line number it started on so errors point into the source
	// text, not the unfolded form
	type contentLine struct {
		text string
		num  int
	}
	mergedLineCh := make(chan contentLine)
	go func() {
		defer close(mergedLineCh)

		var lastLine string
		lastNum := 0
		rawCount := 0
		for currentLine := range lineCh {
			rawCount++
			if strings.HasPrefix(currentLine, " ") || strings.HasPrefix(currentLine, "\t") {
				lastLine = lastLine + currentLine[1:]
				continue
			}
			if lastLine != "" {
				mergedLineCh <- contentLine{text: lastLine, num: lastNum}
			}
			lastLine = currentLine
			lastNum = rawCount
		}
		if lastLine != "" {
			mergedLineCh <- contentLine{text: lastLine, num: lastNum}
		}
	}()

	blankEvent := event.NewUndecidedEvent()
	childEvents := make([]*event.ChildEvent, 0)
	sawCalendar := false

	for merged := range mergedLineCh {
		line := merged.text
		lineCount = merged.num
		slice := strings.SplitN(line, ":", 2)
		if len(slice) != 2 {
			switch mode {
			case "event":
				if err := blankEvent.AddIcalProperty(line); err != nil {
					return nil, NewCustomError("can't add ical property to event", map[string]any{
						"line":    lineCount,
						"content": line,
						"err":     err,
					})
				}
			case "alarm", "timezone", "standard", "daylight":
			default:
				return nil, NewCustomError("unhandled line", map[string]any{
					"line":    lineCount,
					"content": line,
				})
			}
			continue
		}
		key := strings.ToUpper(strings.TrimSpace(slice[0]))
		value := strings.TrimSpace(slice[1])

		if _, ok := ignoredFields[key]; ok {
			continue
		}

		switch key {
		case "BEGIN":
			switch value {
			case "VCALENDAR":
				if mode == "calendar" {
					return nil, NewCustomError("nested VCALENDAR block", map[string]any{
						"line":    lineCount,
						"content": line,
					})
				}
				mode = "calendar"
				sawCalendar = true
			case "VTIMEZONE":
				if mode != "calendar" {
					return nil, NewCustomError("VTIMEZONE block not in VCALENDAR block", map[string]any{
						"line":    lineCount,
						"content": line,
					})
				}
				mode = "timezone"
			case "STANDARD":
				if mode != "timezone" {
					return nil, NewCustomError("STANDARD block not in VTIMEZONE block", map[string]any{
						"line":    lineCount,
						"content": line,
					})
				}
				mode = "standard"
			case "DAYLIGHT":
				if mode != "timezone" {
					return nil, NewCustomError("DAYLIGHT block not in VTIMEZONE block", map[string]any{
						"line":    lineCount,
						"content": line,
					})
				}
				mode = "daylight"
			case "VEVENT":
				if mode == "event" {
					return nil, NewCustomError("nested VEVENT block", map[string]any{
						"line":    lineCount,
						"content": line,
					})
				}
				if mode != "calendar" {
					return nil, NewCustomError("VEVENT block not in VCALENDAR block", map[string]any{
						"line":    lineCount,
						"content": line,
					})
				}
				mode = "event"
			case "VALARM":
				if mode != "event" {
					return nil, NewCustomError("VALARM block not in VEVENT block", map[string]any{
						"line":    lineCount,
						"content": line,
					})
				}
				mode = "alarm"
			default:
				if mode == "" {
					return nil, NewCustomError("expecting BEGIN:VCALENDAR", map[string]any{
						"line":    lineCount,
						"content": line,
					})
				}
				slog.Debug("unhandled BEGIN block", "line", lineCount, "content", line)
			}
		case "END":
			switch value {
			case "VCALENDAR":
				if mode != "calendar" {
					return nil, NewCustomError("unexpected END:VCALENDAR", map[string]any{
						"line":    lineCount,
						"content": line,
					})
				}
				mode = ""
			case "VTIMEZONE":
				if mode != "timezone" {
					return nil, NewCustomError("unexpected END:VTIMEZONE", map[string]any{
						"line":    lineCount,
						"content": line,
					})
				}
				mode = "calendar"
			case "STANDARD":
				if mode != "standard" {
					return nil, NewCustomError("unexpected END:STANDARD", map[string]any{
						"line":    lineCount,
						"content": line,
					})
				}
				mode = "timezone"
			case "DAYLIGHT":
				if mode != "daylight" {
					return nil, NewCustomError("unexpected END:DAYLIGHT", map[string]any{
						"line":    lineCount,
						"content": line,
					})
				}
				mode = "timezone"
			case "VALARM":
				if mode != "alarm" {
					return nil, NewCustomError("unexpected END:VALARM", map[string]any{
						"line":    lineCount,
						"content": line,
					})
				}
				mode = "event"
			case "VEVENT":
				if mode != "event" {
					return nil, NewCustomError("unexpected END:VEVENT", map[string]any{
						"line":    lineCount,
						"content": line,
					})
				}
				mode = "calendar"
				if blankEvent.GetSummary() == "" {
					blankEvent.SetSummary("(no title)")
				}
				resultEvent, err := blankEvent.DecideEventType()
				if err != nil {
					return nil, NewCustomError("can't decide event type", map[string]any{
						"line":    lineCount,
						"content": line,
						"err":     err,
					})
				}
				switch resultEvent := resultEvent.(type) {
				case *event.MasterEvent:
					if _, ok := cal.masterEvents[resultEvent.GetID()]; ok {
						return nil, NewCustomError("duplicate event id", map[string]any{
							"line":    lineCount,
							"content": line,
							"uid":     resultEvent.GetID(),
						})
					}
					cal.masterEvents[resultEvent.GetID()] = resultEvent
				case *event.ChildEvent:
					childEvents = append(childEvents, resultEvent)
				default:
					return nil, NewCustomError("can't decide event type", map[string]any{
						"line":    lineCount,
						"content": line,
					})
				}
				blankEvent = event.NewUndecidedEvent()
			default:
				return nil, NewCustomError("unexpected END block", map[string]any{
					"line":    lineCount,
					"content": line,
				})
			}
		default:
			switch mode {
			case "timezone", "standard", "daylight", "alarm":
			case "calendar":
				switch key {
				case "VERSION", "CALSCALE", "METHOD", "X-WR-TIMEZONE":
				case "PRODID":
					cal.prodID = value
				case "X-WR-CALNAME":
					cal.SetName(value)
				case "X-WR-CALDESC":
					cal.SetDescription(value)
				default:
					slog.Warn("unhandled line", "line", lineCount, "content", line)
				}
			case "event":
				if err := blankEvent.AddIcalProperty(line); err != nil {
					return nil, NewCustomError("can't add ical property to event", map[string]any{
						"line":    lineCount,
						"content": line,
						"err":     err,
					})
				}
			default:
				slog.Warn("unhandled line", "line", lineCount, "content", line)
			}
		}
	}

	if !sawCalendar {
		return nil, NewCustomError("no VCALENDAR block found", nil)
	}
	if mode != "" {
		return nil, NewCustomError("unterminated block", map[string]any{
			"mode": mode,
		})
	}

	// attach overrides to their masters; orphans are dropped
	for _, childEvent := range childEvents {
		masterEvent, ok := cal.masterEvents[childEvent.GetID()]
		if !ok {
			slog.Warn("dropping child event without master", "uid", childEvent.GetID())
			continue
		}
		if err := masterEvent.AddChildEvent(childEvent); err != nil {
			slog.Warn("can't add child event to master event", "uid", childEvent.GetID(), "err", err)
		}
	}

	return cal, nil
}

// Marshal a Calendar{} struct into an iCalendar string. Events are
// written in UID order so output is reproducible.
func (cal *Calendar) ToIcal() (string, *CustomError) {
	var sb strings.Builder

	sb.WriteString("BEGIN:VCALENDAR\n")
	sb.WriteString("PRODID:" + cal.prodID + "\n")
	sb.WriteString("VERSION:2.0\n")
	if cal.name != "" {
		sb.WriteString("X-WR-CALNAME:" + cal.name + "\n")
	}
	if cal.description != "" {
		sb.WriteString("X-WR-CALDESC:" + cal.description + "\n")
	}

	uids := make([]string, 0, len(cal.masterEvents))
	for uid := range cal.masterEvents {
		uids = append(uids, uid)
	}
	sort.Strings(uids)

	for _, uid := range uids {
		eventStr, err := cal.masterEvents[uid].ToIcal()
		if err != nil {
			return "", NewCustomError("can't marshal event", map[string]any{
				"eventID": uid,
				"err":     err,
			})
		}
		sb.WriteString(eventStr)
	}
	sb.WriteString("END:VCALENDAR\n")

	return sb.String(), nil
}

// #region Getters
func (c *Calendar) GetProdID() string {
	return c.prodID
}

// Get the calendar name
func (c *Calendar) GetName() string {
	return c.name
}

// Get the calendar description
func (c *Calendar) GetDescription() string {
	return c.description
}

// Get a MasterEvent from the calendar by ID
func (c *Calendar) GetMasterEvent(id string) *event.MasterEvent {
	return c.masterEvents[id]
}

// Get the number of MasterEvents in the calendar
func (c *Calendar) MasterEventCount() int {
	return len(c.masterEvents)
}

// #endregion

// #region Setters
func (c *Calendar) SetProdID(prodID string) {
	c.prodID = prodID
}

// Set the calendar name
func (c *Calendar) SetName(name string) {
	c.name = name
}

// Set the calendar description
func (c *Calendar) SetDescription(description string) {
	c.description = description
}

// #endregion

// Add a MasterEvent to the calendar, overwriting any previous series
// with the same UID. Callers are expected to have validated the event
// via DecideEventType.
func (c *Calendar) AddMasterEvent(id string, masterEvent *event.MasterEvent) {
	c.masterEvents[id] = masterEvent
}

// Shallow copy used for copy-on-write mutation: masters are immutable
// once decided (the store swaps in whole replacements), so sharing them
// between the copies is safe.
func (c *Calendar) Clone() *Calendar {
	out := &Calendar{
		prodID:       c.prodID,
		name:         c.name,
		description:  c.description,
		masterEvents: make(map[string]*event.MasterEvent, len(c.masterEvents)),
	}
	for id, masterEvent := range c.masterEvents {
		out.masterEvents[id] = masterEvent
	}
	return out
}

// Remove a MasterEvent and its overrides from the calendar
func (c *Calendar) RemoveMasterEvent(id string) {
	delete(c.masterEvents, id)
}

// Iterate over all MasterEvents in the calendar and apply a function to each.
func (c *Calendar) IterateMasterEvents(fn func(id string, event *event.MasterEvent) error) error {
	for id, masterEvent := range c.masterEvents {
		if err := fn(id, masterEvent); err != nil {
			return err
		}
	}
	return nil
}
