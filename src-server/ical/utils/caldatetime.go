package utils

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var (
	datePattern      = regexp.MustCompile(`^\d{4}\d{2}\d{2}$`)
	localTimePattern = regexp.MustCompile(`^\d{4}\d{2}\d{2}T\d{2}\d{2}\d{2}$`)
	UTCTimePattern   = regexp.MustCompile(`^\d{4}\d{2}\d{2}T\d{2}\d{2}\d{2}Z$`)
)

// A CalDateTime is either a calendar date (whole day, no clock) or a
// date-time. A date-time either carries a fixed zone or is "floating",
// meaning it has no zone and is reinterpreted in whatever location the
// caller supplies.
//
// Date and floating values store their wall clock in UTC internally;
// the UTC offset of the stored time is meaningless for them.
type CalDateTime struct {
	t        time.Time
	dateOnly bool
	floating bool
}

// Create a date-only value
func NewDate(year int, month time.Month, day int) CalDateTime {
	return CalDateTime{
		t:        time.Date(year, month, day, 0, 0, 0, 0, time.UTC),
		dateOnly: true,
	}
}

// Create a date-time value pinned to the zone of t
func NewDateTime(t time.Time) CalDateTime {
	return CalDateTime{t: t.Truncate(time.Second)}
}

// Create a floating date-time from the wall clock of t, dropping its zone
func NewFloating(t time.Time) CalDateTime {
	return CalDateTime{
		t:        time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC),
		floating: true,
	}
}

func (d CalDateTime) IsZero() bool {
	return d.t.IsZero()
}

func (d CalDateTime) IsDateOnly() bool {
	return d.dateOnly
}

func (d CalDateTime) IsFloating() bool {
	return d.floating
}

// Get the wall clock of the value. For date and floating values the
// returned time is in UTC; for zoned values it is the zoned time itself.
func (d CalDateTime) Wall() time.Time {
	return d.t
}

// Get the wall clock re-expressed in UTC regardless of kind, which is
// the anchor format used for recurrence arithmetic. Recurrences advance
// by wall clock, so a weekly 09:00 event stays at 09:00 across DST.
func (d CalDateTime) RRuleTime() time.Time {
	y, mo, day := d.t.Date()
	h, mi, s := d.t.Clock()
	return time.Date(y, mo, day, h, mi, s, 0, time.UTC)
}

// Build a new value of the same kind (date/floating/zone) from a wall
// clock produced by recurrence expansion.
func (d CalDateTime) WithWall(t time.Time) CalDateTime {
	loc := time.UTC
	if !d.dateOnly && !d.floating {
		loc = d.t.Location()
	}
	return CalDateTime{
		t:        time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, loc),
		dateOnly: d.dateOnly,
		floating: d.floating,
	}
}

// Resolve the value to a concrete instant in loc. Dates resolve to
// midnight in loc, floating date-times are reinterpreted in loc, zoned
// date-times are converted.
func (d CalDateTime) In(loc *time.Location) time.Time {
	if d.dateOnly || d.floating {
		y, mo, day := d.t.Date()
		h, mi, s := d.t.Clock()
		return time.Date(y, mo, day, h, mi, s, 0, loc)
	}
	return d.t.In(loc)
}

func (d CalDateTime) Add(dur time.Duration) CalDateTime {
	out := d
	out.t = d.t.Add(dur)
	return out
}

func (d CalDateTime) AddDays(days int) CalDateTime {
	out := d
	out.t = d.t.AddDate(0, 0, days)
	return out
}

// Wall-clock difference between two values of the same kind
func (d CalDateTime) Sub(other CalDateTime) time.Duration {
	return d.RRuleTime().Sub(other.RRuleTime())
}

func (d CalDateTime) Before(other CalDateTime) bool {
	return d.RRuleTime().Before(other.RRuleTime())
}

func (d CalDateTime) After(other CalDateTime) bool {
	return d.RRuleTime().After(other.RRuleTime())
}

func (d CalDateTime) Equal(other CalDateTime) bool {
	return d.RRuleTime().Equal(other.RRuleTime())
}

// Values of different kinds cannot live on the same event
func (d CalDateTime) SameKind(other CalDateTime) bool {
	return d.dateOnly == other.dateOnly
}

// Parsing fields containing date or date-time values. For example:
//   - DTSTART;TZID=Europe/Paris:20220101T000000
//   - DTEND:20220101T000000Z
//   - DTSTART;VALUE=DATE:20220101
//
// The property name is ignored. A datetime without "Z" postfix and
// without TZID stays floating; with TZID it is pinned to that zone.
func ParseIcalDatetime(rawText string) (CalDateTime, error) {
	slice := strings.SplitN(rawText, ":", 2)
	if len(slice) != 2 {
		return CalDateTime{}, fmt.Errorf("must be splitable by ':', got %s", rawText)
	}

	firstPart := slice[0]
	timePart := slice[1]

	params := make(map[string]string)
	if strings.Contains(firstPart, ";") {
		for _, prop := range strings.Split(firstPart, ";")[1:] {
			parts := strings.SplitN(prop, "=", 2)
			if len(parts) == 2 {
				params[strings.ToUpper(parts[0])] = parts[1]
			}
		}
	}

	switch {
	case datePattern.MatchString(timePart):
		result, err := time.Parse("20060102", timePart)
		if err != nil {
			return CalDateTime{}, err
		}
		return NewDate(result.Year(), result.Month(), result.Day()), nil
	case localTimePattern.MatchString(timePart):
		if params["VALUE"] == "DATE" {
			return CalDateTime{}, fmt.Errorf("VALUE=DATE with a clock part: %s", timePart)
		}
		tzidString, hasTzid := params["TZID"]
		if !hasTzid {
			result, err := time.Parse("20060102T150405", timePart)
			if err != nil {
				return CalDateTime{}, err
			}
			return NewFloating(result), nil
		}
		location, err := time.LoadLocation(tzidString)
		if err != nil {
			return CalDateTime{}, fmt.Errorf("invalid TZID: %s", err)
		}
		result, err := time.ParseInLocation("20060102T150405", timePart, location)
		if err != nil {
			return CalDateTime{}, err
		}
		return NewDateTime(result), nil
	case UTCTimePattern.MatchString(timePart):
		result, err := time.Parse("20060102T150405Z", timePart)
		if err != nil {
			return CalDateTime{}, err
		}
		return NewDateTime(result.UTC()), nil
	default:
		return CalDateTime{}, fmt.Errorf("invalid date-time format: %s", timePart)
	}
}

// Render the value as a full iCalendar content line (without fold):
// YYYYMMDD dates get VALUE=DATE, zoned date-times get either a "Z"
// postfix (UTC) or a TZID parameter, floating ones get neither.
func (d CalDateTime) FormatIcalProperty(name string) (string, error) {
	if d.t.IsZero() {
		return "", fmt.Errorf("time is zero")
	}
	switch {
	case d.dateOnly:
		return fmt.Sprintf("%s;VALUE=DATE:%s", name, d.t.Format("20060102")), nil
	case d.floating:
		return fmt.Sprintf("%s:%s", name, d.t.Format("20060102T150405")), nil
	case d.t.Location() == time.UTC:
		return fmt.Sprintf("%s:%s", name, d.t.Format("20060102T150405Z")), nil
	default:
		return fmt.Sprintf("%s;TZID=%s:%s", name, d.t.Location().String(), d.t.Format("20060102T150405")), nil
	}
}

// Re-express a zoned value in the zone of ref, keeping the instant.
// Date-only and floating values carry no zone and are returned
// unchanged, as is everything when ref itself carries no zone.
func (d CalDateTime) Rebase(ref CalDateTime) CalDateTime {
	if d.dateOnly || d.floating || ref.dateOnly || ref.floating {
		return d
	}
	return NewDateTime(d.t.In(ref.t.Location()))
}

// Render the value as a recurrence id: the occurrence's original start
// as a zoneless local timestamp, YYYYMMDD for whole-day events.
func (d CalDateTime) FormatRecurrenceID() string {
	if d.dateOnly {
		return d.t.Format("20060102")
	}
	return d.RRuleTime().Format("20060102T150405")
}

// Parse a recurrence id produced by FormatRecurrenceID. Zone-bearing
// recurrence ids are not supported.
func ParseRecurrenceID(raw string) (CalDateTime, error) {
	switch {
	case datePattern.MatchString(raw):
		result, err := time.Parse("20060102", raw)
		if err != nil {
			return CalDateTime{}, err
		}
		return NewDate(result.Year(), result.Month(), result.Day()), nil
	case localTimePattern.MatchString(raw):
		result, err := time.Parse("20060102T150405", raw)
		if err != nil {
			return CalDateTime{}, err
		}
		return NewFloating(result), nil
	case UTCTimePattern.MatchString(raw):
		result, err := time.Parse("20060102T150405Z", raw)
		if err != nil {
			return CalDateTime{}, err
		}
		return NewFloating(result), nil
	default:
		return CalDateTime{}, fmt.Errorf("invalid recurrence id format: %s", raw)
	}
}
