package ical_test

import (
	"strings"
	"testing"
	"time"

	"lcal/src-server/ical"
)

const fixtureIcal = `BEGIN:VCALENDAR
PRODID:-//test//test calendar//EN
VERSION:2.0
X-WR-CALNAME:Team calendar
BEGIN:VEVENT
UID:standup
SUMMARY:Daily standup
DTSTART:20240115T093000
DTEND:20240115T100000
RRULE:FREQ=DAILY;COUNT=5
EXDATE:20240117T093000
END:VEVENT
BEGIN:VEVENT
UID:standup
SUMMARY:Standup (moved)
DTSTART:20240116T140000
DTEND:20240116T143000
RECURRENCE-ID:20240116T093000
END:VEVENT
BEGIN:VEVENT
UID:lunch
SUMMARY:Team lunch
DTSTART;VALUE=DATE:20240118
DTEND;VALUE=DATE:20240119
END:VEVENT
END:VCALENDAR
`

func TestFromIcal(t *testing.T) {
	calendar, err := ical.FromIcal(fixtureIcal)
	if err != nil {
		t.Fatal(err)
	}

	if calendar.GetProdID() != "-//test//test calendar//EN" {
		t.Error("wrong prodid:", calendar.GetProdID())
	}
	if calendar.GetName() != "Team calendar" {
		t.Error("wrong calendar name:", calendar.GetName())
	}
	if calendar.MasterEventCount() != 2 {
		t.Error("expected 2 master events, got", calendar.MasterEventCount())
	}

	standup := calendar.GetMasterEvent("standup")
	if standup == nil {
		t.Fatal("standup series not found")
	}
	if !standup.IsRecurring() {
		t.Error("standup should be recurring")
	}
	if !standup.HasExDate("20240117T093000") {
		t.Error("missing exdate")
	}
	override := standup.GetChildEvent("20240116T093000")
	if override == nil {
		t.Fatal("override not attached to its master")
	}
	if override.GetSummary() != "Standup (moved)" {
		t.Error("wrong override summary:", override.GetSummary())
	}

	lunch := calendar.GetMasterEvent("lunch")
	if lunch == nil {
		t.Fatal("lunch event not found")
	}
	if lunch.IsRecurring() {
		t.Error("lunch should not be recurring")
	}
	if !lunch.GetStartDate().IsDateOnly() {
		t.Error("lunch should be a whole-day event")
	}
}

// DTSTAMP is regenerated on every serialization, everything else must
// survive a parse/serialize cycle unchanged
func stripDtstamp(text string) string {
	lines := make([]string, 0)
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(line, "DTSTAMP:") {
			continue
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func TestIcalRoundTrip(t *testing.T) {
	calendar, err := ical.FromIcal(fixtureIcal)
	if err != nil {
		t.Fatal(err)
	}
	firstPass, err := calendar.ToIcal()
	if err != nil {
		t.Fatal(err)
	}

	reparsed, err := ical.FromIcal(firstPass)
	if err != nil {
		t.Fatal(err)
	}
	secondPass, err := reparsed.ToIcal()
	if err != nil {
		t.Fatal(err)
	}

	if stripDtstamp(firstPass) != stripDtstamp(secondPass) {
		t.Error("serialization is not a fixed point of parsing:\n" + firstPass + "\nvs\n" + secondPass)
	}
}

func TestFromIcalFoldedLines(t *testing.T) {
	longSummary := strings.Repeat("meeting about meetings ", 10)
	folded := "BEGIN:VCALENDAR\n" +
		"PRODID:-//test//EN\n" +
		"VERSION:2.0\n" +
		"BEGIN:VEVENT\n" +
		"UID:folded\n" +
		"SUMMARY:" + longSummary[:60] + "\n " + longSummary[60:] + "\n" +
		"DTSTART:20240115T093000\n" +
		"DTEND:20240115T100000\n" +
		"END:VEVENT\n" +
		"END:VCALENDAR\n"

	calendar, err := ical.FromIcal(folded)
	if err != nil {
		t.Fatal(err)
	}
	masterEvent := calendar.GetMasterEvent("folded")
	if masterEvent == nil {
		t.Fatal("event not found")
	}
	if masterEvent.GetSummary() != strings.TrimSpace(longSummary) {
		t.Error("folded summary not merged:", masterEvent.GetSummary())
	}
}

// exclusions written in another zone must still hit the series' wall
// clock: 08:30Z is 09:30 in winter-time Paris
func TestFromIcalCrossZoneExDate(t *testing.T) {
	text := "BEGIN:VCALENDAR\n" +
		"PRODID:-//test//EN\n" +
		"VERSION:2.0\n" +
		"BEGIN:VEVENT\n" +
		"UID:zoned\n" +
		"SUMMARY:Morning call\n" +
		"DTSTART;TZID=Europe/Paris:20240115T093000\n" +
		"DTEND;TZID=Europe/Paris:20240115T100000\n" +
		"RRULE:FREQ=DAILY;COUNT=3\n" +
		"EXDATE:20240116T083000Z\n" +
		"END:VEVENT\n" +
		"END:VCALENDAR\n"

	calendar, err := ical.FromIcal(text)
	if err != nil {
		t.Fatal(err)
	}
	masterEvent := calendar.GetMasterEvent("zoned")
	if masterEvent == nil {
		t.Fatal("event not found")
	}
	if !masterEvent.HasExDate("20240116T093000") {
		t.Error("utc exclusion not matched against the zoned series")
	}

	paris, locErr := time.LoadLocation("Europe/Paris")
	if locErr != nil {
		t.Fatal(locErr)
	}
	occurrences := calendar.Timeline(paris).Overlapping(
		time.Date(2024, time.January, 15, 0, 0, 0, 0, paris),
		time.Date(2024, time.January, 18, 0, 0, 0, 0, paris),
	)
	if len(occurrences) != 2 {
		t.Fatal("expected 2 occurrences, got", len(occurrences))
	}
	for _, occ := range occurrences {
		if occ.Start.In(paris).Day() == 16 {
			t.Error("excluded occurrence leaked into the timeline:", occ.Start)
		}
	}
}

// error line numbers refer to the raw source text, folded lines included
func TestFromIcalErrorLineNumbers(t *testing.T) {
	text := "BEGIN:VCALENDAR\n" +
		"VERSION:2.0\n" +
		"X-WR-CALDESC:a description long enough\n" +
		" to be folded onto a second line\n" +
		"garbage line\n" +
		"END:VCALENDAR\n"

	_, err := ical.FromIcal(text)
	if err == nil {
		t.Fatal("expected an error")
	}
	if !strings.Contains(err.Error(), "line: 5") {
		t.Error("error should point at the raw source line:", err)
	}
}

func TestFromIcalParameterizedTextProperties(t *testing.T) {
	text := "BEGIN:VCALENDAR\n" +
		"PRODID:-//test//EN\n" +
		"VERSION:2.0\n" +
		"BEGIN:VEVENT\n" +
		"UID:paramed\n" +
		"SUMMARY;LANGUAGE=fr:Réunion d'équipe\n" +
		"LOCATION;LANGUAGE=fr:Salle B\n" +
		"DTSTART:20240115T093000\n" +
		"DTEND:20240115T100000\n" +
		"END:VEVENT\n" +
		"END:VCALENDAR\n"

	calendar, err := ical.FromIcal(text)
	if err != nil {
		t.Fatal(err)
	}
	masterEvent := calendar.GetMasterEvent("paramed")
	if masterEvent == nil {
		t.Fatal("event not found")
	}
	if masterEvent.GetSummary() != "Réunion d'équipe" {
		t.Error("parameterized summary not recognized:", masterEvent.GetSummary())
	}
	if masterEvent.GetLocation() != "Salle B" {
		t.Error("parameterized location not recognized:", masterEvent.GetLocation())
	}

	serialized, err := calendar.ToIcal()
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(serialized, "(no title)") {
		t.Error("parameterized summary fell through to the placeholder")
	}
	if strings.Count(serialized, "SUMMARY") != 1 {
		t.Error("summary serialized more than once:\n" + serialized)
	}
}

func TestFromIcalRejects(t *testing.T) {
	for name, text := range map[string]string{
		"no calendar block": "BEGIN:VEVENT\nEND:VEVENT\n",
		"unterminated": "BEGIN:VCALENDAR\nVERSION:2.0\n",
		"duplicate uid": `BEGIN:VCALENDAR
VERSION:2.0
BEGIN:VEVENT
UID:dup
SUMMARY:one
DTSTART:20240115T093000
DTEND:20240115T100000
END:VEVENT
BEGIN:VEVENT
UID:dup
SUMMARY:two
DTSTART:20240116T093000
DTEND:20240116T100000
END:VEVENT
END:VCALENDAR
`,
		"mixed start and end kinds": `BEGIN:VCALENDAR
VERSION:2.0
BEGIN:VEVENT
UID:mixed
SUMMARY:bad
DTSTART;VALUE=DATE:20240115
DTEND:20240115T100000
END:VEVENT
END:VCALENDAR
`,
	} {
		if _, err := ical.FromIcal(text); err == nil {
			t.Error("expected an error for", name)
		}
	}
}
