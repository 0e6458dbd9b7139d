package ical_test

import (
	"testing"
	"time"

	"lcal/src-server/ical"
	"lcal/src-server/ical/event"
	"lcal/src-server/ical/utils"
)

func newMaster(t *testing.T, build func(*event.UndecidedEvent)) *event.MasterEvent {
	t.Helper()
	blankEvent := event.NewUndecidedEvent()
	build(&blankEvent)
	decidedEvent, err := blankEvent.DecideEventType()
	if err != nil {
		t.Fatal(err)
	}
	masterEvent, ok := decidedEvent.(*event.MasterEvent)
	if !ok {
		t.Fatal("expected a master event")
	}
	return masterEvent
}

func TestOverlapping(t *testing.T) {
	calendar := ical.NewCalendar()
	calendar.AddMasterEvent("standup", newMaster(t, func(e *event.UndecidedEvent) {
		e.SetID("standup").
			SetSummary("Daily standup").
			SetStartDate(utils.NewFloating(time.Date(2024, time.January, 15, 9, 30, 0, 0, time.UTC))).
			SetEndDate(utils.NewFloating(time.Date(2024, time.January, 15, 10, 0, 0, 0, time.UTC))).
			SetRRule("FREQ=DAILY;COUNT=5")
	}))

	timeline := calendar.Timeline(time.UTC)

	// days 2..4 of the five-day series
	occurrences := timeline.Overlapping(
		time.Date(2024, time.January, 16, 0, 0, 0, 0, time.UTC),
		time.Date(2024, time.January, 19, 0, 0, 0, 0, time.UTC),
	)
	if len(occurrences) != 3 {
		t.Fatal("expected 3 occurrences, got", len(occurrences))
	}
	for i, occ := range occurrences {
		wantDay := 16 + i
		if occ.Start.Day() != wantDay {
			t.Error("wrong day:", occ.Start)
		}
		if occ.RecurrenceID == "" {
			t.Error("rule occurrences must carry a recurrence id")
		}
	}

	// an occurrence straddling the range start still overlaps
	occurrences = timeline.Overlapping(
		time.Date(2024, time.January, 16, 9, 45, 0, 0, time.UTC),
		time.Date(2024, time.January, 16, 12, 0, 0, 0, time.UTC),
	)
	if len(occurrences) != 1 {
		t.Error("expected the in-progress occurrence, got", len(occurrences))
	}

	// half-open range: an occurrence ending exactly at the range start
	// does not overlap
	occurrences = timeline.Overlapping(
		time.Date(2024, time.January, 16, 10, 0, 0, 0, time.UTC),
		time.Date(2024, time.January, 16, 12, 0, 0, 0, time.UTC),
	)
	if len(occurrences) != 0 {
		t.Error("expected no occurrences, got", len(occurrences))
	}
}

func TestOverlappingExDateAndOverride(t *testing.T) {
	masterEvent := newMaster(t, func(e *event.UndecidedEvent) {
		e.SetID("standup").
			SetSummary("Daily standup").
			SetStartDate(utils.NewFloating(time.Date(2024, time.January, 15, 9, 30, 0, 0, time.UTC))).
			SetEndDate(utils.NewFloating(time.Date(2024, time.January, 15, 10, 0, 0, 0, time.UTC))).
			SetRRule("FREQ=DAILY;COUNT=5").
			AddExDate(utils.NewFloating(time.Date(2024, time.January, 17, 9, 30, 0, 0, time.UTC)))
	})

	// move the jan 16 occurrence to the afternoon
	blankEvent := event.NewUndecidedEvent()
	blankEvent.SetID("standup").
		SetSummary("Standup (moved)").
		SetStartDate(utils.NewFloating(time.Date(2024, time.January, 16, 14, 0, 0, 0, time.UTC))).
		SetEndDate(utils.NewFloating(time.Date(2024, time.January, 16, 14, 30, 0, 0, time.UTC))).
		SetRecurrenceID(utils.NewFloating(time.Date(2024, time.January, 16, 9, 30, 0, 0, time.UTC)))
	decidedEvent, err := blankEvent.DecideEventType()
	if err != nil {
		t.Fatal(err)
	}
	if err := masterEvent.AddChildEvent(decidedEvent.(*event.ChildEvent)); err != nil {
		t.Fatal(err)
	}

	calendar := ical.NewCalendar()
	calendar.AddMasterEvent("standup", masterEvent)

	occurrences := calendar.Timeline(time.UTC).Overlapping(
		time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC),
		time.Date(2024, time.January, 20, 0, 0, 0, 0, time.UTC),
	)

	// 5 generated - 1 excluded; the override replaces its base occurrence
	if len(occurrences) != 4 {
		t.Fatal("expected 4 occurrences, got", len(occurrences))
	}
	for _, occ := range occurrences {
		if occ.Start.Day() == 17 {
			t.Error("excluded occurrence leaked into the timeline")
		}
		if occ.Start.Day() == 16 {
			if occ.Start.Hour() != 14 {
				t.Error("override did not replace the base occurrence:", occ.Start)
			}
			if occ.Summary != "Standup (moved)" {
				t.Error("wrong override summary:", occ.Summary)
			}
			if occ.RecurrenceID != "20240116T093000" {
				t.Error("override must keep the original recurrence id:", occ.RecurrenceID)
			}
		}
	}
}

func TestActiveAfter(t *testing.T) {
	calendar := ical.NewCalendar()
	calendar.AddMasterEvent("weekly", newMaster(t, func(e *event.UndecidedEvent) {
		e.SetID("weekly").
			SetSummary("Weekly review").
			SetStartDate(utils.NewFloating(time.Date(2024, time.January, 15, 16, 0, 0, 0, time.UTC))).
			SetEndDate(utils.NewFloating(time.Date(2024, time.January, 15, 17, 0, 0, 0, time.UTC))).
			SetRRule("FREQ=WEEKLY;COUNT=4")
	}))
	calendar.AddMasterEvent("oneoff", newMaster(t, func(e *event.UndecidedEvent) {
		e.SetID("oneoff").
			SetSummary("Dentist").
			SetStartDate(utils.NewFloating(time.Date(2024, time.January, 17, 11, 0, 0, 0, time.UTC))).
			SetEndDate(utils.NewFloating(time.Date(2024, time.January, 17, 12, 0, 0, 0, time.UTC)))
	}))

	// mid-occurrence: the ongoing weekly review is still active
	iter := calendar.Timeline(time.UTC).ActiveAfter(
		time.Date(2024, time.January, 15, 16, 30, 0, 0, time.UTC))

	collected := make([]ical.Occurrence, 0)
	for {
		occ, ok := iter.Next()
		if !ok {
			break
		}
		collected = append(collected, occ)
	}

	if len(collected) != 5 {
		t.Fatal("expected 5 occurrences, got", len(collected))
	}
	if collected[0].UID != "weekly" || collected[0].Start.Day() != 15 {
		t.Error("the ongoing occurrence must come first:", collected[0])
	}
	if collected[1].UID != "oneoff" {
		t.Error("series must interleave by start time:", collected[1])
	}
	for i := 1; i < len(collected); i++ {
		if collected[i].Start.Before(collected[i-1].Start) {
			t.Error("occurrences out of order")
		}
	}

	// past the last occurrence the timeline is empty
	iter = calendar.Timeline(time.UTC).ActiveAfter(
		time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC))
	if _, ok := iter.Next(); ok {
		t.Error("expected an exhausted timeline")
	}
}

func TestActiveAfterUnboundedSeries(t *testing.T) {
	calendar := ical.NewCalendar()
	calendar.AddMasterEvent("weekly", newMaster(t, func(e *event.UndecidedEvent) {
		e.SetID("weekly").
			SetSummary("Weekly review").
			SetStartDate(utils.NewFloating(time.Date(2024, time.January, 1, 9, 0, 0, 0, time.UTC))).
			SetEndDate(utils.NewFloating(time.Date(2024, time.January, 1, 10, 0, 0, 0, time.UTC))).
			SetRRule("FREQ=WEEKLY")
	}))

	// years past the anchor, the iterator must still yield lazily and in
	// strictly increasing order, starting with the first occurrence
	// whose end is after now
	now := time.Date(2026, time.August, 29, 12, 0, 0, 0, time.UTC)
	iter := calendar.Timeline(time.UTC).ActiveAfter(now)

	prev := time.Time{}
	for range 5 {
		occ, ok := iter.Next()
		if !ok {
			t.Fatal("unbounded series ran out of occurrences")
		}
		if !occ.End.After(now) {
			t.Error("occurrence already over:", occ.End)
		}
		if !occ.Start.After(prev) {
			t.Error("occurrences not strictly increasing:", occ.Start)
		}
		prev = occ.Start
	}
	if prev.Before(now) {
		t.Error("iteration stalled before now:", prev)
	}

	// a far-future window expands only what it covers: a half-open
	// 14-day window holds exactly two weekly occurrences
	occurrences := calendar.Timeline(time.UTC).Overlapping(
		time.Date(2030, time.June, 3, 0, 0, 0, 0, time.UTC),
		time.Date(2030, time.June, 17, 0, 0, 0, 0, time.UTC),
	)
	if len(occurrences) != 2 {
		t.Error("expected 2 occurrences, got", len(occurrences))
	}
}

func TestDegenerateDurations(t *testing.T) {
	calendar := ical.NewCalendar()
	calendar.AddMasterEvent("allday", newMaster(t, func(e *event.UndecidedEvent) {
		e.SetID("allday").
			SetSummary("Holiday").
			SetStartDate(utils.NewDate(2024, time.January, 18)).
			SetEndDate(utils.NewDate(2024, time.January, 18))
	}))
	calendar.AddMasterEvent("instant", newMaster(t, func(e *event.UndecidedEvent) {
		e.SetID("instant").
			SetSummary("Reminder").
			SetStartDate(utils.NewFloating(time.Date(2024, time.January, 18, 9, 0, 0, 0, time.UTC))).
			SetEndDate(utils.NewFloating(time.Date(2024, time.January, 18, 9, 0, 0, 0, time.UTC)))
	}))

	occurrences := calendar.Timeline(time.UTC).Overlapping(
		time.Date(2024, time.January, 18, 0, 0, 0, 0, time.UTC),
		time.Date(2024, time.January, 19, 0, 0, 0, 0, time.UTC),
	)
	if len(occurrences) != 2 {
		t.Fatal("expected 2 occurrences, got", len(occurrences))
	}
	for _, occ := range occurrences {
		switch occ.UID {
		case "allday":
			if !occ.AllDay {
				t.Error("whole-day event lost its allDay flag")
			}
			if occ.End.Sub(occ.Start) != 24*time.Hour {
				t.Error("whole-day event should span one day, got", occ.End.Sub(occ.Start))
			}
		case "instant":
			if occ.End.Sub(occ.Start) != 30*time.Minute {
				t.Error("zero-length event should span 30 minutes, got", occ.End.Sub(occ.Start))
			}
		}
	}
}

func TestTimelineZonedSeries(t *testing.T) {
	paris, err := time.LoadLocation("Europe/Paris")
	if err != nil {
		t.Fatal(err)
	}

	// 09:30 Paris wall clock, daily across the late-march DST switch
	calendar := ical.NewCalendar()
	calendar.AddMasterEvent("zoned", newMaster(t, func(e *event.UndecidedEvent) {
		e.SetID("zoned").
			SetSummary("Morning call").
			SetStartDate(utils.NewDateTime(time.Date(2024, time.March, 30, 9, 30, 0, 0, paris))).
			SetEndDate(utils.NewDateTime(time.Date(2024, time.March, 30, 10, 0, 0, 0, paris))).
			SetRRule("FREQ=DAILY;COUNT=3")
	}))

	occurrences := calendar.Timeline(paris).Overlapping(
		time.Date(2024, time.March, 30, 0, 0, 0, 0, paris),
		time.Date(2024, time.April, 2, 0, 0, 0, 0, paris),
	)
	if len(occurrences) != 3 {
		t.Fatal("expected 3 occurrences, got", len(occurrences))
	}
	for _, occ := range occurrences {
		// the wall clock must hold across the DST transition
		if got := occ.Start.In(paris).Format("15:04"); got != "09:30" {
			t.Error("wall clock drifted across DST:", got)
		}
	}
}
