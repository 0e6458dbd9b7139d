package store_test

import (
	"errors"
	"testing"
	"time"

	"lcal/src-server/ical"
	"lcal/src-server/ical/event"
	"lcal/src-server/ical/utils"
	"lcal/src-server/store"
)

func newStandupEvent() *event.UndecidedEvent {
	blankEvent := event.NewUndecidedEvent()
	blankEvent.SetID("standup").
		SetSummary("Daily standup").
		SetStartDate(utils.NewFloating(time.Date(2024, time.January, 15, 9, 30, 0, 0, time.UTC))).
		SetEndDate(utils.NewFloating(time.Date(2024, time.January, 15, 10, 0, 0, 0, time.UTC))).
		SetRRule("FREQ=DAILY;COUNT=5")
	return &blankEvent
}

func newStandupStore(t *testing.T) (*store.EventStore, *ical.Calendar) {
	t.Helper()
	calendar := ical.NewCalendar()
	eventStore := store.New(calendar)
	if _, err := eventStore.Add(newStandupEvent()); err != nil {
		t.Fatal(err)
	}
	return eventStore, calendar
}

func TestAdd(t *testing.T) {
	calendar := ical.NewCalendar()
	eventStore := store.New(calendar)

	// a blank uid gets one assigned
	blankEvent := event.NewUndecidedEvent()
	blankEvent.SetID("").
		SetSummary("One-off").
		SetStartDate(utils.NewFloating(time.Date(2024, time.January, 15, 9, 0, 0, 0, time.UTC))).
		SetEndDate(utils.NewFloating(time.Date(2024, time.January, 15, 10, 0, 0, 0, time.UTC)))
	uid, err := eventStore.Add(&blankEvent)
	if err != nil {
		t.Fatal(err)
	}
	if uid == "" {
		t.Error("expected an assigned uid")
	}
	if calendar.GetMasterEvent(uid) == nil {
		t.Error("event not stored")
	}

	// a taken uid is rejected
	if _, err := eventStore.Add(newStandupEvent()); err != nil {
		t.Fatal(err)
	}
	if _, err := eventStore.Add(newStandupEvent()); !errors.Is(err, store.ErrDuplicateUID) {
		t.Error("expected ErrDuplicateUID, got", err)
	}

	// a broken rule is rejected before any mutation
	badEvent := event.NewUndecidedEvent()
	badEvent.SetID("bad").
		SetSummary("Broken").
		SetStartDate(utils.NewFloating(time.Date(2024, time.January, 15, 9, 0, 0, 0, time.UTC))).
		SetEndDate(utils.NewFloating(time.Date(2024, time.January, 15, 10, 0, 0, 0, time.UTC))).
		SetRRule("FREQ=BOGUS")
	var validationErr *store.ValidationError
	if _, err := eventStore.Add(&badEvent); !errors.As(err, &validationErr) {
		t.Error("expected a validation error, got", err)
	}
	if calendar.GetMasterEvent("bad") != nil {
		t.Error("rejected event leaked into the calendar")
	}
}

func TestDeleteWholeSeries(t *testing.T) {
	eventStore, calendar := newStandupStore(t)

	if err := eventStore.Delete("missing", "", store.RangeNone); !errors.Is(err, store.ErrEventNotFound) {
		t.Error("expected ErrEventNotFound, got", err)
	}

	if err := eventStore.Delete("standup", "", store.RangeNone); err != nil {
		t.Fatal(err)
	}
	if calendar.GetMasterEvent("standup") != nil {
		t.Error("series still present after delete")
	}
}

func TestDeleteOneOccurrence(t *testing.T) {
	eventStore, calendar := newStandupStore(t)

	if err := eventStore.Delete("standup", "20240117T093000", store.RangeNone); err != nil {
		t.Fatal(err)
	}
	masterEvent := calendar.GetMasterEvent("standup")
	if masterEvent == nil {
		t.Fatal("series must survive a single-occurrence delete")
	}
	if !masterEvent.HasExDate("20240117T093000") {
		t.Error("deleted occurrence not excluded")
	}

	// a recurrence id outside the series is rejected
	if err := eventStore.Delete("standup", "20240301T093000", store.RangeNone); !errors.Is(err, store.ErrEventNotFound) {
		t.Error("expected ErrEventNotFound, got", err)
	}
}

func TestDeleteThisAndFuture(t *testing.T) {
	eventStore, calendar := newStandupStore(t)

	// a range delete needs a recurrence id
	if err := eventStore.Delete("standup", "", store.RangeThisAndFuture); !errors.Is(err, store.ErrInvalidRange) {
		t.Error("expected ErrInvalidRange, got", err)
	}

	// cut after the second occurrence
	if err := eventStore.Delete("standup", "20240117T093000", store.RangeThisAndFuture); err != nil {
		t.Fatal(err)
	}
	masterEvent := calendar.GetMasterEvent("standup")
	if masterEvent == nil {
		t.Fatal("series dropped instead of truncated")
	}
	occurrences := calendar.Timeline(time.UTC).Overlapping(
		time.Date(2024, time.January, 14, 0, 0, 0, 0, time.UTC),
		time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC),
	)
	if len(occurrences) != 2 {
		t.Error("expected 2 surviving occurrences, got", len(occurrences))
	}

	// cutting at the first occurrence removes the series entirely
	eventStore, calendar = newStandupStore(t)
	if err := eventStore.Delete("standup", "20240115T093000", store.RangeThisAndFuture); err != nil {
		t.Fatal(err)
	}
	if calendar.GetMasterEvent("standup") != nil {
		t.Error("a cut at the first occurrence must drop the series")
	}
}

func TestEditWholeSeries(t *testing.T) {
	eventStore, calendar := newStandupStore(t)
	if err := eventStore.Delete("standup", "20240117T093000", store.RangeNone); err != nil {
		t.Fatal(err)
	}

	// same rule: exclusions survive the edit
	editedEvent := newStandupEvent()
	editedEvent.SetSummary("Daily standup (renamed)")
	uid, err := eventStore.Edit("standup", editedEvent, "", store.RangeNone)
	if err != nil {
		t.Fatal(err)
	}
	if uid != "standup" {
		t.Error("whole-series edit must keep the uid, got", uid)
	}
	masterEvent := calendar.GetMasterEvent("standup")
	if masterEvent.GetSummary() != "Daily standup (renamed)" {
		t.Error("summary not replaced:", masterEvent.GetSummary())
	}
	if !masterEvent.HasExDate("20240117T093000") {
		t.Error("exclusions must survive a same-rule edit")
	}
	if masterEvent.GetSequence() != 1 {
		t.Error("sequence must bump on edit, got", masterEvent.GetSequence())
	}

	// changed rule: exclusions reset
	editedEvent = newStandupEvent()
	editedEvent.SetRRule("FREQ=WEEKLY;COUNT=3")
	if _, err := eventStore.Edit("standup", editedEvent, "", store.RangeNone); err != nil {
		t.Fatal(err)
	}
	if calendar.GetMasterEvent("standup").HasExDate("20240117T093000") {
		t.Error("exclusions must reset when the rule changes")
	}
}

func TestEditOneOccurrence(t *testing.T) {
	eventStore, calendar := newStandupStore(t)

	editedEvent := event.NewUndecidedEvent()
	editedEvent.SetSummary("Standup (moved)").
		SetStartDate(utils.NewFloating(time.Date(2024, time.January, 16, 14, 0, 0, 0, time.UTC))).
		SetEndDate(utils.NewFloating(time.Date(2024, time.January, 16, 14, 30, 0, 0, time.UTC)))
	uid, err := eventStore.Edit("standup", &editedEvent, "20240116T093000", store.RangeNone)
	if err != nil {
		t.Fatal(err)
	}
	if uid != "standup" {
		t.Error("an override edit must keep the uid, got", uid)
	}
	override := calendar.GetMasterEvent("standup").GetChildEvent("20240116T093000")
	if override == nil {
		t.Fatal("override not stored")
	}
	if override.GetSummary() != "Standup (moved)" {
		t.Error("wrong override summary:", override.GetSummary())
	}

	// a rule on an override is invalid
	ruledEvent := event.NewUndecidedEvent()
	ruledEvent.SetSummary("bad").
		SetStartDate(utils.NewFloating(time.Date(2024, time.January, 16, 14, 0, 0, 0, time.UTC))).
		SetEndDate(utils.NewFloating(time.Date(2024, time.January, 16, 14, 30, 0, 0, time.UTC))).
		SetRRule("FREQ=DAILY")
	var validationErr *store.ValidationError
	if _, err := eventStore.Edit("standup", &ruledEvent, "20240116T093000", store.RangeNone); !errors.As(err, &validationErr) {
		t.Error("expected a validation error, got", err)
	}
}

func TestEditThisAndFuture(t *testing.T) {
	eventStore, calendar := newStandupStore(t)

	editedEvent := event.NewUndecidedEvent()
	editedEvent.SetSummary("Standup v2").
		SetStartDate(utils.NewFloating(time.Date(2024, time.January, 17, 10, 0, 0, 0, time.UTC))).
		SetEndDate(utils.NewFloating(time.Date(2024, time.January, 17, 10, 30, 0, 0, time.UTC))).
		SetRRule("FREQ=DAILY;COUNT=3")
	newUID, err := eventStore.Edit("standup", &editedEvent, "20240117T093000", store.RangeThisAndFuture)
	if err != nil {
		t.Fatal(err)
	}
	if newUID == "standup" || newUID == "" {
		t.Error("a split must mint a fresh uid, got", newUID)
	}

	// the original keeps the occurrences before the cut
	occurrences := calendar.Timeline(time.UTC).Overlapping(
		time.Date(2024, time.January, 14, 0, 0, 0, 0, time.UTC),
		time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC),
	)
	oldCount, newCount := 0, 0
	for _, occ := range occurrences {
		switch occ.UID {
		case "standup":
			oldCount++
			if !occ.Start.Before(time.Date(2024, time.January, 17, 0, 0, 0, 0, time.UTC)) {
				t.Error("truncated series leaked past the cut:", occ.Start)
			}
		case newUID:
			newCount++
			if occ.Summary != "Standup v2" {
				t.Error("wrong summary on the split series:", occ.Summary)
			}
		}
	}
	if oldCount != 2 {
		t.Error("expected 2 occurrences before the cut, got", oldCount)
	}
	if newCount != 3 {
		t.Error("expected 3 occurrences after the cut, got", newCount)
	}
}

func TestParseRange(t *testing.T) {
	if r, err := store.ParseRange(""); err != nil || r != store.RangeNone {
		t.Error("the empty string must parse as RangeNone")
	}
	if r, err := store.ParseRange("THIS_AND_FUTURE"); err != nil || r != store.RangeThisAndFuture {
		t.Error("THIS_AND_FUTURE must parse")
	}
	if _, err := store.ParseRange("EVERYTHING"); !errors.Is(err, store.ErrInvalidRange) {
		t.Error("unknown ranges must be rejected")
	}
}
