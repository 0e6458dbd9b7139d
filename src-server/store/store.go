// Package store applies add/edit/delete operations against a calendar
// aggregate, with recurrence-range semantics: an operation can target a
// whole series, one occurrence of it, or an occurrence and everything
// after it. Every operation either fully applies or leaves the calendar
// unchanged; edits stage their changes on a copy of the affected series
// and swap it in last.
package store

import (
	"fmt"
	"time"

	"lcal/src-server/ical"
	"lcal/src-server/ical/event"
	"lcal/src-server/ical/utils"

	"github.com/google/uuid"
)

// Scope of a delete/edit operation across a recurring series
type Range string

const (
	// Only the targeted occurrence (or the whole series when no
	// recurrence id is given)
	RangeNone Range = "NONE"
	// The targeted occurrence and every later one
	RangeThisAndFuture Range = "THIS_AND_FUTURE"
)

// Parse the wire form of a recurrence range; the empty string means
// RangeNone
func ParseRange(raw string) (Range, error) {
	switch Range(raw) {
	case Range(""), RangeNone:
		return RangeNone, nil
	case RangeThisAndFuture:
		return RangeThisAndFuture, nil
	default:
		return RangeNone, fmt.Errorf("%w: unknown range %q", ErrInvalidRange, raw)
	}
}

// EventStore is the mutation engine over one Calendar aggregate. It is
// not safe for concurrent use; the owning entity serializes access.
type EventStore struct {
	cal *ical.Calendar
}

func New(cal *ical.Calendar) *EventStore {
	return &EventStore{cal: cal}
}

// Add a new series to the calendar. A blank uid gets a fresh one
// assigned; a taken uid fails with ErrDuplicateUID. The assigned uid is
// returned.
func (s *EventStore) Add(blankEvent *event.UndecidedEvent) (string, error) {
	if blankEvent.GetID() == "" {
		blankEvent.SetID(uuid.NewString())
	}
	if !blankEvent.GetRecurrenceID().IsZero() {
		return "", &ValidationError{Reason: "a new event cannot carry a recurrence id"}
	}
	if s.cal.GetMasterEvent(blankEvent.GetID()) != nil {
		return "", fmt.Errorf("%w: uid %s", ErrDuplicateUID, blankEvent.GetID())
	}
	if blankEvent.GetCreatedAt().IsZero() {
		blankEvent.SetCreatedAt(time.Now().UTC())
	}

	decidedEvent, err := blankEvent.DecideEventType()
	if err != nil {
		return "", &ValidationError{Reason: err.Error()}
	}
	masterEvent, ok := decidedEvent.(*event.MasterEvent)
	if !ok {
		return "", &ValidationError{Reason: "event did not decide into a series master"}
	}

	s.cal.AddMasterEvent(masterEvent.GetID(), masterEvent)
	return masterEvent.GetID(), nil
}

// Delete a series, one occurrence of it, or an occurrence and all later
// ones, per the given range.
func (s *EventStore) Delete(uid string, recurrenceID string, recurrenceRange Range) error {
	masterEvent := s.cal.GetMasterEvent(uid)
	if masterEvent == nil {
		return fmt.Errorf("%w: uid %s", ErrEventNotFound, uid)
	}

	switch recurrenceRange {
	case RangeNone:
		if recurrenceID == "" {
			s.cal.RemoveMasterEvent(uid)
			return nil
		}
		target, err := s.resolveOccurrence(masterEvent, recurrenceID)
		if err != nil {
			return err
		}
		staged := masterEvent.Clone()
		staged.AddExDate(target)
		staged.RemoveChildEvent(target.FormatRecurrenceID())
		s.cal.AddMasterEvent(uid, staged)
		return nil

	case RangeThisAndFuture:
		if recurrenceID == "" {
			return fmt.Errorf("%w: THIS_AND_FUTURE requires a recurrence id", ErrInvalidRange)
		}
		if !masterEvent.IsRecurring() {
			return fmt.Errorf("%w: THIS_AND_FUTURE on a non-recurring event", ErrInvalidRange)
		}
		target, err := s.resolveOccurrence(masterEvent, recurrenceID)
		if err != nil {
			return err
		}
		staged, err := s.truncateSeries(masterEvent, target)
		if err != nil {
			return err
		}
		if staged == nil {
			s.cal.RemoveMasterEvent(uid)
		} else {
			s.cal.AddMasterEvent(uid, staged)
		}
		return nil

	default:
		return fmt.Errorf("%w: %q", ErrInvalidRange, recurrenceRange)
	}
}

// Edit replaces a series' fields, overrides one occurrence, or splits
// the series at an occurrence, per the given range. It returns the uid
// of the series carrying the edited fields, which differs from the
// input uid after a THIS_AND_FUTURE split.
func (s *EventStore) Edit(uid string, newEvent *event.UndecidedEvent, recurrenceID string, recurrenceRange Range) (string, error) {
	masterEvent := s.cal.GetMasterEvent(uid)
	if masterEvent == nil {
		return "", fmt.Errorf("%w: uid %s", ErrEventNotFound, uid)
	}

	switch {
	case recurrenceRange == RangeNone && recurrenceID == "":
		return uid, s.editWholeSeries(masterEvent, newEvent)
	case recurrenceRange == RangeNone:
		return uid, s.editOneOccurrence(masterEvent, newEvent, recurrenceID)
	case recurrenceRange == RangeThisAndFuture:
		if recurrenceID == "" {
			return "", fmt.Errorf("%w: THIS_AND_FUTURE requires a recurrence id", ErrInvalidRange)
		}
		if !masterEvent.IsRecurring() {
			return "", fmt.Errorf("%w: THIS_AND_FUTURE on a non-recurring event", ErrInvalidRange)
		}
		return s.splitSeries(masterEvent, newEvent, recurrenceID)
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidRange, recurrenceRange)
	}
}

// Replace the master's fields (and rule) with the new event's, keeping
// uid, creation time and, when the rule is unchanged, the stored
// overrides and exclusions.
func (s *EventStore) editWholeSeries(masterEvent *event.MasterEvent, newEvent *event.UndecidedEvent) error {
	newEvent.SetID(masterEvent.GetID())
	newEvent.SetCreatedAt(masterEvent.GetCreatedAt())
	newEvent.SetUpdatedAt(time.Now().UTC())
	newEvent.SetSequence(masterEvent.GetSequence() + 1)

	decidedEvent, err := newEvent.DecideEventType()
	if err != nil {
		return &ValidationError{Reason: err.Error()}
	}
	staged, ok := decidedEvent.(*event.MasterEvent)
	if !ok {
		return &ValidationError{Reason: "event did not decide into a series master"}
	}

	if staged.GetRRule() == masterEvent.GetRRule() {
		masterEvent.IterateExDates(func(exDate utils.CalDateTime) {
			staged.AddExDate(exDate)
		})
		var attachErr error
		masterEvent.IterateChildEvents(func(_ string, childEvent *event.ChildEvent) {
			if err := staged.AddChildEvent(childEvent); err != nil && attachErr == nil {
				attachErr = err
			}
		})
		if attachErr != nil {
			return &ValidationError{Reason: attachErr.Error()}
		}
	}

	s.cal.AddMasterEvent(staged.GetID(), staged)
	return nil
}

// Insert or replace the override at one occurrence; all sibling
// occurrences keep the master's fields.
func (s *EventStore) editOneOccurrence(masterEvent *event.MasterEvent, newEvent *event.UndecidedEvent, recurrenceID string) error {
	target, err := s.resolveOccurrence(masterEvent, recurrenceID)
	if err != nil {
		return err
	}
	if newEvent.GetRRule() != "" {
		return &ValidationError{Reason: "a recurrence rule is only valid on a series master, not an override"}
	}

	newEvent.SetID(masterEvent.GetID())
	newEvent.SetRecurrenceID(target)
	newEvent.SetUpdatedAt(time.Now().UTC())
	if newEvent.GetCreatedAt().IsZero() {
		newEvent.SetCreatedAt(masterEvent.GetCreatedAt())
	}

	decidedEvent, err := newEvent.DecideEventType()
	if err != nil {
		return &ValidationError{Reason: err.Error()}
	}
	childEvent, ok := decidedEvent.(*event.ChildEvent)
	if !ok {
		return &ValidationError{Reason: "event did not decide into an override"}
	}

	staged := masterEvent.Clone()
	if err := staged.AddChildEvent(childEvent); err != nil {
		return fmt.Errorf("%w: %s", ErrEventNotFound, err.Error())
	}
	s.cal.AddMasterEvent(staged.GetID(), staged)
	return nil
}

// Truncate the original series strictly before the occurrence and plant
// an independent series carrying the new fields (and, if present, the
// new event's own rule) for the future portion.
func (s *EventStore) splitSeries(masterEvent *event.MasterEvent, newEvent *event.UndecidedEvent, recurrenceID string) (string, error) {
	target, err := s.resolveOccurrence(masterEvent, recurrenceID)
	if err != nil {
		return "", err
	}

	newEvent.SetID(uuid.NewString())
	newEvent.SetCreatedAt(time.Now().UTC())
	decidedEvent, err := newEvent.DecideEventType()
	if err != nil {
		return "", &ValidationError{Reason: err.Error()}
	}
	futureEvent, ok := decidedEvent.(*event.MasterEvent)
	if !ok {
		return "", &ValidationError{Reason: "event did not decide into a series master"}
	}

	truncated, err := s.truncateSeries(masterEvent, target)
	if err != nil {
		return "", err
	}

	if truncated == nil {
		s.cal.RemoveMasterEvent(masterEvent.GetID())
	} else {
		s.cal.AddMasterEvent(masterEvent.GetID(), truncated)
	}
	s.cal.AddMasterEvent(futureEvent.GetID(), futureEvent)
	return futureEvent.GetID(), nil
}

// Map a recurrence id string to the occurrence it identifies, failing
// with ErrEventNotFound when the series has no such occurrence.
func (s *EventStore) resolveOccurrence(masterEvent *event.MasterEvent, recurrenceID string) (utils.CalDateTime, error) {
	target, err := utils.ParseRecurrenceID(recurrenceID)
	if err != nil {
		return utils.CalDateTime{}, &ValidationError{Reason: err.Error()}
	}
	if !target.SameKind(masterEvent.GetStartDate()) {
		return utils.CalDateTime{}, fmt.Errorf("%w: recurrence id %s does not match the series date kind", ErrEventNotFound, recurrenceID)
	}
	if masterEvent.GetChildEvent(target.FormatRecurrenceID()) != nil {
		return target, nil
	}
	ok, err := masterEvent.HasOccurrence(target)
	if err != nil {
		return utils.CalDateTime{}, fmt.Errorf("can't expand series %s: %w", masterEvent.GetID(), err)
	}
	if !ok {
		return utils.CalDateTime{}, fmt.Errorf("%w: no occurrence %s in series %s", ErrEventNotFound, recurrenceID, masterEvent.GetID())
	}
	return target, nil
}

// Produce the truncated replacement for a series cut strictly before
// the target occurrence; nil means the cut leaves nothing and the
// series should be dropped.
func (s *EventStore) truncateSeries(masterEvent *event.MasterEvent, target utils.CalDateTime) (*event.MasterEvent, error) {
	first, err := masterEvent.FirstOccurrence()
	if err != nil {
		return nil, fmt.Errorf("can't expand series %s: %w", masterEvent.GetID(), err)
	}
	if !target.After(first) {
		return nil, nil
	}
	staged, remaining, err := masterEvent.Truncated(target)
	if err != nil {
		return nil, fmt.Errorf("can't truncate series %s: %w", masterEvent.GetID(), err)
	}
	if remaining == 0 {
		return nil, nil
	}
	return staged, nil
}
