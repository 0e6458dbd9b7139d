// Package entity wraps one calendar aggregate together with its
// persistence collaborator and exposes it to the outside: range and
// next-active queries on the read path, create/update/delete mutations
// on the write path, and conditional-GET refresh for URL-backed
// calendars. All mutations on one entity are serialized; queries run
// against an immutable aggregate snapshot and never observe a
// half-applied edit.
package entity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"lcal/src-server/ical"
	"lcal/src-server/ical/event"
	"lcal/src-server/store"
)

// Product identifier stamped into every serialized calendar
const DefaultProdID = "-//lcal//local calendar 1.0//EN"

// Mutations on a URL-backed calendar are rejected with this error
var ErrReadOnly = errors.New("calendar is read-only")

type Entity struct {
	mu sync.RWMutex

	id     string
	name   string
	url    string
	etag   string
	prodID string

	loc   *time.Location
	store Store
	cal   *ical.Calendar
}

// Create an entity backed by a local, editable calendar. The persisted
// text is loaded and parsed right away; parse failure aborts
// construction.
func New(ctx context.Context, id, name string, st Store, loc *time.Location, prodID string) (*Entity, error) {
	return build(ctx, id, name, "", st, loc, prodID)
}

// Create an entity backed by a remote URL. The last persisted copy (if
// any) is loaded so the calendar is usable before the first refresh;
// the etag is whatever was negotiated when that copy was fetched.
func NewRemote(ctx context.Context, id, name, url, etag string, st Store, loc *time.Location, prodID string) (*Entity, error) {
	e, err := build(ctx, id, name, url, st, loc, prodID)
	if err != nil {
		return nil, err
	}
	e.etag = etag
	return e, nil
}

func build(ctx context.Context, id, name, url string, st Store, loc *time.Location, prodID string) (*Entity, error) {
	if prodID == "" {
		prodID = DefaultProdID
	}
	if loc == nil {
		loc = time.Local
	}

	content, err := st.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("entity %s: %w", id, err)
	}
	var cal *ical.Calendar
	if content == "" {
		cal = ical.NewCalendar()
	} else {
		parsed, parseErr := ical.FromIcal(content)
		if parseErr != nil {
			return nil, fmt.Errorf("entity %s: %w", id, parseErr)
		}
		cal = parsed
	}
	cal.SetProdID(prodID)
	if cal.GetName() == "" {
		cal.SetName(name)
	}

	return &Entity{
		id:     id,
		name:   name,
		url:    url,
		prodID: prodID,
		loc:    loc,
		store:  st,
		cal:    cal,
	}, nil
}

func (e *Entity) ID() string {
	return e.id
}

func (e *Entity) Name() string {
	return e.name
}

func (e *Entity) URL() string {
	return e.url
}

// Whether the entity is refreshed from a URL (and therefore read-only)
func (e *Entity) IsRemote() bool {
	return e.url != ""
}

func (e *Entity) ETag() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.etag
}

// Number of series currently held
func (e *Entity) EventCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cal.MasterEventCount()
}

// Get every occurrence intersecting the half-open range [start,end),
// in ascending start order
func (e *Entity) GetEvents(start, end time.Time) []ical.Occurrence {
	e.mu.RLock()
	tl := e.cal.Timeline(e.loc)
	e.mu.RUnlock()
	return tl.Overlapping(start, end)
}

// Get the first occurrence still active after now, false when the
// calendar has nothing upcoming
func (e *Entity) NextActive(now time.Time) (ical.Occurrence, bool) {
	e.mu.RLock()
	tl := e.cal.Timeline(e.loc)
	e.mu.RUnlock()
	return tl.ActiveAfter(now).Next()
}

// Serialize the current aggregate to iCalendar text
func (e *Entity) Export() (string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	content, err := e.cal.ToIcal()
	if err != nil {
		return "", err
	}
	return content, nil
}

// Add a new event; the assigned uid is returned
func (e *Entity) CreateEvent(ctx context.Context, blankEvent *event.UndecidedEvent) (string, error) {
	var uid string
	err := e.mutate(ctx, func(s *store.EventStore) error {
		var err error
		uid, err = s.Add(blankEvent)
		return err
	})
	return uid, err
}

// Update a series, one occurrence, or this-and-future occurrences. The
// uid of the series carrying the new fields is returned (it changes on
// a THIS_AND_FUTURE split).
func (e *Entity) UpdateEvent(ctx context.Context, uid string, newEvent *event.UndecidedEvent, recurrenceID string, recurrenceRange store.Range) (string, error) {
	var outUID string
	err := e.mutate(ctx, func(s *store.EventStore) error {
		var err error
		outUID, err = s.Edit(uid, newEvent, recurrenceID, recurrenceRange)
		return err
	})
	return outUID, err
}

// Delete a series, one occurrence, or this-and-future occurrences
func (e *Entity) DeleteEvent(ctx context.Context, uid string, recurrenceID string, recurrenceRange store.Range) error {
	return e.mutate(ctx, func(s *store.EventStore) error {
		return s.Delete(uid, recurrenceID, recurrenceRange)
	})
}

// Run one mutation against a working copy of the aggregate, persist the
// result, and only then swap the copy in. A failure at any step leaves
// both the in-memory aggregate and its persisted form untouched.
func (e *Entity) mutate(ctx context.Context, apply func(*store.EventStore) error) error {
	if e.IsRemote() {
		return fmt.Errorf("entity %s: %w", e.id, ErrReadOnly)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	working := e.cal.Clone()
	if err := apply(store.New(working)); err != nil {
		return err
	}
	content, serErr := working.ToIcal()
	if serErr != nil {
		return fmt.Errorf("entity %s: %w", e.id, serErr)
	}
	if err := e.store.Store(ctx, content); err != nil {
		return fmt.Errorf("entity %s: %w", e.id, err)
	}
	e.cal = working
	return nil
}
