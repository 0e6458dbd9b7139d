package ical

import (
	"container/heap"
	"sort"
	"time"

	"lcal/src-server/ical/event"
	"lcal/src-server/ical/utils"
)

// How far the expansion window is widened beyond the queried range so
// that occurrences whose wall clock lands outside it in another zone,
// or that start before the range but overlap into it, are not missed.
const expandSlack = 48 * time.Hour

// An Occurrence is one concrete, ephemeral instance of a series,
// produced at query time and never stored. Start/End are resolved to
// the timeline's location and duration-normalized for display.
type Occurrence struct {
	UID          string       `json:"uid"`
	RecurrenceID string       `json:"recurrenceId,omitempty"`
	Summary      string       `json:"summary"`
	Description  string       `json:"description,omitempty"`
	Location     string       `json:"location,omitempty"`
	URL          string       `json:"url,omitempty"`
	Status       event.Status `json:"status,omitempty"`
	AllDay       bool         `json:"allDay"`
	Start        time.Time    `json:"start"`
	End          time.Time    `json:"end"`
}

func occurrenceLess(a, b Occurrence) bool {
	if !a.Start.Equal(b.Start) {
		return a.Start.Before(b.Start)
	}
	if a.UID != b.UID {
		return a.UID < b.UID
	}
	return a.RecurrenceID < b.RecurrenceID
}

// A Timeline is a read-only, time-ordered view over the union of all
// series of one calendar, resolved in one location.
type Timeline struct {
	loc    *time.Location
	series []*event.MasterEvent
}

// Get a timeline view of the calendar in the given location. The view
// snapshots the current series set; mutations applied to the calendar
// afterwards are not observed.
func (c *Calendar) Timeline(loc *time.Location) *Timeline {
	if loc == nil {
		loc = time.Local
	}
	series := make([]*event.MasterEvent, 0, len(c.masterEvents))
	for _, masterEvent := range c.masterEvents {
		series = append(series, masterEvent)
	}
	sort.Slice(series, func(i, j int) bool {
		return series[i].GetID() < series[j].GetID()
	})
	return &Timeline{loc: loc, series: series}
}

// Resolve one expanded instance into a display Occurrence: concrete
// times in the timeline's location, degenerate durations corrected
// (whole-day events get at least one day, timed ones 30 minutes).
func (tl *Timeline) makeOccurrence(info *event.EventInfo, start, end utils.CalDateTime, recurrenceID string) Occurrence {
	allDay := start.IsDateOnly()
	s := start.In(tl.loc)
	e := end.In(tl.loc)
	if !e.After(s) {
		if allDay {
			e = s.AddDate(0, 0, 1)
		} else {
			e = s.Add(30 * time.Minute)
		}
	}
	return Occurrence{
		UID:          info.GetID(),
		RecurrenceID: recurrenceID,
		Summary:      info.GetSummary(),
		Description:  info.GetDescription(),
		Location:     info.GetLocation(),
		URL:          info.GetURL(),
		Status:       info.GetStatus(),
		AllDay:       allDay,
		Start:        s,
		End:          e,
	}
}

// Lazily yields the occurrences of one series in ascending start
// order: rule expansion minus exclusions and overridden ids, merged
// with the stored overrides.
type seriesCursor struct {
	head Occurrence
	ok   bool
	next func() (Occurrence, bool)
}

func (sc *seriesCursor) advance() {
	sc.head, sc.ok = sc.next()
}

func (tl *Timeline) newSeriesCursor(masterEvent *event.MasterEvent) *seriesCursor {
	sc := &seriesCursor{}

	if !masterEvent.IsRecurring() {
		done := false
		sc.next = func() (Occurrence, bool) {
			if done {
				return Occurrence{}, false
			}
			done = true
			return tl.makeOccurrence(
				&masterEvent.EventInfo,
				masterEvent.GetStartDate(), masterEvent.GetEndDate(),
				"",
			), true
		}
		sc.advance()
		return sc
	}

	set, err := masterEvent.RecurrenceSet()
	if err != nil {
		// validated at construction; treat as an empty series
		sc.next = func() (Occurrence, bool) { return Occurrence{}, false }
		sc.ok = false
		return sc
	}

	duration := masterEvent.Duration()
	exDates := masterEvent.ExDateSet()
	overridden := make(map[string]struct{})
	overrides := make([]*event.ChildEvent, 0)
	masterEvent.IterateChildEvents(func(recurrenceID string, childEvent *event.ChildEvent) {
		overridden[recurrenceID] = struct{}{}
		overrides = append(overrides, childEvent)
	})
	sort.Slice(overrides, func(i, j int) bool {
		return overrides[i].GetStartDate().Before(overrides[j].GetStartDate())
	})

	ruleNext := set.Iterator()
	overrideIdx := 0

	// next rule occurrence surviving the exclusion set-difference and
	// not replaced by an override
	var pending *Occurrence
	pullRule := func() {
		pending = nil
		for {
			t, ok := ruleNext()
			if !ok {
				return
			}
			start := masterEvent.GetStartDate().WithWall(t)
			recurrenceID := start.FormatRecurrenceID()
			if _, excluded := exDates[recurrenceID]; excluded {
				continue
			}
			if _, replaced := overridden[recurrenceID]; replaced {
				continue
			}
			occ := tl.makeOccurrence(
				&masterEvent.EventInfo,
				start, start.Add(duration),
				recurrenceID,
			)
			pending = &occ
			return
		}
	}
	pullRule()

	sc.next = func() (Occurrence, bool) {
		var fromOverride *Occurrence
		if overrideIdx < len(overrides) {
			childEvent := overrides[overrideIdx]
			occ := tl.makeOccurrence(
				&childEvent.EventInfo,
				childEvent.GetStartDate(), childEvent.GetEndDate(),
				childEvent.GetRecurrenceID().FormatRecurrenceID(),
			)
			fromOverride = &occ
		}

		switch {
		case pending == nil && fromOverride == nil:
			return Occurrence{}, false
		case pending == nil, fromOverride != nil && occurrenceLess(*fromOverride, *pending):
			overrideIdx++
			return *fromOverride, true
		default:
			occ := *pending
			pullRule()
			return occ, true
		}
	}
	sc.advance()
	return sc
}

// Every occurrence whose [start,end) interval intersects the half-open
// range [rangeStart,rangeEnd), ascending by start, ties broken by UID
// then recurrence id.
func (tl *Timeline) Overlapping(rangeStart, rangeEnd time.Time) []Occurrence {
	out := make([]Occurrence, 0)
	for _, masterEvent := range tl.series {
		// stop expanding a series once it is safely past the range
		limit := rangeEnd.Add(expandSlack + maxDuration(masterEvent.Duration(), 0))
		sc := tl.newSeriesCursor(masterEvent)
		for ; sc.ok; sc.advance() {
			if sc.head.Start.After(limit) {
				break
			}
			if sc.head.End.After(rangeStart) && sc.head.Start.Before(rangeEnd) {
				out = append(out, sc.head)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return occurrenceLess(out[i], out[j])
	})
	return out
}

func maxDuration(a, b time.Duration) time.Duration {
	if a > b {
		return a
	}
	return b
}

// Lazy merged iteration over all series, in ascending start order.
type TimelineIter struct {
	cursors cursorHeap
}

// Get the next occurrence, false once the timeline is exhausted
func (it *TimelineIter) Next() (Occurrence, bool) {
	if it.cursors.Len() == 0 {
		return Occurrence{}, false
	}
	top := it.cursors[0]
	occ := top.head
	top.advance()
	if top.ok {
		heap.Fix(&it.cursors, 0)
	} else {
		heap.Pop(&it.cursors)
	}
	return occ, true
}

// A lazy, restartable sequence of occurrences whose end is after now,
// in ascending start order. Series are interleaved as they go, never
// drained one after another, so taking the first element of an
// unbounded timeline stays cheap.
func (tl *Timeline) ActiveAfter(now time.Time) *TimelineIter {
	it := &TimelineIter{cursors: make(cursorHeap, 0, len(tl.series))}
	for _, masterEvent := range tl.series {
		sc := tl.newSeriesCursor(masterEvent)
		inner := sc.next
		sc.next = func() (Occurrence, bool) {
			for {
				occ, ok := inner()
				if !ok {
					return Occurrence{}, false
				}
				if occ.End.After(now) {
					return occ, true
				}
			}
		}
		// re-filter the already-pulled head
		if sc.ok && !sc.head.End.After(now) {
			sc.advance()
		}
		if sc.ok {
			it.cursors = append(it.cursors, sc)
		}
	}
	heap.Init(&it.cursors)
	return it
}

type cursorHeap []*seriesCursor

func (h cursorHeap) Len() int { return len(h) }
func (h cursorHeap) Less(i, j int) bool {
	return occurrenceLess(h[i].head, h[j].head)
}
func (h cursorHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *cursorHeap) Push(x any)   { *h = append(*h, x.(*seriesCursor)) }
func (h *cursorHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
