package route

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"lcal/src-server/entity"
	"lcal/src-server/ical"
	"lcal/src-server/ical/event"
	icalutils "lcal/src-server/ical/utils"
	"lcal/src-server/store"
	"lcal/src-server/utils"
)

func Calendar(muxer *http.ServeMux, as *utils.AppState, manager *entity.Manager) {
	type CreateCalendarReqBody struct {
		Name string `json:"name"`
		Url  string `json:"url"`
	}

	type OneCalendarRespBody struct {
		ID         string `json:"id"`
		Name       string `json:"name"`
		Url        string `json:"url,omitempty"`
		ReadOnly   bool   `json:"readOnly"`
		EventCount int    `json:"eventCount"`
	}

	type GetEventsReqBody struct {
		StartDateUnixUTC int64 `json:"startDateUnixUTC"`
		EndDateUnixUTC   int64 `json:"endDateUnixUTC"`
	}

	// register a new calendar; a url makes it a remote (read-only) one
	// and fetches it right away
	muxer.HandleFunc("POST /calendar", LoggingMiddleware(
		func(w http.ResponseWriter, r *http.Request) {
			var reqBody CreateCalendarReqBody
			if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte("Invalid request body"))
				return
			}
			if reqBody.Name == "" {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte("Please provide a calendar name"))
				return
			}

			ent, err := manager.CreateCalendar(r.Context(), reqBody.Name, reqBody.Url)
			if err != nil {
				var customErr *ical.CustomError
				if errors.As(err, &customErr) {
					select {
					case as.MetricChans.ParseFailure <- struct{}{}:
					default:
					}
					w.WriteHeader(http.StatusBadRequest)
					w.Write([]byte("Can't parse the remote calendar"))
					return
				}
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte("Can't create calendar"))
				slog.Error("can't create calendar", "name", reqBody.Name, "error", err)
				return
			}

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			if err := json.NewEncoder(w).Encode(OneCalendarRespBody{
				ID:         ent.ID(),
				Name:       ent.Name(),
				Url:        ent.URL(),
				ReadOnly:   ent.IsRemote(),
				EventCount: ent.EventCount(),
			}); err != nil {
				slog.Warn("can't encode response body", "where", "route/calendar.go", "error", err)
			}
		}))

	// list all registered calendars
	muxer.HandleFunc("GET /calendar", LoggingMiddleware(
		func(w http.ResponseWriter, r *http.Request) {
			respBody := make([]OneCalendarRespBody, 0)
			for _, ent := range manager.List() {
				respBody = append(respBody, OneCalendarRespBody{
					ID:         ent.ID(),
					Name:       ent.Name(),
					Url:        ent.URL(),
					ReadOnly:   ent.IsRemote(),
					EventCount: ent.EventCount(),
				})
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			if err := json.NewEncoder(w).Encode(respBody); err != nil {
				slog.Warn("can't encode response body", "where", "route/calendar.go", "error", err)
			}
		}))

	// unregister a calendar and drop its ics file
	muxer.HandleFunc("DELETE /calendar/{calendar_id}", LoggingMiddleware(
		func(w http.ResponseWriter, r *http.Request) {
			calendarID := r.PathValue("calendar_id")
			if manager.Get(calendarID) == nil {
				w.WriteHeader(http.StatusNotFound)
				w.Write([]byte("Calendar not found"))
				return
			}
			if err := manager.RemoveCalendar(r.Context(), calendarID); err != nil {
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte("Can't remove calendar"))
				slog.Error("can't remove calendar", "calendarID", calendarID, "error", err)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))

	// get all occurrences overlapping a date range
	muxer.HandleFunc("POST /calendar/{calendar_id}/get-events", LoggingMiddleware(
		func(w http.ResponseWriter, r *http.Request) {
			ent := manager.Get(r.PathValue("calendar_id"))
			if ent == nil {
				w.WriteHeader(http.StatusNotFound)
				w.Write([]byte("Calendar not found"))
				return
			}

			var reqBody GetEventsReqBody
			if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte("Invalid request body"))
				return
			}
			if reqBody.StartDateUnixUTC == 0 || reqBody.EndDateUnixUTC == 0 {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte("Please provide a start date and end date"))
				return
			}
			startDate := time.Unix(reqBody.StartDateUnixUTC, 0).UTC()
			endDate := time.Unix(reqBody.EndDateUnixUTC, 0).UTC()
			if !endDate.After(startDate) {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte("End date must be after start date"))
				return
			}

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			if err := json.NewEncoder(w).Encode(ent.GetEvents(startDate, endDate)); err != nil {
				slog.Warn("can't encode response body", "where", "route/calendar.go", "error", err)
			}
		}))

	// first occurrence still active after now
	muxer.HandleFunc("GET /calendar/{calendar_id}/next-active", LoggingMiddleware(
		func(w http.ResponseWriter, r *http.Request) {
			ent := manager.Get(r.PathValue("calendar_id"))
			if ent == nil {
				w.WriteHeader(http.StatusNotFound)
				w.Write([]byte("Calendar not found"))
				return
			}
			occurrence, ok := ent.NextActive(time.Now())
			if !ok {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			if err := json.NewEncoder(w).Encode(occurrence); err != nil {
				slog.Warn("can't encode response body", "where", "route/calendar.go", "error", err)
			}
		}))

	// create a new event
	muxer.HandleFunc("POST /calendar/{calendar_id}/events", LoggingMiddleware(
		func(w http.ResponseWriter, r *http.Request) {
			ent := manager.Get(r.PathValue("calendar_id"))
			if ent == nil {
				w.WriteHeader(http.StatusNotFound)
				w.Write([]byte("Calendar not found"))
				return
			}

			var reqBody EventReqBody
			if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte("Invalid request body"))
				return
			}
			blankEvent, err := eventFromReqBody(as, &reqBody)
			if err != nil {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(err.Error()))
				return
			}

			uid, err := ent.CreateEvent(r.Context(), blankEvent)
			if err != nil {
				writeEventError(w, err)
				return
			}
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(uid))
		}))

	// modify an event, one occurrence of it, or it and everything after
	muxer.HandleFunc("PATCH /calendar/{calendar_id}/events/{uid}", LoggingMiddleware(
		func(w http.ResponseWriter, r *http.Request) {
			ent := manager.Get(r.PathValue("calendar_id"))
			if ent == nil {
				w.WriteHeader(http.StatusNotFound)
				w.Write([]byte("Calendar not found"))
				return
			}

			var reqBody EventReqBody
			if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte("Invalid request body"))
				return
			}
			recurrenceRange, err := store.ParseRange(reqBody.Range)
			if err != nil {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(err.Error()))
				return
			}
			blankEvent, err := eventFromReqBody(as, &reqBody)
			if err != nil {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(err.Error()))
				return
			}

			uid, err := ent.UpdateEvent(r.Context(), r.PathValue("uid"), blankEvent, reqBody.RecurrenceID, recurrenceRange)
			if err != nil {
				writeEventError(w, err)
				return
			}
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(uid))
		}))

	// delete an event, one occurrence of it, or it and everything after
	muxer.HandleFunc("DELETE /calendar/{calendar_id}/events/{uid}", LoggingMiddleware(
		func(w http.ResponseWriter, r *http.Request) {
			ent := manager.Get(r.PathValue("calendar_id"))
			if ent == nil {
				w.WriteHeader(http.StatusNotFound)
				w.Write([]byte("Calendar not found"))
				return
			}
			recurrenceRange, err := store.ParseRange(r.URL.Query().Get("range"))
			if err != nil {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(err.Error()))
				return
			}
			if err := ent.DeleteEvent(
				r.Context(),
				r.PathValue("uid"),
				r.URL.Query().Get("recurrenceId"),
				recurrenceRange,
			); err != nil {
				writeEventError(w, err)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))

	// force a refresh of a remote calendar
	muxer.HandleFunc("POST /calendar/{calendar_id}/refresh", LoggingMiddleware(
		func(w http.ResponseWriter, r *http.Request) {
			ent := manager.Get(r.PathValue("calendar_id"))
			if ent == nil {
				w.WriteHeader(http.StatusNotFound)
				w.Write([]byte("Calendar not found"))
				return
			}
			if !ent.IsRemote() {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte("Calendar is not a remote one"))
				return
			}

			updated, err := manager.RefreshOne(r.Context(), ent)
			if err != nil {
				var customErr *ical.CustomError
				if errors.As(err, &customErr) {
					select {
					case as.MetricChans.ParseFailure <- struct{}{}:
					default:
					}
				}
				w.WriteHeader(http.StatusBadGateway)
				w.Write([]byte("Can't refresh calendar"))
				slog.Error("can't refresh calendar", "calendarID", ent.ID(), "error", err)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			if err := json.NewEncoder(w).Encode(map[string]bool{"updated": updated}); err != nil {
				slog.Warn("can't encode response body", "where", "route/calendar.go", "error", err)
			}
		}))
}

type EventReqBody struct {
	Summary          string `json:"summary"`
	Description      string `json:"description"`
	Location         string `json:"location"`
	Url              string `json:"url"`
	StartDateUnixUTC int64  `json:"startDateUnixUTC"`
	EndDateUnixUTC   int64  `json:"endDateUnixUTC"`
	StartText        string `json:"startText"`
	EndText          string `json:"endText"`
	WholeDay         bool   `json:"wholeDay"`
	RRule            string `json:"rrule"`
	RecurrenceID     string `json:"recurrenceId"`
	Range            string `json:"range"`
}

// Turn a request body into a blank event, resolving natural-language
// dates against the configured timezone when the unix fields are unset
func eventFromReqBody(as *utils.AppState, reqBody *EventReqBody) (*event.UndecidedEvent, error) {
	loc := as.Config.GetLocation()

	resolveDate := func(unixUTC int64, naturalText string, fieldName string) (icalutils.CalDateTime, error) {
		var resolved time.Time
		switch {
		case unixUTC != 0:
			resolved = time.Unix(unixUTC, 0).In(loc)
		case naturalText != "":
			result, err := as.When.Parse(naturalText, time.Now().In(loc))
			switch {
			case err != nil:
				return icalutils.CalDateTime{}, ical.NewCustomError("can't parse date text", map[string]any{
					"field": fieldName,
					"text":  naturalText,
					"error": err.Error(),
				})
			case result == nil:
				return icalutils.CalDateTime{}, ical.NewCustomError("date text not understood", map[string]any{
					"field": fieldName,
					"text":  naturalText,
				})
			}
			resolved = result.Time
		default:
			return icalutils.CalDateTime{}, ical.NewCustomError("missing date", map[string]any{
				"field": fieldName,
			})
		}
		if reqBody.WholeDay {
			return icalutils.NewDate(resolved.Year(), resolved.Month(), resolved.Day()), nil
		}
		return icalutils.NewDateTime(resolved), nil
	}

	startDate, err := resolveDate(reqBody.StartDateUnixUTC, reqBody.StartText, "start")
	if err != nil {
		return nil, err
	}
	endDate, err := resolveDate(reqBody.EndDateUnixUTC, reqBody.EndText, "end")
	if err != nil {
		return nil, err
	}

	blankEvent := event.NewUndecidedEvent()
	blankEvent.
		SetSummary(utils.CleanupString(reqBody.Summary)).
		SetDescription(utils.CleanupString(reqBody.Description)).
		SetLocation(utils.CleanupString(reqBody.Location)).
		SetURL(reqBody.Url).
		SetStartDate(startDate).
		SetEndDate(endDate)
	if reqBody.RRule != "" {
		blankEvent.SetRRule(reqBody.RRule)
	}
	return &blankEvent, nil
}

func writeEventError(w http.ResponseWriter, err error) {
	var validationErr *store.ValidationError
	switch {
	case errors.As(err, &validationErr), errors.Is(err, store.ErrInvalidRange):
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(err.Error()))
	case errors.Is(err, store.ErrEventNotFound):
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("Event not found"))
	case errors.Is(err, store.ErrDuplicateUID):
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte("Event ID already exists"))
	case errors.Is(err, entity.ErrReadOnly):
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte("Calendar is read-only"))
	default:
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("Internal Server Error"))
		slog.Error("event mutation failed", "error", err)
	}
}
