package route

import (
	"io"
	"log/slog"
	"net/http"

	"lcal/src-server/entity"
	"lcal/src-server/utils"
)

func Ical(muxer *http.ServeMux, as *utils.AppState, manager *entity.Manager) {
	// export a calendar as raw ics; remote ones redirect to their source
	muxer.HandleFunc("GET /ical/{calendar_id}", LoggingMiddleware(
		func(w http.ResponseWriter, r *http.Request) {
			ent := manager.Get(r.PathValue("calendar_id"))
			if ent == nil {
				w.WriteHeader(http.StatusNotFound)
				w.Write([]byte("Calendar not found"))
				return
			}

			if ent.IsRemote() {
				http.Redirect(w, r, ent.URL(), http.StatusFound)
				return
			}

			icsText, err := ent.Export()
			if err != nil {
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte("Can't serialize calendar"))
				slog.Error("can't serialize calendar", "calendarID", ent.ID(), "error", err)
				return
			}

			w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
			w.WriteHeader(http.StatusOK)
			if _, err := io.WriteString(w, icsText); err != nil {
				slog.Warn("can't write to response", "where", "route/ical.go", "error", err)
			}
		}))
}
