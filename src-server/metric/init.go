package metric

import (
	"log/slog"
	"time"

	"lcal/src-server/entity"
	"lcal/src-server/utils"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func Init(as *utils.AppState, manager *entity.Manager) {
	clearInterval := 15 * time.Minute
	pollInterval := time.Minute

	calendarRefresh(as, &clearInterval)
	refreshFailures(as)
	parseFailures(as)
	calendarCount(as, manager, &pollInterval)
}

func parseFailures(as *utils.AppState) {
	parseFailures := promauto.NewCounter(prometheus.CounterOpts{
		Name: "lcal_ics_parse_failures_total",
		Help: "The number of iCalendar payloads rejected by the parser",
	})
	if err := prometheus.Register(parseFailures); err != nil {
		if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
			slog.Error("can't register lcal_ics_parse_failures_total metric", "error", err)
		}
	} else {
		slog.Debug("lcal_ics_parse_failures_total metric registered")
	}
	go func() {
		gracefulShutdownCh := as.CreateGracefulShutdownChan()
		for {
			select {
			case <-gracefulShutdownCh:
				switch prometheus.Unregister(parseFailures) {
				case true:
					slog.Debug("lcal_ics_parse_failures_total metric unregistered")
				case false:
					slog.Warn("lcal_ics_parse_failures_total metric not registered")
				}
				return
			case <-as.MetricChans.ParseFailure:
				parseFailures.Inc()
			}
		}
	}()
}

func calendarRefresh(as *utils.AppState, clearTickerInterval *time.Duration) {
	calendarRefresh := promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lcal_calendar_refresh_microsec",
		Help: "The latency of the last remote calendar refresh in microseconds",
	})
	good := true
	if err := prometheus.Register(calendarRefresh); err != nil {
		if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
			slog.Error("can't register lcal_calendar_refresh_microsec metric", "error", err)
			good = false
		}
	}
	if good {
		slog.Debug("lcal_calendar_refresh_microsec metric registered")
		calendarRefresh.Set(0)
	}
	go func() {
		gracefulShutdownCh := as.CreateGracefulShutdownChan()
		clearTicker := time.NewTicker(*clearTickerInterval)
		defer clearTicker.Stop()
		for {
			select {
			case <-gracefulShutdownCh:
				switch prometheus.Unregister(calendarRefresh) {
				case true:
					slog.Debug("lcal_calendar_refresh_microsec metric unregistered")
				case false:
					slog.Warn("lcal_calendar_refresh_microsec metric not registered")
				}
				return
			case latency := <-as.MetricChans.CalendarRefresh:
				calendarRefresh.Set(latency)
				clearTicker.Reset(*clearTickerInterval)
			case <-clearTicker.C:
				calendarRefresh.Set(0)
			}
		}
	}()
}

func refreshFailures(as *utils.AppState) {
	refreshFailures := promauto.NewCounter(prometheus.CounterOpts{
		Name: "lcal_calendar_refresh_failures_total",
		Help: "The number of failed remote calendar refreshes",
	})
	if err := prometheus.Register(refreshFailures); err != nil {
		if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
			slog.Error("can't register lcal_calendar_refresh_failures_total metric", "error", err)
		}
	} else {
		slog.Debug("lcal_calendar_refresh_failures_total metric registered")
	}
	go func() {
		gracefulShutdownCh := as.CreateGracefulShutdownChan()
		for {
			select {
			case <-gracefulShutdownCh:
				switch prometheus.Unregister(refreshFailures) {
				case true:
					slog.Debug("lcal_calendar_refresh_failures_total metric unregistered")
				case false:
					slog.Warn("lcal_calendar_refresh_failures_total metric not registered")
				}
				return
			case <-as.MetricChans.RefreshFailure:
				refreshFailures.Inc()
			}
		}
	}()
}

func calendarCount(as *utils.AppState, manager *entity.Manager, tickerInterval *time.Duration) {
	calendarCount := promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lcal_calendars",
		Help: "The number of registered calendars",
	})
	good := true
	if err := prometheus.Register(calendarCount); err != nil {
		if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
			slog.Error("can't register lcal_calendars metric", "error", err)
			good = false
		}
	}
	if good {
		slog.Debug("lcal_calendars metric registered")
		calendarCount.Set(float64(len(manager.List())))
	}
	go func() {
		gracefulShutdownCh := as.CreateGracefulShutdownChan()
		ticker := time.NewTicker(*tickerInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gracefulShutdownCh:
				switch prometheus.Unregister(calendarCount) {
				case true:
					slog.Debug("lcal_calendars metric unregistered")
				case false:
					slog.Warn("lcal_calendars metric not registered")
				}
				return
			case <-ticker.C:
				calendarCount.Set(float64(len(manager.List())))
			}
		}
	}()
}
