// Package scheduler periodically refreshes every URL-backed calendar.
// Each cycle fans the remote entities out to a small worker pool; one
// slow or broken feed only costs its own slot, never the whole cycle.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"lcal/src-server/entity"
	"lcal/src-server/utils"

	"github.com/robfig/cron/v3"
)

const (
	WORKER_COUNT   = 4
	REFRESH_BUDGET = 5 * time.Minute
)

// Start the refresh cron. The first cycle runs right away so remote
// calendars are fresh shortly after boot, not one interval later.
func CalendarUpdate(as *utils.AppState, manager *entity.Manager) {
	runCycle := func() {
		refreshAll(as, manager)
	}

	c := cron.New()
	if _, err := c.AddFunc(as.Config.GetCalendarSyncCron(), runCycle); err != nil {
		slog.Error("invalid CALENDAR_SYNC_CRON, remote calendars will not refresh",
			"spec", as.Config.GetCalendarSyncCron(), "error", err)
		return
	}
	c.Start()
	go runCycle()

	go func() {
		gracefulShutdownCh := as.CreateGracefulShutdownChan()
		<-gracefulShutdownCh
		<-c.Stop().Done()
	}()
}

func refreshAll(as *utils.AppState, manager *entity.Manager) {
	remotes := make([]*entity.Entity, 0)
	for _, ent := range manager.List() {
		if ent.IsRemote() {
			remotes = append(remotes, ent)
		}
	}
	if len(remotes) == 0 {
		return
	}

	jobs := make(chan *entity.Entity, len(remotes))
	var wg sync.WaitGroup

	for range WORKER_COUNT {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ent := range jobs {
				ctx, cancel := context.WithTimeout(context.Background(), REFRESH_BUDGET)
				started := time.Now()
				changed, err := manager.RefreshOne(ctx, ent)
				cancel()

				if err != nil {
					slog.Warn("can't refresh calendar", "id", ent.ID(), "url", ent.URL(), "error", err)
					select {
					case as.MetricChans.RefreshFailure <- struct{}{}:
					default:
					}
					continue
				}
				select {
				case as.MetricChans.CalendarRefresh <- float64(time.Since(started).Microseconds()):
				default:
				}
				if changed {
					slog.Info("calendar refreshed", "id", ent.ID(), "events", ent.EventCount())
				}
			}
		}()
	}

	for _, ent := range remotes {
		jobs <- ent
	}
	close(jobs)
	wg.Wait()
}
