package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lcal/src-server/entity"
	"lcal/src-server/metric"
	"lcal/src-server/model"
	"lcal/src-server/route"
	"lcal/src-server/scheduler"
	"lcal/src-server/utils"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func init() {
	if err := godotenv.Load(); err != nil {
		slog.Info(err.Error())
	}
	slog.SetDefault(slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      slog.LevelDebug,
			TimeFormat: time.RFC1123Z,
		}),
	))
}

func main() {
	as := utils.NewAppState()

	if err := model.CreateSchema(context.Background(), as.BunDB); err != nil {
		slog.Error("can't create database schema", "error", err)
		os.Exit(1)
	}

	manager := entity.NewManager(
		as.BunDB,
		as.Config.GetDataDir(),
		as.Config.GetLocation(),
		as.Config.GetProdID(),
	)
	if err := manager.LoadFromRegistry(context.Background()); err != nil {
		slog.Error("can't load calendars from registry", "error", err)
		os.Exit(1)
	}
	slog.Info("calendars loaded", "count", len(manager.List()))

	go metric.Init(as, manager)
	scheduler.CalendarUpdate(as, manager)

	// http server
	go func() {
		muxer := http.NewServeMux()
		muxer.Handle("GET /metrics", promhttp.Handler())
		route.Ical(muxer, as, manager)
		route.Calendar(muxer, as, manager)
		if err := http.ListenAndServe(":"+as.Config.GetPort(), muxer); err != nil {
			slog.Error("cannot start HTTP server", "error", err)
			as.AppCloseSignalChan <- syscall.SIGTERM
		}
	}()

	slog.Info("app is now running, press Ctrl+C to exit", "port", as.Config.GetPort())

	signal.Notify(as.AppCloseSignalChan, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-as.AppCloseSignalChan
	as.GracefulShutdown()

	slog.Info("Gracefully shutting down...")
}
