package utils

import (
	"database/sql"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"
)

type AppState struct {
	Config *Config
	RawDB  *sql.DB
	BunDB  *bun.DB
	When   *when.Parser

	MetricChans *Metric

	// main waits on this for Ctrl+C / SIGTERM
	AppCloseSignalChan chan os.Signal

	shutdownMutex sync.Mutex
	shutdownChans []chan struct{}
}

func NewAppState() *AppState {
	as := &AppState{
		AppCloseSignalChan: make(chan os.Signal, 1),
		MetricChans:        NewMetric(),
	}

	// env
	as.Config = NewConfig()

	// natural language date parser
	as.When = when.New(nil)
	as.When.Add(en.All...)
	as.When.Add(common.All...)

	// database
	if err := os.MkdirAll(as.Config.GetDataDir(), 0o700); err != nil {
		slog.Error("cannot create data dir", "dir", as.Config.GetDataDir(), "error", err)
		os.Exit(1)
	}
	dbPath := filepath.Join(as.Config.GetDataDir(), "registry.db")
	var err error
	as.RawDB, err = sql.Open(sqliteshim.ShimName, dbPath+"?mode=rwc")
	if err != nil {
		slog.Error("cannot open sqlite database", "path", dbPath, "error", err)
		os.Exit(1)
	}
	as.RawDB.SetMaxIdleConns(8)

	as.BunDB = bun.NewDB(as.RawDB, sqlitedialect.New())
	as.BunDB.AddQueryHook(bundebug.NewQueryHook(
		bundebug.FromEnv("BUNDEBUG"),
	))

	return as
}

// Get a channel that closes when the app is shutting down; every
// long-running goroutine takes one and drains itself on close
func (as *AppState) CreateGracefulShutdownChan() <-chan struct{} {
	ch := make(chan struct{})
	as.shutdownMutex.Lock()
	as.shutdownChans = append(as.shutdownChans, ch)
	as.shutdownMutex.Unlock()
	return ch
}

// Fan the shutdown signal out to everyone holding a shutdown channel
func (as *AppState) GracefulShutdown() {
	as.shutdownMutex.Lock()
	defer as.shutdownMutex.Unlock()
	for _, ch := range as.shutdownChans {
		close(ch)
	}
	as.shutdownChans = nil
}
