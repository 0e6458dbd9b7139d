package utils

import (
	"log/slog"
	"os"
	"time"
)

type Config struct {
	port    string
	dataDir string

	location         *time.Location
	calendarSyncCron string
	prodID           string
}

func NewConfig() *Config {
	return &Config{
		port: func() string {
			port := os.Getenv("PORT")
			if port == "" {
				port = "8080"
			}
			slog.Debug("env", "PORT", port)
			return port
		}(),

		dataDir: func() string {
			dataDir := os.Getenv("DATA_DIR")
			if dataDir == "" {
				dataDir = "./data"
			}
			slog.Debug("env", "DATA_DIR", dataDir)
			return dataDir
		}(),

		location: func() *time.Location {
			timezoneStr := os.Getenv("TIMEZONE")
			var loc *time.Location
			var err error
			switch timezoneStr {
			case "":
				slog.Warn("TIMEZONE is not set, using local timezone", "timezone", time.Local)
				loc = time.Local
			case "UTC":
				loc = time.UTC
			default:
				loc, err = time.LoadLocation(timezoneStr)
				if err != nil {
					slog.Error("invalid timezone", "timezone", timezoneStr, "error", err)
					os.Exit(1)
				}
			}
			slog.Debug("env", "TIMEZONE", timezoneStr)
			return loc
		}(),

		calendarSyncCron: func() string {
			calendarSyncCron := os.Getenv("CALENDAR_SYNC_CRON")
			if calendarSyncCron == "" {
				calendarSyncCron = "@every 6h"
			}
			slog.Debug("env", "CALENDAR_SYNC_CRON", calendarSyncCron)
			return calendarSyncCron
		}(),

		prodID: func() string {
			prodID := os.Getenv("PRODID")
			if prodID == "" {
				prodID = "-//lcal//local calendar 1.0//EN"
			}
			slog.Debug("env", "PRODID", prodID)
			return prodID
		}(),
	}
}

// Get the HTTP port the server listens on
func (c *Config) GetPort() string {
	return c.port
}

// Get the directory holding the persisted .ics files and the registry db
func (c *Config) GetDataDir() string {
	return c.dataDir
}

// Get the display timezone for occurrence queries
func (c *Config) GetLocation() *time.Location {
	return c.location
}

// Get the cron spec driving remote calendar refresh
func (c *Config) GetCalendarSyncCron() string {
	return c.calendarSyncCron
}

// Get the product identifier stamped into serialized calendars
func (c *Config) GetProdID() string {
	return c.prodID
}
