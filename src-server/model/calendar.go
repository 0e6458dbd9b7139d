package model

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/uptrace/bun"
)

// One registered calendar. The event data itself lives in an .ics file
// under the data dir; this row only records which calendars exist and
// how to refresh the remote ones.
type Calendar struct {
	bun.BaseModel `bun:"table:calendars"`

	ID     string `bun:"id,pk,notnull"`
	Name   string `bun:"name,notnull"`
	Url    string `bun:"url"`
	ETag   string `bun:"etag"`
	ProdID string `bun:"prod_id"`

	CreatedAt int64 `bun:"created_at,notnull"`
	UpdatedAt int64 `bun:"updated_at"`
}

// Whether the calendar is backed by a remote URL instead of local edits
func (c *Calendar) IsRemote() bool {
	return c.Url != ""
}

// Upsert the calendar to the database
func (c *Calendar) Upsert(ctx context.Context, db bun.IDB) error {
	// validate
	switch {
	case c.ID == "":
		return fmt.Errorf("Calendar.Upsert: id is required")
	case c.Name == "":
		return fmt.Errorf("Calendar.Upsert: name is required")
	case c.Url != "":
		if _, err := url.ParseRequestURI(c.Url); err != nil {
			return fmt.Errorf("Calendar.Upsert: url is invalid: %w", err)
		}
	}
	if c.CreatedAt == 0 {
		c.CreatedAt = time.Now().UTC().Unix()
	}
	c.UpdatedAt = time.Now().UTC().Unix()

	// upsert
	if _, err := db.NewInsert().
		Model(c).
		On("CONFLICT (id) DO UPDATE").
		Set("name = EXCLUDED.name").
		Set("url = EXCLUDED.url").
		Set("etag = EXCLUDED.etag").
		Set("prod_id = EXCLUDED.prod_id").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx); err != nil {
		return fmt.Errorf("Calendar.Upsert: can't upsert calendar: %w", err)
	}

	return nil
}

// Persist a freshly negotiated entity tag after a remote refresh
func UpdateCalendarETag(ctx context.Context, db bun.IDB, id string, etag string) error {
	if id == "" {
		return fmt.Errorf("UpdateCalendarETag: id is required")
	}
	if _, err := db.NewUpdate().
		Model((*Calendar)(nil)).
		Set("etag = ?", etag).
		Set("updated_at = ?", time.Now().UTC().Unix()).
		Where("id = ?", id).
		Exec(ctx); err != nil {
		return fmt.Errorf("UpdateCalendarETag: %w", err)
	}
	return nil
}
