package entity

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"lcal/src-server/ical"
)

// Fetch the remote calendar with a conditional GET and, when it
// changed, replace the aggregate and its persisted form. "Not modified"
// is a successful no-op. Any failure (transport, status, parse,
// persist) leaves the previous aggregate in force: stale-but-available
// beats unavailable. Reports whether the aggregate was replaced.
func (e *Entity) Refresh(ctx context.Context, client *http.Client) (bool, error) {
	if !e.IsRemote() {
		return false, nil
	}
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.url, nil)
	if err != nil {
		return false, fmt.Errorf("entity %s: can't create request: %w", e.id, err)
	}
	if etag := e.ETag(); etag != "" {
		req.Header.Set("If-None-Match", etag)
	}

	resp, err := client.Do(req)
	if err != nil {
		return false, fmt.Errorf("entity %s: fetch failed: %w", e.id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		return false, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return false, fmt.Errorf("entity %s: fetch failed: status %d", e.id, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, fmt.Errorf("entity %s: can't read response: %w", e.id, err)
	}

	cal, parseErr := ical.FromIcal(string(body))
	if parseErr != nil {
		return false, fmt.Errorf("entity %s: %w", e.id, parseErr)
	}
	cal.SetProdID(e.prodID)
	if cal.GetName() == "" {
		cal.SetName(e.name)
	}
	content, serErr := cal.ToIcal()
	if serErr != nil {
		return false, fmt.Errorf("entity %s: %w", e.id, serErr)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.store.Store(ctx, content); err != nil {
		return false, fmt.Errorf("entity %s: %w", e.id, err)
	}
	e.cal = cal
	e.etag = resp.Header.Get("ETag")
	return true, nil
}
