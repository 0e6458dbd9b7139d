package entity

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"lcal/src-server/model"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Manager owns every calendar entity of the process: it builds them
// from the registry at startup, registers/unregisters them at runtime,
// and hands the remote ones to the refresh scheduler. Each entity stays
// fully independent; the manager never coordinates across them.
type Manager struct {
	mu sync.RWMutex

	dataDir string
	prodID  string
	loc     *time.Location
	db      *bun.DB
	// shared across refresh cycles; each refresh scopes its own
	// request/response pair
	client *http.Client

	entities map[string]*Entity
}

func NewManager(db *bun.DB, dataDir string, loc *time.Location, prodID string) *Manager {
	return &Manager{
		dataDir:  dataDir,
		prodID:   prodID,
		loc:      loc,
		db:       db,
		client:   &http.Client{Timeout: time.Minute},
		entities: make(map[string]*Entity),
	}
}

func (m *Manager) Client() *http.Client {
	return m.client
}

func (m *Manager) icsPath(id string) string {
	return filepath.Join(m.dataDir, id+".ics")
}

// Build one entity per registry row. A calendar whose persisted file no
// longer parses is skipped with a log entry instead of taking the whole
// service down.
func (m *Manager) LoadFromRegistry(ctx context.Context) error {
	rows := []model.Calendar{}
	if err := m.db.NewSelect().
		Model(&rows).
		Scan(ctx); err != nil {
		return fmt.Errorf("Manager.LoadFromRegistry: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range rows {
		st := NewFileStore(m.icsPath(row.ID))
		var (
			ent *Entity
			err error
		)
		if row.IsRemote() {
			ent, err = NewRemote(ctx, row.ID, row.Name, row.Url, row.ETag, st, m.loc, m.prodID)
		} else {
			ent, err = New(ctx, row.ID, row.Name, st, m.loc, m.prodID)
		}
		if err != nil {
			slog.Error("can't load calendar, skipping", "id", row.ID, "name", row.Name, "error", err)
			continue
		}
		m.entities[row.ID] = ent
	}
	return nil
}

// Register a new calendar: a row in the registry plus a fresh entity.
// Remote calendars are fetched right away so a bad URL surfaces to the
// caller instead of a silent empty calendar.
func (m *Manager) CreateCalendar(ctx context.Context, name, url string) (*Entity, error) {
	if name == "" {
		return nil, fmt.Errorf("Manager.CreateCalendar: name is required")
	}

	id := uuid.NewString()
	st := NewFileStore(m.icsPath(id))
	var (
		ent *Entity
		err error
	)
	if url != "" {
		ent, err = NewRemote(ctx, id, name, url, "", st, m.loc, m.prodID)
		if err == nil {
			_, err = ent.Refresh(ctx, m.client)
		}
	} else {
		ent, err = New(ctx, id, name, st, m.loc, m.prodID)
	}
	if err != nil {
		return nil, err
	}

	row := model.Calendar{
		ID:     id,
		Name:   name,
		Url:    url,
		ETag:   ent.ETag(),
		ProdID: m.prodID,
	}
	if err := row.Upsert(ctx, m.db); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.entities[id] = ent
	m.mu.Unlock()
	return ent, nil
}

// Unregister a calendar and remove its persisted file
func (m *Manager) RemoveCalendar(ctx context.Context, id string) error {
	m.mu.Lock()
	ent, ok := m.entities[id]
	delete(m.entities, id)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("Manager.RemoveCalendar: no calendar with id %s", id)
	}

	if _, err := m.db.NewDelete().
		Model((*model.Calendar)(nil)).
		Where("id = ?", id).
		Exec(ctx); err != nil {
		return fmt.Errorf("Manager.RemoveCalendar: %w", err)
	}

	if st, ok := ent.store.(*FileStore); ok {
		if err := st.Remove(); err != nil {
			slog.Warn("can't remove calendar file", "id", id, "error", err)
		}
	}
	return nil
}

// Get an entity by calendar id, nil when absent
func (m *Manager) Get(id string) *Entity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.entities[id]
}

// All entities, ordered by name then id for stable listings
func (m *Manager) List() []*Entity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Entity, 0, len(m.entities))
	for _, ent := range m.entities {
		out = append(out, ent)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name() != out[j].Name() {
			return out[i].Name() < out[j].Name()
		}
		return out[i].ID() < out[j].ID()
	})
	return out
}

// Refresh one remote entity and persist its new entity tag. Reports
// whether anything changed.
func (m *Manager) RefreshOne(ctx context.Context, ent *Entity) (bool, error) {
	changed, err := ent.Refresh(ctx, m.client)
	if err != nil {
		return false, err
	}
	if changed {
		if err := model.UpdateCalendarETag(ctx, m.db, ent.ID(), ent.ETag()); err != nil {
			slog.Warn("can't persist etag", "id", ent.ID(), "error", err)
		}
	}
	return changed, nil
}
