package mission

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/pedrabranca/geoquest/internal/events"
)

// Subscription identifies a listener registered with Manager.On.
type Subscription = events.Subscription[EventKind]

// Listener receives mission events.
type Listener = events.Listener[Event]

// Manager holds the mission catalog, the current-mission cursor and the
// lifecycle event bus. It does not enforce lifecycle ordering: missions may
// be completed without being started, and completed any number of times.
type Manager struct {
	mu       sync.RWMutex
	missions []Mission
	current  *ID

	bus    *events.Bus[EventKind, Event]
	logger *slog.Logger
}

// NewManager creates an empty Manager. busOpts configure the event bus.
func NewManager(logger *slog.Logger, busOpts ...events.Option) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}

	opts := append([]events.Option{events.Named("mission")}, busOpts...)
	bus, err := events.New[EventKind, Event](logger, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating mission bus: %w", err)
	}

	return &Manager{
		bus:    bus,
		logger: logger,
	}, nil
}

// Init prepares the manager. It performs no I/O beyond logging and always
// succeeds.
func (m *Manager) Init(ctx context.Context) error {
	m.logger.InfoContext(ctx, "Mission manager initialized")
	return nil
}

// LoadMissions replaces the catalog with missions, preserving order.
// Duplicate ids are accepted; lookups return the first match.
func (m *Manager) LoadMissions(missions []Mission) {
	catalog := slices.Clone(missions)

	seen := make(map[ID]struct{}, len(catalog))
	for _, ms := range catalog {
		if _, dup := seen[ms.ID]; dup {
			m.logger.Warn("Duplicate mission id in catalog, first entry wins", "id", ms.ID)
			continue
		}
		seen[ms.ID] = struct{}{}
	}

	m.mu.Lock()
	m.missions = catalog
	m.mu.Unlock()

	m.logger.Info("Missions loaded", "count", len(catalog))
}

// Missions returns a copy of the catalog.
func (m *Manager) Missions() []Mission {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.missions)
}

// StartMission moves the cursor to id, whether or not such a mission
// exists. A MissionStart event is emitted only when the mission is in the
// catalog; the return value reports whether it was.
func (m *Manager) StartMission(id ID) bool {
	m.mu.Lock()
	m.current = &id
	ms, found := m.lookup(id)
	m.mu.Unlock()

	if !found {
		m.logger.Debug("Start requested for unknown mission", "id", id)
		return false
	}

	m.logger.Info("Mission started", "id", id, "name", ms.Name)
	_ = m.Emit(MissionStart{ID: id})
	return true
}

// CompleteMission emits MissionComplete when id is in the catalog. The
// cursor and the catalog are left unchanged, so a mission can be completed
// repeatedly.
func (m *Manager) CompleteMission(id ID) bool {
	m.mu.RLock()
	ms, found := m.lookup(id)
	m.mu.RUnlock()

	if !found {
		m.logger.Debug("Completion requested for unknown mission", "id", id)
		return false
	}

	m.logger.Info("Mission completed", "id", id, "name", ms.Name)
	_ = m.Emit(MissionComplete{ID: id})
	return true
}

// CurrentID returns the cursor. ok is false until StartMission is called.
func (m *Manager) CurrentID() (ID, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return 0, false
	}
	return *m.current, true
}

// CurrentMission returns the mission the cursor points at. ok is false when
// no mission was started or the cursor names an id missing from the catalog.
func (m *Manager) CurrentMission() (Mission, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return Mission{}, false
	}
	return m.lookup(*m.current)
}

// Mission returns the first mission in the catalog with the given id.
func (m *Manager) Mission(id ID) (Mission, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lookup(id)
}

// lookup must be called with mu held.
func (m *Manager) lookup(id ID) (Mission, bool) {
	for _, ms := range m.missions {
		if ms.ID == id {
			return ms, true
		}
	}
	return Mission{}, false
}

// On registers fn for every future event of the given kind.
func (m *Manager) On(kind EventKind, fn Listener) Subscription {
	return m.bus.On(kind, fn)
}

// Off removes a registration made with On. Unknown subscriptions are a no-op.
func (m *Manager) Off(sub Subscription) bool {
	return m.bus.Off(sub)
}

// Emit delivers e synchronously to its listeners in registration order.
// A failing listener is logged and does not prevent delivery to the others;
// the failures are returned joined.
func (m *Manager) Emit(e Event) error {
	return m.bus.Emit(e)
}

// ListenerCount returns the number of listeners registered for kind.
func (m *Manager) ListenerCount(kind EventKind) int {
	return m.bus.Count(kind)
}

// Cleanup removes every listener. The catalog and cursor are kept.
func (m *Manager) Cleanup() {
	m.bus.Clear()
	m.logger.Debug("Mission listeners cleared")
}
