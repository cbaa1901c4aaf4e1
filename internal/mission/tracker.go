package mission

import (
	"maps"
	"sync"
)

// Status is the observed lifecycle state of a mission.
type Status int

const (
	StatusUnstarted Status = iota
	StatusStarted
	StatusCompleted
)

func (s Status) String() string {
	switch s {
	case StatusUnstarted:
		return "unstarted"
	case StatusStarted:
		return "started"
	case StatusCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// ParseStatus is the inverse of Status.String. Unknown values map to
// StatusUnstarted.
func ParseStatus(s string) Status {
	switch s {
	case "started":
		return StatusStarted
	case "completed":
		return StatusCompleted
	default:
		return StatusUnstarted
	}
}

// Progress is the tracked state of one mission.
type Progress struct {
	Status      Status
	Completions int
}

// Tracker follows a Manager's events and records per-mission status.
// In strict mode CanStart and CanComplete enforce
// unstarted → started → completed; otherwise they always allow.
type Tracker struct {
	mu       sync.RWMutex
	progress map[ID]Progress
	strict   bool
	onChange func(ID, Progress)

	manager *Manager
	subs    []Subscription
}

// NewTracker subscribes to m's events. onChange, if set, runs after every
// recorded transition.
func NewTracker(m *Manager, strict bool, onChange func(ID, Progress)) *Tracker {
	t := &Tracker{
		progress: make(map[ID]Progress),
		strict:   strict,
		onChange: onChange,
		manager:  m,
	}

	t.subs = append(t.subs,
		m.On(KindMissionStart, func(e Event) error {
			t.record(e.MissionID(), func(p *Progress) { p.Status = StatusStarted })
			return nil
		}),
		m.On(KindMissionComplete, func(e Event) error {
			t.record(e.MissionID(), func(p *Progress) {
				p.Status = StatusCompleted
				p.Completions++
			})
			return nil
		}),
	)

	return t
}

func (t *Tracker) record(id ID, update func(*Progress)) {
	t.mu.Lock()
	p := t.progress[id]
	update(&p)
	t.progress[id] = p
	t.mu.Unlock()

	if t.onChange != nil {
		t.onChange(id, p)
	}
}

// Status returns the recorded status of id.
func (t *Tracker) Status(id ID) Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.progress[id].Status
}

// Progress returns the recorded progress of id.
func (t *Tracker) Progress(id ID) Progress {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.progress[id]
}

// Strict reports whether transition checks are enforced.
func (t *Tracker) Strict() bool {
	return t.strict
}

// CanStart reports whether id may be started.
func (t *Tracker) CanStart(id ID) bool {
	if !t.strict {
		return true
	}
	return t.Status(id) == StatusUnstarted
}

// CanComplete reports whether id may be completed.
func (t *Tracker) CanComplete(id ID) bool {
	if !t.strict {
		return true
	}
	return t.Status(id) == StatusStarted
}

// Snapshot returns a copy of all recorded progress.
func (t *Tracker) Snapshot() map[ID]Progress {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return maps.Clone(t.progress)
}

// Restore replaces recorded progress, e.g. with state loaded from storage.
func (t *Tracker) Restore(progress map[ID]Progress) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.progress = maps.Clone(progress)
	if t.progress == nil {
		t.progress = make(map[ID]Progress)
	}
}

// Detach unsubscribes from the manager.
func (t *Tracker) Detach() {
	for _, sub := range t.subs {
		t.manager.Off(sub)
	}
	t.subs = nil
}
