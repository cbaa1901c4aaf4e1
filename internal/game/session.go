// Package game runs one player's session: it turns location fixes into
// mission starts and completions, keeps the player's progress, and pushes
// navigation hints and haptic cues back to the client.
package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/pedrabranca/geoquest/internal/config"
	"github.com/pedrabranca/geoquest/internal/events"
	"github.com/pedrabranca/geoquest/internal/geo"
	"github.com/pedrabranca/geoquest/internal/mission"
	"github.com/pedrabranca/geoquest/internal/platform"
	"github.com/pedrabranca/geoquest/internal/timing"
	"github.com/pedrabranca/geoquest/pkg/protocol"
)

// Notifier delivers a message to the session's client. Send must be safe
// for concurrent use.
type Notifier interface {
	Send(msgType string, payload any)
}

// Recorder receives telemetry. Implemented by telemetry.Manager.
type Recorder interface {
	RecordLocation(session, player string, c geo.Coordinate, accuracy float64, inArea bool, at time.Time)
	RecordMissionEvent(session, player, event string, missionID int64, at time.Time)
}

// ProgressStore persists per-player progress. Implemented by
// storage.ProgressStore.
type ProgressStore interface {
	Save(ctx context.Context, player string, progress map[mission.ID]mission.Progress) error
	Load(ctx context.Context, player string) (map[mission.ID]mission.Progress, error)
}

// Request errors reported to the client.
var (
	ErrUnknownMission  = errors.New("unknown mission")
	ErrAlreadyStarted  = errors.New("mission already started")
	ErrNotStarted      = errors.New("mission not started")
	ErrInvalidLocation = errors.New("invalid location")
)

// Fix is one position report.
type Fix struct {
	Position geo.Coordinate
	Accuracy float64
	Heading  *float64
	At       time.Time
}

// Deps are the collaborators of a Session. Notifier is required; the rest
// are optional.
type Deps struct {
	ID       string
	Catalog  []mission.Mission
	Config   config.GameConfig
	Logger   *slog.Logger
	BusOpts  []events.Option
	Notifier Notifier
	Recorder Recorder
	Store    ProgressStore
	Now      func() time.Time
}

// Session is the game state of one connected player.
type Session struct {
	id       string
	cfg      config.GameConfig
	logger   *slog.Logger
	notifier Notifier
	recorder Recorder
	store    ProgressStore
	now      func() time.Time

	manager  *mission.Manager
	tracker  *mission.Tracker
	regions  map[mission.ID]geo.Region
	saver    *timing.Debouncer[struct{}]
	throttle *timing.Throttler[Fix]

	mu     sync.Mutex
	player string
	caps   platform.Capabilities
	inArea *bool
}

// NewSession builds a session over its own mission manager and loads the
// catalog into it.
func NewSession(ctx context.Context, deps Deps) (*Session, error) {
	if deps.Notifier == nil {
		return nil, fmt.Errorf("notifier is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	logger := deps.Logger.With("session", deps.ID)

	manager, err := mission.NewManager(logger, deps.BusOpts...)
	if err != nil {
		return nil, err
	}
	if err := manager.Init(ctx); err != nil {
		return nil, err
	}
	manager.LoadMissions(deps.Catalog)

	s := &Session{
		id:       deps.ID,
		cfg:      deps.Config,
		logger:   logger,
		notifier: deps.Notifier,
		recorder: deps.Recorder,
		store:    deps.Store,
		now:      deps.Now,
		manager:  manager,
		regions:  make(map[mission.ID]geo.Region),
	}

	for _, m := range manager.Missions() {
		if _, seen := s.regions[m.ID]; seen {
			continue
		}
		region, ok, err := m.Region(deps.Config.CompleteRadius)
		if err != nil {
			logger.Warn("Ignoring mission area", "id", m.ID, "error", err)
			continue
		}
		if ok {
			s.regions[m.ID] = region
		}
	}

	s.saver = timing.Debounce(func(struct{}) { s.saveProgress() }, deps.Config.SaveDebounce)
	s.throttle = timing.Throttle(s.handleFix, deps.Config.LocationThrottle)
	s.tracker = mission.NewTracker(manager, deps.Config.StrictLifecycle, func(mission.ID, mission.Progress) {
		s.saver.Call(struct{}{})
	})

	manager.On(mission.KindMissionStart, s.onMissionEvent)
	manager.On(mission.KindMissionComplete, s.onMissionEvent)

	return s, nil
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// Manager exposes the session's mission manager.
func (s *Session) Manager() *mission.Manager {
	return s.manager
}

// Player returns the player id given in Hello.
func (s *Session) Player() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.player
}

// Capabilities returns the device capabilities given in Hello.
func (s *Session) Capabilities() platform.Capabilities {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.caps
}

// Hello identifies the player, restores stored progress and sends the
// catalog and progress to the client.
func (s *Session) Hello(ctx context.Context, player string, caps platform.Capabilities) {
	s.mu.Lock()
	s.player = player
	s.caps = caps
	s.mu.Unlock()

	if s.store != nil && player != "" {
		progress, err := s.store.Load(ctx, player)
		if err != nil {
			s.logger.Error("Failed to load progress", "player", player, "error", err)
		} else {
			s.tracker.Restore(progress)
		}
	}

	s.logger.Info("Player joined", "player", player, "playable", caps.Playable())

	s.notifier.Send(protocol.TypeWelcome, protocol.WelcomePayload{
		SessionID: s.id,
		Playable:  caps.Playable(),
		Missing:   caps.Missing(),
	})
	s.SendMissions()
	s.SendProgress()
}

// SendMissions sends the catalog to the client.
func (s *Session) SendMissions() {
	s.notifier.Send(protocol.TypeMissions, protocol.MissionsPayload{Missions: MissionInfos(s.manager.Missions())})
}

// MissionInfos converts a catalog to its wire form.
func MissionInfos(missions []mission.Mission) []protocol.MissionInfo {
	infos := make([]protocol.MissionInfo, 0, len(missions))
	for _, m := range missions {
		info := protocol.MissionInfo{
			ID:          int64(m.ID),
			Name:        m.Name,
			Description: m.Description,
			Radius:      m.Radius,
			Payload:     []byte(m.Payload),
		}
		if m.Target != nil {
			lat, lng := m.Target.Lat, m.Target.Lng
			info.Lat = &lat
			info.Lng = &lng
		}
		infos = append(infos, info)
	}
	return infos
}

// SendProgress sends the player's progress ordered by mission id.
func (s *Session) SendProgress() {
	snapshot := s.tracker.Snapshot()
	ids := make([]mission.ID, 0, len(snapshot))
	for id := range snapshot {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	entries := make([]protocol.ProgressEntry, 0, len(ids))
	for _, id := range ids {
		p := snapshot[id]
		entries = append(entries, protocol.ProgressEntry{
			MissionID:   int64(id),
			Status:      p.Status.String(),
			Completions: p.Completions,
		})
	}
	s.notifier.Send(protocol.TypeProgress, protocol.ProgressPayload{Missions: entries})
}

// Progress returns a copy of the tracked progress.
func (s *Session) Progress() map[mission.ID]mission.Progress {
	return s.tracker.Snapshot()
}

// UpdateLocation feeds a fix through the location throttle. It reports
// whether the fix was processed. Invalid and inaccurate fixes are dropped
// before the throttle, so they never hold back the next good fix.
func (s *Session) UpdateLocation(fix Fix) bool {
	pos := fix.Position
	if !pos.Valid() {
		s.logger.Debug("Dropping invalid fix", "lat", pos.Lat, "lng", pos.Lng)
		s.notifier.Send(protocol.TypeError, protocol.ErrorPayload{
			For:     protocol.TypeLocation,
			Message: ErrInvalidLocation.Error(),
		})
		return false
	}
	if s.cfg.MaxAccuracy > 0 && fix.Accuracy > s.cfg.MaxAccuracy {
		s.logger.Debug("Dropping inaccurate fix", "accuracy", fix.Accuracy)
		return false
	}
	return s.throttle.Call(fix)
}

func (s *Session) handleFix(fix Fix) {
	pos := fix.Position
	if fix.At.IsZero() {
		fix.At = s.now()
	}

	inside := geo.IsInPedraBranca(pos.Lat, pos.Lng)
	s.updateGeofence(inside)

	if s.recorder != nil {
		s.recorder.RecordLocation(s.id, s.Player(), pos, fix.Accuracy, inside, fix.At)
	}

	if s.cfg.EnforceGeofence && !inside {
		return
	}

	s.evaluateTriggers(pos)
	s.sendNavigation(fix)
}

func (s *Session) updateGeofence(inside bool) {
	s.mu.Lock()
	changed := s.inArea == nil || *s.inArea != inside
	s.inArea = &inside
	s.mu.Unlock()

	if changed {
		s.logger.Info("Geofence transition", "inside", inside)
		s.notifier.Send(protocol.TypeGeofence, protocol.GeofencePayload{Inside: inside})
	}
}

// active returns the current mission when it has been started and not
// yet completed.
func (s *Session) active() (mission.Mission, bool) {
	cur, ok := s.manager.CurrentMission()
	if !ok || s.tracker.Status(cur.ID) != mission.StatusStarted {
		return mission.Mission{}, false
	}
	return cur, true
}

// evaluateTriggers starts the nearest unstarted mission within the
// proximity radius when none is active, then completes the active mission
// once the player is inside its region.
func (s *Session) evaluateTriggers(pos geo.Coordinate) {
	if _, ok := s.active(); !ok {
		if id, found := s.nearestStartable(pos); found {
			s.manager.StartMission(id)
		}
	}

	cur, ok := s.active()
	if !ok {
		return
	}
	region, ok := s.regions[cur.ID]
	if ok && region.Contains(pos) {
		s.manager.CompleteMission(cur.ID)
	}
}

func (s *Session) nearestStartable(pos geo.Coordinate) (mission.ID, bool) {
	var (
		best     mission.ID
		bestDist = math.Inf(1)
		found    bool
	)

	for _, m := range s.manager.Missions() {
		if s.tracker.Status(m.ID) != mission.StatusUnstarted {
			continue
		}

		var dist float64
		switch {
		case m.Target != nil:
			dist = pos.DistanceTo(*m.Target)
			if dist > s.cfg.ProximityRadius {
				continue
			}
		default:
			region, ok := s.regions[m.ID]
			if !ok || !region.Contains(pos) {
				continue
			}
		}

		if dist < bestDist {
			best, bestDist, found = m.ID, dist, true
		}
	}

	return best, found
}

func (s *Session) sendNavigation(fix Fix) {
	cur, ok := s.manager.CurrentMission()
	if !ok || cur.Target == nil {
		return
	}

	target := *cur.Target
	dist := fix.Position.DistanceTo(target)
	bearing := fix.Position.BearingTo(target)

	nav := protocol.NavigationPayload{
		MissionID:    int64(cur.ID),
		Distance:     dist,
		DistanceText: geo.FormatDistance(dist),
		Bearing:      bearing,
		InRange:      dist <= s.cfg.ProximityRadius,
	}
	if fix.Heading != nil {
		rel := geo.NormalizeAngle(bearing - *fix.Heading)
		nav.RelativeBearing = &rel
	}
	if pt, err := geo.WebMercator(target); err == nil {
		if xy, ok := pt.XY(); ok {
			nav.X, nav.Y = xy.X, xy.Y
		}
	}

	s.notifier.Send(protocol.TypeNavigation, nav)
}

// StartMission handles a client request to start id.
func (s *Session) StartMission(id mission.ID) error {
	if _, ok := s.manager.Mission(id); !ok {
		return ErrUnknownMission
	}
	if !s.tracker.CanStart(id) {
		return ErrAlreadyStarted
	}
	s.manager.StartMission(id)
	return nil
}

// CompleteMission handles a client request to complete id.
func (s *Session) CompleteMission(id mission.ID) error {
	if _, ok := s.manager.Mission(id); !ok {
		return ErrUnknownMission
	}
	if !s.tracker.CanComplete(id) {
		return ErrNotStarted
	}
	s.manager.CompleteMission(id)
	return nil
}

func (s *Session) onMissionEvent(e mission.Event) error {
	m, ok := s.manager.Mission(e.MissionID())
	if !ok {
		return nil
	}

	var (
		msgType string
		pattern []time.Duration
	)
	switch e.(type) {
	case mission.MissionStart:
		msgType, pattern = protocol.TypeMissionStart, platform.PatternMissionStart
	case mission.MissionComplete:
		msgType, pattern = protocol.TypeMissionComplete, platform.PatternMissionComplete
	}

	s.notifier.Send(msgType, protocol.MissionEventPayload{
		MissionID: int64(m.ID),
		Name:      m.Name,
		Payload:   []byte(m.Payload),
	})

	platform.Vibrate(s.logger, s.vibrator(), pattern...)

	if s.recorder != nil {
		s.recorder.RecordMissionEvent(s.id, s.Player(), e.Kind().String(), int64(m.ID), s.now())
	}
	return nil
}

// vibrator returns nil when the device cannot vibrate.
func (s *Session) vibrator() platform.Vibrator {
	if !s.Capabilities().Vibration {
		return nil
	}
	return clientVibrator{s.notifier}
}

// clientVibrator forwards vibration patterns to the client.
type clientVibrator struct {
	n Notifier
}

func (v clientVibrator) Vibrate(pattern []time.Duration) error {
	ms := make([]int64, len(pattern))
	for i, d := range pattern {
		ms[i] = d.Milliseconds()
	}
	v.n.Send(protocol.TypeVibrate, protocol.VibratePayload{Pattern: ms})
	return nil
}

func (s *Session) saveProgress() {
	player := s.Player()
	if s.store == nil || player == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.store.Save(ctx, player, s.tracker.Snapshot()); err != nil {
		s.logger.Error("Failed to save progress", "player", player, "error", err)
	}
}

// Close flushes any pending progress save and releases listeners. The
// session must not be used afterwards.
func (s *Session) Close() {
	s.saver.Flush()
	s.saver.Stop()
	s.tracker.Detach()
	s.manager.Cleanup()
	s.logger.Info("Session closed")
}
