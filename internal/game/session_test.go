package game

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/pedrabranca/geoquest/internal/config"
	"github.com/pedrabranca/geoquest/internal/geo"
	"github.com/pedrabranca/geoquest/internal/mission"
	"github.com/pedrabranca/geoquest/internal/platform"
	"github.com/pedrabranca/geoquest/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sent struct {
	Type    string
	Payload any
}

type fakeNotifier struct {
	mu   sync.Mutex
	msgs []sent
}

func (n *fakeNotifier) Send(msgType string, payload any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, sent{msgType, payload})
}

func (n *fakeNotifier) types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.msgs))
	for i, m := range n.msgs {
		out[i] = m.Type
	}
	return out
}

func (n *fakeNotifier) last(msgType string) (any, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := len(n.msgs) - 1; i >= 0; i-- {
		if n.msgs[i].Type == msgType {
			return n.msgs[i].Payload, true
		}
	}
	return nil, false
}

func (n *fakeNotifier) reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = nil
}

type fakeStore struct {
	mu    sync.Mutex
	data  map[string]map[mission.ID]mission.Progress
	saves int
	err   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string]map[mission.ID]mission.Progress)}
}

func (s *fakeStore) Save(_ context.Context, player string, p map[mission.ID]mission.Progress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.err != nil {
		return s.err
	}
	s.data[player] = p
	return nil
}

func (s *fakeStore) Load(_ context.Context, player string) (map[mission.ID]mission.Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.data[player], nil
}

type fakeRecorder struct {
	mu        sync.Mutex
	locations []geo.Coordinate
	events    []string
}

func (r *fakeRecorder) RecordLocation(_, _ string, c geo.Coordinate, _ float64, _ bool, _ time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.locations = append(r.locations, c)
}

func (r *fakeRecorder) RecordMissionEvent(_, _, event string, id int64, _ time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event+":"+mission.ID(id).String())
}

var (
	// mission 1 target, inside the play area
	plaza = geo.Coordinate{Lat: -27.630, Lng: -48.680}
	// ~110m south of plaza
	nearPlaza = geo.Coordinate{Lat: -27.631, Lng: -48.680}
	// ~11m south of plaza
	atPlaza = geo.Coordinate{Lat: -27.6301, Lng: -48.680}
	// inside the play area, far from every mission
	farCorner = geo.Coordinate{Lat: -27.638, Lng: -48.688}
	// north of the play area
	beach = geo.Coordinate{Lat: -27.600, Lng: -48.680}
)

func testCatalog() []mission.Mission {
	p := plaza
	b := beach
	return []mission.Mission{
		{ID: 1, Name: "Plaza", Target: &p, Radius: 25, Payload: []byte(`{"model":"statue.glb"}`)},
		{ID: 2, Name: "Beach", Target: &b},
		{ID: 3, Name: "Park", Area: []byte(`[[-48.675,-27.625],[-48.672,-27.625],[-48.672,-27.622],[-48.675,-27.622]]`)},
	}
}

func testGameConfig() config.GameConfig {
	return config.GameConfig{
		ProximityRadius: 150,
		CompleteRadius:  25,
		SaveDebounce:    time.Hour,
		EnforceGeofence: true,
		MaxAccuracy:     100,
	}
}

type harness struct {
	session  *Session
	notifier *fakeNotifier
	store    *fakeStore
	recorder *fakeRecorder
}

func newHarness(t *testing.T, cfg config.GameConfig) *harness {
	t.Helper()
	h := &harness{
		notifier: &fakeNotifier{},
		store:    newFakeStore(),
		recorder: &fakeRecorder{},
	}

	s, err := NewSession(context.Background(), Deps{
		ID:       "sess-1",
		Catalog:  testCatalog(),
		Config:   cfg,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Notifier: h.notifier,
		Recorder: h.recorder,
		Store:    h.store,
	})
	require.NoError(t, err)
	h.session = s
	return h
}

func (h *harness) fix(c geo.Coordinate) bool {
	return h.session.UpdateLocation(Fix{Position: c, Accuracy: 5})
}

func TestNewSession_RequiresNotifier(t *testing.T) {
	_, err := NewSession(context.Background(), Deps{})
	require.Error(t, err)
}

func TestHello_SendsCatalogAndRestoresProgress(t *testing.T) {
	h := newHarness(t, testGameConfig())
	h.store.data["ana"] = map[mission.ID]mission.Progress{
		2: {Status: mission.StatusCompleted, Completions: 1},
	}

	h.session.Hello(context.Background(), "ana", platform.Capabilities{Geolocation: true, Camera: true})

	assert.Equal(t, []string{protocol.TypeWelcome, protocol.TypeMissions, protocol.TypeProgress}, h.notifier.types())

	welcome, _ := h.notifier.last(protocol.TypeWelcome)
	assert.Equal(t, "sess-1", welcome.(protocol.WelcomePayload).SessionID)
	assert.True(t, welcome.(protocol.WelcomePayload).Playable)

	missions, _ := h.notifier.last(protocol.TypeMissions)
	list := missions.(protocol.MissionsPayload).Missions
	require.Len(t, list, 3)
	assert.Equal(t, "Plaza", list[0].Name)
	require.NotNil(t, list[0].Lat)
	assert.Equal(t, plaza.Lat, *list[0].Lat)
	assert.Nil(t, list[2].Lat)

	progress, _ := h.notifier.last(protocol.TypeProgress)
	assert.Equal(t, []protocol.ProgressEntry{{MissionID: 2, Status: "completed", Completions: 1}},
		progress.(protocol.ProgressPayload).Missions)
	assert.Equal(t, "ana", h.session.Player())
}

func TestHello_StoreFailureStillWelcomes(t *testing.T) {
	h := newHarness(t, testGameConfig())
	h.store.err = errors.New("db down")

	h.session.Hello(context.Background(), "ana", platform.Capabilities{})
	assert.Contains(t, h.notifier.types(), protocol.TypeWelcome)
	assert.Empty(t, h.session.Progress())
}

func TestLocation_ApproachStartsThenArrivalCompletes(t *testing.T) {
	h := newHarness(t, testGameConfig())

	require.True(t, h.fix(farCorner))
	assert.Equal(t, []string{protocol.TypeGeofence}, h.notifier.types(), "nothing nearby")

	h.notifier.reset()
	h.fix(nearPlaza)
	assert.Equal(t, []string{protocol.TypeMissionStart, protocol.TypeNavigation}, h.notifier.types())
	assert.Equal(t, mission.StatusStarted, h.session.Progress()[1].Status)

	start, _ := h.notifier.last(protocol.TypeMissionStart)
	assert.Equal(t, int64(1), start.(protocol.MissionEventPayload).MissionID)
	assert.JSONEq(t, `{"model":"statue.glb"}`, string(start.(protocol.MissionEventPayload).Payload))

	nav, _ := h.notifier.last(protocol.TypeNavigation)
	np := nav.(protocol.NavigationPayload)
	assert.InDelta(t, 111, np.Distance, 2)
	assert.Equal(t, "111m", np.DistanceText)
	assert.InDelta(t, 0, np.Bearing, 0.5, "plaza is due north")
	assert.True(t, np.InRange)
	assert.Nil(t, np.RelativeBearing)
	assert.NotZero(t, np.X)
	assert.NotZero(t, np.Y)

	h.notifier.reset()
	h.fix(atPlaza)
	assert.Equal(t, []string{protocol.TypeMissionComplete, protocol.TypeNavigation}, h.notifier.types())
	assert.Equal(t, mission.Progress{Status: mission.StatusCompleted, Completions: 1}, h.session.Progress()[1])

	// completed missions do not retrigger
	h.notifier.reset()
	h.fix(atPlaza)
	assert.Equal(t, []string{protocol.TypeNavigation}, h.notifier.types())
}

func TestLocation_ArrivalStartsAndCompletesInOneFix(t *testing.T) {
	h := newHarness(t, testGameConfig())

	h.fix(atPlaza)
	assert.Equal(t, []string{
		protocol.TypeGeofence,
		protocol.TypeMissionStart,
		protocol.TypeMissionComplete,
		protocol.TypeNavigation,
	}, h.notifier.types())
}

func TestLocation_AreaMission(t *testing.T) {
	h := newHarness(t, testGameConfig())

	// inside the Park polygon
	h.fix(geo.Coordinate{Lat: -27.6235, Lng: -48.6735})

	assert.Equal(t, mission.StatusCompleted, h.session.Progress()[3].Status)
	assert.NotContains(t, h.notifier.types(), protocol.TypeNavigation, "area missions have no target")
}

func TestLocation_GeofenceEnforced(t *testing.T) {
	h := newHarness(t, testGameConfig())

	h.fix(beach)
	assert.Equal(t, []string{protocol.TypeGeofence}, h.notifier.types())
	gf, _ := h.notifier.last(protocol.TypeGeofence)
	assert.False(t, gf.(protocol.GeofencePayload).Inside)
	assert.Empty(t, h.session.Progress(), "no triggers outside the play area")

	// repeated fixes on the same side do not resend the transition
	h.notifier.reset()
	h.fix(beach)
	assert.Empty(t, h.notifier.types())

	h.fix(farCorner)
	assert.Equal(t, []string{protocol.TypeGeofence}, h.notifier.types())
}

func TestLocation_GeofenceNotEnforced(t *testing.T) {
	cfg := testGameConfig()
	cfg.EnforceGeofence = false
	h := newHarness(t, cfg)

	h.fix(beach)
	assert.Equal(t, mission.StatusCompleted, h.session.Progress()[2].Status,
		"beach has no radius so the default completion radius applies")
}

func TestLocation_InvalidAndInaccurateFixes(t *testing.T) {
	h := newHarness(t, testGameConfig())

	h.fix(geo.Coordinate{Lat: 91, Lng: 0})
	require.Equal(t, []string{protocol.TypeError}, h.notifier.types())
	e, _ := h.notifier.last(protocol.TypeError)
	assert.Equal(t, protocol.TypeLocation, e.(protocol.ErrorPayload).For)

	h.notifier.reset()
	h.session.UpdateLocation(Fix{Position: atPlaza, Accuracy: 500})
	assert.Empty(t, h.notifier.types())
	assert.Empty(t, h.recorder.locations)
}

func TestLocation_RejectedFixesDoNotConsumeThrottle(t *testing.T) {
	cfg := testGameConfig()
	cfg.LocationThrottle = time.Hour

	t.Run("inaccurate", func(t *testing.T) {
		h := newHarness(t, cfg)
		assert.False(t, h.session.UpdateLocation(Fix{Position: atPlaza, Accuracy: 500}))
		assert.True(t, h.fix(atPlaza), "accurate fix right after a cold-start fix")
		assert.Equal(t, mission.StatusCompleted, h.session.Progress()[1].Status)
	})

	t.Run("invalid", func(t *testing.T) {
		h := newHarness(t, cfg)
		assert.False(t, h.fix(geo.Coordinate{Lat: 91, Lng: 0}))
		assert.True(t, h.fix(atPlaza))
		assert.Equal(t, mission.StatusCompleted, h.session.Progress()[1].Status)
	})
}

func TestLocation_Throttled(t *testing.T) {
	cfg := testGameConfig()
	cfg.LocationThrottle = time.Hour
	h := newHarness(t, cfg)

	assert.True(t, h.fix(farCorner))
	assert.False(t, h.fix(atPlaza))
	assert.Empty(t, h.session.Progress())
}

func TestLocation_RelativeBearing(t *testing.T) {
	h := newHarness(t, testGameConfig())
	heading := 90.0

	h.session.UpdateLocation(Fix{Position: nearPlaza, Accuracy: 5, Heading: &heading})

	nav, ok := h.notifier.last(protocol.TypeNavigation)
	require.True(t, ok)
	rel := nav.(protocol.NavigationPayload).RelativeBearing
	require.NotNil(t, rel)
	assert.InDelta(t, 270, *rel, 0.5, "target due north while facing east is to the left")
}

func TestRequests_Lenient(t *testing.T) {
	h := newHarness(t, testGameConfig())

	assert.NoError(t, h.session.CompleteMission(2), "completion without start is allowed")
	assert.NoError(t, h.session.CompleteMission(2))
	assert.Equal(t, 2, h.session.Progress()[2].Completions)

	assert.NoError(t, h.session.StartMission(1))
	assert.NoError(t, h.session.StartMission(1))

	assert.ErrorIs(t, h.session.StartMission(99), ErrUnknownMission)
	assert.ErrorIs(t, h.session.CompleteMission(99), ErrUnknownMission)
}

func TestRequests_Strict(t *testing.T) {
	cfg := testGameConfig()
	cfg.StrictLifecycle = true
	h := newHarness(t, cfg)

	assert.ErrorIs(t, h.session.CompleteMission(1), ErrNotStarted)
	require.NoError(t, h.session.StartMission(1))
	assert.ErrorIs(t, h.session.StartMission(1), ErrAlreadyStarted)
	require.NoError(t, h.session.CompleteMission(1))
	assert.ErrorIs(t, h.session.CompleteMission(1), ErrNotStarted)
}

func TestVibration_OnlyWhenSupported(t *testing.T) {
	h := newHarness(t, testGameConfig())
	h.session.Hello(context.Background(), "", platform.Capabilities{Vibration: false})
	h.notifier.reset()

	require.NoError(t, h.session.StartMission(1))
	assert.NotContains(t, h.notifier.types(), protocol.TypeVibrate)

	h.session.Hello(context.Background(), "", platform.Capabilities{Vibration: true})
	h.notifier.reset()

	require.NoError(t, h.session.CompleteMission(1))
	assert.Equal(t, []string{protocol.TypeMissionComplete, protocol.TypeVibrate}, h.notifier.types())
	v, _ := h.notifier.last(protocol.TypeVibrate)
	assert.Equal(t, []int64{200, 100, 200}, v.(protocol.VibratePayload).Pattern)
}

func TestTelemetry_Recorded(t *testing.T) {
	h := newHarness(t, testGameConfig())

	h.fix(atPlaza)

	assert.Equal(t, []geo.Coordinate{atPlaza}, h.recorder.locations)
	assert.Equal(t, []string{"missionStart:1", "missionComplete:1"}, h.recorder.events)
}

func TestClose_FlushesPendingSave(t *testing.T) {
	h := newHarness(t, testGameConfig())
	h.session.Hello(context.Background(), "ana", platform.Capabilities{})

	require.NoError(t, h.session.StartMission(1))
	require.NoError(t, h.session.CompleteMission(3))
	assert.Equal(t, 0, h.store.saves, "saves are debounced")

	h.session.Close()

	assert.Equal(t, 1, h.store.saves)
	assert.Equal(t, map[mission.ID]mission.Progress{
		1: {Status: mission.StatusStarted},
		3: {Status: mission.StatusCompleted, Completions: 1},
	}, h.store.data["ana"])
	assert.Equal(t, 0, h.session.Manager().ListenerCount(mission.KindMissionStart))
}

func TestDebouncedSave(t *testing.T) {
	cfg := testGameConfig()
	cfg.SaveDebounce = 20 * time.Millisecond
	h := newHarness(t, cfg)
	h.session.Hello(context.Background(), "ana", platform.Capabilities{})

	require.NoError(t, h.session.StartMission(1))
	require.NoError(t, h.session.CompleteMission(1))

	assert.Eventually(t, func() bool {
		h.store.mu.Lock()
		defer h.store.mu.Unlock()
		return h.store.saves == 1 && h.store.data["ana"][1].Status == mission.StatusCompleted
	}, time.Second, 5*time.Millisecond)

	h.session.Close()
}

func TestClose_WithoutPlayerSkipsSave(t *testing.T) {
	h := newHarness(t, testGameConfig())
	require.NoError(t, h.session.StartMission(1))
	h.session.Close()
	assert.Equal(t, 0, h.store.saves)
}

func TestMissionInfos(t *testing.T) {
	infos := MissionInfos(testCatalog())
	require.Len(t, infos, 3)

	assert.Equal(t, int64(1), infos[0].ID)
	require.NotNil(t, infos[0].Lat)
	assert.Equal(t, plaza.Lat, *infos[0].Lat)
	assert.JSONEq(t, `{"model":"statue.glb"}`, string(infos[0].Payload))

	assert.Nil(t, infos[2].Lat, "area missions have no target")
}
