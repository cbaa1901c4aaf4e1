package mission

import (
	"testing"

	"github.com/pedrabranca/geoquest/internal/geo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTarget() geo.Coordinate {
	return geo.Coordinate{Lat: -27.63, Lng: -48.68}
}

func TestTracker_RecordsTransitions(t *testing.T) {
	m, _ := newTestManager(t)
	m.LoadMissions(sampleMissions())

	var changes []Progress
	tr := NewTracker(m, false, func(id ID, p Progress) { changes = append(changes, p) })

	assert.Equal(t, StatusUnstarted, tr.Status(1))

	m.StartMission(1)
	assert.Equal(t, StatusStarted, tr.Status(1))

	m.CompleteMission(1)
	m.CompleteMission(1)
	assert.Equal(t, StatusCompleted, tr.Status(1))
	assert.Equal(t, 2, tr.Progress(1).Completions)

	require.Len(t, changes, 3)
	assert.Equal(t, StatusStarted, changes[0].Status)
	assert.Equal(t, 1, changes[1].Completions)
}

func TestTracker_LenientAllowsEverything(t *testing.T) {
	m, _ := newTestManager(t)
	m.LoadMissions(sampleMissions())
	tr := NewTracker(m, false, nil)

	assert.True(t, tr.CanComplete(1))
	m.CompleteMission(1)
	assert.True(t, tr.CanStart(1))
	assert.True(t, tr.CanComplete(1))
	assert.False(t, tr.Strict())
}

func TestTracker_StrictGuards(t *testing.T) {
	m, _ := newTestManager(t)
	m.LoadMissions(sampleMissions())
	tr := NewTracker(m, true, nil)

	assert.True(t, tr.CanStart(1))
	assert.False(t, tr.CanComplete(1), "cannot complete before start")

	m.StartMission(1)
	assert.False(t, tr.CanStart(1), "cannot start twice")
	assert.True(t, tr.CanComplete(1))

	m.CompleteMission(1)
	assert.False(t, tr.CanComplete(1), "cannot complete twice")
	assert.False(t, tr.CanStart(1))
}

func TestTracker_SnapshotRestore(t *testing.T) {
	m, _ := newTestManager(t)
	m.LoadMissions(sampleMissions())
	tr := NewTracker(m, false, nil)

	m.StartMission(2)
	snap := tr.Snapshot()
	require.Len(t, snap, 1)

	// snapshot is a copy
	snap[2] = Progress{Status: StatusCompleted}
	assert.Equal(t, StatusStarted, tr.Status(2))

	tr.Restore(map[ID]Progress{1: {Status: StatusCompleted, Completions: 3}})
	assert.Equal(t, StatusCompleted, tr.Status(1))
	assert.Equal(t, StatusUnstarted, tr.Status(2))

	tr.Restore(nil)
	assert.Empty(t, tr.Snapshot())
}

func TestTracker_Detach(t *testing.T) {
	m, _ := newTestManager(t)
	m.LoadMissions(sampleMissions())
	tr := NewTracker(m, false, nil)

	assert.Equal(t, 1, m.ListenerCount(KindMissionStart))
	tr.Detach()
	assert.Equal(t, 0, m.ListenerCount(KindMissionStart))

	m.StartMission(1)
	assert.Equal(t, StatusUnstarted, tr.Status(1))
}

func TestStatus_RoundTrip(t *testing.T) {
	for _, s := range []Status{StatusUnstarted, StatusStarted, StatusCompleted} {
		assert.Equal(t, s, ParseStatus(s.String()))
	}
	assert.Equal(t, StatusUnstarted, ParseStatus("garbage"))
	assert.Equal(t, "unknown", Status(9).String())
}
