package mission

// EventKind enumerates the mission lifecycle events.
type EventKind int

const (
	KindMissionStart EventKind = iota
	KindMissionComplete
)

func (k EventKind) String() string {
	switch k {
	case KindMissionStart:
		return "missionStart"
	case KindMissionComplete:
		return "missionComplete"
	default:
		return "unknown"
	}
}

// Event is the closed set of mission lifecycle events: MissionStart and
// MissionComplete.
type Event interface {
	Kind() EventKind
	MissionID() ID
	sealed()
}

// MissionStart is emitted when a known mission is started.
type MissionStart struct {
	ID ID
}

func (MissionStart) Kind() EventKind { return KindMissionStart }
func (e MissionStart) MissionID() ID { return e.ID }
func (MissionStart) sealed() {}

// MissionComplete is emitted each time a known mission is completed.
type MissionComplete struct {
	ID ID
}

func (MissionComplete) Kind() EventKind { return KindMissionComplete }
func (e MissionComplete) MissionID() ID { return e.ID }
func (MissionComplete) sealed() {}
