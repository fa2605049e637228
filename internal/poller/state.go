package poller

// State is the lifecycle state of a Poller. Transitions:
// Idle → Connected → Running ⇄ Paused → Stopping → Stopped. A fatal read
// error moves any running state directly to Stopped.
type State int32

const (
	StateIdle State = iota
	StateConnected
	StateRunning
	StatePaused
	StateStopping
	StateStopped
)

var stateNames = map[State]string{
	StateIdle:      "idle",
	StateConnected: "connected",
	StateRunning:   "running",
	StatePaused:    "paused",
	StateStopping:  "stopping",
	StateStopped:   "stopped",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// MarshalJSON renders the state as its lowercase name so API consumers can
// distinguish "no new data because paused" from "nothing arrived yet".
func (s State) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}
