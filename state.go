package servex

// State is the lifecycle state of a Server. Transitions are monotonic: the
// only path is Created → Starting → Running → Stopping → Stopped, with a
// failed start moving from Starting directly to Stopped.
type State int32

const (
	StateCreated State = iota
	StateStarting
	StateRunning
	StateStopping
	StateStopped
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
