package realtime

// State is the lifecycle state of the managed connection.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Reconnecting
	// Exhausted is terminal until the next explicit Connect.
	Exhausted
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	case Exhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// StateChange is delivered to state listeners after every transition.
type StateChange struct {
	From State
	To   State
	// Attempt is the reconnect attempt counter after the transition.
	Attempt int
}
