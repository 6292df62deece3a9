package voice

// LinkKey identifies the connection between one participant pair. Both ends
// derive the same key regardless of who initiated.
type LinkKey string

// KeyFor builds the pair key from two participant IDs by lexicographic
// ordering, so KeyFor(a, b) == KeyFor(b, a).
func KeyFor(a, b string) LinkKey {
	if a > b {
		a, b = b, a
	}
	return LinkKey(a + "-" + b)
}

// State is the logical lifecycle state of a peer link.
type State int

const (
	StateUnconnected State = iota
	StateNegotiating
	StateConnected
	StateFailed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnconnected:
		return "unconnected"
	case StateNegotiating:
		return "negotiating"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state admits no further transitions. A new
// link must be created under the same key to retry.
func (s State) Terminal() bool {
	return s == StateFailed || s == StateClosed
}

// PeerLink is one end of a participant-pair connection. Owned exclusively by
// the Registry; all state transitions run on the coordinator's event turn.
type PeerLink struct {
	Key          LinkKey
	RemoteUserID string
	Initiator    bool

	conn  Conn
	state State
}

// State returns the link's current logical state.
func (l *PeerLink) State() State {
	return l.state
}

// Conn returns the underlying connection handle.
func (l *PeerLink) Conn() Conn {
	return l.conn
}

// setState applies a transition unless the link is already terminal.
func (l *PeerLink) setState(s State) bool {
	if l.state.Terminal() {
		return false
	}
	l.state = s
	return true
}
