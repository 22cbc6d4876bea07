package engine

// SessionState is the handshake progress of an engine
type SessionState int

const (
	Disconnected SessionState = iota
	Connecting
	Connected
)

func (s SessionState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

// MarshalText renders the state by name in JSON
func (s SessionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Status is a point-in-time view of an engine
type Status struct {
	Sink           string       `json:"sink"`
	Codec          string       `json:"codec"`
	State          SessionState `json:"state"`
	Sending        bool         `json:"sending"`
	FlushRequested bool         `json:"flush_requested"`
	Closed         bool         `json:"closed"`
	Pending        int          `json:"pending"`
	InFlight       int          `json:"in_flight"`
	Failures       uint64       `json:"failures"`
	LastError      string       `json:"last_error,omitempty"`
}
