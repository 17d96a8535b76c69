package client

// State is the connection lifecycle position of a Client.
type State int

const (
	// StateDisconnected means no transport; sends fail fast.
	StateDisconnected State = iota
	// StateConnecting means a dial or login handshake is in flight.
	StateConnecting
	// StateAuthenticated means the server accepted the login.
	StateAuthenticated
	// StateStreaming means the read pump is live and sends are allowed.
	StateStreaming
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	case StateStreaming:
		return "streaming"
	default:
		return "unknown"
	}
}
