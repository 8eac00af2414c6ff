package xplpro

// ConnState represents the stage of the device/host session handshake.
type ConnState uint32

// Session states, in handshake order.
const (
	// IdleState indicates no host contact since start or since the last reset.
	IdleState ConnState = iota
	// NameRequestedState indicates the host's name inquiry was received and
	// the identity reply is being sent.
	NameRequestedState
	// AwaitingReadyState indicates the device identified itself and is waiting
	// for the host's ready-to-register signal. The host may stay in this state
	// for a long time while the simulator loads, so it is gated by the
	// response timeout rather than the frame receive timeout.
	AwaitingReadyState
	// RegisteringState indicates the application's OnReady callback is running
	// and name registrations are being resolved.
	RegisteringState
	// ActiveState indicates the session is established.
	ActiveState
	// DisconnectedState indicates the session ended; the engine returns to
	// IdleState and is ready to restart the handshake on the next inquiry.
	DisconnectedState
)

// IsActive returns true if the session is established.
func (cs ConnState) IsActive() bool { return cs == ActiveState }

// IsIdle returns true if no handshake is in progress.
func (cs ConnState) IsIdle() bool { return cs == IdleState }

// String returns the string representation of the state.
func (cs ConnState) String() string {
	switch cs {
	case IdleState:
		return "idle"
	case NameRequestedState:
		return "name-requested"
	case AwaitingReadyState:
		return "awaiting-ready"
	case RegisteringState:
		return "registering"
	case ActiveState:
		return "active"
	case DisconnectedState:
		return "disconnected"
	default:
		return "unknown"
	}
}
