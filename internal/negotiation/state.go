package negotiation

// State tracks one peer connection through the offer/answer exchange.
type State int

const (
	// StateIdle is the initial state, before any description exchange.
	StateIdle State = iota

	// StateOfferSent: the initiator produced and sent an offer.
	StateOfferSent

	// StateOfferReceived: the responder is applying a remote offer.
	StateOfferReceived

	// StateAnswered: the responder sent its answer back.
	StateAnswered

	// StateStable: the transport is established.
	StateStable

	// StateRenegotiating: a fresh offer is in flight over an
	// established transport (track replacement).
	StateRenegotiating

	// StateFailed: the transport is down; recovery needs a
	// registry-assisted reconnect cycle.
	StateFailed

	// StateClosed is the terminal state after explicit teardown.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOfferSent:
		return "offer-sent"
	case StateOfferReceived:
		return "offer-received"
	case StateAnswered:
		return "answered"
	case StateStable:
		return "stable"
	case StateRenegotiating:
		return "renegotiating"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// StatusLabel maps the state onto the small user-facing connection label.
// Individual errors are deliberately invisible; the user only ever sees a
// stalled or reset connection.
func (s State) StatusLabel() string {
	switch s {
	case StateStable, StateRenegotiating:
		return "Connected"
	case StateFailed, StateClosed:
		return "Disconnected"
	}
	return "Connecting..."
}
