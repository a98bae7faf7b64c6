package negotiation

import (
	"github.com/pion/webrtc/v4"

	"github.com/AnujaKalahara99/camconnectit/internal/signaling"
)

// Event is the sealed set of signaling events a Signaler can deliver to
// the Controller, one variant per message kind.
type Event interface {
	isEvent()
}

// PeerJoined announces the counterpart completing the room pairing.
type PeerJoined struct {
	PeerID string
	Role   signaling.Role
}

// OfferReceived carries a remote session description to answer.
type OfferReceived struct {
	SDP  webrtc.SessionDescription
	From string
}

// AnswerReceived carries the remote answer to a sent offer.
type AnswerReceived struct {
	SDP  webrtc.SessionDescription
	From string
}

// CandidateReceived carries one remote connectivity candidate.
type CandidateReceived struct {
	Candidate webrtc.ICECandidateInit
	From      string
}

// ReconnectRequested asks this side to rebuild its transport.
type ReconnectRequested struct {
	PeerID string
	Role   signaling.Role
}

// PeerDisconnected reports the counterpart's role slot being vacated.
type PeerDisconnected struct {
	Role signaling.Role
}

// RouteToViewer tells a lobby participant to hand off to a viewer
// connection.
type RouteToViewer struct {
	Room string
}

func (PeerJoined) isEvent()         {}
func (OfferReceived) isEvent()      {}
func (AnswerReceived) isEvent()     {}
func (CandidateReceived) isEvent()  {}
func (ReconnectRequested) isEvent() {}
func (PeerDisconnected) isEvent()   {}
func (RouteToViewer) isEvent()      {}

// Signaler exchanges negotiation messages with the counterpart, either
// over the persistent relay connection or the HTTP polling transport. An
// empty target broadcasts to the room.
type Signaler interface {
	SendOffer(sdp webrtc.SessionDescription, target string) error
	SendAnswer(sdp webrtc.SessionDescription, target string) error
	SendCandidate(cand webrtc.ICECandidateInit, target string) error

	// RequestReconnect asks the registry to notify the counterpart.
	// Transports without reconnect vocabulary treat this as a no-op.
	RequestReconnect() error

	Events() <-chan Event
}
