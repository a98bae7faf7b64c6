package signaling

import "encoding/json"

// Role identifies a participant's function within a room.
type Role string

const (
	// RoleCamera produces media and initiates negotiation.
	RoleCamera Role = "camera"

	// RoleViewer consumes media and answers offers.
	RoleViewer Role = "viewer"

	// RoleLobby is a discovery-only participant waiting to hand off to a
	// viewer connection once a camera shows up.
	RoleLobby Role = "lobby"
)

// Counterpart returns the paired role for negotiation purposes. Lobby
// participants have no counterpart.
func (r Role) Counterpart() (Role, bool) {
	switch r {
	case RoleCamera:
		return RoleViewer, true
	case RoleViewer:
		return RoleCamera, true
	}
	return "", false
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleCamera || r == RoleViewer || r == RoleLobby
}

// Message defines the structure for all C2S (Client to Server)
// and S2C (Server to Client) websocket messages.
type Message struct {
	Type    string          `json:"type"`
	Room    string          `json:"room,omitempty"`
	Role    Role            `json:"role,omitempty"`
	From    string          `json:"from,omitempty"`
	Target  string          `json:"target,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`

	// sender is the participant that sent the message. It's used
	// internally by the Hub and not sent over JSON.
	sender Participant
}

// Message type constants.
const (
	MessageTypeRegister           = "register"
	MessageTypeOffer              = "offer"
	MessageTypeAnswer             = "answer"
	MessageTypeCandidate          = "ice-candidate"
	MessageTypeReconnectRequest   = "reconnect-request"
	MessageTypeTransitionToViewer = "transition-to-viewer"

	MessageTypeWelcome          = "welcome"
	MessageTypePeerJoined       = "peer-joined"
	MessageTypeRouteToViewer    = "route-to-viewer"
	MessageTypePeerDisconnected = "peer-disconnected"
	MessageTypeError            = "error"
)

// WelcomePayload tells a freshly connected client its connection id.
type WelcomePayload struct {
	ConnID string `json:"connId"`
}

// PeerJoinedPayload names the counterpart that completed the pairing.
type PeerJoinedPayload struct {
	PeerID string `json:"peerId"`
	Role   Role   `json:"role"`
}

// ReconnectPayload names the participant asking its peer to rebuild the
// transport.
type ReconnectPayload struct {
	PeerID string `json:"peerId"`
	Role   Role   `json:"role"`
}

// PeerDisconnectedPayload names the role whose slot was vacated.
type PeerDisconnectedPayload struct {
	Role Role `json:"role"`
}

// RouteToViewerPayload tells a lobby participant to hand off.
type RouteToViewerPayload struct {
	Room string `json:"room"`
}

// ErrorPayload represents error messages from the server.
type ErrorPayload struct {
	Error string `json:"error"`
}

// mustPayload marshals v, panicking on failure. All payload types in this
// package are plain structs that cannot fail to marshal.
func mustPayload(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
