package signaling

import "log/slog"

// Participant is a connected peer the registry can deliver messages to.
// The websocket Client implements it; tests use fakes.
type Participant interface {
	ID() string
	Deliver(*Message)
}

// membership records which room and role a connection currently holds.
type membership struct {
	room string
	role Role
}

// Registry is the authoritative in-memory map of room state. All methods
// must be called from a single goroutine (the Hub's run loop); the Registry
// itself does no locking.
type Registry struct {
	rooms   map[string]*Room
	members map[string]membership
	logger  *slog.Logger
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		rooms:   make(map[string]*Room),
		members: make(map[string]membership),
		logger:  slog.Default(),
	}
}

// Register inserts p into the role slot of the given room, creating the room
// if it does not exist. Registering a role that is already held overwrites
// the previous holder without notice; the orphaned connection learns only
// through its own disconnect handling.
//
// When a camera/viewer pairing completes, both sides receive a peer-joined
// notice naming the other. A lobby participant is routed to the viewer page
// as soon as a camera is present.
func (reg *Registry) Register(roomID string, role Role, p Participant) {
	room, ok := reg.rooms[roomID]
	if !ok {
		room = &Room{ID: roomID}
		reg.rooms[roomID] = room
	}

	room.setOccupant(role, p)
	reg.members[p.ID()] = membership{room: roomID, role: role}
	reg.logger.Info("participant registered", "room", roomID, "role", role, "conn", p.ID())

	switch role {
	case RoleCamera:
		if room.Lobby != nil {
			reg.routeToViewer(room, room.Lobby)
		}
		if room.Viewer != nil {
			reg.notifyPaired(room.Viewer, p, RoleCamera)
		}
	case RoleViewer:
		if room.Camera != nil {
			reg.notifyPaired(room.Camera, p, RoleViewer)
		}
	case RoleLobby:
		if room.Camera != nil {
			reg.routeToViewer(room, p)
		}
	}
}

// notifyPaired sends mutual peer-joined notices to an existing occupant and
// a newcomer of the given role.
func (reg *Registry) notifyPaired(existing, newcomer Participant, newRole Role) {
	existingRole, _ := newRole.Counterpart()
	existing.Deliver(&Message{
		Type:    MessageTypePeerJoined,
		Payload: mustPayload(PeerJoinedPayload{PeerID: newcomer.ID(), Role: newRole}),
	})
	newcomer.Deliver(&Message{
		Type:    MessageTypePeerJoined,
		Payload: mustPayload(PeerJoinedPayload{PeerID: existing.ID(), Role: existingRole}),
	})
}

func (reg *Registry) routeToViewer(room *Room, lobby Participant) {
	lobby.Deliver(&Message{
		Type:    MessageTypeRouteToViewer,
		Payload: mustPayload(RouteToViewerPayload{Room: room.ID}),
	})
}

// Relay forwards msg to the target connection if targetID is non-empty,
// otherwise to every other occupant of the room. Missing rooms and targets
// are silently ignored; negotiation messages for a torn-down room are
// simply dropped.
func (reg *Registry) Relay(roomID string, msg *Message, targetID string) {
	room, ok := reg.rooms[roomID]
	if !ok {
		return
	}

	if targetID != "" {
		if target := room.find(targetID); target != nil {
			target.Deliver(msg)
		}
		return
	}
	for _, p := range room.others(msg.From) {
		p.Deliver(msg)
	}
}

// RequestReconnect delivers a reconnect-request to the counterpart of the
// requesting role, if one is present. No-op otherwise.
func (reg *Registry) RequestReconnect(roomID string, role Role, requester Participant) {
	room, ok := reg.rooms[roomID]
	if !ok {
		return
	}
	counterRole, ok := role.Counterpart()
	if !ok {
		return
	}
	counterpart := room.occupant(counterRole)
	if counterpart == nil {
		return
	}
	reg.logger.Info("reconnect requested", "room", roomID, "role", role, "conn", requester.ID())
	counterpart.Deliver(&Message{
		Type:    MessageTypeReconnectRequest,
		Payload: mustPayload(ReconnectPayload{PeerID: requester.ID(), Role: role}),
	})
}

// TransitionToViewer performs the one legal in-place role change: a lobby
// participant becoming the room's viewer. If a camera is present, both
// sides receive peer-joined notices.
func (reg *Registry) TransitionToViewer(roomID string, p Participant) {
	room, ok := reg.rooms[roomID]
	if !ok {
		return
	}
	m, ok := reg.members[p.ID()]
	if !ok || m.room != roomID || m.role != RoleLobby {
		return
	}

	if room.Lobby != nil && room.Lobby.ID() == p.ID() {
		room.Lobby = nil
	}
	room.Viewer = p
	reg.members[p.ID()] = membership{room: roomID, role: RoleViewer}
	reg.logger.Info("lobby transitioned to viewer", "room", roomID, "conn", p.ID())

	if room.Camera != nil {
		reg.notifyPaired(room.Camera, p, RoleViewer)
	}
}

// Unregister clears the role slot held by connID in its room, notifies the
// remaining counterpart, and deletes the room once no slot is occupied.
func (reg *Registry) Unregister(connID string) {
	m, ok := reg.members[connID]
	if !ok {
		return
	}
	delete(reg.members, connID)

	room, ok := reg.rooms[m.room]
	if !ok {
		return
	}

	occupant := room.occupant(m.role)
	if occupant == nil || occupant.ID() != connID {
		// The slot was already overwritten by a newer connection.
		return
	}
	room.setOccupant(m.role, nil)
	reg.logger.Info("participant left", "room", m.room, "role", m.role, "conn", connID)

	if counterRole, ok := m.role.Counterpart(); ok {
		if counterpart := room.occupant(counterRole); counterpart != nil {
			counterpart.Deliver(&Message{
				Type:    MessageTypePeerDisconnected,
				Payload: mustPayload(PeerDisconnectedPayload{Role: m.role}),
			})
		}
	}

	if room.empty() {
		delete(reg.rooms, m.room)
		reg.logger.Info("room deleted", "room", m.room)
	}
}

// RoomOf returns the room and role connID is registered in.
func (reg *Registry) RoomOf(connID string) (string, Role, bool) {
	m, ok := reg.members[connID]
	if !ok {
		return "", "", false
	}
	return m.room, m.role, true
}
