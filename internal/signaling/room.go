package signaling

// Room represents a single pairing between a camera and a viewer, with an
// optional lobby participant waiting to hand off.
type Room struct {
	// ID is the unique identifier for the room.
	ID string

	// Camera is the media-producing participant.
	Camera Participant

	// Viewer is the media-consuming participant.
	Viewer Participant

	// Lobby is a discovery-only participant.
	Lobby Participant
}

// occupant returns the participant holding the given role slot.
func (r *Room) occupant(role Role) Participant {
	switch role {
	case RoleCamera:
		return r.Camera
	case RoleViewer:
		return r.Viewer
	case RoleLobby:
		return r.Lobby
	}
	return nil
}

// setOccupant places p in the given role slot, overwriting any holder.
func (r *Room) setOccupant(role Role, p Participant) {
	switch role {
	case RoleCamera:
		r.Camera = p
	case RoleViewer:
		r.Viewer = p
	case RoleLobby:
		r.Lobby = p
	}
}

// empty reports whether no role slot is occupied.
func (r *Room) empty() bool {
	return r.Camera == nil && r.Viewer == nil && r.Lobby == nil
}

// others returns every occupant except the one with the given connection id.
func (r *Room) others(connID string) []Participant {
	var out []Participant
	for _, p := range []Participant{r.Camera, r.Viewer, r.Lobby} {
		if p != nil && p.ID() != connID {
			out = append(out, p)
		}
	}
	return out
}

// find returns the occupant with the given connection id, if any.
func (r *Room) find(connID string) Participant {
	for _, p := range []Participant{r.Camera, r.Viewer, r.Lobby} {
		if p != nil && p.ID() == connID {
			return p
		}
	}
	return nil
}
