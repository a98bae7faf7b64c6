package signaling

import "log/slog"

// Hub is the central brain of the signaling server. It owns the Registry
// and serializes every registration, relay and cleanup on a single
// goroutine, so room state never needs locking.
type Hub struct {
	registry *Registry

	// Register is a channel for newly upgraded connections.
	Register chan *Client

	// Unregister is a channel for disconnecting clients.
	Unregister chan *Client

	// Inbound carries every message clients read off their sockets.
	Inbound chan *Message

	logger *slog.Logger
}

// NewHub creates a new Hub instance.
func NewHub() *Hub {
	return &Hub{
		registry:   NewRegistry(),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Inbound:    make(chan *Message),
		logger:     slog.Default(),
	}
}

// Run starts the hub's main processing loop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			// The client is not in a room yet; it must send a
			// "register" message first. Tell it its connection id
			// so it can recognise targeted messages.
			h.logger.Debug("client connected", "conn", client.id)
			client.Deliver(&Message{
				Type:    MessageTypeWelcome,
				Payload: mustPayload(WelcomePayload{ConnID: client.id}),
			})

		case client := <-h.Unregister:
			h.registry.Unregister(client.id)
			close(client.Send)

		case msg := <-h.Inbound:
			h.handle(msg)
		}
	}
}

// handle dispatches one client message against the registry.
func (h *Hub) handle(msg *Message) {
	client := msg.sender

	switch msg.Type {
	case MessageTypeRegister:
		if msg.Room == "" || !msg.Role.Valid() {
			h.reject(client, "register requires a room and a valid role")
			return
		}
		h.registry.Register(msg.Room, msg.Role, client)

	case MessageTypeOffer, MessageTypeAnswer, MessageTypeCandidate:
		roomID, _, ok := h.registry.RoomOf(client.ID())
		if !ok {
			h.reject(client, "you must register in a room first")
			return
		}
		msg.From = client.ID()
		msg.sender = nil
		h.registry.Relay(roomID, msg, msg.Target)

	case MessageTypeReconnectRequest:
		roomID, role, ok := h.registry.RoomOf(client.ID())
		if !ok {
			h.reject(client, "you must register in a room first")
			return
		}
		h.registry.RequestReconnect(roomID, role, client)

	case MessageTypeTransitionToViewer:
		roomID, _, ok := h.registry.RoomOf(client.ID())
		if !ok {
			h.reject(client, "you must register in a room first")
			return
		}
		h.registry.TransitionToViewer(roomID, client)

	default:
		h.logger.Warn("unknown message type", "type", msg.Type, "conn", client.ID())
	}
}

func (h *Hub) reject(client Participant, reason string) {
	client.Deliver(&Message{
		Type:    MessageTypeError,
		Payload: mustPayload(ErrorPayload{Error: reason}),
	})
}
