// Package relay is the client side of the persistent signaling connection:
// a websocket to the relay server, demultiplexed into negotiation events.
package relay

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"

	"github.com/AnujaKalahara99/camconnectit/internal/negotiation"
	"github.com/AnujaKalahara99/camconnectit/internal/signaling"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024

	welcomeTimeout = 10 * time.Second
)

// Client manages the WebSocket connection to the signaling server and
// implements negotiation.Signaler.
type Client struct {
	conn      *websocket.Conn
	serverURL string

	connID  string
	room    string
	role    signaling.Role
	welcome chan string

	outgoing chan *signaling.Message
	events   chan negotiation.Event
	errs     chan string
	done     chan struct{}
	closed   bool

	logger *slog.Logger
}

// NewClient creates a new relay client.
func NewClient(serverURL string) *Client {
	return &Client{
		serverURL: serverURL,
		welcome:   make(chan string, 1),
		outgoing:  make(chan *signaling.Message, 16),
		events:    make(chan negotiation.Event, 32),
		errs:      make(chan string, 1),
		done:      make(chan struct{}),
		logger:    slog.Default(),
	}
}

// Connect establishes the websocket connection and waits for the server's
// welcome message carrying this client's connection id.
func (c *Client) Connect() error {
	u, err := url.Parse(c.serverURL)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	c.conn = conn

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go c.readPump()
	go c.writePump()

	select {
	case id := <-c.welcome:
		c.connID = id
		return nil
	case <-time.After(welcomeTimeout):
		c.Close()
		return fmt.Errorf("no welcome from server")
	}
}

// ConnID returns the server-assigned connection id.
func (c *Client) ConnID() string {
	return c.connID
}

// Register joins a room under a role.
func (c *Client) Register(room string, role signaling.Role) {
	c.room = room
	c.role = role
	c.send(&signaling.Message{
		Type: signaling.MessageTypeRegister,
		Room: room,
		Role: role,
	})
}

// TransitionToViewer performs the lobby participant's one legal role
// change.
func (c *Client) TransitionToViewer() {
	c.role = signaling.RoleViewer
	c.send(&signaling.Message{Type: signaling.MessageTypeTransitionToViewer})
}

// Events implements negotiation.Signaler.
func (c *Client) Events() <-chan negotiation.Event {
	return c.events
}

// Errors carries server-side error notices (room full, not registered).
func (c *Client) Errors() <-chan string {
	return c.errs
}

// SendOffer implements negotiation.Signaler.
func (c *Client) SendOffer(sdp webrtc.SessionDescription, target string) error {
	return c.sendSignal(signaling.MessageTypeOffer, sdp, target)
}

// SendAnswer implements negotiation.Signaler.
func (c *Client) SendAnswer(sdp webrtc.SessionDescription, target string) error {
	return c.sendSignal(signaling.MessageTypeAnswer, sdp, target)
}

// SendCandidate implements negotiation.Signaler.
func (c *Client) SendCandidate(cand webrtc.ICECandidateInit, target string) error {
	return c.sendSignal(signaling.MessageTypeCandidate, cand, target)
}

// RequestReconnect implements negotiation.Signaler.
func (c *Client) RequestReconnect() error {
	c.send(&signaling.Message{Type: signaling.MessageTypeReconnectRequest})
	return nil
}

func (c *Client) sendSignal(msgType string, payload any, target string) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	c.send(&signaling.Message{
		Type:    msgType,
		Target:  target,
		Payload: raw,
	})
	return nil
}

func (c *Client) send(msg *signaling.Message) {
	select {
	case c.outgoing <- msg:
	case <-c.done:
	}
}

// readPump reads messages from the websocket connection and translates
// them into negotiation events.
func (c *Client) readPump() {
	defer func() {
		c.conn.Close()
		close(c.events)
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		var msg signaling.Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}
		c.dispatch(&msg)
	}
}

func (c *Client) dispatch(msg *signaling.Message) {
	switch msg.Type {
	case signaling.MessageTypeWelcome:
		var payload signaling.WelcomePayload
		if err := json.Unmarshal(msg.Payload, &payload); err == nil {
			select {
			case c.welcome <- payload.ConnID:
			default:
			}
		}

	case signaling.MessageTypePeerJoined:
		var payload signaling.PeerJoinedPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return
		}
		c.emit(negotiation.PeerJoined{PeerID: payload.PeerID, Role: payload.Role})

	case signaling.MessageTypeOffer:
		var sdp webrtc.SessionDescription
		if err := json.Unmarshal(msg.Payload, &sdp); err != nil {
			return
		}
		c.emit(negotiation.OfferReceived{SDP: sdp, From: msg.From})

	case signaling.MessageTypeAnswer:
		var sdp webrtc.SessionDescription
		if err := json.Unmarshal(msg.Payload, &sdp); err != nil {
			return
		}
		c.emit(negotiation.AnswerReceived{SDP: sdp, From: msg.From})

	case signaling.MessageTypeCandidate:
		var cand webrtc.ICECandidateInit
		if err := json.Unmarshal(msg.Payload, &cand); err != nil {
			return
		}
		c.emit(negotiation.CandidateReceived{Candidate: cand, From: msg.From})

	case signaling.MessageTypeReconnectRequest:
		var payload signaling.ReconnectPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return
		}
		c.emit(negotiation.ReconnectRequested{PeerID: payload.PeerID, Role: payload.Role})

	case signaling.MessageTypePeerDisconnected:
		var payload signaling.PeerDisconnectedPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return
		}
		c.emit(negotiation.PeerDisconnected{Role: payload.Role})

	case signaling.MessageTypeRouteToViewer:
		var payload signaling.RouteToViewerPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return
		}
		c.emit(negotiation.RouteToViewer{Room: payload.Room})

	case signaling.MessageTypeError:
		var payload signaling.ErrorPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return
		}
		select {
		case c.errs <- payload.Error:
		default:
		}

	default:
		c.logger.Debug("unknown relay message", "type", msg.Type)
	}
}

func (c *Client) emit(ev negotiation.Event) {
	select {
	case c.events <- ev:
	default:
		c.logger.Warn("relay event dropped, consumer too slow")
	}
}

// writePump writes messages to the websocket connection and sends
// periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.outgoing:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// Close closes the websocket connection and stops the pumps.
func (c *Client) Close() {
	if c.closed {
		return
	}
	c.closed = true
	close(c.done)
}
