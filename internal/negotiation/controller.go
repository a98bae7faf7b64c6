// Package negotiation drives one peer connection through offer/answer and
// candidate exchange to a working transport, and recovers from mid-session
// failures through the registry's reconnect flow.
package negotiation

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/AnujaKalahara99/camconnectit/internal/signaling"
)

// transportEvent is an internal event raised by peer connection callbacks.
// Callbacks fire on pion goroutines; the Run loop is the only consumer.
type transportEvent interface {
	isTransportEvent()
}

type localCandidate struct{ cand webrtc.ICECandidateInit }
type connectionChange struct{ state webrtc.PeerConnectionState }
type channelOpen struct{ dc *webrtc.DataChannel }

func (localCandidate) isTransportEvent()   {}
func (connectionChange) isTransportEvent() {}
func (channelOpen) isTransportEvent()      {}

// Controller owns the peer connection lifecycle for one side of a session.
// All state transitions happen on the Run goroutine; exported mutators go
// through a command channel.
type Controller struct {
	role     signaling.Role
	signaler Signaler
	factory  PeerFactory
	peer     Peer

	mu      sync.Mutex
	state   State
	lastErr error

	retry          RetryPolicy
	attempts       int
	reconnectTimer *time.Timer

	offerOnStart bool
	peerID       string

	transport chan transportEvent
	commands  chan func()

	onState   func(State)
	onChannel func(*webrtc.DataChannel)
	onRoute   func(room string)

	logger *slog.Logger
}

// Option configures a Controller.
type Option func(*Controller)

// WithRetryPolicy overrides the reconnect retry policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Controller) { c.retry = p }
}

// WithStateHandler registers a callback invoked on every state change,
// from the Run goroutine.
func WithStateHandler(fn func(State)) Option {
	return func(c *Controller) { c.onState = fn }
}

// WithChannelHandler registers a callback invoked when the transfer data
// channel opens.
func WithChannelHandler(fn func(*webrtc.DataChannel)) Option {
	return func(c *Controller) { c.onChannel = fn }
}

// WithRouteHandler registers a callback for route-to-viewer notices.
func WithRouteHandler(fn func(room string)) Option {
	return func(c *Controller) { c.onRoute = fn }
}

// WithImmediateOffer makes the initiator send its offer at startup instead
// of waiting for a peer-joined notice. The polling transport has no join
// vocabulary, so the camera offers blind and the viewer picks it up.
func WithImmediateOffer() Option {
	return func(c *Controller) { c.offerOnStart = true }
}

// NewController creates a Controller for the given role.
func NewController(role signaling.Role, signaler Signaler, factory PeerFactory, opts ...Option) *Controller {
	c := &Controller{
		role:      role,
		signaler:  signaler,
		factory:   factory,
		state:     StateIdle,
		retry:     DefaultRetryPolicy(),
		transport: make(chan transportEvent, 32),
		commands:  make(chan func(), 8),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current negotiation state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err returns the last negotiation error surfaced to the caller.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// StatusLabel returns the user-facing connection label.
func (c *Controller) StatusLabel() string {
	return c.State().StatusLabel()
}

// ReplaceTrack swaps the outgoing video track and renegotiates if the
// signaling state is not stable at the moment of the swap.
func (c *Controller) ReplaceTrack(track webrtc.TrackLocal) {
	c.commands <- func() { c.replaceTrack(track) }
}

// Run processes signaling and transport events until ctx is cancelled.
// Ordering is per-connection only: everything here happens on this one
// goroutine.
func (c *Controller) Run(ctx context.Context) error {
	if err := c.newPeer(); err != nil {
		c.fail(err)
		return err
	}
	defer func() {
		c.setState(StateClosed)
		c.peer.Close()
	}()

	if c.offerOnStart && c.role == signaling.RoleCamera {
		c.sendOffer()
	}

	for {
		var reconnectC <-chan time.Time
		if c.reconnectTimer != nil {
			reconnectC = c.reconnectTimer.C
		}

		select {
		case ev, ok := <-c.signaler.Events():
			if !ok {
				return nil
			}
			c.handleSignal(ev)

		case te := <-c.transport:
			c.handleTransport(te)

		case cmd := <-c.commands:
			cmd()

		case <-reconnectC:
			c.reconnectTimer = nil
			if err := c.signaler.RequestReconnect(); err != nil {
				c.logger.Warn("reconnect request failed", "err", err)
			}

		case <-ctx.Done():
			return nil
		}
	}
}

// newPeer builds a fresh peer connection wired into the transport channel.
func (c *Controller) newPeer() error {
	peer, err := c.factory(PeerHooks{
		OnCandidate: func(cand webrtc.ICECandidateInit) {
			c.pushTransport(localCandidate{cand: cand})
		},
		OnConnectionChange: func(s webrtc.PeerConnectionState) {
			c.pushTransport(connectionChange{state: s})
		},
		OnDataChannel: func(dc *webrtc.DataChannel) {
			dc.OnOpen(func() {
				c.pushTransport(channelOpen{dc: dc})
			})
		},
	})
	if err != nil {
		return err
	}
	c.peer = peer
	return nil
}

// pushTransport never blocks a pion callback goroutine; events are dropped
// once the controller stops draining them.
func (c *Controller) pushTransport(te transportEvent) {
	select {
	case c.transport <- te:
	default:
		c.logger.Warn("transport event dropped")
	}
}

func (c *Controller) handleSignal(ev Event) {
	switch ev := ev.(type) {
	case PeerJoined:
		c.peerID = ev.PeerID
		c.logger.Info("peer joined", "peer", ev.PeerID, "role", ev.Role)
		if c.role == signaling.RoleCamera {
			c.sendOffer()
		}

	case OfferReceived:
		c.setState(StateOfferReceived)
		answer, err := c.peer.Answer(ev.SDP)
		if err != nil {
			c.fail(err)
			return
		}
		if ev.From != "" {
			c.peerID = ev.From
		}
		if err := c.signaler.SendAnswer(answer, ev.From); err != nil {
			c.fail(err)
			return
		}
		c.setState(StateAnswered)

	case AnswerReceived:
		if err := c.peer.AcceptAnswer(ev.SDP); err != nil {
			c.fail(err)
			return
		}
		c.setState(StateStable)

	case CandidateReceived:
		// A single bad candidate must not abort the session;
		// connectivity often succeeds via another one.
		if err := c.peer.AddCandidate(ev.Candidate); err != nil {
			c.logger.Warn("ignoring bad candidate", "err", err)
		}

	case ReconnectRequested:
		c.logger.Info("rebuilding transport on reconnect request", "peer", ev.PeerID)
		c.resetPeer()
		if c.role == signaling.RoleCamera {
			c.sendOffer()
		}

	case PeerDisconnected:
		c.logger.Info("peer disconnected", "role", ev.Role)
		c.setState(StateFailed)

	case RouteToViewer:
		if c.onRoute != nil {
			c.onRoute(ev.Room)
		}
	}
}

func (c *Controller) handleTransport(te transportEvent) {
	switch te := te.(type) {
	case localCandidate:
		if err := c.signaler.SendCandidate(te.cand, c.peerID); err != nil {
			c.logger.Warn("candidate send failed", "err", err)
		}

	case connectionChange:
		switch te.state {
		case webrtc.PeerConnectionStateDisconnected, webrtc.PeerConnectionStateFailed:
			c.setState(StateFailed)
			c.scheduleReconnect()
		case webrtc.PeerConnectionStateConnected:
			c.attempts = 0
		}

	case channelOpen:
		c.setState(StateStable)
		c.attempts = 0
		if c.onChannel != nil {
			c.onChannel(te.dc)
		}
	}
}

// sendOffer produces an offer and ships it to the known peer (or the
// room, when no peer id is known yet).
func (c *Controller) sendOffer() {
	sdp, err := c.peer.Offer()
	if err != nil {
		c.fail(err)
		return
	}
	if err := c.signaler.SendOffer(sdp, c.peerID); err != nil {
		c.fail(err)
		return
	}
	if c.State() != StateRenegotiating {
		c.setState(StateOfferSent)
	}
}

func (c *Controller) replaceTrack(track webrtc.TrackLocal) {
	if err := c.peer.ReplaceVideoTrack(track); err != nil {
		c.logger.Warn("track replacement failed", "err", err)
		return
	}
	if !c.peer.Stable() {
		c.setState(StateRenegotiating)
		c.sendOffer()
	}
}

// resetPeer tears down the current peer connection and builds a fresh one,
// re-entering the state machine at idle.
func (c *Controller) resetPeer() {
	c.peer.Close()
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	c.attempts = 0
	if err := c.newPeer(); err != nil {
		c.fail(err)
		return
	}
	c.setState(StateIdle)
}

// scheduleReconnect arms a bounded-delay reconnect request instead of
// retrying immediately.
func (c *Controller) scheduleReconnect() {
	if c.reconnectTimer != nil {
		return
	}
	delay, ok := c.retry.NextDelay(c.attempts)
	if !ok {
		c.logger.Warn("reconnect attempts exhausted")
		return
	}
	c.attempts++
	c.reconnectTimer = time.NewTimer(delay)
}

// fail records a negotiation error and surfaces it as a connection-state
// change. The controller keeps running; recovery goes through the
// reconnect flow.
func (c *Controller) fail(err error) {
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
	c.logger.Error("negotiation error", "err", err)
	c.setState(StateFailed)
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	if c.state == s {
		c.mu.Unlock()
		return
	}
	prev := c.state
	c.state = s
	c.mu.Unlock()

	c.logger.Debug("negotiation state", "from", prev, "to", s)
	if c.onState != nil {
		c.onState(s)
	}
}
