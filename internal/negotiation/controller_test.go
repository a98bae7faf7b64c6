package negotiation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/AnujaKalahara99/camconnectit/internal/signaling"
)

type sentSDP struct {
	sdp    webrtc.SessionDescription
	target string
}

type fakeSignaler struct {
	mu         sync.Mutex
	events     chan Event
	offers     []sentSDP
	answers    []sentSDP
	candidates []string
	reconnects int
}

func newFakeSignaler() *fakeSignaler {
	return &fakeSignaler{events: make(chan Event, 16)}
}

func (f *fakeSignaler) SendOffer(sdp webrtc.SessionDescription, target string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offers = append(f.offers, sentSDP{sdp: sdp, target: target})
	return nil
}

func (f *fakeSignaler) SendAnswer(sdp webrtc.SessionDescription, target string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, sentSDP{sdp: sdp, target: target})
	return nil
}

func (f *fakeSignaler) SendCandidate(_ webrtc.ICECandidateInit, target string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.candidates = append(f.candidates, target)
	return nil
}

func (f *fakeSignaler) RequestReconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reconnects++
	return nil
}

func (f *fakeSignaler) Events() <-chan Event { return f.events }

func (f *fakeSignaler) offerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.offers)
}

func (f *fakeSignaler) reconnectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reconnects
}

type fakePeer struct {
	mu           sync.Mutex
	offers       int
	accepted     int
	candidates   int
	candidateErr error
	stable       bool
	closed       bool
}

func (p *fakePeer) Offer() (webrtc.SessionDescription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.offers++
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "o"}, nil
}

func (p *fakePeer) Answer(webrtc.SessionDescription) (webrtc.SessionDescription, error) {
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "a"}, nil
}

func (p *fakePeer) AcceptAnswer(webrtc.SessionDescription) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.accepted++
	return nil
}

func (p *fakePeer) AddCandidate(webrtc.ICECandidateInit) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.candidates++
	return p.candidateErr
}

func (p *fakePeer) ReplaceVideoTrack(webrtc.TrackLocal) error { return nil }

func (p *fakePeer) Stable() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stable
}

func (p *fakePeer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// fakeFactory records every peer it builds along with the hooks the
// controller wired into it.
type fakeFactory struct {
	mu           sync.Mutex
	peers        []*fakePeer
	hooks        []PeerHooks
	candidateErr error
	stable       bool
}

func (f *fakeFactory) build(hooks PeerHooks) (Peer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	peer := &fakePeer{candidateErr: f.candidateErr, stable: f.stable}
	f.peers = append(f.peers, peer)
	f.hooks = append(f.hooks, hooks)
	return peer, nil
}

func (f *fakeFactory) peerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.peers)
}

func (f *fakeFactory) latestHooks() PeerHooks {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hooks[len(f.hooks)-1]
}

func (f *fakeFactory) latestPeer() *fakePeer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.peers[len(f.peers)-1]
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func startController(t *testing.T, role signaling.Role, opts ...Option) (*Controller, *fakeSignaler, *fakeFactory) {
	t.Helper()
	sig := newFakeSignaler()
	factory := &fakeFactory{}
	ctrl := NewController(role, sig, factory.build, opts...)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		ctrl.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	waitFor(t, "peer construction", func() bool { return factory.peerCount() == 1 })
	return ctrl, sig, factory
}

func TestCameraOffersWhenPeerJoins(t *testing.T) {
	ctrl, sig, _ := startController(t, signaling.RoleCamera)

	sig.events <- PeerJoined{PeerID: "viewer-1", Role: signaling.RoleViewer}

	waitFor(t, "offer", func() bool { return sig.offerCount() == 1 })
	sig.mu.Lock()
	target := sig.offers[0].target
	sig.mu.Unlock()
	if target != "viewer-1" {
		t.Errorf("offer target = %q, want viewer-1", target)
	}
	if got := ctrl.State(); got != StateOfferSent {
		t.Errorf("state = %v, want %v", got, StateOfferSent)
	}
}

func TestViewerAnswersOffer(t *testing.T) {
	ctrl, sig, _ := startController(t, signaling.RoleViewer)

	sig.events <- OfferReceived{
		SDP:  webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "remote"},
		From: "camera-1",
	}

	waitFor(t, "answer", func() bool {
		sig.mu.Lock()
		defer sig.mu.Unlock()
		return len(sig.answers) == 1
	})
	sig.mu.Lock()
	target := sig.answers[0].target
	sig.mu.Unlock()
	if target != "camera-1" {
		t.Errorf("answer target = %q, want camera-1", target)
	}
	if got := ctrl.State(); got != StateAnswered {
		t.Errorf("state = %v, want %v", got, StateAnswered)
	}
}

func TestAnswerCompletesCameraSide(t *testing.T) {
	ctrl, sig, factory := startController(t, signaling.RoleCamera)

	sig.events <- PeerJoined{PeerID: "viewer-1", Role: signaling.RoleViewer}
	waitFor(t, "offer", func() bool { return sig.offerCount() == 1 })

	sig.events <- AnswerReceived{
		SDP:  webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "remote"},
		From: "viewer-1",
	}

	waitFor(t, "stable state", func() bool { return ctrl.State() == StateStable })
	peer := factory.latestPeer()
	peer.mu.Lock()
	accepted := peer.accepted
	peer.mu.Unlock()
	if accepted != 1 {
		t.Errorf("accepted answers = %d, want 1", accepted)
	}
}

func TestBadCandidateIsSwallowed(t *testing.T) {
	sig := newFakeSignaler()
	factory := &fakeFactory{candidateErr: errors.New("malformed candidate")}
	ctrl := NewController(signaling.RoleViewer, sig, factory.build)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		ctrl.Run(ctx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	waitFor(t, "peer construction", func() bool { return factory.peerCount() == 1 })

	sig.events <- CandidateReceived{Candidate: workingCandidate(), From: "camera-1"}

	peer := factory.latestPeer()
	waitFor(t, "candidate attempt", func() bool {
		peer.mu.Lock()
		defer peer.mu.Unlock()
		return peer.candidates == 1
	})
	if got := ctrl.State(); got != StateIdle {
		t.Errorf("state = %v after bad candidate, want %v", got, StateIdle)
	}
	if err := ctrl.Err(); err != nil {
		t.Errorf("Err() = %v, want nil", err)
	}
}

func workingCandidate() webrtc.ICECandidateInit {
	return webrtc.ICECandidateInit{Candidate: "candidate:1 1 udp 2113937151 192.0.2.1 54400 typ host"}
}

func TestLocalCandidateForwardedToKnownPeer(t *testing.T) {
	_, sig, factory := startController(t, signaling.RoleCamera)

	sig.events <- PeerJoined{PeerID: "viewer-1", Role: signaling.RoleViewer}
	waitFor(t, "offer", func() bool { return sig.offerCount() == 1 })

	factory.latestHooks().OnCandidate(workingCandidate())

	waitFor(t, "candidate relay", func() bool {
		sig.mu.Lock()
		defer sig.mu.Unlock()
		return len(sig.candidates) == 1
	})
	sig.mu.Lock()
	target := sig.candidates[0]
	sig.mu.Unlock()
	if target != "viewer-1" {
		t.Errorf("candidate target = %q, want viewer-1", target)
	}
}

func TestTransportFailureSchedulesReconnect(t *testing.T) {
	ctrl, sig, factory := startController(t, signaling.RoleCamera,
		WithRetryPolicy(RetryPolicy{Delay: 5 * time.Millisecond, MaxAttempts: 1}))

	factory.latestHooks().OnConnectionChange(webrtc.PeerConnectionStateFailed)

	waitFor(t, "failed state", func() bool { return ctrl.State() == StateFailed })
	waitFor(t, "reconnect request", func() bool { return sig.reconnectCount() == 1 })
}

func TestReconnectRequestRebuildsPeerAndReoffers(t *testing.T) {
	_, sig, factory := startController(t, signaling.RoleCamera)

	sig.events <- PeerJoined{PeerID: "viewer-1", Role: signaling.RoleViewer}
	waitFor(t, "initial offer", func() bool { return sig.offerCount() == 1 })
	first := factory.latestPeer()

	sig.events <- ReconnectRequested{PeerID: "viewer-1", Role: signaling.RoleViewer}

	waitFor(t, "fresh peer", func() bool { return factory.peerCount() == 2 })
	waitFor(t, "re-offer", func() bool { return sig.offerCount() == 2 })

	first.mu.Lock()
	closed := first.closed
	first.mu.Unlock()
	if !closed {
		t.Error("previous peer connection was not closed")
	}
}

func TestReconnectRequestOnViewerWaitsForOffer(t *testing.T) {
	_, sig, factory := startController(t, signaling.RoleViewer)

	sig.events <- ReconnectRequested{PeerID: "camera-1", Role: signaling.RoleCamera}

	waitFor(t, "fresh peer", func() bool { return factory.peerCount() == 2 })
	if got := sig.offerCount(); got != 0 {
		t.Errorf("viewer sent %d offers on reconnect, want 0", got)
	}
}

func TestImmediateOfferForPollingCamera(t *testing.T) {
	_, sig, _ := startController(t, signaling.RoleCamera, WithImmediateOffer())

	waitFor(t, "startup offer", func() bool { return sig.offerCount() == 1 })
	sig.mu.Lock()
	target := sig.offers[0].target
	sig.mu.Unlock()
	if target != "" {
		t.Errorf("startup offer target = %q, want broadcast", target)
	}
}

func TestReplaceTrackRenegotiatesWhenNotStable(t *testing.T) {
	ctrl, sig, _ := startController(t, signaling.RoleCamera)

	ctrl.ReplaceTrack(nil)

	waitFor(t, "renegotiation offer", func() bool { return sig.offerCount() == 1 })
	if got := ctrl.State(); got != StateRenegotiating {
		t.Errorf("state = %v, want %v", got, StateRenegotiating)
	}
}

func TestReplaceTrackSkipsOfferWhenStable(t *testing.T) {
	sig := newFakeSignaler()
	factory := &fakeFactory{stable: true}
	ctrl := NewController(signaling.RoleCamera, sig, factory.build)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		ctrl.Run(ctx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	waitFor(t, "peer construction", func() bool { return factory.peerCount() == 1 })

	ctrl.ReplaceTrack(nil)

	// Give the command time to execute before asserting nothing happened.
	time.Sleep(20 * time.Millisecond)
	if got := sig.offerCount(); got != 0 {
		t.Errorf("stable track swap sent %d offers, want 0", got)
	}
}

func TestPeerDisconnectedMarksFailed(t *testing.T) {
	ctrl, sig, _ := startController(t, signaling.RoleViewer)

	sig.events <- PeerDisconnected{Role: signaling.RoleCamera}

	waitFor(t, "failed state", func() bool { return ctrl.State() == StateFailed })
}

func TestRouteToViewerInvokesHandler(t *testing.T) {
	routed := make(chan string, 1)
	_, sig, _ := startController(t, signaling.RoleLobby,
		WithRouteHandler(func(room string) { routed <- room }))

	sig.events <- RouteToViewer{Room: "room-9"}

	select {
	case room := <-routed:
		if room != "room-9" {
			t.Errorf("routed room = %q, want room-9", room)
		}
	case <-time.After(time.Second):
		t.Fatal("route handler not invoked")
	}
}
