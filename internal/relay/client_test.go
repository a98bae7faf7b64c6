package relay

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pion/webrtc/v4"

	"github.com/AnujaKalahara99/camconnectit/internal/negotiation"
	"github.com/AnujaKalahara99/camconnectit/internal/polling"
	"github.com/AnujaKalahara99/camconnectit/internal/server"
	"github.com/AnujaKalahara99/camconnectit/internal/signaling"
)

func startServer(t *testing.T) string {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hub := signaling.NewHub()
	go hub.Run()

	srv := httptest.NewServer(server.NewRouter(hub, polling.NewMemoryLog()))
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func dial(t *testing.T, wsURL string) *Client {
	t.Helper()
	c := NewClient(wsURL)
	if err := c.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(c.Close)
	if c.ConnID() == "" {
		t.Fatal("no connection id assigned")
	}
	return c
}

func nextEvent(t *testing.T, c *Client) negotiation.Event {
	t.Helper()
	select {
	case ev, ok := <-c.Events():
		if !ok {
			t.Fatal("event channel closed")
		}
		return ev
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestOfferAnswerCandidateRoundTrip(t *testing.T) {
	wsURL := startServer(t)

	camera := dial(t, wsURL)
	viewer := dial(t, wsURL)

	camera.Register("room-1", signaling.RoleCamera)
	viewer.Register("room-1", signaling.RoleViewer)

	joined, ok := nextEvent(t, camera).(negotiation.PeerJoined)
	if !ok {
		t.Fatal("camera did not see the viewer join")
	}
	if joined.PeerID != viewer.ConnID() || joined.Role != signaling.RoleViewer {
		t.Fatalf("peer-joined = %+v", joined)
	}
	if _, ok := nextEvent(t, viewer).(negotiation.PeerJoined); !ok {
		t.Fatal("viewer did not see the camera join")
	}

	offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0 offer"}
	if err := camera.SendOffer(offer, joined.PeerID); err != nil {
		t.Fatalf("SendOffer: %v", err)
	}

	gotOffer, ok := nextEvent(t, viewer).(negotiation.OfferReceived)
	if !ok {
		t.Fatal("viewer did not receive the offer")
	}
	if gotOffer.SDP.SDP != offer.SDP {
		t.Errorf("offer SDP = %q", gotOffer.SDP.SDP)
	}
	if gotOffer.From != camera.ConnID() {
		t.Errorf("offer From = %q, want camera id", gotOffer.From)
	}

	answer := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "v=0 answer"}
	if err := viewer.SendAnswer(answer, gotOffer.From); err != nil {
		t.Fatalf("SendAnswer: %v", err)
	}
	gotAnswer, ok := nextEvent(t, camera).(negotiation.AnswerReceived)
	if !ok {
		t.Fatal("camera did not receive the answer")
	}
	if gotAnswer.SDP.SDP != answer.SDP {
		t.Errorf("answer SDP = %q", gotAnswer.SDP.SDP)
	}

	cand := webrtc.ICECandidateInit{Candidate: "candidate:1 1 udp 1 192.0.2.1 9 typ host"}
	if err := camera.SendCandidate(cand, viewer.ConnID()); err != nil {
		t.Fatalf("SendCandidate: %v", err)
	}
	gotCand, ok := nextEvent(t, viewer).(negotiation.CandidateReceived)
	if !ok {
		t.Fatal("viewer did not receive the candidate")
	}
	if gotCand.Candidate.Candidate != cand.Candidate {
		t.Errorf("candidate = %q", gotCand.Candidate.Candidate)
	}
}

func TestReconnectRequestReachesCounterpart(t *testing.T) {
	wsURL := startServer(t)

	camera := dial(t, wsURL)
	viewer := dial(t, wsURL)

	camera.Register("room-2", signaling.RoleCamera)
	viewer.Register("room-2", signaling.RoleViewer)
	nextEvent(t, camera)
	nextEvent(t, viewer)

	if err := viewer.RequestReconnect(); err != nil {
		t.Fatalf("RequestReconnect: %v", err)
	}
	req, ok := nextEvent(t, camera).(negotiation.ReconnectRequested)
	if !ok {
		t.Fatal("camera did not receive the reconnect request")
	}
	if req.PeerID != viewer.ConnID() {
		t.Errorf("reconnect PeerID = %q, want viewer id", req.PeerID)
	}
}

func TestDisconnectNotifiesCounterpart(t *testing.T) {
	wsURL := startServer(t)

	camera := dial(t, wsURL)
	viewer := dial(t, wsURL)

	camera.Register("room-3", signaling.RoleCamera)
	viewer.Register("room-3", signaling.RoleViewer)
	nextEvent(t, camera)
	nextEvent(t, viewer)

	viewer.Close()

	gone, ok := nextEvent(t, camera).(negotiation.PeerDisconnected)
	if !ok {
		t.Fatal("camera did not see the viewer leave")
	}
	if gone.Role != signaling.RoleViewer {
		t.Errorf("disconnected role = %q, want viewer", gone.Role)
	}
}

func TestLobbyRoutingAndTransition(t *testing.T) {
	wsURL := startServer(t)

	lobby := dial(t, wsURL)
	lobby.Register("room-4", signaling.RoleLobby)

	camera := dial(t, wsURL)
	camera.Register("room-4", signaling.RoleCamera)

	route, ok := nextEvent(t, lobby).(negotiation.RouteToViewer)
	if !ok {
		t.Fatal("lobby was not routed when the camera arrived")
	}
	if route.Room != "room-4" {
		t.Errorf("routed room = %q", route.Room)
	}

	lobby.TransitionToViewer()

	joined, ok := nextEvent(t, camera).(negotiation.PeerJoined)
	if !ok {
		t.Fatal("camera did not see the promoted viewer")
	}
	if joined.Role != signaling.RoleViewer || joined.PeerID != lobby.ConnID() {
		t.Errorf("peer-joined = %+v", joined)
	}
	if _, ok := nextEvent(t, lobby).(negotiation.PeerJoined); !ok {
		t.Fatal("promoted viewer did not see the camera")
	}
}

func TestServerRejectsRelayBeforeRegister(t *testing.T) {
	wsURL := startServer(t)

	c := dial(t, wsURL)
	if err := c.SendOffer(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0"}, ""); err != nil {
		t.Fatalf("SendOffer: %v", err)
	}

	select {
	case reason := <-c.Errors():
		if reason == "" {
			t.Error("empty error reason")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no error notice for unregistered relay")
	}
}
