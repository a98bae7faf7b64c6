package polling

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/AnujaKalahara99/camconnectit/internal/negotiation"
	"github.com/AnujaKalahara99/camconnectit/internal/signaling"
)

// Poller drives the HTTP polling transport from the client side: it posts
// local negotiation messages and polls the per-type logs on a fixed
// interval, translating new entries into negotiation events. It trades
// latency for working without a persistent connection.
type Poller struct {
	baseURL   string
	sessionID string
	role      signaling.Role
	interval  time.Duration

	http    *http.Client
	cursors map[string]int
	events  chan negotiation.Event
	logger  *slog.Logger
}

// NewPoller creates a Poller for the given signaling endpoint and session.
func NewPoller(baseURL, sessionID string, role signaling.Role, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = time.Second
	}
	return &Poller{
		baseURL:   baseURL,
		sessionID: sessionID,
		role:      role,
		interval:  interval,
		http:      &http.Client{Timeout: 10 * time.Second},
		cursors:   make(map[string]int),
		events:    make(chan negotiation.Event, 32),
		logger:    slog.Default(),
	}
}

// Events implements negotiation.Signaler.
func (p *Poller) Events() <-chan negotiation.Event {
	return p.events
}

// SendOffer implements negotiation.Signaler. Targets are meaningless over
// the polling transport; the session id scopes delivery.
func (p *Poller) SendOffer(sdp webrtc.SessionDescription, _ string) error {
	return p.post(TypeOffer, sdp)
}

// SendAnswer implements negotiation.Signaler.
func (p *Poller) SendAnswer(sdp webrtc.SessionDescription, _ string) error {
	return p.post(TypeAnswer, sdp)
}

// SendCandidate implements negotiation.Signaler.
func (p *Poller) SendCandidate(cand webrtc.ICECandidateInit, _ string) error {
	return p.post(TypeCandidate, cand)
}

// RequestReconnect implements negotiation.Signaler. The polling transport
// has no reconnect vocabulary; recovery is re-offer driven.
func (p *Poller) RequestReconnect() error {
	return nil
}

// Start launches the poll loop. The camera polls for answers, the viewer
// for offers; both poll for candidates.
func (p *Poller) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		defer close(p.events)

		for {
			select {
			case <-ticker.C:
				if p.role == signaling.RoleCamera {
					p.poll(ctx, TypeAnswer)
				} else {
					p.poll(ctx, TypeOffer)
				}
				p.poll(ctx, TypeCandidate)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Clear deletes the session's logs on the server, for teardown.
func (p *Poller) Clear(ctx context.Context) error {
	u := fmt.Sprintf("%s?sessionId=%s", p.baseURL, url.QueryEscape(p.sessionID))
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, u, nil)
	if err != nil {
		return err
	}
	resp, err := p.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return ErrSessionNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("clear session: status %d", resp.StatusCode)
	}
	return nil
}

type postBody struct {
	SessionID string `json:"sessionId"`
	Type      string `json:"type"`
	Data      any    `json:"data"`
}

func (p *Poller) post(msgType string, data any) error {
	body, err := json.Marshal(postBody{SessionID: p.sessionID, Type: msgType, Data: data})
	if err != nil {
		return err
	}
	resp, err := p.http.Post(p.baseURL, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("post %s: status %d", msgType, resp.StatusCode)
	}
	return nil
}

type pollResult struct {
	Messages  []json.RawMessage `json:"messages"`
	LastIndex int               `json:"lastIndex"`
}

func (p *Poller) poll(ctx context.Context, msgType string) {
	u := fmt.Sprintf("%s?sessionId=%s&type=%s&lastIndex=%d",
		p.baseURL, url.QueryEscape(p.sessionID), msgType, p.cursors[msgType])
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return
	}
	resp, err := p.http.Do(req)
	if err != nil {
		p.logger.Debug("poll failed", "type", msgType, "err", err)
		return
	}
	defer resp.Body.Close()

	var result pollResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		p.logger.Debug("poll decode failed", "type", msgType, "err", err)
		return
	}

	for _, raw := range result.Messages {
		p.emit(msgType, raw)
	}
	if result.LastIndex > p.cursors[msgType] {
		p.cursors[msgType] = result.LastIndex
	}
}

func (p *Poller) emit(msgType string, raw json.RawMessage) {
	var ev negotiation.Event
	switch msgType {
	case TypeOffer, TypeAnswer:
		var sdp webrtc.SessionDescription
		if err := json.Unmarshal(raw, &sdp); err != nil {
			p.logger.Warn("bad session description", "type", msgType, "err", err)
			return
		}
		if msgType == TypeOffer {
			ev = negotiation.OfferReceived{SDP: sdp}
		} else {
			ev = negotiation.AnswerReceived{SDP: sdp}
		}
	case TypeCandidate:
		var cand webrtc.ICECandidateInit
		if err := json.Unmarshal(raw, &cand); err != nil {
			p.logger.Warn("bad candidate", "err", err)
			return
		}
		ev = negotiation.CandidateReceived{Candidate: cand}
	default:
		return
	}

	select {
	case p.events <- ev:
	default:
		p.logger.Warn("event dropped, consumer too slow", "type", msgType)
	}
}
