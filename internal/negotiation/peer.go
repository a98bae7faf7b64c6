package negotiation

import (
	"github.com/pion/webrtc/v4"

	"github.com/AnujaKalahara99/camconnectit/internal/config"
	"github.com/AnujaKalahara99/camconnectit/internal/signaling"
)

// DataChannelLabel is the label of the transfer data channel. Web peers
// open the channel under the same name.
const DataChannelLabel = "photo"

// Peer is the narrow slice of a peer connection the Controller drives.
// The pion implementation is built by NewPeerFactory; tests use a fake.
type Peer interface {
	// Offer creates an offer and installs it as the local description.
	Offer() (webrtc.SessionDescription, error)

	// Answer applies a remote offer and produces the local answer.
	Answer(remote webrtc.SessionDescription) (webrtc.SessionDescription, error)

	// AcceptAnswer applies the remote answer to a sent offer.
	AcceptAnswer(remote webrtc.SessionDescription) error

	// AddCandidate applies one remote connectivity candidate.
	AddCandidate(cand webrtc.ICECandidateInit) error

	// ReplaceVideoTrack swaps the outgoing video track, adding it if
	// none was negotiated yet.
	ReplaceVideoTrack(track webrtc.TrackLocal) error

	// Stable reports whether the signaling state is stable.
	Stable() bool

	Close() error
}

// PeerHooks receive transport-level callbacks from a Peer.
type PeerHooks struct {
	OnCandidate        func(webrtc.ICECandidateInit)
	OnConnectionChange func(webrtc.PeerConnectionState)
	OnDataChannel      func(*webrtc.DataChannel)
}

// PeerFactory builds a fresh Peer. The Controller calls it once at startup
// and again on every reconnect cycle.
type PeerFactory func(hooks PeerHooks) (Peer, error)

// NewPeerFactory returns a factory producing pion peer connections
// configured from cfg. The camera role creates the transfer data channel
// up front so it has content to negotiate; the viewer waits for the
// remote channel to arrive.
func NewPeerFactory(cfg *config.Config, role signaling.Role) PeerFactory {
	return func(hooks PeerHooks) (Peer, error) {
		iceServers := []webrtc.ICEServer{{URLs: cfg.GetSTUNServers()}}
		if turn := cfg.GetTURNServers(); turn != nil {
			username, password := cfg.GetTURNCredentials()
			iceServers = append(iceServers, webrtc.ICEServer{
				URLs:       turn,
				Username:   username,
				Credential: password,
			})
		}

		pc, err := webrtc.NewPeerConnection(webrtc.Configuration{ICEServers: iceServers})
		if err != nil {
			return nil, err
		}

		pc.OnICECandidate(func(c *webrtc.ICECandidate) {
			if c == nil || hooks.OnCandidate == nil {
				return
			}
			hooks.OnCandidate(c.ToJSON())
		})
		if hooks.OnConnectionChange != nil {
			pc.OnConnectionStateChange(hooks.OnConnectionChange)
		}

		if role == signaling.RoleCamera {
			ordered := true
			dc, err := pc.CreateDataChannel(DataChannelLabel, &webrtc.DataChannelInit{
				Ordered: &ordered,
			})
			if err != nil {
				pc.Close()
				return nil, err
			}
			if hooks.OnDataChannel != nil {
				hooks.OnDataChannel(dc)
			}
		} else {
			pc.OnDataChannel(func(dc *webrtc.DataChannel) {
				if dc.Label() == DataChannelLabel && hooks.OnDataChannel != nil {
					hooks.OnDataChannel(dc)
				}
			})
		}

		return &pionPeer{pc: pc}, nil
	}
}

type pionPeer struct {
	pc *webrtc.PeerConnection
}

func (p *pionPeer) Offer() (webrtc.SessionDescription, error) {
	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, err
	}
	if err := p.pc.SetLocalDescription(offer); err != nil {
		return webrtc.SessionDescription{}, err
	}
	return *p.pc.LocalDescription(), nil
}

func (p *pionPeer) Answer(remote webrtc.SessionDescription) (webrtc.SessionDescription, error) {
	if err := p.pc.SetRemoteDescription(remote); err != nil {
		return webrtc.SessionDescription{}, err
	}
	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, err
	}
	if err := p.pc.SetLocalDescription(answer); err != nil {
		return webrtc.SessionDescription{}, err
	}
	return *p.pc.LocalDescription(), nil
}

func (p *pionPeer) AcceptAnswer(remote webrtc.SessionDescription) error {
	return p.pc.SetRemoteDescription(remote)
}

func (p *pionPeer) AddCandidate(cand webrtc.ICECandidateInit) error {
	return p.pc.AddICECandidate(cand)
}

func (p *pionPeer) ReplaceVideoTrack(track webrtc.TrackLocal) error {
	for _, sender := range p.pc.GetSenders() {
		if t := sender.Track(); t != nil && t.Kind() == webrtc.RTPCodecTypeVideo {
			return sender.ReplaceTrack(track)
		}
	}
	_, err := p.pc.AddTrack(track)
	return err
}

func (p *pionPeer) Stable() bool {
	return p.pc.SignalingState() == webrtc.SignalingStateStable
}

func (p *pionPeer) Close() error {
	return p.pc.Close()
}
