package voice

import (
	"github.com/pion/webrtc/v4"
)

// Conn is the connection-establishment primitive a PeerLink drives. It is
// satisfied by a pion peer connection in production and by a fake in tests;
// NAT traversal, DTLS and media transport all live behind it.
type Conn interface {
	// CreateOffer produces a local session description and installs it.
	CreateOffer() (webrtc.SessionDescription, error)

	// CreateAnswer installs the remote offer, produces a local answer and
	// installs it.
	CreateAnswer(remote webrtc.SessionDescription) (webrtc.SessionDescription, error)

	// SetRemoteDescription installs the remote answer.
	SetRemoteDescription(remote webrtc.SessionDescription) error

	// AddICECandidate appends a candidate to the connection's pool.
	AddICECandidate(cand webrtc.ICECandidateInit) error

	// AddTrack attaches the local audio track to the connection.
	AddTrack(track webrtc.TrackLocal) error

	OnICECandidate(fn func(webrtc.ICECandidateInit))
	OnStateChange(fn func(webrtc.PeerConnectionState))
	OnTrack(fn func(*webrtc.TrackRemote))

	// Close tears the connection down. Closing twice is a no-op.
	Close() error
}

// ConnFactory constructs a fresh Conn for a new peer link.
type ConnFactory func() (Conn, error)

// PionFactory returns a ConnFactory backed by pion peer connections using
// the given STUN servers.
func PionFactory(stunServers []string) ConnFactory {
	cfg := webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{{URLs: stunServers}},
	}
	return func() (Conn, error) {
		pc, err := webrtc.NewPeerConnection(cfg)
		if err != nil {
			return nil, opErr("create peer connection", err)
		}
		return &pionConn{pc: pc}, nil
	}
}

type pionConn struct {
	pc *webrtc.PeerConnection
}

func (c *pionConn) CreateOffer() (webrtc.SessionDescription, error) {
	offer, err := c.pc.CreateOffer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, err
	}

	if err = c.pc.SetLocalDescription(offer); err != nil {
		return webrtc.SessionDescription{}, err
	}

	return *c.pc.LocalDescription(), nil
}

func (c *pionConn) CreateAnswer(remote webrtc.SessionDescription) (webrtc.SessionDescription, error) {
	if err := c.pc.SetRemoteDescription(remote); err != nil {
		return webrtc.SessionDescription{}, err
	}

	answer, err := c.pc.CreateAnswer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, err
	}

	if err = c.pc.SetLocalDescription(answer); err != nil {
		return webrtc.SessionDescription{}, err
	}

	return *c.pc.LocalDescription(), nil
}

func (c *pionConn) SetRemoteDescription(remote webrtc.SessionDescription) error {
	return c.pc.SetRemoteDescription(remote)
}

func (c *pionConn) AddICECandidate(cand webrtc.ICECandidateInit) error {
	return c.pc.AddICECandidate(cand)
}

func (c *pionConn) AddTrack(track webrtc.TrackLocal) error {
	_, err := c.pc.AddTrack(track)
	return err
}

func (c *pionConn) OnICECandidate(fn func(webrtc.ICECandidateInit)) {
	c.pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand == nil {
			return
		}
		fn(cand.ToJSON())
	})
}

func (c *pionConn) OnStateChange(fn func(webrtc.PeerConnectionState)) {
	c.pc.OnConnectionStateChange(fn)
}

func (c *pionConn) OnTrack(fn func(*webrtc.TrackRemote)) {
	c.pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		fn(track)
	})
}

func (c *pionConn) Close() error {
	return c.pc.Close()
}
