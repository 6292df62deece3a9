package voice

import (
	"sync"

	"github.com/pion/webrtc/v4"
)

// fakeConn is a scriptable Conn double. Tests fire its captured callbacks to
// simulate transport events.
type fakeConn struct {
	mu sync.Mutex

	offerCalls  int
	answerCalls int
	remoteDescs []webrtc.SessionDescription
	candidates  []webrtc.ICECandidateInit
	trackCalls  int
	closeCalls  int

	offerErr     error
	answerErr    error
	remoteErr    error
	candidateErr error

	onCandidate func(webrtc.ICECandidateInit)
	onState     func(webrtc.PeerConnectionState)
	onTrack     func(*webrtc.TrackRemote)
}

func (c *fakeConn) CreateOffer() (webrtc.SessionDescription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offerCalls++
	if c.offerErr != nil {
		return webrtc.SessionDescription{}, c.offerErr
	}
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0 offer"}, nil
}

func (c *fakeConn) CreateAnswer(remote webrtc.SessionDescription) (webrtc.SessionDescription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.answerCalls++
	c.remoteDescs = append(c.remoteDescs, remote)
	if c.answerErr != nil {
		return webrtc.SessionDescription{}, c.answerErr
	}
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "v=0 answer"}, nil
}

func (c *fakeConn) SetRemoteDescription(remote webrtc.SessionDescription) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.remoteErr != nil {
		return c.remoteErr
	}
	c.remoteDescs = append(c.remoteDescs, remote)
	return nil
}

func (c *fakeConn) AddICECandidate(cand webrtc.ICECandidateInit) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.candidateErr != nil {
		return c.candidateErr
	}
	c.candidates = append(c.candidates, cand)
	return nil
}

func (c *fakeConn) AddTrack(track webrtc.TrackLocal) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.trackCalls++
	return nil
}

func (c *fakeConn) OnICECandidate(fn func(webrtc.ICECandidateInit)) { c.onCandidate = fn }
func (c *fakeConn) OnStateChange(fn func(webrtc.PeerConnectionState)) {
	c.onState = fn
}
func (c *fakeConn) OnTrack(fn func(*webrtc.TrackRemote)) { c.onTrack = fn }

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeCalls++
	return nil
}

// fakeFactory hands out fakeConns in creation order and remembers them.
type fakeFactory struct {
	conns []*fakeConn
	err   error
}

func (f *fakeFactory) new() (Conn, error) {
	if f.err != nil {
		return nil, f.err
	}
	conn := &fakeConn{}
	f.conns = append(f.conns, conn)
	return conn, nil
}

// last returns the most recently created conn.
func (f *fakeFactory) last() *fakeConn {
	return f.conns[len(f.conns)-1]
}

// sentSignal records one emitted signaling message.
type sentSignal struct {
	kind   string // "offer", "answer", "candidate"
	roomID string
	target string
	from   string
}

// fakeEmitter records outbound signaling.
type fakeEmitter struct {
	joins   []string
	leaves  []string
	signals []sentSignal

	joinErr   error
	offerErr  error
	answerErr error
}

func (e *fakeEmitter) JoinVoiceRoom(userID, roomID string) error {
	if e.joinErr != nil {
		return e.joinErr
	}
	e.joins = append(e.joins, roomID)
	return nil
}

func (e *fakeEmitter) LeaveVoiceRoom(userID, roomID string) error {
	e.leaves = append(e.leaves, roomID)
	return nil
}

func (e *fakeEmitter) SendOffer(roomID, target, from string, sdp webrtc.SessionDescription) error {
	if e.offerErr != nil {
		return e.offerErr
	}
	e.signals = append(e.signals, sentSignal{kind: "offer", roomID: roomID, target: target, from: from})
	return nil
}

func (e *fakeEmitter) SendAnswer(roomID, target, from string, sdp webrtc.SessionDescription) error {
	if e.answerErr != nil {
		return e.answerErr
	}
	e.signals = append(e.signals, sentSignal{kind: "answer", roomID: roomID, target: target, from: from})
	return nil
}

func (e *fakeEmitter) SendCandidate(roomID, target, from string, cand webrtc.ICECandidateInit) error {
	e.signals = append(e.signals, sentSignal{kind: "candidate", roomID: roomID, target: target, from: from})
	return nil
}

// offersTo returns the targets of emitted offers, in order.
func (e *fakeEmitter) offersTo() []string {
	var out []string
	for _, s := range e.signals {
		if s.kind == "offer" {
			out = append(out, s.target)
		}
	}
	return out
}

// fakeNotifier records user-facing notifications.
type fakeNotifier struct {
	joined       []string
	connected    []string
	disconnected []string
	left         []string
	invites      []string
	failures     []string
}

func (n *fakeNotifier) VoiceJoined(userID, nickname string)  { n.joined = append(n.joined, userID) }
func (n *fakeNotifier) VoiceConnected(userID string)         { n.connected = append(n.connected, userID) }
func (n *fakeNotifier) VoiceDisconnected(userID string)      { n.disconnected = append(n.disconnected, userID) }
func (n *fakeNotifier) VoiceLeft(userID string)              { n.left = append(n.left, userID) }
func (n *fakeNotifier) VoiceInvite(userID, nickname string)  { n.invites = append(n.invites, userID) }
func (n *fakeNotifier) VoiceFailure(message string)          { n.failures = append(n.failures, message) }

// fakeSink records track bindings.
type fakeSink struct {
	bound   []string
	unbound []string
}

func (s *fakeSink) Bind(userID string, track *webrtc.TrackRemote) { s.bound = append(s.bound, userID) }
func (s *fakeSink) Unbind(userID string)                          { s.unbound = append(s.unbound, userID) }

// fakeAudio is a no-op audio source.
type fakeAudio struct {
	muted  bool
	closed int
}

func (a *fakeAudio) Track() webrtc.TrackLocal { return nil }
func (a *fakeAudio) SetMuted(muted bool)      { a.muted = muted }
func (a *fakeAudio) Close() error {
	a.closed++
	return nil
}
