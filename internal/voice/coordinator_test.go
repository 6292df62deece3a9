package voice

import (
	"errors"
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/craftbyte/craftchat/internal/signaling"
)

type coordFixture struct {
	coord    *Coordinator
	emitter  *fakeEmitter
	notifier *fakeNotifier
	sink     *fakeSink
	factory  *fakeFactory
	audio    *fakeAudio

	providerErr   error
	providerCalls int
}

func newFixture(t *testing.T) *coordFixture {
	t.Helper()

	f := &coordFixture{
		emitter:  &fakeEmitter{},
		notifier: &fakeNotifier{},
		sink:     &fakeSink{},
		factory:  &fakeFactory{},
		audio:    &fakeAudio{},
	}

	provider := func() (AudioSource, error) {
		if f.providerErr != nil {
			return nil, f.providerErr
		}
		f.providerCalls++
		return f.audio, nil
	}

	f.coord = NewCoordinator(
		Participant{ID: "alice", Nickname: "Alice"},
		f.emitter, f.notifier, f.sink, provider, f.factory.new,
		zerolog.Nop(),
	)
	return f
}

// start brings up an active session in room-1.
func (f *coordFixture) start(t *testing.T) {
	t.Helper()
	require.NoError(t, f.coord.StartVoice("room-1"))
}

// echoJoin delivers the echo of our own join listing the members already in
// voice, which triggers outbound offers.
func (f *coordFixture) echoJoin(existing ...string) {
	users := make([]signaling.UserInfo, len(existing))
	for i, id := range existing {
		users[i] = signaling.UserInfo{UserID: id, Nickname: id}
	}
	f.coord.HandleEvent(signaling.UserJoinedVoice{UserID: "alice", Nickname: "Alice", ExistingUsers: users})
}

func TestStartVoiceAnnouncesOnce(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	f.start(t)
	req.True(f.coord.Active())
	req.Equal("room-1", f.coord.RoomID())
	req.Equal([]string{"room-1"}, f.emitter.joins)

	// Starting again is a no-op, not a second announcement.
	req.NoError(f.coord.StartVoice("room-1"))
	req.Equal([]string{"room-1"}, f.emitter.joins)
}

func TestStartVoiceMediaFailureAbortsCleanly(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.providerErr = errors.New("device busy")

	err := f.coord.StartVoice("room-1")
	req.ErrorIs(err, ErrMediaAccess)
	req.False(f.coord.Active())
	req.Empty(f.emitter.joins)
}

func TestStartVoiceAnnounceFailureReleasesAudio(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.emitter.joinErr = errors.New("socket closed")

	err := f.coord.StartVoice("room-1")
	req.ErrorIs(err, ErrSignalingSend)
	req.False(f.coord.Active())
	req.Equal(1, f.audio.closed)
}

func TestJoinEchoInitiatesTowardExistingMembers(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.start(t)

	f.echoJoin("bob", "carol")

	req.ElementsMatch([]string{"bob", "carol"}, f.emitter.offersTo())
	req.Equal(2, f.coord.registry.Len())

	bob := f.coord.registry.Get("bob")
	req.NotNil(bob)
	req.True(bob.Initiator)
	req.Equal(StateNegotiating, bob.State())
}

func TestJoinEchoSkipsSelf(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.start(t)

	f.echoJoin("alice", "bob")

	req.Equal([]string{"bob"}, f.emitter.offersTo())
	req.Equal(1, f.coord.registry.Len())
}

func TestVoiceRoomUsersIsIdempotentWithEcho(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.start(t)

	f.echoJoin("bob")
	f.coord.HandleEvent(signaling.VoiceRoomUsers{Users: []signaling.UserInfo{{UserID: "bob"}}})

	// The roster arriving after the echo must not renegotiate.
	req.Equal([]string{"bob"}, f.emitter.offersTo())
	req.Equal(1, f.coord.registry.Len())
}

func TestRemoteJoinWhileActiveInitiatesLink(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.start(t)

	f.coord.HandleEvent(signaling.UserJoinedVoice{UserID: "dave", Nickname: "Dave"})

	req.Equal([]string{"dave"}, f.notifier.joined)
	req.Equal([]string{"dave"}, f.emitter.offersTo())

	link := f.coord.registry.Get("dave")
	req.NotNil(link)
	req.True(link.Initiator)
	req.Equal(StateNegotiating, link.State())
}

func TestRemoteJoinWhileInactiveBecomesInvite(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	f.coord.HandleEvent(signaling.UserJoinedVoice{UserID: "bob", Nickname: "Bob"})

	req.Equal([]string{"bob"}, f.notifier.invites)
	req.Zero(f.coord.registry.Len())
}

func TestRemoteOfferCreatesAnsweringLink(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.start(t)

	offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0 bob"}
	f.coord.HandleEvent(signaling.OfferReceived{FromUserID: "bob", Offer: offer})

	link := f.coord.registry.Get("bob")
	req.NotNil(link)
	req.False(link.Initiator)
	req.Equal(StateNegotiating, link.State())

	conn := f.factory.last()
	req.Equal(1, conn.answerCalls)
	req.Equal([]webrtc.SessionDescription{offer}, conn.remoteDescs)

	req.Len(f.emitter.signals, 1)
	req.Equal("answer", f.emitter.signals[0].kind)
	req.Equal("bob", f.emitter.signals[0].target)
}

func TestRemoteOfferWhileInactiveIsDropped(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	f.coord.HandleEvent(signaling.OfferReceived{FromUserID: "bob"})

	req.Zero(f.coord.registry.Len())
	req.Empty(f.emitter.signals)
}

func TestRemoteAnswerCompletesNegotiation(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.start(t)
	f.echoJoin("bob")

	answer := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "v=0 bob"}
	f.coord.HandleEvent(signaling.AnswerReceived{FromUserID: "bob", Answer: answer})

	req.Equal([]webrtc.SessionDescription{answer}, f.factory.last().remoteDescs)
}

func TestRemoteAnswerForUnknownPeerIsDiscarded(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	// Must not panic or create a link.
	f.coord.HandleEvent(signaling.AnswerReceived{FromUserID: "ghost"})
	require.Zero(t, f.coord.registry.Len())
}

func TestCandidatesRouteToTheirLink(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.start(t)
	f.echoJoin("bob")

	cand := webrtc.ICECandidateInit{Candidate: "candidate:1 1 udp 1 10.0.0.2 5000 typ host"}
	f.coord.HandleEvent(signaling.CandidateReceived{FromUserID: "bob", Candidate: cand})
	f.coord.HandleEvent(signaling.CandidateReceived{FromUserID: "ghost", Candidate: cand})

	req.Equal([]webrtc.ICECandidateInit{cand}, f.factory.last().candidates)
}

func TestBadCandidateDoesNotFailLink(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.start(t)
	f.echoJoin("bob")

	f.factory.last().candidateErr = errors.New("malformed")
	f.coord.HandleEvent(signaling.CandidateReceived{FromUserID: "bob"})

	req.NotNil(f.coord.registry.Get("bob"))
	req.Equal(StateNegotiating, f.coord.registry.Get("bob").State())
}

func TestUserLeftVoiceTearsDownLink(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.start(t)
	f.echoJoin("bob")
	conn := f.factory.last()

	f.coord.HandleEvent(signaling.UserLeftVoice{UserID: "bob"})

	req.Nil(f.coord.registry.Get("bob"))
	req.Equal(1, conn.closeCalls)
	req.Equal([]string{"bob"}, f.sink.unbound)
	req.Equal([]string{"bob"}, f.notifier.left)
}

func TestConnectedStateNotifiesOnce(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.start(t)
	f.echoJoin("bob")
	conn := f.factory.last()

	conn.onState(webrtc.PeerConnectionStateConnected)
	conn.onState(webrtc.PeerConnectionStateConnected)

	req.Equal([]string{"bob"}, f.notifier.connected)
	req.Equal(StateConnected, f.coord.registry.Get("bob").State())
}

func TestFailureAfterConnectNotifiesAndRemoves(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.start(t)
	f.echoJoin("bob")
	conn := f.factory.last()

	conn.onState(webrtc.PeerConnectionStateConnected)
	conn.onState(webrtc.PeerConnectionStateFailed)

	req.Equal([]string{"bob"}, f.notifier.disconnected)
	req.Nil(f.coord.registry.Get("bob"))
	req.Equal([]string{"bob"}, f.sink.unbound)

	// Candidates for the dead pair are now dropped.
	f.coord.HandleEvent(signaling.CandidateReceived{FromUserID: "bob"})
	req.Nil(f.coord.registry.Get("bob"))
}

func TestFailureBeforeConnectStillNotifiesDisconnect(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.start(t)
	f.echoJoin("bob")

	f.factory.last().onState(webrtc.PeerConnectionStateFailed)

	req.Equal([]string{"bob"}, f.notifier.disconnected)
	req.Nil(f.coord.registry.Get("bob"))
}

func TestLateCallbackForRemovedLinkIsDiscarded(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.start(t)
	f.echoJoin("bob")
	conn := f.factory.last()

	f.coord.HandleEvent(signaling.UserLeftVoice{UserID: "bob"})

	// The transport completion lands after the peer is gone.
	conn.onState(webrtc.PeerConnectionStateConnected)
	req.Empty(f.notifier.connected)
}

func TestLocalCandidatesAreForwarded(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.start(t)
	f.echoJoin("bob")
	conn := f.factory.last()

	conn.onCandidate(webrtc.ICECandidateInit{Candidate: "candidate:1"})

	last := f.emitter.signals[len(f.emitter.signals)-1]
	req.Equal("candidate", last.kind)
	req.Equal("bob", last.target)
	req.Equal("alice", last.from)
	req.Equal("room-1", last.roomID)
}

func TestRemoteTrackBindsSink(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.start(t)
	f.echoJoin("bob")

	f.factory.last().onTrack(nil)
	req.Equal([]string{"bob"}, f.sink.bound)
}

func TestOfferFailureMarksLinkFailed(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.start(t)

	f.factory.err = nil
	f.emitter.offerErr = errors.New("socket closed")
	f.echoJoin("bob")

	req.Nil(f.coord.registry.Get("bob"))
	req.Equal([]string{"bob"}, f.notifier.disconnected)
}

func TestLeaveVoiceIsIdempotent(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.start(t)
	f.echoJoin("bob", "carol")

	f.coord.LeaveVoice()

	req.False(f.coord.Active())
	req.Equal([]string{"room-1"}, f.emitter.leaves)
	req.Zero(f.coord.registry.Len())
	req.Equal(1, f.audio.closed)
	req.ElementsMatch([]string{"bob", "carol"}, f.sink.unbound)

	// A second leave changes nothing.
	f.coord.LeaveVoice()
	req.Equal([]string{"room-1"}, f.emitter.leaves)
	req.Equal(1, f.audio.closed)
}

func TestRestartAfterLeaveYieldsFreshSession(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	f.start(t)
	f.echoJoin("bob")
	_, err := f.coord.ToggleMute()
	req.NoError(err)
	f.coord.LeaveVoice()

	// Restarting announces again and begins with an empty registry, a
	// freshly acquired audio input and cleared mute state.
	f.start(t)

	req.True(f.coord.Active())
	req.False(f.coord.Muted())
	req.Zero(f.coord.registry.Len())
	req.Equal([]string{"room-1", "room-1"}, f.emitter.joins)
	req.Equal(2, f.providerCalls)
}

func TestToggleMute(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	_, err := f.coord.ToggleMute()
	req.ErrorIs(err, ErrSessionInactive)

	f.start(t)

	muted, err := f.coord.ToggleMute()
	req.NoError(err)
	req.True(muted)
	req.True(f.audio.muted)
	req.True(f.coord.Muted())

	muted, err = f.coord.ToggleMute()
	req.NoError(err)
	req.False(muted)
	req.False(f.audio.muted)
}

func TestEventsAfterLeaveAreHarmless(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.start(t)
	f.echoJoin("bob")
	f.coord.LeaveVoice()

	f.coord.HandleEvent(signaling.OfferReceived{FromUserID: "bob"})
	f.coord.HandleEvent(signaling.AnswerReceived{FromUserID: "bob"})
	f.coord.HandleEvent(signaling.CandidateReceived{FromUserID: "bob"})
	f.coord.HandleEvent(signaling.UserLeftVoice{UserID: "bob"})

	req.Zero(f.coord.registry.Len())
	req.False(f.coord.Active())
}

func TestVoiceErrorSurfacesToNotifier(t *testing.T) {
	f := newFixture(t)
	f.coord.HandleEvent(signaling.VoiceError{Message: "room not found"})
	require.Equal(t, []string{"room not found"}, f.notifier.failures)
}
