package signaling

import (
	"encoding/json"
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	return NewHandler(nil, zerolog.Nop())
}

func TestRouteVoiceJoinEvent(t *testing.T) {
	req := require.New(t)
	h := newTestHandler(t)

	h.Route(MustMessage(MessageTypeUserJoinedVoice, UserJoinedVoicePayload{
		UserID:        "u1",
		Nickname:      "Steve",
		ExistingUsers: []UserInfo{{UserID: "u2", Nickname: "Alex"}},
	}))

	ev := <-h.Voice
	joined, ok := ev.(UserJoinedVoice)
	req.True(ok)
	req.Equal("u1", joined.UserID)
	req.Equal("Steve", joined.Nickname)
	req.Len(joined.ExistingUsers, 1)
	req.Equal("u2", joined.ExistingUsers[0].UserID)
}

func TestRouteOfferDecodesSessionDescription(t *testing.T) {
	req := require.New(t)
	h := newTestHandler(t)

	sdp := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0"}
	raw, err := json.Marshal(sdp)
	req.NoError(err)

	h.Route(MustMessage(MessageTypeWebRTCOffer, SignalPayload{
		FromUserID: "u2",
		Offer:      raw,
	}))

	ev := <-h.Voice
	offer, ok := ev.(OfferReceived)
	req.True(ok)
	req.Equal("u2", offer.FromUserID)
	req.Equal(sdp, offer.Offer)
}

func TestRouteMalformedOfferIsDropped(t *testing.T) {
	req := require.New(t)
	h := newTestHandler(t)

	h.Route(MustMessage(MessageTypeWebRTCOffer, SignalPayload{
		FromUserID: "u2",
		Offer:      json.RawMessage(`"not an sdp object"`),
	}))

	select {
	case ev := <-h.Voice:
		req.Failf("unexpected event", "%T", ev)
	default:
	}
}

func TestRouteCandidateEvent(t *testing.T) {
	req := require.New(t)
	h := newTestHandler(t)

	cand := webrtc.ICECandidateInit{Candidate: "candidate:1 1 udp 1 10.0.0.2 5000 typ host"}
	raw, err := json.Marshal(cand)
	req.NoError(err)

	h.Route(MustMessage(MessageTypeWebRTCCandidate, SignalPayload{
		FromUserID: "u3",
		Candidate:  raw,
	}))

	ev := <-h.Voice
	received, ok := ev.(CandidateReceived)
	req.True(ok)
	req.Equal("u3", received.FromUserID)
	req.Equal(cand, received.Candidate)
}

func TestRouteVoiceEventsPreserveArrivalOrder(t *testing.T) {
	req := require.New(t)
	h := newTestHandler(t)

	h.Route(MustMessage(MessageTypeUserJoinedVoice, UserJoinedVoicePayload{UserID: "u1"}))
	h.Route(MustMessage(MessageTypeUserLeftVoice, UserLeftVoicePayload{UserID: "u1"}))

	_, ok := (<-h.Voice).(UserJoinedVoice)
	req.True(ok)
	_, ok = (<-h.Voice).(UserLeftVoice)
	req.True(ok)
}

func TestRouteChatMessage(t *testing.T) {
	req := require.New(t)
	h := newTestHandler(t)

	h.Route(MustMessage(MessageTypeNewMessage, ChatMessage{
		ID: "m1", UserID: "u1", Nickname: "Steve", Content: "hello", Kind: "text",
	}))

	msg := <-h.NewMessage
	req.Equal("m1", msg.ID)
	req.Equal("hello", msg.Content)
}

func TestRouteErrorsShareOneChannel(t *testing.T) {
	req := require.New(t)
	h := newTestHandler(t)

	h.Route(MustMessage(MessageTypeJoinError, ErrorPayload{Message: "room not found"}))
	req.Equal("room not found", <-h.Error)

	h.Route(MustMessage(MessageTypeVoiceError, ErrorPayload{Message: "no such voice room"}))
	ev := <-h.Voice
	verr, ok := ev.(VoiceError)
	req.True(ok)
	req.Equal("no such voice room", verr.Message)
}

func TestRouteUnknownTypeIsIgnored(t *testing.T) {
	h := newTestHandler(t)
	h.Route(&Message{Type: "mystery"})

	select {
	case ev := <-h.Voice:
		require.Failf(t, "unexpected event", "%T", ev)
	default:
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	h := newTestHandler(t)
	h.Close()
	h.Close()
}
