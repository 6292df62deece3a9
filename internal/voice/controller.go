package voice

import (
	"errors"
	"fmt"

	"github.com/pion/webrtc/v4"
)

// Emitter sends outbound voice signaling to the relay. Satisfied by
// signaling.Client.
type Emitter interface {
	JoinVoiceRoom(userID, roomID string) error
	LeaveVoiceRoom(userID, roomID string) error
	SendOffer(roomID, targetUserID, fromUserID string, sdp webrtc.SessionDescription) error
	SendAnswer(roomID, targetUserID, fromUserID string, sdp webrtc.SessionDescription) error
	SendCandidate(roomID, targetUserID, fromUserID string, cand webrtc.ICECandidateInit) error
}

// Notifier receives user-facing voice notifications. All calls happen on the
// coordinator's event turn.
type Notifier interface {
	// VoiceJoined reports a remote participant entering the room's voice mesh.
	VoiceJoined(userID, nickname string)
	// VoiceConnected reports that media now flows to a participant.
	VoiceConnected(userID string)
	// VoiceDisconnected reports that a previously connected participant's
	// link broke.
	VoiceDisconnected(userID string)
	// VoiceLeft reports a participant leaving the voice mesh.
	VoiceLeft(userID string)
	// VoiceInvite reports voice activity in the room while the local user is
	// not in the session.
	VoiceInvite(userID, nickname string)
	// VoiceFailure surfaces a non-fatal voice error message.
	VoiceFailure(message string)
}

// MediaSink receives remote audio tracks as peers connect.
type MediaSink interface {
	// Bind attaches a participant's incoming track. Rebinding the same
	// participant replaces the previous track.
	Bind(userID string, track *webrtc.TrackRemote)
	// Unbind detaches a participant. Unknown participants are a no-op.
	Unbind(userID string)
}

// AudioSource is the local audio input shared by every peer link.
type AudioSource interface {
	Track() webrtc.TrackLocal
	SetMuted(muted bool)
	Close() error
}

// AudioProvider acquires the local audio input at session start.
type AudioProvider func() (AudioSource, error)

// initiateOffer creates an outbound link toward remote and sends the opening
// offer. Idempotent: an existing link under the pair key is left untouched.
func (c *Coordinator) initiateOffer(remoteUserID string) {
	link, created, err := c.registry.GetOrCreate(remoteUserID, true)
	if err != nil {
		c.log.Error().Err(err).Str("remote", remoteUserID).Msg("failed to create outbound link")
		c.notifier.VoiceFailure(fmt.Sprintf("could not connect to %s", remoteUserID))
		return
	}
	if link == nil || !created {
		return
	}

	c.wireLink(link)
	link.setState(StateNegotiating)

	offer, err := link.Conn().CreateOffer()
	if err != nil {
		c.failLink(link, peerErr("create offer", remoteUserID, errors.Join(ErrNegotiation, err)))
		return
	}

	if err := c.emitter.SendOffer(c.session.RoomID, remoteUserID, c.self.ID, offer); err != nil {
		c.failLink(link, peerErr("send offer", remoteUserID, errors.Join(ErrSignalingSend, err)))
	}
}

// handleRemoteOffer answers an inbound offer, creating the receiving end of
// the link if it does not exist yet.
func (c *Coordinator) handleRemoteOffer(fromUserID string, offer webrtc.SessionDescription) {
	link, created, err := c.registry.GetOrCreate(fromUserID, false)
	if err != nil {
		c.log.Error().Err(err).Str("from", fromUserID).Msg("failed to create inbound link")
		return
	}
	if link == nil {
		return
	}
	if link.State().Terminal() {
		c.log.Debug().Str("from", fromUserID).Msg("ignoring offer for terminal link")
		return
	}

	if created {
		c.wireLink(link)
	}
	link.setState(StateNegotiating)

	answer, err := link.Conn().CreateAnswer(offer)
	if err != nil {
		c.failLink(link, peerErr("create answer", fromUserID, errors.Join(ErrNegotiation, err)))
		return
	}

	if err := c.emitter.SendAnswer(c.session.RoomID, fromUserID, c.self.ID, answer); err != nil {
		c.failLink(link, peerErr("send answer", fromUserID, errors.Join(ErrSignalingSend, err)))
	}
}

// handleRemoteAnswer completes the exchange our offer started. An answer for
// an unknown or terminal link is discarded.
func (c *Coordinator) handleRemoteAnswer(fromUserID string, answer webrtc.SessionDescription) {
	link := c.registry.Get(fromUserID)
	if link == nil || link.State().Terminal() {
		c.log.Debug().Str("from", fromUserID).Msg("discarding answer, no live link")
		return
	}

	if err := link.Conn().SetRemoteDescription(answer); err != nil {
		c.failLink(link, peerErr("apply answer", fromUserID, errors.Join(ErrNegotiation, err)))
	}
}

// handleRemoteCandidate feeds a remote ICE candidate into its link. Candidates
// for unknown or terminal links are dropped; a bad candidate is logged and the
// link keeps its remaining candidates.
func (c *Coordinator) handleRemoteCandidate(fromUserID string, cand webrtc.ICECandidateInit) {
	link := c.registry.Get(fromUserID)
	if link == nil || link.State().Terminal() {
		c.log.Debug().Str("from", fromUserID).Msg("dropping candidate, no live link")
		return
	}

	if err := link.Conn().AddICECandidate(cand); err != nil {
		c.log.Warn().Err(err).Str("from", fromUserID).Msg("failed to add ice candidate")
	}
}

// wireLink attaches the local track and connection observers to a freshly
// created link. Observers fire on transport goroutines, so each one re-locks
// the coordinator and verifies the link is still the registered one before
// acting; completions for replaced or removed links are discarded.
func (c *Coordinator) wireLink(link *PeerLink) {
	remote := link.RemoteUserID

	if c.audio != nil {
		if err := link.Conn().AddTrack(c.audio.Track()); err != nil {
			c.log.Error().Err(err).Str("remote", remote).Msg("failed to attach local track")
		}
	}

	link.Conn().OnICECandidate(func(cand webrtc.ICECandidateInit) {
		c.mu.Lock()
		defer c.mu.Unlock()
		if !c.session.Active || c.registry.Get(remote) != link {
			return
		}
		if err := c.emitter.SendCandidate(c.session.RoomID, remote, c.self.ID, cand); err != nil {
			c.log.Warn().Err(err).Str("remote", remote).Msg("failed to send ice candidate")
		}
	})

	link.Conn().OnStateChange(func(st webrtc.PeerConnectionState) {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.registry.Get(remote) != link {
			return
		}

		switch st {
		case webrtc.PeerConnectionStateConnected:
			if link.State() != StateConnected && link.setState(StateConnected) {
				c.log.Info().Str("remote", remote).Msg("peer connected")
				c.notifier.VoiceConnected(remote)
			}

		case webrtc.PeerConnectionStateFailed,
			webrtc.PeerConnectionStateDisconnected,
			webrtc.PeerConnectionStateClosed:
			c.failLink(link, peerErr("transport", remote, ErrNegotiation))
		}
	})

	link.Conn().OnTrack(func(track *webrtc.TrackRemote) {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.registry.Get(remote) != link {
			return
		}
		c.log.Debug().Str("remote", remote).Msg("remote track")
		c.sink.Bind(remote, track)
	})
}

// failLink marks a link Failed, removes it and reports the lost participant.
// The terminal-state guard makes the notification once-only; the peer may
// still be in the room's voice roster, and a fresh offer creates a new link
// under the same key.
func (c *Coordinator) failLink(link *PeerLink, err error) {
	remote := link.RemoteUserID

	if !link.setState(StateFailed) {
		return
	}

	c.log.Warn().Err(err).Str("remote", remote).Msg("peer link failed")
	c.sink.Unbind(remote)
	c.registry.Remove(remote)
	c.notifier.VoiceDisconnected(remote)
}
