package voice

import (
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/craftbyte/craftchat/internal/signaling"
)

// Participant is one user in a room.
type Participant struct {
	ID       string
	Nickname string
}

// Session is the local user's voice session for the current room. At most one
// session is active at a time.
type Session struct {
	Active bool
	RoomID string
	Muted  bool
}

// Coordinator owns the voice session lifecycle and the peer-link registry.
// Every inbound event, user command and transport callback is serialized
// through its mutex, so state transitions never interleave.
type Coordinator struct {
	mu sync.Mutex

	self     Participant
	emitter  Emitter
	notifier Notifier
	sink     MediaSink
	provider AudioProvider
	factory  ConnFactory
	log      zerolog.Logger

	session  Session
	audio    AudioSource
	registry *Registry
	members  []Participant
}

// NewCoordinator creates a coordinator for the local participant. The
// provider is invoked at session start, so a missing audio input only
// surfaces when the user actually joins voice.
func NewCoordinator(self Participant, emitter Emitter, notifier Notifier, sink MediaSink, provider AudioProvider, factory ConnFactory, log zerolog.Logger) *Coordinator {
	c := &Coordinator{
		self:     self,
		emitter:  emitter,
		notifier: notifier,
		sink:     sink,
		provider: provider,
		factory:  factory,
		log:      log,
	}
	c.registry = NewRegistry(self.ID, factory, func() bool { return c.session.Active }, log)
	return c
}

// Run consumes voice events until the channel closes, then tears the session
// down.
func (c *Coordinator) Run(events <-chan signaling.VoiceEvent) {
	for ev := range events {
		c.HandleEvent(ev)
	}
	c.LeaveVoice()
}

// StartVoice acquires the local audio input and announces the join. Starting
// while already active is a no-op. On media failure nothing is announced and
// the session stays inactive.
func (c *Coordinator) StartVoice(roomID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session.Active {
		c.log.Debug().Str("room", c.session.RoomID).Msg("voice session already active")
		return nil
	}

	audio, err := c.provider()
	if err != nil {
		return opErr("start voice", errors.Join(ErrMediaAccess, err))
	}

	c.audio = audio
	c.session = Session{Active: true, RoomID: roomID}

	if err := c.emitter.JoinVoiceRoom(c.self.ID, roomID); err != nil {
		c.audio.Close()
		c.audio = nil
		c.session = Session{}
		return opErr("start voice", errors.Join(ErrSignalingSend, err))
	}

	c.log.Info().Str("room", roomID).Msg("joined voice")
	return nil
}

// LeaveVoice tears down every link and releases the audio input. Safe to call
// repeatedly; leaving without an active session is a no-op.
func (c *Coordinator) LeaveVoice() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.session.Active {
		return
	}

	if err := c.emitter.LeaveVoiceRoom(c.self.ID, c.session.RoomID); err != nil {
		c.log.Warn().Err(err).Msg("failed to announce voice leave")
	}

	for _, remote := range c.registry.Remotes() {
		c.sink.Unbind(remote)
	}
	c.registry.Clear()

	if c.audio != nil {
		if err := c.audio.Close(); err != nil {
			c.log.Warn().Err(err).Msg("failed to release audio input")
		}
		c.audio = nil
	}

	c.log.Info().Str("room", c.session.RoomID).Msg("left voice")
	c.session = Session{}
}

// ToggleMute flips the local mute state and returns the new value. Mute stops
// outgoing samples; links and negotiation are untouched.
func (c *Coordinator) ToggleMute() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.session.Active {
		return false, ErrSessionInactive
	}

	c.session.Muted = !c.session.Muted
	c.audio.SetMuted(c.session.Muted)
	return c.session.Muted, nil
}

// Active reports whether a voice session is running.
func (c *Coordinator) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.Active
}

// Muted reports the local mute state.
func (c *Coordinator) Muted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.Muted
}

// RoomID returns the active session's room, or "".
func (c *Coordinator) RoomID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.RoomID
}

// Peers returns the remote participant IDs with a live link.
func (c *Coordinator) Peers() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.registry.Remotes()
}

// SetMembers replaces the room membership snapshot.
func (c *Coordinator) SetMembers(members []Participant) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.members = members
}

// Members returns the current room membership snapshot.
func (c *Coordinator) Members() []Participant {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Participant, len(c.members))
	copy(out, c.members)
	return out
}

// HandleEvent applies one inbound voice event. Events referencing peers or
// sessions that no longer exist degrade to logged no-ops, so stale deliveries
// after a leave or a link failure are harmless.
func (c *Coordinator) HandleEvent(ev signaling.VoiceEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch ev := ev.(type) {

	case signaling.UserJoinedVoice:
		c.onUserJoinedVoice(ev)

	case signaling.VoiceRoomUsers:
		if !c.session.Active {
			return
		}
		// Idempotent against the join echo: existing links are kept.
		for _, u := range ev.Users {
			if u.UserID == c.self.ID {
				continue
			}
			c.initiateOffer(u.UserID)
		}

	case signaling.UserLeftVoice:
		if !c.session.Active {
			return
		}
		if c.registry.Remove(ev.UserID) {
			c.sink.Unbind(ev.UserID)
		}
		c.notifier.VoiceLeft(ev.UserID)

	case signaling.OfferReceived:
		if !c.session.Active {
			c.log.Debug().Str("from", ev.FromUserID).Msg("dropping offer, session inactive")
			return
		}
		c.handleRemoteOffer(ev.FromUserID, ev.Offer)

	case signaling.AnswerReceived:
		if !c.session.Active {
			c.log.Debug().Str("from", ev.FromUserID).Msg("dropping answer, session inactive")
			return
		}
		c.handleRemoteAnswer(ev.FromUserID, ev.Answer)

	case signaling.CandidateReceived:
		if !c.session.Active {
			c.log.Debug().Str("from", ev.FromUserID).Msg("dropping candidate, session inactive")
			return
		}
		c.handleRemoteCandidate(ev.FromUserID, ev.Candidate)

	case signaling.VoiceError:
		c.log.Warn().Str("message", ev.Message).Msg("voice error from relay")
		c.notifier.VoiceFailure(ev.Message)

	default:
		c.log.Debug().Msgf("unhandled voice event %T", ev)
	}
}

// onUserJoinedVoice handles the join broadcast. The echo of our own join
// carries the members already in voice and the newcomer initiates toward
// each of them. A remote join while our session is active also gets an
// immediate initiating link; when both sides act at once the idempotent
// registry keeps whichever link landed first. A remote join while we sit
// outside the session becomes an invite notification.
func (c *Coordinator) onUserJoinedVoice(ev signaling.UserJoinedVoice) {
	if !c.session.Active {
		if ev.UserID != c.self.ID {
			c.notifier.VoiceInvite(ev.UserID, ev.Nickname)
		}
		return
	}

	if ev.UserID == c.self.ID {
		for _, u := range ev.ExistingUsers {
			if u.UserID == c.self.ID {
				continue
			}
			c.initiateOffer(u.UserID)
		}
		return
	}

	c.notifier.VoiceJoined(ev.UserID, ev.Nickname)
	c.initiateOffer(ev.UserID)
}
