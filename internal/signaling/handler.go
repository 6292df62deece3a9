package signaling

import (
	"encoding/json"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
)

// Handler routes incoming relay messages to typed channels. Voice-mesh
// events are funneled onto a single ordered queue so the coordinator sees
// them in arrival order; chat-flow messages get their own channels.
type Handler struct {
	client *Client
	log    zerolog.Logger

	Voice         chan VoiceEvent
	InviteCreated chan *InviteCreatedPayload
	JoinSuccess   chan *JoinSuccessPayload
	NewMessage    chan *ChatMessage
	UserJoined    chan *UserInfo
	UserLeft      chan *UserInfo
	RoomsList     chan *RoomsListPayload
	RoomMembers   chan *RoomMembersPayload
	RoomDeleted   chan *RoomDeletedPayload
	Error         chan string

	closed bool
}

// NewHandler creates a new message handler.
func NewHandler(client *Client, log zerolog.Logger) *Handler {
	return &Handler{
		client:        client,
		log:           log,
		Voice:         make(chan VoiceEvent, 32),
		InviteCreated: make(chan *InviteCreatedPayload, 1),
		JoinSuccess:   make(chan *JoinSuccessPayload, 1),
		NewMessage:    make(chan *ChatMessage, 32),
		UserJoined:    make(chan *UserInfo, 4),
		UserLeft:      make(chan *UserInfo, 4),
		RoomsList:     make(chan *RoomsListPayload, 1),
		RoomMembers:   make(chan *RoomMembersPayload, 4),
		RoomDeleted:   make(chan *RoomDeletedPayload, 1),
		Error:         make(chan string, 4),
	}
}

// Start listens to incoming messages and routes them until the connection
// closes.
func (h *Handler) Start() {
	for msg := range h.client.Incoming() {
		h.Route(msg)
	}
}

// Route dispatches a single wire message onto the matching channel.
func (h *Handler) Route(msg *Message) {
	switch msg.Type {

	case MessageTypeInviteCreated:
		routeAs(h, msg, h.InviteCreated)

	case MessageTypeJoinSuccess:
		routeAs(h, msg, h.JoinSuccess)

	case MessageTypeNewMessage:
		routeAs(h, msg, h.NewMessage)

	case MessageTypeUserJoined:
		routeAs(h, msg, h.UserJoined)

	case MessageTypeUserLeft:
		routeAs(h, msg, h.UserLeft)

	case MessageTypeRoomsList:
		routeAs(h, msg, h.RoomsList)

	case MessageTypeRoomMembersList:
		routeAs(h, msg, h.RoomMembers)

	case MessageTypeRoomDeleted:
		routeAs(h, msg, h.RoomDeleted)

	case MessageTypeUserJoinedVoice:
		var p UserJoinedVoicePayload
		if h.decode(msg, &p) {
			h.Voice <- UserJoinedVoice{UserID: p.UserID, Nickname: p.Nickname, ExistingUsers: p.ExistingUsers}
		}

	case MessageTypeVoiceRoomUsers:
		var p VoiceRoomUsersPayload
		if h.decode(msg, &p) {
			h.Voice <- VoiceRoomUsers{Users: p.Users}
		}

	case MessageTypeUserLeftVoice:
		var p UserLeftVoicePayload
		if h.decode(msg, &p) {
			h.Voice <- UserLeftVoice{UserID: p.UserID}
		}

	case MessageTypeWebRTCOffer:
		var p SignalPayload
		if !h.decode(msg, &p) {
			return
		}
		var sdp webrtc.SessionDescription
		if err := json.Unmarshal(p.Offer, &sdp); err != nil {
			h.log.Warn().Err(err).Str("from", p.FromUserID).Msg("bad offer payload")
			return
		}
		h.Voice <- OfferReceived{FromUserID: p.FromUserID, Offer: sdp}

	case MessageTypeWebRTCAnswer:
		var p SignalPayload
		if !h.decode(msg, &p) {
			return
		}
		var sdp webrtc.SessionDescription
		if err := json.Unmarshal(p.Answer, &sdp); err != nil {
			h.log.Warn().Err(err).Str("from", p.FromUserID).Msg("bad answer payload")
			return
		}
		h.Voice <- AnswerReceived{FromUserID: p.FromUserID, Answer: sdp}

	case MessageTypeWebRTCCandidate:
		var p SignalPayload
		if !h.decode(msg, &p) {
			return
		}
		var cand webrtc.ICECandidateInit
		if err := json.Unmarshal(p.Candidate, &cand); err != nil {
			h.log.Warn().Err(err).Str("from", p.FromUserID).Msg("bad candidate payload")
			return
		}
		h.Voice <- CandidateReceived{FromUserID: p.FromUserID, Candidate: cand}

	case MessageTypeVoiceError:
		var p ErrorPayload
		if h.decode(msg, &p) {
			h.Voice <- VoiceError{Message: p.Message}
		}

	case MessageTypeInviteError, MessageTypeJoinError, MessageTypeMessageError:
		var p ErrorPayload
		if h.decode(msg, &p) {
			h.Error <- p.Message
		}

	default:
		h.log.Debug().Str("type", msg.Type).Msg("unknown message type")
	}
}

// routeAs decodes the payload into T and forwards it without blocking the
// read loop on a full channel.
func routeAs[T any](h *Handler, msg *Message, ch chan *T) {
	var p T
	if h.decode(msg, &p) {
		select {
		case ch <- &p:
		default:
			h.log.Warn().Str("type", msg.Type).Msg("dropping message, channel full")
		}
	}
}

func (h *Handler) decode(msg *Message, v any) bool {
	if err := json.Unmarshal(msg.Payload, v); err != nil {
		h.log.Warn().Err(err).Str("type", msg.Type).Msg("failed to parse payload")
		return false
	}
	return true
}

// Close closes all handler channels.
func (h *Handler) Close() {
	if h.closed {
		return
	}
	h.closed = true

	close(h.Voice)
	close(h.InviteCreated)
	close(h.JoinSuccess)
	close(h.NewMessage)
	close(h.UserJoined)
	close(h.UserLeft)
	close(h.RoomsList)
	close(h.RoomMembers)
	close(h.RoomDeleted)
	close(h.Error)
}
