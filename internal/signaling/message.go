package signaling

import "encoding/json"

// Message is the wire envelope for all websocket traffic between the client
// and the relay, in both directions.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Client to server message types.
const (
	MessageTypeRegisterUser   = "register_user"
	MessageTypeCreateInvite   = "create_invite"
	MessageTypeJoinInvite     = "join_invite"
	MessageTypeSendMessage    = "send_message"
	MessageTypeGetRooms       = "get_rooms"
	MessageTypeGetRoomMembers = "get_room_members"
	MessageTypeDeleteRoom     = "delete_room"
	MessageTypeJoinVoiceRoom  = "join_voice_room"
	MessageTypeLeaveVoiceRoom = "leave_voice_room"
)

// Server to client message types.
const (
	MessageTypeInviteCreated   = "invite_created"
	MessageTypeInviteError     = "invite_error"
	MessageTypeJoinSuccess     = "join_success"
	MessageTypeJoinError       = "join_error"
	MessageTypeNewMessage      = "new_message"
	MessageTypeMessageError    = "message_error"
	MessageTypeUserJoined      = "user_joined"
	MessageTypeUserLeft        = "user_left"
	MessageTypeRoomsList       = "rooms_list"
	MessageTypeRoomMembersList = "room_members_list"
	MessageTypeRoomDeleted     = "room_deleted"
	MessageTypeUserJoinedVoice = "user_joined_voice"
	MessageTypeVoiceRoomUsers  = "voice_room_users"
	MessageTypeUserLeftVoice   = "user_left_voice"
	MessageTypeVoiceError      = "voice_error"
)

// WebRTC signal types, relayed verbatim between clients. The relay only
// inspects the routing fields; the SDP/candidate blobs stay opaque.
const (
	MessageTypeWebRTCOffer     = "webrtc_offer"
	MessageTypeWebRTCAnswer    = "webrtc_answer"
	MessageTypeWebRTCCandidate = "webrtc_ice_candidate"
)

// UserInfo identifies a room member.
type UserInfo struct {
	UserID   string `json:"user_id"`
	Nickname string `json:"nickname"`
	Avatar   string `json:"avatar,omitempty"`
}

// RoomInfo summarizes a room for listings.
type RoomInfo struct {
	RoomID      string `json:"room_id"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	MemberCount int    `json:"member_count,omitempty"`
}

// ChatMessage is a chat-room message, text or command.
type ChatMessage struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Nickname  string `json:"nickname"`
	Content   string `json:"content"`
	Kind      string `json:"type"`
	Timestamp string `json:"timestamp"`
}

// RegisterUserPayload binds a logged-in user ID to a websocket connection.
type RegisterUserPayload struct {
	UserID string `json:"user_id"`
}

// CreateInvitePayload creates a room (or a fresh code for an existing group).
type CreateInvitePayload struct {
	UserID         string `json:"user_id"`
	Type           string `json:"type"`
	RoomName       string `json:"room_name,omitempty"`
	ExistingRoomID string `json:"existing_room_id,omitempty"`
	InviteCode     string `json:"invite_code,omitempty"`
}

// JoinInvitePayload joins a room by invite code or raw room ID.
type JoinInvitePayload struct {
	UserID string `json:"user_id"`
	Code   string `json:"code"`
}

// SendMessagePayload posts a chat message to a room.
type SendMessagePayload struct {
	UserID  string `json:"user_id"`
	RoomID  string `json:"room_id"`
	Content string `json:"content"`
	Kind    string `json:"type"`
}

// RoomRequestPayload addresses a room on behalf of a user. Used by
// get_room_members, delete_room, join_voice_room and leave_voice_room.
type RoomRequestPayload struct {
	UserID string `json:"user_id"`
	RoomID string `json:"room_id"`
}

// GetRoomsPayload asks for the rooms the user is a member of.
type GetRoomsPayload struct {
	UserID string `json:"user_id"`
}

// InviteCreatedPayload reports a freshly created room and its invite code.
type InviteCreatedPayload struct {
	Code     string `json:"code"`
	RoomID   string `json:"room_id"`
	Type     string `json:"type"`
	RoomName string `json:"room_name"`
}

// JoinSuccessPayload carries the joined room's state snapshot.
type JoinSuccessPayload struct {
	RoomID   string        `json:"room_id"`
	RoomName string        `json:"room_name"`
	RoomType string        `json:"room_type"`
	Members  []UserInfo    `json:"members"`
	Messages []ChatMessage `json:"messages"`
}

// RoomsListPayload lists the requesting user's rooms.
type RoomsListPayload struct {
	Rooms []RoomInfo `json:"rooms"`
}

// RoomMembersPayload is the current membership snapshot of a room.
type RoomMembersPayload struct {
	RoomID      string     `json:"room_id"`
	Members     []UserInfo `json:"members"`
	MemberCount int        `json:"member_count"`
}

// RoomDeletedPayload announces room deletion to its members.
type RoomDeletedPayload struct {
	RoomID            string `json:"room_id"`
	RoomName          string `json:"room_name"`
	InitiatorID       string `json:"initiator_id"`
	InitiatorNickname string `json:"initiator_nickname"`
}

// UserJoinedVoicePayload is broadcast to a room when a user enters its voice
// room. ExistingUsers lists the members that were already present, so the
// echo of one's own join tells the joiner who to initiate toward.
type UserJoinedVoicePayload struct {
	UserID        string     `json:"user_id"`
	Nickname      string     `json:"nickname"`
	ExistingUsers []UserInfo `json:"existing_users"`
}

// VoiceRoomUsersPayload is sent to a joiner with the users already in voice.
type VoiceRoomUsersPayload struct {
	Users []UserInfo `json:"users"`
}

// UserLeftVoicePayload is broadcast when a user leaves the voice room.
type UserLeftVoicePayload struct {
	UserID   string `json:"user_id"`
	Nickname string `json:"nickname,omitempty"`
}

// SignalPayload routes one WebRTC negotiation message (offer, answer or ICE
// candidate) to a single target user. Exactly one of Offer, Answer or
// Candidate is set, matching the envelope type.
type SignalPayload struct {
	RoomID       string          `json:"room_id,omitempty"`
	TargetUserID string          `json:"target_user_id,omitempty"`
	FromUserID   string          `json:"from_user_id"`
	FromNickname string          `json:"from_nickname,omitempty"`
	Offer        json.RawMessage `json:"offer,omitempty"`
	Answer       json.RawMessage `json:"answer,omitempty"`
	Candidate    json.RawMessage `json:"candidate,omitempty"`
}

// ErrorPayload carries a user-facing error message.
type ErrorPayload struct {
	Message string `json:"message"`
}

// NewMessage builds a wire envelope with a JSON-encoded payload.
func NewMessage(msgType string, payload any) (*Message, error) {
	if payload == nil {
		return &Message{Type: msgType}, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Message{Type: msgType, Payload: raw}, nil
}

// MustMessage is NewMessage for payloads that cannot fail to encode.
func MustMessage(msgType string, payload any) *Message {
	msg, err := NewMessage(msgType, payload)
	if err != nil {
		panic(err)
	}
	return msg
}
