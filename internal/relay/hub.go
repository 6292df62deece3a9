package relay

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/craftbyte/craftchat/internal/config"
	"github.com/craftbyte/craftchat/internal/signaling"
)

const inviteCodeLength = 6

// inviteCodeAlphabet matches what users type: lowercase letters and digits.
const inviteCodeAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// User is one logged-in user. Login happens over HTTP before the websocket
// connects, so a user can exist without a live client.
type User struct {
	ID       string
	Nickname string
	Avatar   string

	client *Client
}

// inbound pairs a wire message with the connection that sent it.
type inbound struct {
	client *Client
	msg    *signaling.Message
}

// loginRequest is an HTTP login routed through the hub goroutine.
type loginRequest struct {
	nickname string
	reply    chan *User
}

// Hub is the relay's single owner of all state: users, rooms, invite codes
// and voice membership. One goroutine processes every channel, so no state
// needs locking.
type Hub struct {
	cfg *config.RelayConfig
	log zerolog.Logger

	users       map[string]*User
	rooms       map[string]*Room
	inviteCodes map[string]string // code -> room ID

	Register   chan *Client
	Unregister chan *Client
	Inbound    chan *inbound
	logins     chan *loginRequest
}

// NewHub creates an empty hub.
func NewHub(cfg *config.RelayConfig, log zerolog.Logger) *Hub {
	return &Hub{
		cfg:         cfg,
		log:         log,
		users:       make(map[string]*User),
		rooms:       make(map[string]*Room),
		inviteCodes: make(map[string]string),
		Register:    make(chan *Client),
		Unregister:  make(chan *Client),
		Inbound:     make(chan *inbound),
		logins:      make(chan *loginRequest),
	}
}

// Login creates a user and returns it. Called from HTTP handlers; the work
// happens on the hub goroutine.
func (h *Hub) Login(nickname string) *User {
	req := &loginRequest{nickname: nickname, reply: make(chan *User, 1)}
	h.logins <- req
	return <-req.reply
}

// Run processes hub events until the process exits.
func (h *Hub) Run() {
	for {
		select {
		case req := <-h.logins:
			user := &User{ID: uuid.NewString(), Nickname: req.nickname}
			h.users[user.ID] = user
			h.log.Info().Str("user", user.ID).Str("nickname", user.Nickname).Msg("user logged in")
			req.reply <- user

		case client := <-h.Register:
			h.log.Debug().Str("addr", client.conn.RemoteAddr().String()).Msg("client connected")

		case client := <-h.Unregister:
			h.dropClient(client)

		case in := <-h.Inbound:
			h.handle(in.client, in.msg)
		}
	}
}

// handle dispatches one wire message.
func (h *Hub) handle(client *Client, msg *signaling.Message) {
	switch msg.Type {

	case signaling.MessageTypeRegisterUser:
		var p signaling.RegisterUserPayload
		if !h.decode(msg, &p) {
			return
		}
		h.registerUser(client, p.UserID)

	case signaling.MessageTypeCreateInvite:
		var p signaling.CreateInvitePayload
		if !h.decode(msg, &p) {
			return
		}
		h.createInvite(client, &p)

	case signaling.MessageTypeJoinInvite:
		var p signaling.JoinInvitePayload
		if !h.decode(msg, &p) {
			return
		}
		h.joinInvite(client, &p)

	case signaling.MessageTypeSendMessage:
		var p signaling.SendMessagePayload
		if !h.decode(msg, &p) {
			return
		}
		h.sendMessage(client, &p)

	case signaling.MessageTypeGetRooms:
		var p signaling.GetRoomsPayload
		if !h.decode(msg, &p) {
			return
		}
		h.listRooms(client, p.UserID)

	case signaling.MessageTypeGetRoomMembers:
		var p signaling.RoomRequestPayload
		if !h.decode(msg, &p) {
			return
		}
		h.listRoomMembers(client, p.RoomID)

	case signaling.MessageTypeDeleteRoom:
		var p signaling.RoomRequestPayload
		if !h.decode(msg, &p) {
			return
		}
		h.deleteRoom(client, &p)

	case signaling.MessageTypeJoinVoiceRoom:
		var p signaling.RoomRequestPayload
		if !h.decode(msg, &p) {
			return
		}
		h.joinVoice(client, &p)

	case signaling.MessageTypeLeaveVoiceRoom:
		var p signaling.RoomRequestPayload
		if !h.decode(msg, &p) {
			return
		}
		h.leaveVoice(&p)

	case signaling.MessageTypeWebRTCOffer,
		signaling.MessageTypeWebRTCAnswer,
		signaling.MessageTypeWebRTCCandidate:
		var p signaling.SignalPayload
		if !h.decode(msg, &p) {
			return
		}
		h.forwardSignal(msg.Type, &p)

	default:
		h.log.Debug().Str("type", msg.Type).Msg("unknown message type")
	}
}

// registerUser binds a logged-in user to this websocket connection.
func (h *Hub) registerUser(client *Client, userID string) {
	user, ok := h.users[userID]
	if !ok {
		h.log.Warn().Str("user", userID).Msg("register for unknown user")
		return
	}

	user.client = client
	client.userID = userID

	// Reconnects keep room membership; rebind the peer entries.
	for _, room := range h.rooms {
		if room.hasMember(userID) {
			room.peers[userID] = client
		}
	}

	h.log.Debug().Str("user", userID).Msg("user registered")
}

// createInvite either creates a room with a fresh invite code, or mints a
// new code for an existing group.
func (h *Hub) createInvite(client *Client, p *signaling.CreateInvitePayload) {
	user, ok := h.users[p.UserID]
	if !ok {
		client.queue(signaling.MustMessage(signaling.MessageTypeInviteError,
			signaling.ErrorPayload{Message: "unknown user"}))
		return
	}

	if p.ExistingRoomID != "" {
		room, ok := h.rooms[p.ExistingRoomID]
		if !ok {
			client.queue(signaling.MustMessage(signaling.MessageTypeInviteError,
				signaling.ErrorPayload{Message: "room not found"}))
			return
		}
		if room.Type != "group" {
			client.queue(signaling.MustMessage(signaling.MessageTypeInviteError,
				signaling.ErrorPayload{Message: "only group rooms can invite others"}))
			return
		}
		if !room.hasMember(p.UserID) {
			client.queue(signaling.MustMessage(signaling.MessageTypeInviteError,
				signaling.ErrorPayload{Message: "not a member of this room"}))
			return
		}

		code := p.InviteCode
		if code == "" {
			code = h.generateInviteCode()
		}
		h.inviteCodes[code] = room.ID

		client.queue(signaling.MustMessage(signaling.MessageTypeInviteCreated,
			signaling.InviteCreatedPayload{Code: code, RoomID: room.ID, Type: room.Type, RoomName: room.Name}))
		return
	}

	roomType := "group"
	name := p.RoomName
	if p.Type == "friend" {
		roomType = "private"
		name = fmt.Sprintf("%s's chat", user.Nickname)
	}
	if name == "" {
		name = "group chat"
	}

	code := h.generateInviteCode()
	room := newRoom(uuid.NewString(), name, roomType)
	room.addMember(p.UserID)
	room.peers[p.UserID] = client

	h.rooms[room.ID] = room
	h.inviteCodes[code] = room.ID

	h.log.Info().Str("room", room.ID).Str("code", code).Str("type", roomType).Msg("room created")

	client.queue(signaling.MustMessage(signaling.MessageTypeInviteCreated,
		signaling.InviteCreatedPayload{Code: code, RoomID: room.ID, Type: p.Type, RoomName: room.Name}))
}

// joinInvite adds a user to a room, resolving the code either through the
// invite table or, for compatibility with shared room links, as a raw room
// UUID.
func (h *Hub) joinInvite(client *Client, p *signaling.JoinInvitePayload) {
	user, ok := h.users[p.UserID]
	if !ok {
		client.queue(signaling.MustMessage(signaling.MessageTypeJoinError,
			signaling.ErrorPayload{Message: "unknown user"}))
		return
	}

	roomID, ok := h.inviteCodes[p.Code]
	if !ok {
		if _, err := uuid.Parse(p.Code); err != nil {
			client.queue(signaling.MustMessage(signaling.MessageTypeJoinError,
				signaling.ErrorPayload{Message: "invalid invite code"}))
			return
		}
		roomID = p.Code
	}

	room, ok := h.rooms[roomID]
	if !ok {
		client.queue(signaling.MustMessage(signaling.MessageTypeJoinError,
			signaling.ErrorPayload{Message: "room not found"}))
		return
	}

	isNew := room.addMember(p.UserID)
	room.peers[p.UserID] = client
	user.client = client
	client.userID = p.UserID

	if isNew {
		room.broadcastExcept(p.UserID, signaling.MustMessage(signaling.MessageTypeUserJoined,
			signaling.UserInfo{UserID: user.ID, Nickname: user.Nickname, Avatar: user.Avatar}))
	}

	h.log.Info().Str("room", room.ID).Str("user", p.UserID).Bool("new", isNew).Msg("user joined room")

	client.queue(signaling.MustMessage(signaling.MessageTypeJoinSuccess, signaling.JoinSuccessPayload{
		RoomID:   room.ID,
		RoomName: room.Name,
		RoomType: room.Type,
		Members:  h.memberInfo(room.Members),
		Messages: room.recentMessages(h.cfg.ReplayLimit),
	}))
}

// sendMessage stores and broadcasts a chat message.
func (h *Hub) sendMessage(client *Client, p *signaling.SendMessagePayload) {
	user, ok := h.users[p.UserID]
	if !ok {
		client.queue(signaling.MustMessage(signaling.MessageTypeMessageError,
			signaling.ErrorPayload{Message: "unknown user"}))
		return
	}

	room, ok := h.rooms[p.RoomID]
	if !ok {
		client.queue(signaling.MustMessage(signaling.MessageTypeMessageError,
			signaling.ErrorPayload{Message: "room not found"}))
		return
	}

	if p.Content == "" {
		client.queue(signaling.MustMessage(signaling.MessageTypeMessageError,
			signaling.ErrorPayload{Message: "empty message"}))
		return
	}

	kind := p.Kind
	if kind == "" {
		kind = "text"
	}

	msg := signaling.ChatMessage{
		ID:        uuid.NewString(),
		UserID:    p.UserID,
		Nickname:  user.Nickname,
		Content:   p.Content,
		Kind:      kind,
		Timestamp: now(),
	}

	room.appendMessage(msg, h.cfg.HistoryLimit)
	room.broadcast(signaling.MustMessage(signaling.MessageTypeNewMessage, msg))
}

// listRooms replies with the rooms the user is a member of.
func (h *Hub) listRooms(client *Client, userID string) {
	list := []signaling.RoomInfo{}
	for _, room := range h.rooms {
		if room.hasMember(userID) {
			list = append(list, signaling.RoomInfo{
				RoomID:      room.ID,
				Name:        room.Name,
				Type:        room.Type,
				MemberCount: len(room.Members),
			})
		}
	}

	client.queue(signaling.MustMessage(signaling.MessageTypeRoomsList,
		signaling.RoomsListPayload{Rooms: list}))
}

// listRoomMembers replies with a room's membership snapshot. Unknown rooms
// yield an empty list.
func (h *Hub) listRoomMembers(client *Client, roomID string) {
	room, ok := h.rooms[roomID]
	if !ok {
		client.queue(signaling.MustMessage(signaling.MessageTypeRoomMembersList,
			signaling.RoomMembersPayload{Members: []signaling.UserInfo{}}))
		return
	}

	members := h.memberInfo(room.Members)
	client.queue(signaling.MustMessage(signaling.MessageTypeRoomMembersList,
		signaling.RoomMembersPayload{RoomID: room.ID, Members: members, MemberCount: len(members)}))
}

// deleteRoom removes a room and its invite codes. The requester always gets
// a room_deleted back, even for rooms that are already gone, so local
// cleanup never stalls.
func (h *Hub) deleteRoom(client *Client, p *signaling.RoomRequestPayload) {
	nickname := ""
	if user, ok := h.users[p.UserID]; ok {
		nickname = user.Nickname
	}

	room, ok := h.rooms[p.RoomID]
	if !ok || nickname == "" || !room.hasMember(p.UserID) {
		name := ""
		if ok {
			name = room.Name
		}
		client.queue(signaling.MustMessage(signaling.MessageTypeRoomDeleted, signaling.RoomDeletedPayload{
			RoomID: p.RoomID, RoomName: name, InitiatorID: p.UserID, InitiatorNickname: nickname,
		}))
		return
	}

	for code, id := range h.inviteCodes {
		if id == room.ID {
			delete(h.inviteCodes, code)
		}
	}

	room.broadcast(signaling.MustMessage(signaling.MessageTypeRoomDeleted, signaling.RoomDeletedPayload{
		RoomID: room.ID, RoomName: room.Name, InitiatorID: p.UserID, InitiatorNickname: nickname,
	}))

	delete(h.rooms, room.ID)
	h.log.Info().Str("room", p.RoomID).Str("user", p.UserID).Msg("room deleted")
}

// joinVoice adds the user to the room's voice session. The join is broadcast
// to the whole room, joiner included: the echo carries the users that were
// already in voice, which is who the joiner connects to.
func (h *Hub) joinVoice(client *Client, p *signaling.RoomRequestPayload) {
	user, ok := h.users[p.UserID]
	if !ok {
		client.queue(signaling.MustMessage(signaling.MessageTypeVoiceError,
			signaling.ErrorPayload{Message: "unknown user"}))
		return
	}

	room, ok := h.rooms[p.RoomID]
	if !ok {
		client.queue(signaling.MustMessage(signaling.MessageTypeVoiceError,
			signaling.ErrorPayload{Message: "room not found"}))
		return
	}

	existing := h.voiceInfo(room)

	room.voice[p.UserID] = true
	room.peers[p.UserID] = client
	user.client = client
	client.userID = p.UserID

	h.log.Info().Str("room", room.ID).Str("user", p.UserID).Int("existing", len(existing)).Msg("user joined voice")

	room.broadcast(signaling.MustMessage(signaling.MessageTypeUserJoinedVoice, signaling.UserJoinedVoicePayload{
		UserID:        p.UserID,
		Nickname:      user.Nickname,
		ExistingUsers: existing,
	}))

	client.queue(signaling.MustMessage(signaling.MessageTypeVoiceRoomUsers,
		signaling.VoiceRoomUsersPayload{Users: existing}))
}

// leaveVoice drops the user from the voice session and tells the room.
// Leaving a voice session one is not in is a no-op.
func (h *Hub) leaveVoice(p *signaling.RoomRequestPayload) {
	room, ok := h.rooms[p.RoomID]
	if !ok || !room.voice[p.UserID] {
		return
	}

	delete(room.voice, p.UserID)

	nickname := ""
	if user, ok := h.users[p.UserID]; ok {
		nickname = user.Nickname
	}

	h.log.Info().Str("room", room.ID).Str("user", p.UserID).Msg("user left voice")

	room.broadcast(signaling.MustMessage(signaling.MessageTypeUserLeftVoice,
		signaling.UserLeftVoicePayload{UserID: p.UserID, Nickname: nickname}))
}

// forwardSignal relays one negotiation message to its single target. The
// SDP/candidate blobs pass through untouched; targets that are not connected
// to the room drop the signal silently.
func (h *Hub) forwardSignal(msgType string, p *signaling.SignalPayload) {
	room, ok := h.rooms[p.RoomID]
	if !ok {
		return
	}

	target, ok := room.peers[p.TargetUserID]
	if !ok {
		h.log.Debug().Str("type", msgType).Str("target", p.TargetUserID).Msg("signal target not connected")
		return
	}

	fromNickname := ""
	if user, ok := h.users[p.FromUserID]; ok {
		fromNickname = user.Nickname
	}

	target.queue(signaling.MustMessage(msgType, signaling.SignalPayload{
		FromUserID:   p.FromUserID,
		FromNickname: fromNickname,
		Offer:        p.Offer,
		Answer:       p.Answer,
		Candidate:    p.Candidate,
	}))
}

// dropClient cleans up after a disconnected websocket: the user leaves voice
// and every room they were in, and their login is discarded.
func (h *Hub) dropClient(client *Client) {
	defer close(client.send)

	userID := client.userID
	if userID == "" {
		return
	}

	user, ok := h.users[userID]
	if !ok || user.client != client {
		// A reconnect already replaced this binding.
		return
	}

	for _, room := range h.rooms {
		if !room.hasMember(userID) {
			continue
		}

		if room.voice[userID] {
			delete(room.voice, userID)
			room.broadcastExcept(userID, signaling.MustMessage(signaling.MessageTypeUserLeftVoice,
				signaling.UserLeftVoicePayload{UserID: userID, Nickname: user.Nickname}))
		}

		room.removeMember(userID)
		room.broadcast(signaling.MustMessage(signaling.MessageTypeUserLeft,
			signaling.UserInfo{UserID: userID, Nickname: user.Nickname}))
	}

	delete(h.users, userID)
	h.log.Info().Str("user", userID).Msg("user disconnected")
}

// memberInfo resolves user IDs to their public info, skipping stale IDs.
func (h *Hub) memberInfo(ids []string) []signaling.UserInfo {
	out := make([]signaling.UserInfo, 0, len(ids))
	for _, id := range ids {
		if user, ok := h.users[id]; ok {
			out = append(out, signaling.UserInfo{UserID: user.ID, Nickname: user.Nickname, Avatar: user.Avatar})
		}
	}
	return out
}

// voiceInfo resolves the room's current voice participants.
func (h *Hub) voiceInfo(room *Room) []signaling.UserInfo {
	out := make([]signaling.UserInfo, 0, len(room.voice))
	for id := range room.voice {
		if user, ok := h.users[id]; ok {
			out = append(out, signaling.UserInfo{UserID: user.ID, Nickname: user.Nickname, Avatar: user.Avatar})
		}
	}
	return out
}

// generateInviteCode mints an unused short code.
func (h *Hub) generateInviteCode() string {
	for {
		code := make([]byte, inviteCodeLength)
		for i := range code {
			code[i] = inviteCodeAlphabet[randomIndex(len(inviteCodeAlphabet))]
		}
		if _, taken := h.inviteCodes[string(code)]; !taken {
			return string(code)
		}
	}
}

// randomIndex returns a cryptographically secure random index below max.
func randomIndex(max int) int {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		panic(err)
	}
	return int(n.Int64())
}

func now() string {
	return time.Now().Format(time.RFC3339)
}

func (h *Hub) decode(msg *signaling.Message, v any) bool {
	if err := json.Unmarshal(msg.Payload, v); err != nil {
		h.log.Warn().Err(err).Str("type", msg.Type).Msg("bad payload")
		return false
	}
	return true
}
