package relay

import (
	"github.com/craftbyte/craftchat/internal/signaling"
)

// Room is one chat room: its membership, message history and the subset of
// members currently in voice. Owned by the hub goroutine; never accessed
// concurrently.
type Room struct {
	ID       string
	Name     string
	Type     string // "private" or "group"
	Members  []string
	Messages []signaling.ChatMessage

	// peers maps member user IDs to their live connections.
	peers map[string]*Client

	// voice holds the user IDs currently in the room's voice session.
	voice map[string]bool
}

func newRoom(id, name, roomType string) *Room {
	return &Room{
		ID:    id,
		Name:  name,
		Type:  roomType,
		peers: make(map[string]*Client),
		voice: make(map[string]bool),
	}
}

// addMember appends a user, reporting whether they were new.
func (r *Room) addMember(userID string) bool {
	for _, id := range r.Members {
		if id == userID {
			return false
		}
	}
	r.Members = append(r.Members, userID)
	return true
}

func (r *Room) removeMember(userID string) {
	for i, id := range r.Members {
		if id == userID {
			r.Members = append(r.Members[:i], r.Members[i+1:]...)
			break
		}
	}
	delete(r.peers, userID)
	delete(r.voice, userID)
}

func (r *Room) hasMember(userID string) bool {
	for _, id := range r.Members {
		if id == userID {
			return true
		}
	}
	return false
}

// appendMessage stores a message, trimming history to the limit.
func (r *Room) appendMessage(msg signaling.ChatMessage, limit int) {
	r.Messages = append(r.Messages, msg)
	if len(r.Messages) > limit {
		r.Messages = r.Messages[len(r.Messages)-limit:]
	}
}

// recentMessages returns up to limit of the newest messages.
func (r *Room) recentMessages(limit int) []signaling.ChatMessage {
	if len(r.Messages) <= limit {
		return r.Messages
	}
	return r.Messages[len(r.Messages)-limit:]
}

// broadcast queues a message to every connected member.
func (r *Room) broadcast(msg *signaling.Message) {
	for _, client := range r.peers {
		client.queue(msg)
	}
}

// broadcastExcept queues a message to every connected member but one.
func (r *Room) broadcastExcept(userID string, msg *signaling.Message) {
	for id, client := range r.peers {
		if id == userID {
			continue
		}
		client.queue(msg)
	}
}
