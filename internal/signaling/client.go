package signaling

import (
	"encoding/json"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"

	"github.com/craftbyte/craftchat/internal/dns"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Client manages the websocket connection to the signaling relay.
type Client struct {
	conn      *websocket.Conn
	serverURL string
	incoming  chan *Message
	outgoing  chan *Message
	done      chan struct{}
	closed    bool
}

// NewClient creates a new signaling client.
func NewClient(serverURL string) *Client {
	return &Client{
		serverURL: serverURL,
		incoming:  make(chan *Message, 1),
		outgoing:  make(chan *Message, 32),
		done:      make(chan struct{}, 1),
	}
}

// Connect establishes the websocket connection to the relay.
func (c *Client) Connect() error {
	u, err := url.Parse(c.serverURL)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}

	// Custom dialer that uses our robust DNS lookup. Copy the default so the
	// package-global dialer is left untouched.
	dialer := *websocket.DefaultDialer
	dialer.NetDial = func(network, addr string) (net.Conn, error) {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, err
		}

		resolvedIP, err := dns.Lookup(host)
		if err != nil {
			return nil, fmt.Errorf("dns lookup failed: %w", err)
		}

		return net.Dial(network, net.JoinHostPort(resolvedIP, port))
	}

	conn, _, err := dialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	c.conn = conn

	c.conn.SetReadLimit(maxMessageSize)

	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go c.readPump()
	go c.writePump()

	return nil
}

// readPump reads messages from the websocket connection.
func (c *Client) readPump() {
	defer func() {
		c.conn.Close()
		close(c.incoming)
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		c.incoming <- &msg
	}
}

// writePump writes messages to the websocket connection and sends periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.outgoing:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// SendMessage queues a message for delivery to the relay.
func (c *Client) SendMessage(msg *Message) {
	c.outgoing <- msg
}

// Incoming returns the channel for receiving messages.
func (c *Client) Incoming() <-chan *Message {
	return c.incoming
}

// Close closes the websocket connection and cleans up resources.
func (c *Client) Close() {
	if c.closed {
		return
	}
	c.closed = true

	close(c.done)
}

// JoinVoiceRoom announces that the local user entered a room's voice mesh.
func (c *Client) JoinVoiceRoom(userID, roomID string) error {
	return c.send(MessageTypeJoinVoiceRoom, RoomRequestPayload{UserID: userID, RoomID: roomID})
}

// LeaveVoiceRoom announces that the local user left a room's voice mesh.
func (c *Client) LeaveVoiceRoom(userID, roomID string) error {
	return c.send(MessageTypeLeaveVoiceRoom, RoomRequestPayload{UserID: userID, RoomID: roomID})
}

// SendOffer forwards a session description proposal to one target user.
func (c *Client) SendOffer(roomID, targetUserID, fromUserID string, sdp webrtc.SessionDescription) error {
	return c.sendSignal(MessageTypeWebRTCOffer, roomID, targetUserID, fromUserID, sdp, nil)
}

// SendAnswer forwards a session description counter-proposal to one target user.
func (c *Client) SendAnswer(roomID, targetUserID, fromUserID string, sdp webrtc.SessionDescription) error {
	return c.sendSignal(MessageTypeWebRTCAnswer, roomID, targetUserID, fromUserID, sdp, nil)
}

// SendCandidate forwards an ICE candidate to one target user.
func (c *Client) SendCandidate(roomID, targetUserID, fromUserID string, cand webrtc.ICECandidateInit) error {
	return c.sendSignal(MessageTypeWebRTCCandidate, roomID, targetUserID, fromUserID, nil, &cand)
}

func (c *Client) sendSignal(msgType, roomID, targetUserID, fromUserID string, sdp any, cand *webrtc.ICECandidateInit) error {
	payload := SignalPayload{
		RoomID:       roomID,
		TargetUserID: targetUserID,
		FromUserID:   fromUserID,
	}

	if sdp != nil {
		raw, err := json.Marshal(sdp)
		if err != nil {
			return fmt.Errorf("encode session description: %w", err)
		}
		switch msgType {
		case MessageTypeWebRTCOffer:
			payload.Offer = raw
		case MessageTypeWebRTCAnswer:
			payload.Answer = raw
		}
	}
	if cand != nil {
		raw, err := json.Marshal(cand)
		if err != nil {
			return fmt.Errorf("encode candidate: %w", err)
		}
		payload.Candidate = raw
	}

	return c.send(msgType, payload)
}

func (c *Client) send(msgType string, payload any) error {
	msg, err := NewMessage(msgType, payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", msgType, err)
	}
	c.SendMessage(msg)
	return nil
}
