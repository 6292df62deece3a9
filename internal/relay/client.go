package relay

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/craftbyte/craftchat/internal/signaling"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
)

// Client is one websocket connection to the relay. The user behind it is
// unknown until a register_user message binds it.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	log  zerolog.Logger

	// userID is set by the hub goroutine on register_user.
	userID string

	// send is the outbound queue, drained by writePump.
	send chan *signaling.Message
}

// queue delivers a message to the client, dropping it if the client's
// outbound buffer is full. A stalled reader must not stall the hub.
func (c *Client) queue(msg *signaling.Message) {
	select {
	case c.send <- msg:
	default:
		c.log.Warn().Str("type", msg.Type).Msg("dropping message to slow client")
	}
}

// readPump pumps messages from the websocket connection to the hub. It is
// the connection's only reader.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.hub.cfg.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg signaling.Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn().Err(err).Msg("websocket read error")
			}
			break
		}

		c.hub.Inbound <- &inbound{client: c, msg: &msg}
	}
}

// writePump pumps messages from the hub to the websocket connection and
// sends periodic pings. It is the connection's only writer.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(msg); err != nil {
				c.log.Warn().Err(err).Msg("websocket write error")
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
