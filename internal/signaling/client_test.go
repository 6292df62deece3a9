package signaling

import (
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func TestConnectLeavesDefaultDialerUntouched(t *testing.T) {
	req := require.New(t)

	// Port 1 refuses immediately; the dial must fail without installing the
	// custom resolver on the shared default dialer.
	c := NewClient("ws://127.0.0.1:1/ws")
	req.Error(c.Connect())
	req.Nil(websocket.DefaultDialer.NetDial)
}
