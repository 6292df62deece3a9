package voice

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeyForIsOrderIndependent(t *testing.T) {
	req := require.New(t)

	req.Equal(KeyFor("alice", "bob"), KeyFor("bob", "alice"))
	req.Equal(LinkKey("alice-bob"), KeyFor("bob", "alice"))
	req.Equal(LinkKey("a1-b2"), KeyFor("a1", "b2"))
}

func TestKeyForDistinctPairs(t *testing.T) {
	req := require.New(t)

	req.NotEqual(KeyFor("alice", "bob"), KeyFor("alice", "carol"))
	req.NotEqual(KeyFor("alice", "bob"), KeyFor("bob", "carol"))
}

func TestStateTerminal(t *testing.T) {
	req := require.New(t)

	req.False(StateUnconnected.Terminal())
	req.False(StateNegotiating.Terminal())
	req.False(StateConnected.Terminal())
	req.True(StateFailed.Terminal())
	req.True(StateClosed.Terminal())
}

func TestSetStateRefusesToLeaveTerminal(t *testing.T) {
	req := require.New(t)

	link := &PeerLink{state: StateNegotiating}
	req.True(link.setState(StateConnected))
	req.True(link.setState(StateFailed))

	// No resurrection: a failed link stays failed.
	req.False(link.setState(StateConnected))
	req.Equal(StateFailed, link.State())

	req.False(link.setState(StateClosed))
	req.Equal(StateFailed, link.State())
}
