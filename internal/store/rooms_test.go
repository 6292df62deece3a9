package store

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Rooms {
	t.Helper()
	return NewRoomsAt(filepath.Join(t.TempDir(), "recent_rooms.bin"))
}

func TestListMissingFileIsEmpty(t *testing.T) {
	req := require.New(t)

	rooms, err := newTestStore(t).List()
	req.NoError(err)
	req.Empty(rooms)
}

func TestRememberOrdersMostRecentFirst(t *testing.T) {
	req := require.New(t)
	s := newTestStore(t)

	req.NoError(s.Remember(RecentRoom{RoomID: "r1", RoomName: "first", RoomType: "group"}))
	req.NoError(s.Remember(RecentRoom{RoomID: "r2", RoomName: "second", RoomType: "private"}))

	rooms, err := s.List()
	req.NoError(err)
	req.Len(rooms, 2)
	req.Equal("r2", rooms[0].RoomID)
	req.Equal("r1", rooms[1].RoomID)
	req.False(rooms[0].LastUsed.IsZero())
}

func TestRememberUpsertsExistingRoom(t *testing.T) {
	req := require.New(t)
	s := newTestStore(t)

	req.NoError(s.Remember(RecentRoom{RoomID: "r1", RoomName: "old name"}))
	req.NoError(s.Remember(RecentRoom{RoomID: "r2"}))
	req.NoError(s.Remember(RecentRoom{RoomID: "r1", RoomName: "new name"}))

	rooms, err := s.List()
	req.NoError(err)
	req.Len(rooms, 2)
	req.Equal("r1", rooms[0].RoomID)
	req.Equal("new name", rooms[0].RoomName)
}

func TestRememberPrunesOldestBeyondCap(t *testing.T) {
	req := require.New(t)
	s := newTestStore(t)

	for i := 0; i < maxEntries+5; i++ {
		req.NoError(s.Remember(RecentRoom{RoomID: fmt.Sprintf("r%d", i)}))
	}

	rooms, err := s.List()
	req.NoError(err)
	req.Len(rooms, maxEntries)
	req.Equal(fmt.Sprintf("r%d", maxEntries+4), rooms[0].RoomID)
	// r0 through r4 fell off the end.
	for _, room := range rooms {
		req.NotEqual("r0", room.RoomID)
	}
}

func TestForgetRemovesRoom(t *testing.T) {
	req := require.New(t)
	s := newTestStore(t)

	req.NoError(s.Remember(RecentRoom{RoomID: "r1"}))
	req.NoError(s.Remember(RecentRoom{RoomID: "r2"}))
	req.NoError(s.Forget("r1"))

	rooms, err := s.List()
	req.NoError(err)
	req.Len(rooms, 1)
	req.Equal("r2", rooms[0].RoomID)

	// Forgetting an unknown room is a no-op.
	req.NoError(s.Forget("r1"))
}

func TestCorruptStoreStartsFresh(t *testing.T) {
	req := require.New(t)
	s := newTestStore(t)

	req.NoError(os.WriteFile(s.path, []byte("not msgpack at all"), 0o644))

	rooms, err := s.List()
	req.NoError(err)
	req.Empty(rooms)

	req.NoError(s.Remember(RecentRoom{RoomID: "r1"}))
	rooms, err = s.List()
	req.NoError(err)
	req.Len(rooms, 1)
}
