package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

const (
	storeFile  = "recent_rooms.bin"
	maxEntries = 20
)

// RecentRoom is one remembered room, enough to rejoin without a fresh invite.
type RecentRoom struct {
	RoomID   string    `msgpack:"roomId"`
	RoomName string    `msgpack:"roomName"`
	RoomType string    `msgpack:"roomType"`
	LastUsed time.Time `msgpack:"lastUsed"`
}

// Rooms persists the recently joined rooms under the user config directory.
type Rooms struct {
	path string
}

// NewRooms creates a store at the default per-user location.
func NewRooms() (*Rooms, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("locate config dir: %w", err)
	}
	return &Rooms{path: filepath.Join(base, "craftchat", storeFile)}, nil
}

// NewRoomsAt creates a store backed by an explicit file path.
func NewRoomsAt(path string) *Rooms {
	return &Rooms{path: path}
}

// List returns the remembered rooms, most recently used first. A missing
// store file is an empty list, not an error.
func (r *Rooms) List() ([]RecentRoom, error) {
	data, err := os.ReadFile(r.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read room store: %w", err)
	}

	var rooms []RecentRoom
	if err := msgpack.Unmarshal(data, &rooms); err != nil {
		// A corrupt store is not worth failing a join over; start fresh.
		return nil, nil
	}

	sort.Slice(rooms, func(i, j int) bool {
		return rooms[i].LastUsed.After(rooms[j].LastUsed)
	})
	return rooms, nil
}

// Remember upserts a room at the head of the list, pruning the oldest beyond
// the entry cap.
func (r *Rooms) Remember(room RecentRoom) error {
	rooms, err := r.List()
	if err != nil {
		return err
	}

	room.LastUsed = time.Now()

	out := make([]RecentRoom, 0, len(rooms)+1)
	out = append(out, room)
	for _, existing := range rooms {
		if existing.RoomID == room.RoomID {
			continue
		}
		out = append(out, existing)
	}
	if len(out) > maxEntries {
		out = out[:maxEntries]
	}

	return r.save(out)
}

// Forget removes a room from the list. Unknown rooms are a no-op.
func (r *Rooms) Forget(roomID string) error {
	rooms, err := r.List()
	if err != nil {
		return err
	}

	out := rooms[:0]
	for _, room := range rooms {
		if room.RoomID != roomID {
			out = append(out, room)
		}
	}
	if len(out) == len(rooms) {
		return nil
	}

	return r.save(out)
}

func (r *Rooms) save(rooms []RecentRoom) error {
	data, err := msgpack.Marshal(rooms)
	if err != nil {
		return fmt.Errorf("encode room store: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(r.path, data, 0o644); err != nil {
		return fmt.Errorf("write room store: %w", err)
	}
	return nil
}
