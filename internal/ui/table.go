package ui

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// RoomRow is one row of the room listing.
type RoomRow struct {
	RoomID string
	Name   string
	Type   string
}

// RenderRoomTable prints the user's rooms.
func RenderRoomTable(rows []RoomRow) {
	if len(rows) == 0 {
		fmt.Println(MutedStyle.Render("No rooms yet"))
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"#", "Name", "Type", "Room ID"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
	})

	for i, row := range rows {
		t.AppendRow(table.Row{i + 1, row.Name, row.Type, row.RoomID})
	}

	t.Render()
}

// MemberRow is one row of the room membership listing.
type MemberRow struct {
	UserID   string
	Nickname string
	InVoice  bool
	Self     bool
}

// RenderMemberTable prints the members of a room, marking voice presence.
func RenderMemberTable(rows []MemberRow) {
	if len(rows) == 0 {
		fmt.Println(MutedStyle.Render("No members"))
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Nickname", "Voice", "User ID"})

	for _, row := range rows {
		nickname := row.Nickname
		if row.Self {
			nickname += " (you)"
		}
		voice := ""
		if row.InVoice {
			voice = IconVoice
		}
		t.AppendRow(table.Row{nickname, voice, row.UserID})
	}

	t.Render()
}

// InviteBox renders a freshly created invite for sharing.
func InviteBox(code, roomID, roomName string) string {
	content := fmt.Sprintf("%s Room ready: %s\n\n%s Invite code:  %s\n%s Room ID:      %s",
		IconSuccess, roomName,
		IconCopy, BoldStyle.Foreground(Primary).Render(code),
		IconRoom, MutedStyle.Render(roomID),
	)
	return InviteBoxStyle.Render(content)
}
