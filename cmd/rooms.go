package cmd

import (
	"github.com/spf13/cobra"

	"github.com/craftbyte/craftchat/internal/store"
	"github.com/craftbyte/craftchat/internal/ui"
)

var roomsCmd = &cobra.Command{
	Use:   "rooms",
	Short: "List recently joined rooms",
	Long: `List the rooms remembered from previous sessions, most recent first.
Rejoin one with: craftchat join <room-id> --nick <nickname>`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rooms, err := store.NewRooms()
		if err != nil {
			return err
		}

		recent, err := rooms.List()
		if err != nil {
			return err
		}

		rows := make([]ui.RoomRow, 0, len(recent))
		for _, room := range recent {
			rows = append(rows, ui.RoomRow{
				RoomID: room.RoomID,
				Name:   room.RoomName,
				Type:   room.RoomType,
			})
		}
		ui.RenderRoomTable(rows)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(roomsCmd)
}
