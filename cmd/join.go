package cmd

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/craftbyte/craftchat/internal/config"
	"github.com/craftbyte/craftchat/internal/logging"
	"github.com/craftbyte/craftchat/internal/signaling"
	"github.com/craftbyte/craftchat/internal/store"
	"github.com/craftbyte/craftchat/internal/ui"
)

var (
	flagJoinNick     string
	flagJoinRoomName string
	flagJoinGroup    bool
	flagJoinDomain   string
	flagJoinSTUN     string
	flagJoinAudioIn  string
	flagJoinAudioDir string
	flagJoinInsecure bool
)

var joinCmd = &cobra.Command{
	Use:     "join [invite-code]",
	Aliases: []string{"j"},
	Short:   "Join a chat room, or create one when no code is given",
	Long: `Join a room by invite code (or raw room ID) and start chatting. Without a
code a new room is created and its invite code printed for sharing.

Inside the room: plain lines are chat messages; /voice joins the voice mesh,
/mute toggles the microphone, /leave exits voice, /members lists the room,
/quit returns to the shell.

Examples:
  craftchat join abc123 --nick Steve
  craftchat join --nick Alex --group --name "build server"`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		code := ""
		if len(args) == 1 {
			code = strings.ToLower(strings.TrimSpace(args[0]))
		}
		return runJoin(code)
	},
}

func runJoin(code string) error {
	if flagJoinNick == "" {
		return fmt.Errorf("a nickname is required (--nick)")
	}

	log := logging.Init()

	cfg, err := config.Load(config.Options{
		Domain:   flagJoinDomain,
		STUN:     flagJoinSTUN,
		AudioIn:  flagJoinAudioIn,
		AudioDir: flagJoinAudioDir,
		Insecure: flagJoinInsecure,
	})
	if err != nil {
		return err
	}

	fmt.Println()
	stopSpinner := ui.RunConnectionSpinner("Connecting to relay...")
	ctx, err := NewConnectionContext(cfg, log)
	if err != nil {
		stopSpinner()
		return err
	}
	defer ctx.Close()

	if err := ctx.Login(flagJoinNick); err != nil {
		stopSpinner()
		return err
	}
	stopSpinner()

	if code == "" {
		created, err := createRoom(ctx)
		if err != nil {
			return err
		}
		fmt.Println(ui.InviteBox(created.Code, created.RoomID, created.RoomName))
		fmt.Println()
		code = created.Code
	}

	join, err := joinRoom(ctx, code)
	if err != nil {
		return err
	}

	rememberRoom(join, log)

	for _, msg := range join.Messages {
		ui.PrintChatMessage(formatTimestamp(msg.Timestamp), msg.Nickname, msg.Content)
	}

	return newChatSession(ctx, join).Run()
}

// createRoom asks the relay for a fresh room and invite code.
func createRoom(ctx *ConnectionContext) (*signaling.InviteCreatedPayload, error) {
	inviteType := "friend"
	if flagJoinGroup {
		inviteType = "group"
	}

	msg, err := signaling.NewMessage(signaling.MessageTypeCreateInvite, signaling.CreateInvitePayload{
		UserID:   ctx.UserID,
		Type:     inviteType,
		RoomName: flagJoinRoomName,
	})
	if err != nil {
		return nil, err
	}
	ctx.Client.SendMessage(msg)

	select {
	case created := <-ctx.Handler.InviteCreated:
		return created, nil
	case errMsg := <-ctx.Handler.Error:
		return nil, fmt.Errorf("create room: %s", errMsg)
	}
}

// joinRoom redeems an invite code and waits for the room snapshot.
func joinRoom(ctx *ConnectionContext, code string) (*signaling.JoinSuccessPayload, error) {
	msg, err := signaling.NewMessage(signaling.MessageTypeJoinInvite, signaling.JoinInvitePayload{
		UserID: ctx.UserID,
		Code:   code,
	})
	if err != nil {
		return nil, err
	}
	ctx.Client.SendMessage(msg)

	select {
	case join := <-ctx.Handler.JoinSuccess:
		return join, nil
	case errMsg := <-ctx.Handler.Error:
		return nil, fmt.Errorf("join room: %s", errMsg)
	}
}

// rememberRoom records the room in the recent-room cache. Failures only cost
// the convenience listing, so they are logged and ignored.
func rememberRoom(join *signaling.JoinSuccessPayload, log zerolog.Logger) {
	rooms, err := store.NewRooms()
	if err != nil {
		log.Debug().Err(err).Msg("recent-room store unavailable")
		return
	}
	if err := rooms.Remember(store.RecentRoom{
		RoomID:   join.RoomID,
		RoomName: join.RoomName,
		RoomType: join.RoomType,
	}); err != nil {
		log.Debug().Err(err).Msg("failed to record recent room")
	}
}

// forgetRoom drops a deleted room from the recent-room cache.
func forgetRoom(roomID string, log zerolog.Logger) {
	rooms, err := store.NewRooms()
	if err != nil {
		return
	}
	if err := rooms.Forget(roomID); err != nil {
		log.Debug().Err(err).Msg("failed to prune recent room")
	}
}

func init() {
	rootCmd.AddCommand(joinCmd)

	joinCmd.Flags().StringVarP(&flagJoinNick, "nick", "n", "", "Nickname to chat as")
	joinCmd.Flags().StringVar(&flagJoinRoomName, "name", "", "Room name (when creating a group)")
	joinCmd.Flags().BoolVarP(&flagJoinGroup, "group", "g", false, "Create a group room instead of a private chat")
	joinCmd.Flags().StringVar(&flagJoinDomain, "domain", "", "Custom relay domain")
	joinCmd.Flags().StringVarP(&flagJoinSTUN, "stun", "s", "", "Custom STUN server")
	joinCmd.Flags().StringVar(&flagJoinAudioIn, "audio-in", "", "Opus/OGG file used as the microphone source")
	joinCmd.Flags().StringVar(&flagJoinAudioDir, "audio-dir", "", "Directory for incoming participant audio")
	joinCmd.Flags().BoolVar(&flagJoinInsecure, "insecure", false, "Use ws/http instead of wss/https")
}
