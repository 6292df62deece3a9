package cmd

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/craftbyte/craftchat/internal/config"
	"github.com/craftbyte/craftchat/internal/media"
	"github.com/craftbyte/craftchat/internal/signaling"
	"github.com/craftbyte/craftchat/internal/ui"
	"github.com/craftbyte/craftchat/internal/voice"
)

// ConnectionContext bundles the relay connection shared by client commands.
type ConnectionContext struct {
	Client  *signaling.Client
	Handler *signaling.Handler
	Config  *config.Config
	Log     zerolog.Logger

	UserID   string
	Nickname string
}

// NewConnectionContext connects to the relay and starts routing messages.
func NewConnectionContext(cfg *config.Config, log zerolog.Logger) (*ConnectionContext, error) {
	client := signaling.NewClient(cfg.WebSocketURL)
	if err := client.Connect(); err != nil {
		return nil, fmt.Errorf("connect to relay: %w", err)
	}

	handler := signaling.NewHandler(client, log)
	go handler.Start()

	return &ConnectionContext{
		Client:  client,
		Handler: handler,
		Config:  cfg,
		Log:     log,
	}, nil
}

func (c *ConnectionContext) Close() {
	if c.Handler != nil {
		c.Handler.Close()
	}
	if c.Client != nil {
		c.Client.Close()
	}
}

type loginResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	UserID   string `json:"user_id"`
	Nickname string `json:"nickname"`
}

// Login registers the nickname with the relay over HTTP and binds the
// returned user ID to this websocket connection.
func (c *ConnectionContext) Login(nickname string) error {
	resp, err := http.PostForm(c.Config.LoginURL, url.Values{"nickname": {nickname}})
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	defer resp.Body.Close()

	var body loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("decode login response: %w", err)
	}
	if !body.Success {
		return fmt.Errorf("login rejected: %s", body.Message)
	}

	c.UserID = body.UserID
	c.Nickname = body.Nickname

	msg, err := signaling.NewMessage(signaling.MessageTypeRegisterUser,
		signaling.RegisterUserPayload{UserID: c.UserID})
	if err != nil {
		return err
	}
	c.Client.SendMessage(msg)

	return nil
}

// cliNotifier prints voice lifecycle changes to the terminal.
type cliNotifier struct {
	name func(userID string) string
}

func (n *cliNotifier) VoiceJoined(userID, nickname string) {
	ui.PrintSystemf("%s %s joined voice", ui.IconVoice, nickname)
}

func (n *cliNotifier) VoiceConnected(userID string) {
	ui.PrintSystemf("%s connected to %s", ui.IconConnect, n.name(userID))
}

func (n *cliNotifier) VoiceDisconnected(userID string) {
	ui.PrintSystemf("%s lost connection to %s", ui.IconWarning, n.name(userID))
}

func (n *cliNotifier) VoiceLeft(userID string) {
	ui.PrintSystemf("%s %s left voice", ui.IconVoice, n.name(userID))
}

func (n *cliNotifier) VoiceInvite(userID, nickname string) {
	ui.PrintSystemf("%s %s started voice — type /voice to join", ui.IconInvite, nickname)
}

func (n *cliNotifier) VoiceFailure(message string) {
	ui.PrintWarning(message)
}

// chatSession is one joined room: text chat plus the optional voice mesh.
type chatSession struct {
	ctx   *ConnectionContext
	coord *voice.Coordinator

	roomID   string
	roomName string
}

// newChatSession wires the voice coordinator for a joined room.
func newChatSession(ctx *ConnectionContext, join *signaling.JoinSuccessPayload) *chatSession {
	s := &chatSession{
		ctx:      ctx,
		roomID:   join.RoomID,
		roomName: join.RoomName,
	}

	notifier := &cliNotifier{name: s.nickname}
	sink := media.NewRenderer(ctx.Config.AudioDir, ctx.Log)

	provider := func() (voice.AudioSource, error) {
		if ctx.Config.AudioIn == "" {
			return nil, errors.New("no audio input configured (set --audio-in or CRAFTCHAT_AUDIO_IN)")
		}
		return media.NewFileSource(ctx.Config.AudioIn, ctx.Log)
	}

	s.coord = voice.NewCoordinator(
		voice.Participant{ID: ctx.UserID, Nickname: ctx.Nickname},
		ctx.Client,
		notifier,
		sink,
		provider,
		voice.PionFactory(ctx.Config.STUNServers),
		ctx.Log,
	)
	s.coord.SetMembers(participants(join.Members))

	return s
}

// Run replays history, then splits into a print loop for relay traffic and a
// read loop for user input. Returns when the user quits or the room dies.
func (s *chatSession) Run() error {
	fmt.Println(ui.TitleStyle.Render(fmt.Sprintf("%s %s", ui.IconChat, s.roomName)))
	ui.PrintInfo("type a message, or /voice /mute /members /leave /quit")
	fmt.Println()

	done := make(chan struct{})
	go s.printLoop(done)
	go s.coord.Run(s.ctx.Handler.Voice)

	err := s.readLoop(done)

	s.coord.LeaveVoice()
	return err
}

// printLoop renders relay traffic until the room is deleted or the
// connection drops.
func (s *chatSession) printLoop(done chan struct{}) {
	defer close(done)

	h := s.ctx.Handler
	for {
		select {
		case msg, ok := <-h.NewMessage:
			if !ok {
				return
			}
			ui.PrintChatMessage(formatTimestamp(msg.Timestamp), msg.Nickname, msg.Content)

		case info, ok := <-h.UserJoined:
			if !ok {
				return
			}
			ui.PrintSystemf("%s %s joined the room", ui.IconPeer, info.Nickname)
			s.refreshMembers()

		case info, ok := <-h.UserLeft:
			if !ok {
				return
			}
			ui.PrintSystemf("%s %s left the room", ui.IconPeer, info.Nickname)
			s.refreshMembers()

		case members, ok := <-h.RoomMembers:
			if !ok {
				return
			}
			s.coord.SetMembers(participants(members.Members))
			s.renderMembers(members.Members)

		case deleted, ok := <-h.RoomDeleted:
			if !ok {
				return
			}
			ui.PrintWarningf("room %q was deleted by %s", deleted.RoomName, deleted.InitiatorNickname)
			forgetRoom(deleted.RoomID, s.ctx.Log)
			return

		case errMsg, ok := <-h.Error:
			if !ok {
				return
			}
			ui.PrintError(errMsg)
		}
	}
}

// readLoop consumes stdin until /quit, EOF or a closed print loop.
func (s *chatSession) readLoop(done chan struct{}) error {
	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-done:
			return nil

		case line, ok := <-lines:
			if !ok {
				return nil
			}

			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if quit := s.dispatch(line); quit {
				return nil
			}
		}
	}
}

// dispatch handles one input line, returning true on /quit.
func (s *chatSession) dispatch(line string) bool {
	if !strings.HasPrefix(line, "/") {
		s.sendChat(line)
		return false
	}

	switch strings.Fields(line)[0] {
	case "/voice":
		if err := s.coord.StartVoice(s.roomID); err != nil {
			ui.PrintError(err.Error())
		} else {
			ui.PrintSuccess("joined voice")
		}

	case "/mute":
		muted, err := s.coord.ToggleMute()
		switch {
		case err != nil:
			ui.PrintError(err.Error())
		case muted:
			ui.PrintSystemf("%s muted", ui.IconMuted)
		default:
			ui.PrintSystemf("%s unmuted", ui.IconVoice)
		}

	case "/leave":
		s.coord.LeaveVoice()
		ui.PrintSystem("left voice")

	case "/members":
		s.refreshMembers()

	case "/quit":
		return true

	default:
		ui.PrintWarningf("unknown command %s", line)
	}

	return false
}

func (s *chatSession) sendChat(content string) {
	msg, err := signaling.NewMessage(signaling.MessageTypeSendMessage, signaling.SendMessagePayload{
		UserID:  s.ctx.UserID,
		RoomID:  s.roomID,
		Content: content,
		Kind:    "text",
	})
	if err != nil {
		ui.PrintError(err.Error())
		return
	}
	s.ctx.Client.SendMessage(msg)
}

func (s *chatSession) refreshMembers() {
	msg, err := signaling.NewMessage(signaling.MessageTypeGetRoomMembers, signaling.RoomRequestPayload{
		UserID: s.ctx.UserID,
		RoomID: s.roomID,
	})
	if err != nil {
		return
	}
	s.ctx.Client.SendMessage(msg)
}

func (s *chatSession) renderMembers(members []signaling.UserInfo) {
	inVoice := make(map[string]bool)
	for _, id := range s.coord.Peers() {
		inVoice[id] = true
	}

	rows := make([]ui.MemberRow, 0, len(members))
	for _, m := range members {
		rows = append(rows, ui.MemberRow{
			UserID:   m.UserID,
			Nickname: m.Nickname,
			InVoice:  inVoice[m.UserID] || (m.UserID == s.ctx.UserID && s.coord.Active()),
			Self:     m.UserID == s.ctx.UserID,
		})
	}
	ui.RenderMemberTable(rows)
}

// nickname resolves a user ID against the membership snapshot.
func (s *chatSession) nickname(userID string) string {
	for _, p := range s.coord.Members() {
		if p.ID == userID {
			return p.Nickname
		}
	}
	return userID
}

func participants(members []signaling.UserInfo) []voice.Participant {
	out := make([]voice.Participant, 0, len(members))
	for _, m := range members {
		out = append(out, voice.Participant{ID: m.UserID, Nickname: m.Nickname})
	}
	return out
}

func formatTimestamp(ts string) string {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return ts
	}
	return t.Local().Format(time.Kitchen)
}
