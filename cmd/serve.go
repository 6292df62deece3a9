package cmd

import (
	"net/http"

	"github.com/spf13/cobra"

	"github.com/craftbyte/craftchat/internal/config"
	"github.com/craftbyte/craftchat/internal/logging"
	"github.com/craftbyte/craftchat/internal/relay"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the signaling relay server",
	Long: `Run the relay that chat clients connect to: HTTP login, room and invite
management, message history, and WebRTC signal forwarding over websockets.

Configuration comes from CRAFTCHAT_* environment variables (ADDR,
MAX_MESSAGE_SIZE, HISTORY_LIMIT, REPLAY_LIMIT).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		log := logging.Init()

		cfg, err := config.LoadRelay()
		if err != nil {
			return err
		}

		hub := relay.NewHub(cfg, log)
		go hub.Run()

		log.Info().Str("addr", cfg.Addr).Msg("relay listening")
		return http.ListenAndServe(cfg.Addr, relay.NewHandler(hub, log))
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
