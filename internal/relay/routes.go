package relay

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/craftbyte/craftchat/internal/signaling"
	"github.com/craftbyte/craftchat/internal/version"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,

	// Clients are native CLIs, not browsers; origin checks add nothing here.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// loginResponse is the JSON body of POST /login.
type loginResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message,omitempty"`
	UserID   string `json:"user_id,omitempty"`
	Nickname string `json:"nickname,omitempty"`
}

// NewHandler builds the relay's HTTP surface: login, health and the
// websocket endpoint.
func NewHandler(hub *Hub, log zerolog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /login", func(w http.ResponseWriter, r *http.Request) {
		nickname := strings.TrimSpace(r.FormValue("nickname"))
		if nickname == "" {
			writeJSON(w, http.StatusOK, loginResponse{Success: false, Message: "nickname required"})
			return
		}

		user := hub.Login(nickname)
		writeJSON(w, http.StatusOK, loginResponse{Success: true, UserID: user.ID, Nickname: user.Nickname})
	})

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": version.Version})
	})

	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn().Err(err).Msg("failed to upgrade connection")
			return
		}

		client := &Client{
			hub:  hub,
			conn: conn,
			log:  log,
			send: make(chan *signaling.Message, 256),
		}

		client.hub.Register <- client

		go client.writePump()
		go client.readPump()
	})

	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
