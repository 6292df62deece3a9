package config

import (
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
)

// Default configuration values (production)
const (
	DefaultDomain = "craftchat.qzz.io"
	DefaultSTUN   = "stun:stun.l.google.com:19302"
	DefaultSTUN2  = "stun:stun1.l.google.com:19302"
)

// Config holds client configuration.
type Config struct {
	// Domain is the relay server domain.
	Domain string

	// WebSocketURL and LoginURL are constructed from the domain.
	WebSocketURL string
	LoginURL     string

	// ICE servers for WebRTC.
	STUNServers []string

	// AudioIn is a path to an Opus/OGG file used as the microphone source.
	AudioIn string

	// AudioDir is where remote participant audio is written.
	AudioDir string
}

// Options for loading config with CLI flag overrides.
type Options struct {
	Domain   string
	STUN     string
	AudioIn  string
	AudioDir string
	Insecure bool
}

// Load reads client configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables
// 3. Hardcoded defaults - lowest priority
func Load(opts Options) (*Config, error) {
	domain := opts.Domain
	if domain == "" {
		domain = os.Getenv("CRAFTCHAT_DOMAIN")
	}
	if domain == "" {
		domain = DefaultDomain
	}

	stun := opts.STUN
	if stun == "" {
		stun = os.Getenv("CRAFTCHAT_STUN")
	}
	stunServers := []string{DefaultSTUN, DefaultSTUN2}
	if stun != "" {
		stunServers = []string{stun}
	}

	audioIn := opts.AudioIn
	if audioIn == "" {
		audioIn = os.Getenv("CRAFTCHAT_AUDIO_IN")
	}

	audioDir := opts.AudioDir
	if audioDir == "" {
		audioDir = os.Getenv("CRAFTCHAT_AUDIO_DIR")
	}
	if audioDir == "" {
		audioDir = "craftchat-audio"
	}

	wsScheme, httpScheme := "wss", "https"
	if opts.Insecure || os.Getenv("CRAFTCHAT_INSECURE") == "1" {
		wsScheme, httpScheme = "ws", "http"
	}

	return &Config{
		Domain:       domain,
		WebSocketURL: fmt.Sprintf("%s://%s/ws", wsScheme, domain),
		LoginURL:     fmt.Sprintf("%s://%s/login", httpScheme, domain),
		STUNServers:  stunServers,
		AudioIn:      audioIn,
		AudioDir:     audioDir,
	}, nil
}

// RelayConfig holds signaling relay server configuration, read from the
// environment with the CRAFTCHAT prefix.
type RelayConfig struct {
	Addr           string `envconfig:"ADDR" default:":2250"`
	MaxMessageSize int64  `envconfig:"MAX_MESSAGE_SIZE" default:"65536"`
	HistoryLimit   int    `envconfig:"HISTORY_LIMIT" default:"100"`
	ReplayLimit    int    `envconfig:"REPLAY_LIMIT" default:"50"`
}

// LoadRelay reads the relay configuration from the environment.
func LoadRelay() (*RelayConfig, error) {
	var cfg RelayConfig
	if err := envconfig.Process("craftchat", &cfg); err != nil {
		return nil, fmt.Errorf("process relay env: %w", err)
	}
	return &cfg, nil
}
