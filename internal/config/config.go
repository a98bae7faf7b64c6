package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Default configuration values (production)
const (
	DefaultDomain       = "camconnect.fly.dev"
	DefaultSTUN         = "stun:stun.l.google.com:19302"
	DefaultPollInterval = time.Second
	DefaultChunkSize    = 16 * 1024
)

// Config holds application configuration.
type Config struct {
	// Domain is the signaling server domain.
	Domain string

	// WebSocketURL and SignalingURL are constructed from the domain.
	WebSocketURL string
	SignalingURL string

	// ICE servers for WebRTC.
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string

	// UsePolling selects the HTTP polling signaler instead of the
	// persistent websocket connection.
	UsePolling   bool
	PollInterval time.Duration

	// ChunkSize is the transfer protocol chunk size in bytes.
	ChunkSize int
}

// fileConfig mirrors the optional TOML config file.
type fileConfig struct {
	Domain       string `toml:"domain"`
	STUNServer   string `toml:"stun_server"`
	TURNServer   string `toml:"turn_server"`
	TURNUser     string `toml:"turn_username"`
	TURNPass     string `toml:"turn_password"`
	PollInterval string `toml:"poll_interval"`
	ChunkSize    int    `toml:"chunk_size"`
}

// Options for loading config with CLI flag overrides.
type Options struct {
	ConfigFile   string
	Domain       string
	STUNServer   string
	TURNServer   string
	TURNUser     string
	TURNPass     string
	UsePolling   bool
	PollInterval time.Duration
	ChunkSize    int
}

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables
// 3. TOML config file (if given)
// 4. Hardcoded defaults - lowest priority
func Load(opts Options) (*Config, error) {
	var file fileConfig
	if opts.ConfigFile != "" {
		if _, err := toml.DecodeFile(opts.ConfigFile, &file); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	domain := resolve(opts.Domain, "DOMAIN", file.Domain, DefaultDomain)
	stunServer := resolve(opts.STUNServer, "STUN_SERVER", file.STUNServer, DefaultSTUN)
	turnServer := resolve(opts.TURNServer, "TURN_SERVER", file.TURNServer, "")
	turnUser := resolve(opts.TURNUser, "TURN_USERNAME", file.TURNUser, "")
	turnPass := resolve(opts.TURNPass, "TURN_PASSWORD", file.TURNPass, "")

	pollInterval := opts.PollInterval
	if pollInterval == 0 && file.PollInterval != "" {
		d, err := time.ParseDuration(file.PollInterval)
		if err != nil {
			return nil, fmt.Errorf("parse poll_interval: %w", err)
		}
		pollInterval = d
	}
	if pollInterval == 0 {
		pollInterval = DefaultPollInterval
	}

	chunkSize := opts.ChunkSize
	if chunkSize == 0 {
		chunkSize = file.ChunkSize
	}
	if chunkSize == 0 {
		chunkSize = DefaultChunkSize
	}

	return &Config{
		Domain:       domain,
		WebSocketURL: fmt.Sprintf("wss://%s/ws", domain),
		SignalingURL: fmt.Sprintf("https://%s/signaling", domain),
		STUNServer:   stunServer,
		TURNServer:   turnServer,
		TURNUser:     turnUser,
		TURNPass:     turnPass,
		UsePolling:   opts.UsePolling,
		PollInterval: pollInterval,
		ChunkSize:    chunkSize,
	}, nil
}

// resolve picks the first non-empty value in flag > env > file > default order.
func resolve(flag, envKey, file, def string) string {
	if flag != "" {
		return flag
	}
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	if file != "" {
		return file
	}
	return def
}

// GetRoomLink returns the webapp URL for a room ID.
func (c *Config) GetRoomLink(roomID string) string {
	return fmt.Sprintf("https://%s/viewer/%s", c.Domain, roomID)
}

// GetSTUNServers returns STUN server URLs as strings.
func (c *Config) GetSTUNServers() []string {
	return []string{c.STUNServer}
}

// GetTURNServers returns TURN server URLs if configured.
func (c *Config) GetTURNServers() []string {
	if c.TURNServer == "" {
		return nil
	}
	return []string{
		fmt.Sprintf("%s:3478?transport=udp", c.TURNServer),
		fmt.Sprintf("%s:3478?transport=tcp", c.TURNServer),
	}
}

// GetTURNCredentials returns TURN username and password.
func (c *Config) GetTURNCredentials() (string, string) {
	return c.TURNUser, c.TURNPass
}
