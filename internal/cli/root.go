// Package cli implements the camconnect command tree.
package cli

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/AnujaKalahara99/camconnectit/internal/config"
	"github.com/AnujaKalahara99/camconnectit/internal/negotiation"
	"github.com/AnujaKalahara99/camconnectit/internal/polling"
	"github.com/AnujaKalahara99/camconnectit/internal/relay"
	"github.com/AnujaKalahara99/camconnectit/internal/signaling"
	"github.com/AnujaKalahara99/camconnectit/internal/ui"
)

var (
	flagConfigFile   string
	flagDomain       string
	flagSTUN         string
	flagTURN         string
	flagTURNUser     string
	flagTURNPass     string
	flagPolling      bool
	flagPollInterval time.Duration
	flagChunkSize    int
)

var rootCmd = &cobra.Command{
	Use:   "camconnect",
	Short: "Share photos from a camera device to a viewer over WebRTC",
	Long: `CamConnect turns one device into a camera and another into a viewer,
pairing them through a signaling session and moving photos directly
between them over a WebRTC data channel.`,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfigFile, "config", "", "path to a TOML config file")
	pf.StringVar(&flagDomain, "domain", "", "signaling server domain")
	pf.StringVar(&flagSTUN, "stun", "", "STUN server URL")
	pf.StringVar(&flagTURN, "turn", "", "TURN server URL")
	pf.StringVar(&flagTURNUser, "turn-user", "", "TURN username")
	pf.StringVar(&flagTURNPass, "turn-pass", "", "TURN password")
	pf.BoolVar(&flagPolling, "polling", false, "use HTTP polling instead of the websocket connection")
	pf.DurationVar(&flagPollInterval, "poll-interval", 0, "polling interval (default 1s)")
	pf.IntVar(&flagChunkSize, "chunk-size", 0, "transfer chunk size in bytes (default 16384)")
}

// Execute runs the root command. Interrupts cancel the command context so
// sessions can tear down and print their summaries.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		ui.PrintError(err.Error())
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	return config.Load(config.Options{
		ConfigFile:   flagConfigFile,
		Domain:       flagDomain,
		STUNServer:   flagSTUN,
		TURNServer:   flagTURN,
		TURNUser:     flagTURNUser,
		TURNPass:     flagTURNPass,
		UsePolling:   flagPolling,
		PollInterval: flagPollInterval,
		ChunkSize:    flagChunkSize,
	})
}

// parseRoomInput accepts either a bare room id or a share link of the
// form https://domain/viewer/<id>.
func parseRoomInput(input string) (string, error) {
	if !strings.Contains(input, "://") {
		if input == "" {
			return "", fmt.Errorf("empty room id")
		}
		return input, nil
	}
	u, err := url.Parse(input)
	if err != nil {
		return "", fmt.Errorf("invalid room link: %w", err)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	id := parts[len(parts)-1]
	if id == "" {
		return "", fmt.Errorf("room link carries no room id")
	}
	return id, nil
}

// session bundles a signaler with its transport-specific teardown.
type session struct {
	signaler negotiation.Signaler
	relay    *relay.Client
	poller   *polling.Poller
}

func (s *session) close(ctx context.Context) {
	if s.relay != nil {
		s.relay.Close()
	}
	if s.poller != nil {
		s.poller.Clear(ctx)
	}
}

// connect builds a signaler for the chosen transport and joins the room.
func connect(ctx context.Context, cfg *config.Config, room string, role signaling.Role) (*session, error) {
	if cfg.UsePolling {
		if role == signaling.RoleLobby {
			return nil, fmt.Errorf("the polling transport has no lobby; join as a viewer instead")
		}
		p := polling.NewPoller(cfg.SignalingURL, room, role, cfg.PollInterval)
		p.Start(ctx)
		return &session{signaler: p, poller: p}, nil
	}

	c := relay.NewClient(cfg.WebSocketURL)
	if err := c.Connect(); err != nil {
		return nil, err
	}
	c.Register(room, role)
	return &session{signaler: c, relay: c}, nil
}
