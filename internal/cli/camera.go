package cli

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/spf13/cobra"

	"github.com/AnujaKalahara99/camconnectit/internal/negotiation"
	"github.com/AnujaKalahara99/camconnectit/internal/signaling"
	"github.com/AnujaKalahara99/camconnectit/internal/transfer"
	"github.com/AnujaKalahara99/camconnectit/internal/ui"
)

var (
	flagCameraRoom  string
	flagCameraWatch bool
)

var cameraCmd = &cobra.Command{
	Use:     "camera <photo>...",
	Aliases: []string{"c"},
	Short:   "Share photos with a viewer",
	Long: `Create a session, print its share link, and send the given photos to
the viewer once one connects.

Examples:
  camconnect camera holiday.jpg
  camconnect camera *.jpg --room beach-trip
  camconnect camera *.jpg --watch`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCamera(cmd.Context(), args)
	},
}

func init() {
	cameraCmd.Flags().StringVar(&flagCameraRoom, "room", "", "session id to create (random if omitted)")
	cameraCmd.Flags().BoolVar(&flagCameraWatch, "watch", false, "stay connected and re-send the photos to every viewer that (re)connects")
	rootCmd.AddCommand(cameraCmd)
}

func runCamera(ctx context.Context, photos []string) error {
	for _, p := range photos {
		info, err := os.Stat(p)
		if err != nil {
			return transfer.NewFileError("stat photo", p, err)
		}
		if info.IsDir() {
			return fmt.Errorf("%s is a directory, expected a photo file", p)
		}
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	room := flagCameraRoom
	if room == "" {
		room = uuid.NewString()
	}

	fmt.Println()
	info := ui.SessionInfo{RoomID: room, RoomLink: cfg.GetRoomLink(room)}
	info.Render()
	fmt.Println()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sess, err := connect(ctx, cfg, room, signaling.RoleCamera)
	if err != nil {
		return err
	}
	defer sess.close(context.Background())

	channels := make(chan *webrtc.DataChannel, 1)
	opts := []negotiation.Option{
		negotiation.WithChannelHandler(func(dc *webrtc.DataChannel) {
			select {
			case channels <- dc:
			default:
			}
		}),
	}
	if cfg.UsePolling {
		opts = append(opts, negotiation.WithImmediateOffer())
	}

	ctrl := negotiation.NewController(signaling.RoleCamera, sess.signaler,
		negotiation.NewPeerFactory(cfg, signaling.RoleCamera), opts...)
	go ctrl.Run(ctx)

	for {
		spinner := ui.NewWaitingSpinner("Waiting for a viewer to join...")
		spinner.Start()

		var dc *webrtc.DataChannel
		select {
		case dc = <-channels:
			spinner.Success("Viewer connected")
		case <-ctx.Done():
			spinner.Stop()
			if flagCameraWatch {
				return nil
			}
			return ctx.Err()
		}

		sender := transfer.NewSender(transfer.NewDataChannel(dc),
			transfer.WithChunkSize(cfg.ChunkSize))

		for _, path := range photos {
			if err := sendPhoto(sender, path); err != nil {
				return err
			}
		}

		fmt.Println()
		ui.PrintSuccessf("Sent %d photo(s) %s", len(photos), ui.IconComplete)
		if !flagCameraWatch {
			return nil
		}
	}
}

func sendPhoto(sender *transfer.Sender, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return transfer.NewFileError("open photo", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return transfer.NewFileError("stat photo", path, err)
	}

	name := filepath.Base(path)
	progress := ui.NewTransferProgress(name, info.Size())
	reader := &countingReader{r: f, onRead: progress.Update}

	if err := sender.SendFile(name, mimeType(name), info.Size(), reader); err != nil {
		fmt.Println()
		return err
	}
	progress.Finish()
	return nil
}

func mimeType(name string) string {
	if t := mime.TypeByExtension(filepath.Ext(name)); t != "" {
		return t
	}
	return "application/octet-stream"
}

// countingReader reports cumulative bytes read, for progress display.
type countingReader struct {
	r      io.Reader
	read   int64
	onRead func(int64)
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.read += int64(n)
		c.onRead(c.read)
	}
	return n, err
}
