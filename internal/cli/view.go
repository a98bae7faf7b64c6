package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/spf13/cobra"

	"github.com/AnujaKalahara99/camconnectit/internal/config"
	"github.com/AnujaKalahara99/camconnectit/internal/negotiation"
	"github.com/AnujaKalahara99/camconnectit/internal/signaling"
	"github.com/AnujaKalahara99/camconnectit/internal/transfer"
	"github.com/AnujaKalahara99/camconnectit/internal/ui"
)

var flagViewOut string

var viewCmd = &cobra.Command{
	Use:     "view <room-id|link>",
	Aliases: []string{"v"},
	Short:   "Receive photos from a camera",
	Long: `Join a session as the viewer and save every photo the camera sends.

Examples:
  camconnect view beach-trip
  camconnect view https://camconnect.fly.dev/viewer/beach-trip --out ./photos`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		room, err := parseRoomInput(args[0])
		if err != nil {
			return err
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		sess, err := connect(ctx, cfg, room, signaling.RoleViewer)
		if err != nil {
			return err
		}
		defer sess.close(context.Background())

		return receivePhotos(ctx, cfg, sess, signaling.RoleViewer, nil)
	},
}

func init() {
	viewCmd.Flags().StringVar(&flagViewOut, "out", ".", "directory to save photos into")
	rootCmd.AddCommand(viewCmd)
}

// photoSink saves incoming photos and tracks the session table. Data
// channel callbacks arrive on pion goroutines.
type photoSink struct {
	mu       sync.Mutex
	outDir   string
	rows     []ui.PhotoRow
	progress *ui.TransferProgress
	declared int64
}

func (s *photoSink) onMeta(meta transfer.Metadata) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress = ui.NewTransferProgress(meta.Name, meta.Size)
	s.declared = meta.Size
}

func (s *photoSink) onProgress(percent float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.progress != nil {
		s.progress.Update(int64(percent / 100 * float64(s.declared)))
	}
}

func (s *photoSink) onFile(f transfer.File) {
	s.mu.Lock()
	if s.progress != nil {
		s.progress.Finish()
		s.progress = nil
	}
	s.mu.Unlock()

	path, err := s.save(f)
	if err != nil {
		ui.PrintErrorf("failed to save %s: %v", f.Meta.Name, err)
		return
	}

	s.mu.Lock()
	s.rows = append(s.rows, ui.PhotoRow{
		Index:    len(s.rows) + 1,
		Name:     filepath.Base(path),
		Size:     f.Meta.Size,
		Mime:     f.Meta.Mime,
		Received: time.Now(),
	})
	s.mu.Unlock()

	ui.PrintSuccessf("Saved %s (%s)", path, ui.FormatSize(int64(len(f.Data))))
}

func (s *photoSink) save(f transfer.File) (string, error) {
	if err := os.MkdirAll(s.outDir, 0o755); err != nil {
		return "", err
	}
	path := uniquePath(filepath.Join(s.outDir, filepath.Base(f.Meta.Name)))
	if err := os.WriteFile(path, f.Data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func (s *photoSink) table() *ui.PhotoTable {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ui.NewPhotoTable(s.rows)
}

// uniquePath appends a counter when the target name already exists.
func uniquePath(path string) string {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path
	}
	ext := filepath.Ext(path)
	base := path[:len(path)-len(ext)]
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s (%d)%s", base, i, ext)
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}

// receivePhotos runs the receiving side of a session until the context
// is cancelled, then prints the photo table. extraOpts lets the lobby
// flow hook route notices.
func receivePhotos(ctx context.Context, cfg *config.Config, sess *session, role signaling.Role, extraOpts []negotiation.Option) error {
	sink := &photoSink{outDir: flagViewOut}
	receiver := transfer.NewReceiver(sink.onFile,
		transfer.WithMetadataHandler(sink.onMeta),
		transfer.WithProgress(sink.onProgress),
	)

	spinner := ui.NewConnectionSpinner("Waiting for the camera...")
	spinner.Start()

	var once sync.Once
	opts := append([]negotiation.Option{
		negotiation.WithChannelHandler(func(dc *webrtc.DataChannel) {
			receiver.Attach(dc)
			once.Do(func() { spinner.Success("Camera connected") })
		}),
		negotiation.WithStateHandler(func(st negotiation.State) {
			if st == negotiation.StateFailed {
				spinner.UpdateMessage("Reconnecting...")
			}
		}),
	}, extraOpts...)

	ctrl := negotiation.NewController(role, sess.signaler,
		negotiation.NewPeerFactory(cfg, signaling.RoleViewer), opts...)

	err := ctrl.Run(ctx)
	spinner.Stop()

	fmt.Println()
	sink.table().Render()
	return err
}
