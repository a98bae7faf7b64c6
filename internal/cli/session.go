package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/AnujaKalahara99/camconnectit/internal/negotiation"
	"github.com/AnujaKalahara99/camconnectit/internal/signaling"
	"github.com/AnujaKalahara99/camconnectit/internal/ui"
)

var sessionCmd = &cobra.Command{
	Use:     "session <room-id|link>",
	Aliases: []string{"s"},
	Short:   "Wait in a session's lobby and become its viewer",
	Long: `Join a session's lobby and wait to be routed. When the camera arrives
(or is already present) the lobby seat is promoted to the viewer and
photos start arriving, exactly as with the view command.`,
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

		sess, err := connect(ctx, cfg, room, signaling.RoleLobby)
		if err != nil {
			return err
		}
		defer sess.close(context.Background())

		// Promotion happens on the route notice; the negotiation side
		// already behaves as a viewer and simply waits for the offer.
		routeOpt := negotiation.WithRouteHandler(func(string) {
			sess.relay.TransitionToViewer()
			ui.PrintInfo("Routed to the viewer seat")
		})

		return receivePhotos(ctx, cfg, sess, signaling.RoleViewer,
			[]negotiation.Option{routeOpt})
	},
}

func init() {
	sessionCmd.Flags().StringVar(&flagViewOut, "out", ".", "directory to save photos into")
	rootCmd.AddCommand(sessionCmd)
}
