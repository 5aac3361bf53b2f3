package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/sandeepkv93/qr-attendance-service/internal/di"
	"github.com/sandeepkv93/qr-attendance-service/internal/qrcode"
	"github.com/sandeepkv93/qr-attendance-service/internal/tools/display"
)

func newDisplayCommand(opts *rootOptions) *cobra.Command {
	var (
		sessionID string
		teacherID string
	)
	cmd := &cobra.Command{
		Use:   "display",
		Short: "Show a rotating check-in code for a session in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			if sessionID == "" || teacherID == "" {
				return fmt.Errorf("--session and --teacher are required")
			}
			cfg, err := opts.config()
			if err != nil {
				return err
			}
			// the display owns the terminal, so logs go to the OTLP bridge only
			svc, err := di.InitializeServices(cmd.Context(), cfg, io.Discard)
			if err != nil {
				return err
			}
			defer func() { _ = svc.Close(context.Background()) }()
			return display.Run(cmd.Context(), svc.Sessions, qrcode.NewEncoder(), display.Options{
				SessionID: sessionID,
				TeacherID: teacherID,
				Output:    cmd.OutOrStdout(),
				AltScreen: true,
			})
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "session id")
	cmd.Flags().StringVar(&teacherID, "teacher", "", "owning teacher id")
	return cmd
}
