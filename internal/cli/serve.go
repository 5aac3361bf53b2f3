package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sandeepkv93/qr-attendance-service/internal/database"
	"github.com/sandeepkv93/qr-attendance-service/internal/di"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	var autoMigrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.config()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := di.InitializeApp(ctx, cfg, os.Stdout)
			if err != nil {
				return err
			}
			if autoMigrate {
				if err := database.Migrate(a.DB); err != nil {
					_ = a.Shutdown(cmd.Context())
					return err
				}
			}
			a.Logger.Info("starting attendance service",
				"env", cfg.Env,
				"db_driver", cfg.DBDriver,
				"redis", cfg.RedisAddr != "",
				"sweep_interval", cfg.SessionSweepInterval.String(),
			)
			return a.Run(ctx)
		},
	}
	cmd.Flags().BoolVar(&autoMigrate, "migrate", true, "apply schema migrations before serving")
	return cmd
}
