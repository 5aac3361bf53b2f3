package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sandeepkv93/qr-attendance-service/internal/database"
	"github.com/sandeepkv93/qr-attendance-service/internal/di"
)

func withServices(cmd *cobra.Command, opts *rootOptions, fn func(ctx context.Context, svc *di.Services) error) error {
	cfg, err := opts.config()
	if err != nil {
		return err
	}
	svc, err := di.InitializeServices(cmd.Context(), cfg, os.Stderr)
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownObservabilityTimeout)
		defer cancel()
		_ = svc.Close(ctx)
	}()
	return fn(cmd.Context(), svc)
}

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd, opts, func(ctx context.Context, svc *di.Services) error {
				if err := database.Migrate(svc.DB); err != nil {
					return err
				}
				svc.Logger.Info("schema migrated", "db_driver", svc.Config.DBDriver)
				return nil
			})
		},
	}
}

func newSweepCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Expire active sessions past their expiry instant",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd, opts, func(ctx context.Context, svc *di.Services) error {
				n, err := svc.Sessions.SweepExpired(ctx, time.Now().UTC())
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "expired %d session(s)\n", n)
				return err
			})
		},
	}
}
