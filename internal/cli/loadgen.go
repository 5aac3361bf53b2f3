package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sandeepkv93/qr-attendance-service/internal/tools/loadgen"
)

func newLoadgenCommand(opts *rootOptions) *cobra.Command {
	cfg := loadgen.Config{}
	cmd := &cobra.Command{
		Use:   "loadgen",
		Short: "Simulate a classroom of students against a running API",
		RunE: func(cmd *cobra.Command, args []string) error {
			signer, err := opts.signer()
			if err != nil {
				return err
			}
			cfg.Signer = signer
			res, err := loadgen.Run(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "session=%s total=%d failures=%d checkins=%d duplicates=%d rotations=%d classes=%v\n",
				res.SessionID, res.TotalRequests, res.Failures, res.CheckIns, res.Duplicates, res.Rotations, res.StatusClasses)
			return err
		},
	}
	cmd.Flags().StringVar(&cfg.BaseURL, "base-url", "http://localhost:8080", "API base URL")
	cmd.Flags().StringVar(&cfg.Profile, "profile", loadgen.ProfileMixed, "checkin, verify or mixed")
	cmd.Flags().DurationVar(&cfg.Duration, "duration", 10*time.Second, "traffic duration")
	cmd.Flags().IntVar(&cfg.RPS, "rps", 10, "requests per second")
	cmd.Flags().IntVar(&cfg.Concurrency, "concurrency", 4, "concurrent workers")
	cmd.Flags().IntVar(&cfg.Students, "students", 30, "simulated students")
	cmd.Flags().Int64Var(&cfg.Seed, "seed", 42, "random seed")
	return cmd
}
