package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sandeepkv93/qr-attendance-service/internal/domain"
)

func newTokenCommand(opts *rootOptions) *cobra.Command {
	var (
		subject string
		role    string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a development bearer token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.config()
			if err != nil {
				return err
			}
			r := domain.Role(role)
			if r != domain.RoleTeacher && r != domain.RoleStudent {
				return fmt.Errorf("role must be %q or %q, got %q", domain.RoleTeacher, domain.RoleStudent, role)
			}
			if subject == "" {
				return fmt.Errorf("--subject is required")
			}
			if ttl <= 0 {
				ttl = cfg.DevTokenTTL
			}
			tok, err := jwtManager(cfg).SignAccessToken(subject, r, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), tok)
			return err
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "identity subject (teacher or student id)")
	cmd.Flags().StringVar(&role, "role", string(domain.RoleTeacher), "teacher or student")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (defaults to DEV_TOKEN_TTL)")
	return cmd
}
