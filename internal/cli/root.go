package cli

import (
	"github.com/spf13/cobra"

	"github.com/sandeepkv93/qr-attendance-service/internal/config"
	"github.com/sandeepkv93/qr-attendance-service/internal/security"
	"github.com/sandeepkv93/qr-attendance-service/internal/tools/loadgen"
	"github.com/sandeepkv93/qr-attendance-service/internal/tools/smoke"
)

type rootOptions struct {
	envFile string
}

func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:          "attendance",
		Short:        "QR code classroom attendance service",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before the environment is read")
	cmd.AddCommand(
		newServeCommand(opts),
		newMigrateCommand(opts),
		newSweepCommand(opts),
		newTokenCommand(opts),
		newDisplayCommand(opts),
		newLoadgenCommand(opts),
		smoke.NewCommand(func() (loadgen.TokenSigner, error) {
			signer, err := opts.signer()
			if err != nil {
				return nil, err
			}
			return signer, nil
		}),
	)
	return cmd
}

func (o *rootOptions) config() (*config.Config, error) {
	return config.Load(o.envFile)
}

func (o *rootOptions) signer() (*security.JWTManager, error) {
	cfg, err := o.config()
	if err != nil {
		return nil, err
	}
	return jwtManager(cfg), nil
}

func jwtManager(cfg *config.Config) *security.JWTManager {
	return security.NewJWTManager(cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTAccessSecret)
}
