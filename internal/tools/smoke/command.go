package smoke

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sandeepkv93/qr-attendance-service/internal/tools/common"
	"github.com/sandeepkv93/qr-attendance-service/internal/tools/loadgen"
	"github.com/sandeepkv93/qr-attendance-service/internal/tools/ui"
)

type options struct {
	baseURL  string
	duration time.Duration
	rps      int
	students int
	ci       bool
}

// SignerFunc yields the signer for development bearer tokens. It is
// resolved lazily so flag parsing never needs configuration.
type SignerFunc func() (loadgen.TokenSigner, error)

func NewCommand(signer SignerFunc) *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{Use: "smoke", Short: "Probe a running deployment end to end"}
	cmd.PersistentFlags().StringVar(&opts.baseURL, "base-url", "http://localhost:8080", "API base URL")
	cmd.PersistentFlags().BoolVar(&opts.ci, "ci", false, "non-interactive machine-readable output")
	cmd.AddCommand(newRunCommand(opts, signer))
	return cmd
}

func newRunCommand(opts *options, signer SignerFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Check health probes, then run a short classroom and verify one check-in per student",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := signer()
			if err != nil {
				return err
			}
			details, err := run(opts, "smoke run", func(ctx context.Context) ([]string, error) {
				return Check(ctx, CheckConfig{
					BaseURL:  opts.baseURL,
					Duration: opts.duration,
					RPS:      opts.rps,
					Students: opts.students,
					Signer:   s,
				})
			})
			if opts.ci {
				common.PrintCIResult(err == nil, "smoke run", details, err)
			}
			return err
		},
	}
	cmd.Flags().DurationVar(&opts.duration, "duration", 3*time.Second, "traffic duration")
	cmd.Flags().IntVar(&opts.rps, "rps", 20, "requests per second")
	cmd.Flags().IntVar(&opts.students, "students", 10, "simulated students")
	return cmd
}

func run(opts *options, title string, fn func(context.Context) ([]string, error)) ([]string, error) {
	if opts.ci {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
		defer cancel()
		return fn(ctx)
	}
	return ui.Run(title, fn)
}

type CheckConfig struct {
	BaseURL  string
	Duration time.Duration
	RPS      int
	Students int
	Signer   loadgen.TokenSigner
	Client   *http.Client
}

func Check(ctx context.Context, cfg CheckConfig) ([]string, error) {
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 10 * time.Second}
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	var details []string
	for _, path := range []string{"/health/live", "/health/ready"} {
		if err := probe(ctx, cfg.Client, base+path); err != nil {
			return details, err
		}
		details = append(details, path+": ok")
	}

	res, err := loadgen.Run(ctx, loadgen.Config{
		BaseURL:     base,
		Profile:     loadgen.ProfileMixed,
		Duration:    cfg.Duration,
		RPS:         cfg.RPS,
		Concurrency: 4,
		Students:    cfg.Students,
		Seed:        42,
		Signer:      cfg.Signer,
		Client:      cfg.Client,
	})
	if err != nil {
		return details, err
	}
	details = append(details, fmt.Sprintf("traffic session=%s total=%d failures=%d checkins=%d duplicates=%d rotations=%d",
		res.SessionID, res.TotalRequests, res.Failures, res.CheckIns, res.Duplicates, res.Rotations))
	if res.Failures > 0 {
		return details, fmt.Errorf("%d requests failed", res.Failures)
	}
	if res.CheckIns > cfg.Students {
		return details, fmt.Errorf("recorded %d check-ins for %d students", res.CheckIns, cfg.Students)
	}
	return details, nil
}

func probe(ctx context.Context, client *http.Client, target string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("probe %s: %w", target, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		var body struct {
			Error *struct {
				Code string `json:"code"`
			} `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&body)
		if body.Error != nil {
			return fmt.Errorf("probe %s: %s (%s)", target, resp.Status, body.Error.Code)
		}
		return fmt.Errorf("probe %s: %s", target, resp.Status)
	}
	return nil
}
