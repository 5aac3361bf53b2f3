package loadgen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sandeepkv93/qr-attendance-service/internal/domain"
)

const (
	ProfileCheckIn = "checkin"
	ProfileVerify  = "verify"
	ProfileMixed   = "mixed"
)

type TokenSigner interface {
	SignAccessToken(subject string, role domain.Role, ttl time.Duration) (string, error)
}

type Config struct {
	BaseURL     string
	Profile     string
	Duration    time.Duration
	RPS         int
	Concurrency int
	Students    int
	Seed        int64
	Signer      TokenSigner
	Client      *http.Client
}

type Result struct {
	SessionID     string
	TotalRequests int
	Failures      int
	StatusClasses map[string]int
	CheckIns      int
	Duplicates    int
	Rotations     int
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code string `json:"code"`
	} `json:"error"`
}

type issuedPayload struct {
	Session struct {
		ID             string    `json:"id"`
		TokenExpiresAt time.Time `json:"token_expires_at"`
	} `json:"session"`
	Token string `json:"token"`
}

type runner struct {
	cfg      Config
	teacher  string
	students []string

	mu       sync.Mutex
	rng      *rand.Rand
	token    string
	deadline time.Time
	res      Result
}

// Run drives one classroom session against a running API: a teacher starts
// it and keeps rotating the code while simulated students verify and check in.
func Run(ctx context.Context, cfg Config) (Result, error) {
	cfg = normalizeConfig(cfg)
	if cfg.Signer == nil {
		return Result{}, errors.New("loadgen: token signer is required")
	}
	r := &runner{cfg: cfg, rng: rand.New(rand.NewSource(cfg.Seed)), res: Result{StatusClasses: map[string]int{}}}

	var err error
	if r.teacher, err = cfg.Signer.SignAccessToken("loadgen-teacher", domain.RoleTeacher, time.Hour); err != nil {
		return Result{}, fmt.Errorf("sign teacher token: %w", err)
	}
	for i := 0; i < cfg.Students; i++ {
		tok, err := cfg.Signer.SignAccessToken(fmt.Sprintf("loadgen-student-%03d", i), domain.RoleStudent, time.Hour)
		if err != nil {
			return Result{}, fmt.Errorf("sign student token: %w", err)
		}
		r.students = append(r.students, tok)
	}

	sessionID, err := r.createSession(ctx)
	if err != nil {
		return Result{}, err
	}
	r.res.SessionID = sessionID
	if err := r.issue(ctx, sessionID, "start"); err != nil {
		return r.res, err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, _, _ = r.call(stopCtx, http.MethodPost, "/api/v1/sessions/"+sessionID+"/stop", r.teacher, nil)
	}()

	runCtx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()
	jobs := make(chan struct{})
	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		defer close(jobs)
		ticker := time.NewTicker(time.Second / time.Duration(cfg.RPS))
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				select {
				case jobs <- struct{}{}:
				case <-gctx.Done():
					return nil
				}
			}
		}
	})
	g.Go(func() error { return r.rotate(gctx, sessionID) })
	for i := 0; i < cfg.Concurrency; i++ {
		g.Go(func() error {
			for range jobs {
				r.fire(gctx)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return r.res, err
	}
	return r.res, nil
}

func (r *runner) createSession(ctx context.Context) (string, error) {
	status, env, err := r.call(ctx, http.MethodPost, "/api/v1/sessions", r.teacher, map[string]string{"subject": "loadgen", "room": "virtual"})
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	if status != http.StatusCreated {
		return "", fmt.Errorf("create session: unexpected status %d", status)
	}
	var s struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(env.Data, &s); err != nil {
		return "", fmt.Errorf("decode session: %w", err)
	}
	return s.ID, nil
}

func (r *runner) issue(ctx context.Context, sessionID, action string) error {
	status, env, err := r.call(ctx, http.MethodPost, "/api/v1/sessions/"+sessionID+"/"+action, r.teacher, nil)
	if err != nil {
		return fmt.Errorf("%s session: %w", action, err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("%s session: unexpected status %d", action, status)
	}
	var p issuedPayload
	if err := json.Unmarshal(env.Data, &p); err != nil {
		return fmt.Errorf("decode issued session: %w", err)
	}
	r.mu.Lock()
	r.token, r.deadline = p.Token, p.Session.TokenExpiresAt
	if action == "refresh" {
		r.res.Rotations++
	}
	r.mu.Unlock()
	return nil
}

// rotate refreshes shortly before the current code lapses, the way a
// classroom display would.
func (r *runner) rotate(ctx context.Context, sessionID string) error {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			r.mu.Lock()
			due := !r.deadline.IsZero() && r.deadline.Sub(now) < time.Second
			r.mu.Unlock()
			if !due {
				continue
			}
			if err := r.issue(ctx, sessionID, "refresh"); err != nil && ctx.Err() == nil {
				return err
			}
		}
	}
}

func (r *runner) fire(ctx context.Context) {
	r.mu.Lock()
	student := r.students[r.rng.Intn(len(r.students))]
	verify := r.cfg.Profile == ProfileVerify || (r.cfg.Profile == ProfileMixed && r.rng.Intn(2) == 0)
	token := r.token
	r.mu.Unlock()

	var (
		status int
		env    envelope
		err    error
	)
	if verify {
		status, env, err = r.call(ctx, http.MethodGet, "/api/v1/checkin/verify?token="+url.QueryEscape(token), student, nil)
	} else {
		status, env, err = r.call(ctx, http.MethodPost, "/api/v1/checkin", student, map[string]string{"token": token})
	}
	if ctx.Err() != nil && err != nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.res.TotalRequests++
	if err != nil {
		r.res.Failures++
		r.res.StatusClasses["error"]++
		return
	}
	class := classifyStatusClass(status)
	r.res.StatusClasses[class]++
	if class == "5xx" {
		r.res.Failures++
	}
	if !verify {
		switch {
		case status == http.StatusCreated:
			r.res.CheckIns++
		case status == http.StatusConflict && env.Error != nil && env.Error.Code == "DUPLICATE_CHECKIN":
			r.res.Duplicates++
		}
	}
}

func (r *runner) call(ctx context.Context, method, path, bearer string, body any) (int, envelope, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, envelope{}, err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.cfg.BaseURL+path, reader)
	if err != nil {
		return 0, envelope{}, err
	}
	req.Header.Set("Authorization", "Bearer "+bearer)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := r.cfg.Client.Do(req)
	if err != nil {
		return 0, envelope{}, err
	}
	defer func() { _ = resp.Body.Close() }()
	var env envelope
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		_ = json.NewDecoder(resp.Body).Decode(&env)
	}
	return resp.StatusCode, env, nil
}

func normalizeConfig(cfg Config) Config {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	cfg.Profile = normalizeProfile(cfg.Profile)
	if cfg.Duration <= 0 {
		cfg.Duration = 10 * time.Second
	}
	if cfg.RPS <= 0 {
		cfg.RPS = 10
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.Students <= 0 {
		cfg.Students = 30
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 10 * time.Second}
	}
	return cfg
}

func normalizeProfile(p string) string {
	switch v := strings.ToLower(strings.TrimSpace(p)); v {
	case ProfileCheckIn, ProfileVerify:
		return v
	default:
		return ProfileMixed
	}
}

func classifyStatusClass(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 300 && status < 400:
		return "3xx"
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500 && status < 600:
		return "5xx"
	default:
		return "other"
	}
}
