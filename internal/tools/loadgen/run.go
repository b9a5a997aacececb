package loadgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"token-auth-service/internal/tools/common"
	"token-auth-service/internal/tools/ui"
)

// Config drives one load generation run against a live instance.
type Config struct {
	BaseURL     string
	Profile     string
	Duration    time.Duration
	RPS         int
	Concurrency int
	Seed        int64
	Email       string
	Password    string
	CI          bool
}

// Result aggregates per-status-class request counts for a run.
type Result struct {
	TotalRequests int
	Failures      int
	ByStatusClass map[string]int
}

func normalizeProfile(profile string) string {
	p := strings.ToLower(strings.TrimSpace(profile))
	if p == "" {
		return "mixed"
	}
	return p
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

type loginResponse struct {
	Data struct {
		Type  string `json:"type"`
		Token string `json:"token"`
	} `json:"data"`
}

// Run generates authentication traffic until cfg.Duration elapses or ctx is
// cancelled. The "auth" profile only exercises login; "mixed" also walks the
// token lifecycle (profile, tokens, logout) with sessions it opens itself.
func Run(ctx context.Context, cfg Config) (Result, error) {
	if cfg.BaseURL == "" {
		return Result{}, fmt.Errorf("base URL is required")
	}
	if cfg.RPS <= 0 {
		cfg.RPS = 10
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.Duration <= 0 {
		cfg.Duration = 10 * time.Second
	}
	profile := normalizeProfile(cfg.Profile)

	runCtx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()

	client := &http.Client{Timeout: 10 * time.Second}
	interval := time.Second / time.Duration(cfg.RPS)
	jobs := make(chan int64)

	var mu sync.Mutex
	res := Result{ByStatusClass: map[string]int{}}
	record := func(status int, err error) {
		mu.Lock()
		defer mu.Unlock()
		res.TotalRequests++
		if err != nil || status >= 500 {
			res.Failures++
		}
		if err == nil {
			res.ByStatusClass[classifyStatusClass(status)]++
		}
	}

	g, gctx := errgroup.WithContext(runCtx)
	for i := 0; i < cfg.Concurrency; i++ {
		g.Go(func() error {
			for seed := range jobs {
				rng := rand.New(rand.NewSource(seed))
				switch profile {
				case "auth":
					doLogin(gctx, client, cfg, rng, record)
				default:
					doMixed(gctx, client, cfg, rng, record)
				}
			}
			return nil
		})
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	seed := cfg.Seed
loop:
	for {
		select {
		case <-runCtx.Done():
			break loop
		case <-ticker.C:
			seed++
			select {
			case jobs <- seed:
			case <-runCtx.Done():
				break loop
			}
		}
	}
	close(jobs)
	if err := g.Wait(); err != nil {
		return res, err
	}
	return res, nil
}

func doLogin(ctx context.Context, client *http.Client, cfg Config, rng *rand.Rand, record func(int, error)) string {
	email, password := cfg.Email, cfg.Password
	// Roughly one in four attempts uses bogus credentials to exercise the
	// rejection path.
	if rng.Intn(4) == 0 {
		password = fmt.Sprintf("wrong-%d", rng.Int63())
	}
	body, _ := json.Marshal(map[string]string{"email": email, "password": password})
	status, respBody, err := post(ctx, client, cfg.BaseURL+"/auth/login", "", body)
	record(status, err)
	if err != nil || status != http.StatusOK {
		return ""
	}
	var lr loginResponse
	if err := json.Unmarshal(respBody, &lr); err != nil {
		return ""
	}
	return lr.Data.Token
}

func doMixed(ctx context.Context, client *http.Client, cfg Config, rng *rand.Rand, record func(int, error)) {
	token := doLogin(ctx, client, cfg, rng, record)
	if token == "" {
		return
	}
	status, _, err := get(ctx, client, cfg.BaseURL+"/auth/profile", token)
	record(status, err)
	status, _, err = get(ctx, client, cfg.BaseURL+"/auth/tokens", token)
	record(status, err)
	status, _, err = post(ctx, client, cfg.BaseURL+"/auth/logout", token, nil)
	record(status, err)
}

func get(ctx context.Context, client *http.Client, url, token string) (int, []byte, error) {
	return do(ctx, client, http.MethodGet, url, token, nil)
}

func post(ctx context.Context, client *http.Client, url, token string, body []byte) (int, []byte, error) {
	return do(ctx, client, http.MethodPost, url, token, body)
}

func do(ctx context.Context, client *http.Client, method, url, token string, body []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, data, nil
}

// NewRootCommand wires the loadgen CLI.
func NewRootCommand() *cobra.Command {
	cfg := Config{}
	cmd := &cobra.Command{
		Use:   "loadgen",
		Short: "Generate authentication traffic against a running instance",
		RunE: func(cmd *cobra.Command, args []string) error {
			runFn := func(ctx context.Context) ([]string, error) {
				res, err := Run(ctx, cfg)
				details := []string{
					fmt.Sprintf("total=%d failures=%d", res.TotalRequests, res.Failures),
				}
				for _, class := range []string{"2xx", "3xx", "4xx", "5xx", "other"} {
					if n := res.ByStatusClass[class]; n > 0 {
						details = append(details, fmt.Sprintf("%s=%d", class, n))
					}
				}
				return details, err
			}

			var details []string
			var err error
			if cfg.CI {
				details, err = runFn(cmd.Context())
				common.PrintCIResult(err == nil, "loadgen", details, err)
			} else {
				details, err = ui.Run("loadgen", runFn)
				for _, d := range details {
					fmt.Println(d)
				}
			}
			if err != nil {
				os.Exit(4)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&cfg.BaseURL, "base-url", "http://localhost:8080", "API base URL")
	cmd.Flags().StringVar(&cfg.Profile, "profile", "mixed", "traffic profile: auth or mixed")
	cmd.Flags().DurationVar(&cfg.Duration, "duration", 30*time.Second, "run duration")
	cmd.Flags().IntVar(&cfg.RPS, "rps", 20, "target requests per second")
	cmd.Flags().IntVar(&cfg.Concurrency, "concurrency", 6, "worker goroutines")
	cmd.Flags().Int64Var(&cfg.Seed, "seed", 42, "deterministic traffic seed")
	cmd.Flags().StringVar(&cfg.Email, "email", "loadgen@example.com", "login email")
	cmd.Flags().StringVar(&cfg.Password, "password", "loadgen-password", "login password")
	cmd.Flags().BoolVar(&cfg.CI, "ci", false, "non-interactive machine-readable output")
	return cmd
}
