package health

import (
	"context"
	"sync"
	"time"
)

type CheckResult struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
}

type Checker interface {
	Check(ctx context.Context) CheckResult
}

type CheckerFunc func(ctx context.Context) CheckResult

func (f CheckerFunc) Check(ctx context.Context) CheckResult { return f(ctx) }

// ProbeRunner fans readiness checks out with a per-check timeout and caches
// the combined result briefly so probe storms don't hammer dependencies.
type ProbeRunner struct {
	timeout  time.Duration
	cacheTTL time.Duration

	mu       sync.Mutex
	checkers []Checker
	last     []CheckResult
	lastAt   time.Time
}

func NewProbeRunner(timeout, cacheTTL time.Duration) *ProbeRunner {
	return &ProbeRunner{timeout: timeout, cacheTTL: cacheTTL}
}

func (p *ProbeRunner) Register(c Checker) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.checkers = append(p.checkers, c)
}

func (p *ProbeRunner) Ready(ctx context.Context) (bool, []CheckResult) {
	p.mu.Lock()
	if p.last != nil && time.Since(p.lastAt) < p.cacheTTL {
		cached := append([]CheckResult(nil), p.last...)
		p.mu.Unlock()
		return allHealthy(cached), cached
	}
	checkers := append([]Checker(nil), p.checkers...)
	p.mu.Unlock()

	results := make([]CheckResult, len(checkers))
	var wg sync.WaitGroup
	for i, c := range checkers {
		wg.Add(1)
		go func(i int, c Checker) {
			defer wg.Done()
			checkCtx, cancel := context.WithTimeout(ctx, p.timeout)
			defer cancel()
			results[i] = c.Check(checkCtx)
		}(i, c)
	}
	wg.Wait()

	p.mu.Lock()
	p.last = append([]CheckResult(nil), results...)
	p.lastAt = time.Now()
	p.mu.Unlock()
	return allHealthy(results), results
}

func allHealthy(results []CheckResult) bool {
	for _, r := range results {
		if !r.Healthy {
			return false
		}
	}
	return true
}
