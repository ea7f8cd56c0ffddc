package health

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// AggregatorConfig configures an Aggregator.
type AggregatorConfig struct {
	// Timeout bounds a whole CheckAll or Check call.
	// Default: 10s
	Timeout time.Duration
}

// Report is the result of a named checker.
type Report struct {
	Name string
	Result
}

// Aggregator runs a set of checkers.
type Aggregator struct {
	timeout time.Duration

	mu       sync.RWMutex
	checkers []Checker
}

// NewAggregator returns an empty Aggregator.
func NewAggregator(cfg AggregatorConfig) *Aggregator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Aggregator{timeout: cfg.Timeout}
}

// Register adds c. Names must be unique.
func (a *Aggregator) Register(c Checker) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, existing := range a.checkers {
		if existing.Name() == c.Name() {
			return ErrDuplicateChecker
		}
	}
	a.checkers = append(a.checkers, c)
	return nil
}

// Names returns the registered names in registration order.
func (a *Aggregator) Names() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	names := make([]string, len(a.checkers))
	for i, c := range a.checkers {
		names[i] = c.Name()
	}
	return names
}

// Check runs the checker registered under name.
func (a *Aggregator) Check(ctx context.Context, name string) (Report, error) {
	a.mu.RLock()
	var found Checker
	for _, c := range a.checkers {
		if c.Name() == name {
			found = c
			break
		}
	}
	a.mu.RUnlock()
	if found == nil {
		return Report{}, ErrCheckerNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	return Report{Name: name, Result: run(ctx, found)}, nil
}

// CheckAll runs every checker concurrently. Reports are in registration
// order.
func (a *Aggregator) CheckAll(ctx context.Context) []Report {
	a.mu.RLock()
	checkers := append([]Checker(nil), a.checkers...)
	a.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	reports := make([]Report, len(checkers))
	var g errgroup.Group
	for i, c := range checkers {
		g.Go(func() error {
			reports[i] = Report{Name: c.Name(), Result: run(ctx, c)}
			return nil
		})
	}
	_ = g.Wait()
	return reports
}

// Overall folds reports into one status: unhealthy wins over degraded, which
// wins over healthy. No reports is healthy.
func Overall(reports []Report) Status {
	status := StatusHealthy
	for _, r := range reports {
		if r.Status > status {
			status = r.Status
		}
	}
	return status
}

func run(ctx context.Context, c Checker) Result {
	start := time.Now()
	done := make(chan Result, 1)
	go func() {
		done <- c.Check(ctx)
	}()

	select {
	case r := <-done:
		r.Duration = time.Since(start)
		return r
	case <-ctx.Done():
		r := Unhealthy("check timed out", ErrCheckTimeout)
		r.Duration = time.Since(start)
		return r
	}
}
