package health

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Probe checks one dependency. It must respect ctx and return quickly.
type Probe func(ctx context.Context) error

type Check struct {
	OK        bool    `json:"ok"`
	Error     string  `json:"error,omitempty"`
	LatencyMS float64 `json:"latency_ms"`
}

type Report struct {
	Status        string           `json:"status"`
	UptimeSeconds int              `json:"uptime_sec"`
	CheckedAt     time.Time        `json:"checked_at"`
	Checks        map[string]Check `json:"checks"`
}

// Checker runs registered probes on an interval and serves the latest
// snapshot, so health endpoints never hit dependencies on the request path.
type Checker struct {
	interval     time.Duration
	probeTimeout time.Duration
	startedAt    time.Time

	mu     sync.RWMutex
	probes map[string]Probe
	last   Report
}

func NewChecker(interval time.Duration) *Checker {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Checker{
		interval:     interval,
		probeTimeout: 2 * time.Second,
		startedAt:    time.Now(),
		probes:       make(map[string]Probe),
		last: Report{
			Status: "starting",
			Checks: map[string]Check{},
		},
	}
}

// Register adds a named probe. Call before Start.
func (c *Checker) Register(name string, probe Probe) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.probes[name] = probe
}

// Start runs probes until ctx is cancelled. The first pass runs immediately.
func (c *Checker) Start(ctx context.Context) {
	c.runOnce(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.runOnce(ctx)
		}
	}
}

func (c *Checker) runOnce(ctx context.Context) {
	c.mu.RLock()
	probes := make(map[string]Probe, len(c.probes))
	for name, probe := range c.probes {
		probes[name] = probe
	}
	c.mu.RUnlock()

	checks := make(map[string]Check, len(probes))
	healthy := true
	for name, probe := range probes {
		probeCtx, cancel := context.WithTimeout(ctx, c.probeTimeout)
		start := time.Now()
		err := probe(probeCtx)
		cancel()

		check := Check{
			OK:        err == nil,
			LatencyMS: float64(time.Since(start).Microseconds()) / 1000.0,
		}
		if err != nil {
			check.Error = err.Error()
			healthy = false
			slog.Warn("health_probe_failed", "probe", name, "error", err)
		}
		checks[name] = check
	}

	status := "ok"
	if !healthy {
		status = "degraded"
	}

	c.mu.Lock()
	c.last = Report{
		Status:        status,
		UptimeSeconds: int(time.Since(c.startedAt).Seconds()),
		CheckedAt:     time.Now().UTC(),
		Checks:        checks,
	}
	c.mu.Unlock()
}

// Snapshot returns the report from the most recent probe pass.
func (c *Checker) Snapshot() Report {
	c.mu.RLock()
	defer c.mu.RUnlock()

	report := c.last
	report.UptimeSeconds = int(time.Since(c.startedAt).Seconds())
	return report
}
