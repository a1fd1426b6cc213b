// Package health aggregates readiness checks of shelfindex dependencies.
package health

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates an optional component failed; search still works.
	Degraded Status = "degraded"
	// Unhealthy indicates the document index is unreachable.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Component names in Report.Checks.
const (
	ComponentIndex     = "index"
	ComponentCatalog   = "catalog"
	ComponentBlobs     = "blobs"
	ComponentEmbedding = "embedding"
)

const defaultTimeout = 3 * time.Second

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

type check struct {
	name     string
	critical bool
	fn       func(ctx context.Context) error
}

// Service coordinates health checks.
type Service struct {
	checks  []check
	timeout time.Duration
}

// New creates a Service. The index is the only critical component.
func New(index Pinger) *Service {
	return &Service{
		checks:  []check{{name: ComponentIndex, critical: true, fn: index.Ping}},
		timeout: defaultTimeout,
	}
}

// WithCatalog adds the catalog database check.
func (s *Service) WithCatalog(p Pinger) *Service {
	if p != nil {
		s.checks = append(s.checks, check{name: ComponentCatalog, fn: p.Ping})
	}
	return s
}

// WithBlobStore adds the file storage check.
func (s *Service) WithBlobStore(c Checker) *Service {
	if c != nil {
		s.checks = append(s.checks, check{name: ComponentBlobs, fn: c.HealthCheck})
	}
	return s
}

// WithEmbedding adds the embedding provider check.
func (s *Service) WithEmbedding(c Checker) *Service {
	if c != nil {
		s.checks = append(s.checks, check{name: ComponentEmbedding, fn: c.HealthCheck})
	}
	return s
}

// WithTimeout bounds each individual check.
func (s *Service) WithTimeout(d time.Duration) *Service {
	if d > 0 {
		s.timeout = d
	}
	return s
}

// Check runs all checks concurrently. A failed check does not cancel the
// others; each records its own result.
func (s *Service) Check(ctx context.Context) Report {
	results := make([]CheckResult, len(s.checks))

	var g errgroup.Group
	for i, c := range s.checks {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()
			results[i] = CheckOK
			if err := c.fn(cctx); err != nil {
				results[i] = CheckError
			}
			return nil
		})
	}
	_ = g.Wait()

	status := Healthy
	checks := make(map[string]CheckResult, len(s.checks))
	for i, c := range s.checks {
		checks[c.name] = results[i]
		if results[i] != CheckError {
			continue
		}
		if c.critical {
			status = Unhealthy
		} else if status == Healthy {
			status = Degraded
		}
	}

	return Report{Status: status, Checks: checks}
}
