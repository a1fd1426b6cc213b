package health

import "context"

// Pinger checks database availability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Checker checks an external dependency such as the blob store or the
// embedding provider.
type Checker interface {
	HealthCheck(ctx context.Context) error
}
