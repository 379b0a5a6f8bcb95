package health

import "context"

// SessionPinger checks view session store availability.
type SessionPinger interface {
	Ping(ctx context.Context) error
}

// BackendChecker checks search backend availability.
type BackendChecker interface {
	HealthCheck(ctx context.Context) error
}
