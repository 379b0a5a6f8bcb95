package chi

import (
	"context"

	"github.com/kailas-cloud/vibematch/internal/domain/view"
	healthuc "github.com/kailas-cloud/vibematch/internal/usecase/health"
)

// ViewService drives view states.
type ViewService interface {
	Mount(ctx context.Context, prefill string) (string, error)
	Get(ctx context.Context, id string) (view.State, error)
	EditQuery(ctx context.Context, id, text string) (view.State, error)
	SelectSuggestion(ctx context.Context, id string, n int) (view.State, error)
	SubmitQuery(ctx context.Context, id, text string) (bool, error)
}

// HealthChecker reports component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}
