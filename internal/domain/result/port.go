package result

import "context"

// Recorder is an append-only log of probe outcomes.
type Recorder interface {
	Store(ctx context.Context, r *CheckResult) error
	GetRecent(ctx context.Context, n int) ([]*CheckResult, error)
	Delete(ctx context.Context, id int64) error
}
