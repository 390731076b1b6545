package trust

import (
	"context"
	"time"
)

type NodeInventory interface {
	ListNodes(ctx context.Context) ([]string, error)
}

// Switch persists the administrative "periodic checks enabled" flag.
type Switch interface {
	PeriodicChecksEnabled(ctx context.Context) (bool, error)
	SetPeriodicChecksEnabled(ctx context.Context, enabled bool) error
}

type Change struct {
	CheckName string
	Host      string
	Old       Level
	New       Level
	At        time.Time
}

type Events interface {
	PublishTrustChanged(ctx context.Context, c Change) error
}

// PoolMirror keeps a copy of the pool outside the process for other readers.
type PoolMirror interface {
	Put(ctx context.Context, e Entry) error
	Replace(ctx context.Context, entries []Entry) error
}
