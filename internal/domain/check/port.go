package check

import "context"

// Store is the durable record of check definitions, keyed by name.
type Store interface {
	Create(ctx context.Context, d *Definition) error
	Get(ctx context.Context, name string) (*Definition, error)
	List(ctx context.Context) ([]*Definition, error)
	Update(ctx context.Context, d *Definition) error
	Delete(ctx context.Context, name string) error
}
