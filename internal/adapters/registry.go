package adapters

import (
	"fmt"
	"sync"

	"go.uber.org/atomic"

	"github.com/NordCoder/Trustwatch/internal/domain"
	"github.com/NordCoder/Trustwatch/internal/domain/trust"
)

// Factory builds a fresh adapter instance.
type Factory func() trust.Adapter

type Named struct {
	Name    string
	Factory Factory
}

var ErrBaselineMissing = fmt.Errorf("%w: baseline adapter is not registered", domain.ErrConfig)

// Registry holds the adapters registered at startup. Lookups go through an
// immutable snapshot that Refresh swaps wholesale.
type Registry struct {
	baseline string

	mu    sync.Mutex
	order []string
	all   map[string]Factory

	snap atomic.Pointer[map[string]Factory]
}

func NewRegistry(baseline string) *Registry {
	r := &Registry{baseline: baseline, all: make(map[string]Factory)}
	empty := map[string]Factory{}
	r.snap.Store(&empty)
	return r
}

func (r *Registry) Baseline() string { return r.baseline }

func (r *Registry) Register(name string, f Factory) error {
	if name == "" || f == nil {
		return fmt.Errorf("%w: adapter needs a name and a factory", domain.ErrInvalidArgument)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.all[name]; ok {
		return fmt.Errorf("%w: adapter %q already registered", domain.ErrInvalidArgument, name)
	}
	r.all[name] = f
	r.order = append(r.order, name)
	return nil
}

// Discover returns every registered adapter in registration order. The list
// is returned even when the baseline is missing, alongside ErrBaselineMissing.
func (r *Registry) Discover() ([]Named, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Named, 0, len(r.order))
	for _, n := range r.order {
		out = append(out, Named{Name: n, Factory: r.all[n]})
	}
	if _, ok := r.all[r.baseline]; !ok {
		return out, fmt.Errorf("%w (%q)", ErrBaselineMissing, r.baseline)
	}
	return out, nil
}

// Refresh rebuilds the lookup snapshot from Discover.
func (r *Registry) Refresh() error {
	list, err := r.Discover()
	next := make(map[string]Factory, len(list))
	for _, n := range list {
		next[n.Name] = n.Factory
	}
	r.snap.Store(&next)
	return err
}

func (r *Registry) Lookup(name string) (Factory, bool) {
	f, ok := (*r.snap.Load())[name]
	return f, ok
}

// Names lists the adapters visible in the current snapshot.
func (r *Registry) Names() []string {
	m := *r.snap.Load()
	out := make([]string, 0, len(m))
	for n := range m {
		out = append(out, n)
	}
	return out
}
