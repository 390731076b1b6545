package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/NordCoder/Trustwatch/internal/adapters"
	"github.com/NordCoder/Trustwatch/internal/domain"
	"github.com/NordCoder/Trustwatch/internal/domain/check"
	"github.com/NordCoder/Trustwatch/internal/domain/result"
	"github.com/NordCoder/Trustwatch/internal/domain/trust"
)

const baseline = adapters.OpenAttestationName

type memStore struct {
	mu   sync.Mutex
	defs map[string]check.Definition
}

func (s *memStore) put(d check.Definition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defs[d.Name] = d
}

func (s *memStore) Create(_ context.Context, d *check.Definition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.defs[d.Name]; ok {
		return fmt.Errorf("%w: duplicate %q", domain.ErrInvalidArgument, d.Name)
	}
	s.defs[d.Name] = *d
	return nil
}

func (s *memStore) Get(_ context.Context, name string) (*check.Definition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.defs[name]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &d, nil
}

func (s *memStore) List(context.Context) ([]*check.Definition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*check.Definition, 0, len(s.defs))
	for _, d := range s.defs {
		d := d
		out = append(out, &d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *memStore) Update(_ context.Context, d *check.Definition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.defs[d.Name]; !ok {
		return domain.ErrNotFound
	}
	s.defs[d.Name] = *d
	return nil
}

func (s *memStore) Delete(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.defs[name]; !ok {
		return domain.ErrNotFound
	}
	delete(s.defs, name)
	return nil
}

type memRecorder struct {
	mu     sync.Mutex
	fail   bool
	nextID int64
	rows   []*result.CheckResult
}

func (r *memRecorder) Store(_ context.Context, res *result.CheckResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return fmt.Errorf("%w: connection refused", domain.ErrPersistence)
	}
	r.nextID++
	cp := *res
	cp.ID = r.nextID
	res.ID = cp.ID
	r.rows = append(r.rows, &cp)
	return nil
}

func (r *memRecorder) GetRecent(_ context.Context, n int) ([]*result.CheckResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*result.CheckResult, 0, n)
	for i := len(r.rows) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, r.rows[i])
	}
	return out, nil
}

func (r *memRecorder) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, row := range r.rows {
		if row.ID == id {
			r.rows = append(r.rows[:i], r.rows[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (r *memRecorder) all() []*result.CheckResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*result.CheckResult(nil), r.rows...)
}

type memNodes struct {
	mu    sync.Mutex
	hosts []string
}

func (n *memNodes) set(hosts ...string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.hosts = hosts
}

func (n *memNodes) ListNodes(context.Context) ([]string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.hosts...), nil
}

type memSwitch struct {
	on   atomic.Bool
	fail bool
}

func (s *memSwitch) PeriodicChecksEnabled(context.Context) (bool, error) { return s.on.Load(), nil }

func (s *memSwitch) SetPeriodicChecksEnabled(_ context.Context, on bool) error {
	if s.fail {
		return errors.New("settings table locked")
	}
	s.on.Store(on)
	return nil
}

type recEvents struct {
	mu      sync.Mutex
	changes []trust.Change
}

func (e *recEvents) PublishTrustChanged(_ context.Context, c trust.Change) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.changes = append(e.changes, c)
	return nil
}

func (e *recEvents) all() []trust.Change {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]trust.Change(nil), e.changes...)
}

type recMirror struct {
	mu       sync.Mutex
	puts     int
	replaced []trust.Entry
}

func (m *recMirror) Put(context.Context, trust.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	return nil
}

func (m *recMirror) Replace(_ context.Context, entries []trust.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replaced = entries
	return nil
}

func trusted() trust.Adapter {
	return trust.AdapterFunc(func(context.Context, string, trust.Criteria) (bool, string) {
		return true, string(trust.LevelTrusted)
	})
}

// counting wraps a into an adapter that counts calls per host.
func counting(a trust.Adapter) (trust.Adapter, *sync.Map) {
	calls := &sync.Map{}
	return trust.AdapterFunc(func(ctx context.Context, host string, c trust.Criteria) (bool, string) {
		v, _ := calls.LoadOrStore(host, atomic.NewInt32(0))
		v.(*atomic.Int32).Inc()
		return a.IsTrusted(ctx, host, c)
	}), calls
}

func totalCalls(m *sync.Map) int {
	n := 0
	m.Range(func(_, v any) bool {
		n += int(v.(*atomic.Int32).Load())
		return true
	})
	return n
}

type env struct {
	checks  *memStore
	results *memRecorder
	nodes   *memNodes
	sw      *memSwitch
	events  *recEvents
	mirror  *recMirror
	reg     *adapters.Registry
}

func newEnv(hosts ...string) *env {
	e := &env{
		checks:  &memStore{defs: map[string]check.Definition{}},
		results: &memRecorder{},
		nodes:   &memNodes{hosts: hosts},
		sw:      &memSwitch{},
		events:  &recEvents{},
		mirror:  &recMirror{},
		reg:     adapters.NewRegistry(baseline),
	}
	e.sw.on.Store(true)
	return e
}

func (e *env) register(t *testing.T, name string, a trust.Adapter) {
	t.Helper()
	require.NoError(t, e.reg.Register(name, func() trust.Adapter { return a }))
}

func baselineDef(spacing, timeout time.Duration) check.Definition {
	return check.Definition{
		Name:        baseline,
		Description: "Static file integrity check using IMA/TPM",
		Spacing:     spacing,
		Timeout:     timeout,
		Enabled:     true,
	}
}

// start builds the usecase and runs Init. Adapters must be registered first.
func (e *env) start(t *testing.T, opts Options) *Usecase {
	t.Helper()
	if opts.Tick == 0 {
		opts.Tick = time.Second
	}
	if opts.Baseline.Name == "" {
		opts.Baseline = baselineDef(3*time.Second, time.Second)
	}
	uc := NewUC(zap.NewNop(), Deps{
		Checks:   e.checks,
		Results:  e.results,
		Nodes:    e.nodes,
		Switch:   e.sw,
		Events:   e.events,
		Mirror:   e.mirror,
		Registry: e.reg,
	}, opts)
	require.NoError(t, uc.Init(context.Background()))
	t.Cleanup(uc.Wait)
	return uc
}

func ptr[T any](v T) *T { return &v }
