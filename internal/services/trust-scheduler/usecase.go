package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/NordCoder/Trustwatch/internal/adapters"
	"github.com/NordCoder/Trustwatch/internal/domain/check"
	"github.com/NordCoder/Trustwatch/internal/domain/result"
	"github.com/NordCoder/Trustwatch/internal/domain/trust"
	"github.com/NordCoder/Trustwatch/internal/obs/retry"
	"github.com/NordCoder/Trustwatch/internal/trustpool"
)

type Deps struct {
	Checks   check.Store
	Results  result.Recorder
	Nodes    trust.NodeInventory
	Switch   trust.Switch
	Events   trust.Events     // optional
	Mirror   trust.PoolMirror // optional
	Registry *adapters.Registry
	Pool     *trustpool.Cache
	Clock    clock.Clock
	Metrics  *Metrics
}

type Options struct {
	// Tick is the elapsed time credited to every check per Tick call.
	Tick           time.Duration
	RunImmediately bool
	Baseline       check.Definition
	ResultRetry    retry.Policy
}

type pair struct{ check, host string }

// Usecase is the check runner: it owns the accumulators, the in-flight
// markers and the trust pool, and reads definitions through a cached list.
type Usecase struct {
	log  *zap.Logger
	d    Deps
	opts Options
	tr   trace.Tracer

	enabled atomic.Bool
	defs    atomic.Pointer[[]check.Definition]

	// touched only by the Tick caller
	acc map[string]time.Duration

	flightMu sync.Mutex
	inFlight map[pair]struct{}
	wg       sync.WaitGroup
}

func NewUC(log *zap.Logger, d Deps, opts Options) *Usecase {
	if log == nil {
		log = zap.NewNop()
	}
	if d.Clock == nil {
		d.Clock = clock.New()
	}
	if d.Pool == nil {
		d.Pool = trustpool.New()
	}
	if d.Metrics == nil {
		d.Metrics = NewMetrics(nil)
	}
	if opts.Tick <= 0 {
		opts.Tick = time.Second
	}
	if opts.ResultRetry.Name == "" {
		opts.ResultRetry.Name = "check_results"
	}
	u := &Usecase{
		log:      log.With(zap.String("component", "trust.scheduler")),
		d:        d,
		opts:     opts,
		tr:       otel.Tracer("scheduler.uc"),
		acc:      make(map[string]time.Duration),
		inFlight: make(map[pair]struct{}),
	}
	empty := []check.Definition{}
	u.defs.Store(&empty)
	return u
}

// Init discovers adapters, makes sure the baseline check exists, loads the
// definitions and the switch, and seeds the pool from the node inventory.
func (u *Usecase) Init(ctx context.Context) error {
	list, err := u.d.Registry.Discover()
	if err != nil {
		return fmt.Errorf("discover adapters: %w", err)
	}
	u.log.Info("adapters discovered", zap.Int("count", len(list)))
	if err := u.d.Registry.Refresh(); err != nil {
		return fmt.Errorf("refresh adapters: %w", err)
	}

	if err := u.ensureBaseline(ctx); err != nil {
		return err
	}
	if err := u.Refresh(ctx); err != nil {
		return err
	}

	on, err := u.d.Switch.PeriodicChecksEnabled(ctx)
	if err != nil {
		return fmt.Errorf("read switch: %w", err)
	}
	u.enabled.Store(on)

	if _, _, err := u.ReseedNodes(ctx); err != nil {
		return err
	}
	u.log.Info("scheduler initialised",
		zap.Bool("enabled", on),
		zap.Int("checks", len(u.LoadedChecks())),
		zap.Int("nodes", u.d.Pool.Len()),
	)
	return nil
}

func (u *Usecase) ensureBaseline(ctx context.Context) error {
	b := u.opts.Baseline
	b.Name = u.baselineName()
	if _, err := u.d.Checks.Get(ctx, b.Name); err == nil {
		return nil
	} else if !isNotFound(err) {
		return fmt.Errorf("get baseline check: %w", err)
	}
	if err := b.Validate(); err != nil {
		return fmt.Errorf("baseline check: %w", err)
	}
	if err := u.d.Checks.Create(ctx, &b); err != nil {
		return fmt.Errorf("create baseline check: %w", err)
	}
	u.log.Info("baseline check created", zap.String("check", b.Name), zap.Duration("spacing", b.Spacing))
	return nil
}

// Refresh reloads the definition list from the store and swaps it in.
func (u *Usecase) Refresh(ctx context.Context) error {
	list, err := u.d.Checks.List(ctx)
	if err != nil {
		return fmt.Errorf("list checks: %w", err)
	}
	defs := make([]check.Definition, 0, len(list))
	for _, d := range list {
		defs = append(defs, *d)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	u.defs.Store(&defs)
	return nil
}

func (u *Usecase) LoadedChecks() []check.Definition {
	cur := *u.defs.Load()
	out := make([]check.Definition, len(cur))
	copy(out, cur)
	return out
}

func (u *Usecase) loaded(name string) (check.Definition, bool) {
	for _, d := range *u.defs.Load() {
		if d.Name == name {
			return d, true
		}
	}
	return check.Definition{}, false
}

// Tick credits one tick to every enabled check and dispatches the ones that
// are due. While the switch is off nothing accumulates.
func (u *Usecase) Tick(ctx context.Context) []string {
	if !u.enabled.Load() {
		return nil
	}
	ctx, span := u.tr.Start(ctx, "scheduler.tick",
		trace.WithAttributes(attribute.String("tick", u.opts.Tick.String())),
	)
	defer span.End()

	defs := *u.defs.Load()
	seen := make(map[string]struct{}, len(defs))
	var fired []string
	for _, d := range defs {
		seen[d.Name] = struct{}{}
		if !d.Enabled {
			continue
		}
		acc := u.acc[d.Name] + u.opts.Tick
		if acc >= d.Spacing {
			acc %= d.Spacing
			u.Dispatch(ctx, d)
			fired = append(fired, d.Name)
		}
		u.acc[d.Name] = acc
	}
	for name := range u.acc {
		if _, ok := seen[name]; !ok {
			delete(u.acc, name)
		}
	}
	span.SetAttributes(attribute.Int("checks.fired", len(fired)))
	return fired
}

func (u *Usecase) Enabled() bool { return u.enabled.Load() }

// TrustedPool is the placement-time view. ok is false when periodic checks
// are switched off, which is different from an empty pool.
func (u *Usecase) TrustedPool() (pool map[string]trust.Entry, ok bool) {
	if !u.enabled.Load() {
		return nil, false
	}
	return u.d.Pool.GetAll(), true
}

// ReseedNodes replaces the pool's host set with the current inventory.
func (u *Usecase) ReseedNodes(ctx context.Context) (added, removed []string, err error) {
	nodes, err := u.d.Nodes.ListNodes(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list nodes: %w", err)
	}
	added, removed = u.d.Pool.Reseed(nodes)
	if len(added) > 0 || len(removed) > 0 {
		u.log.Info("node set changed", zap.Strings("added", added), zap.Strings("removed", removed))
	}
	if u.d.Mirror != nil {
		snap := u.d.Pool.GetAll()
		entries := make([]trust.Entry, 0, len(snap))
		for _, e := range snap {
			entries = append(entries, e)
		}
		if err := u.d.Mirror.Replace(ctx, entries); err != nil {
			u.log.Warn("mirror replace", zap.Error(err))
		}
	}
	return added, removed, nil
}

// Wait blocks until every outstanding probe has finished its bookkeeping.
func (u *Usecase) Wait() { u.wg.Wait() }
