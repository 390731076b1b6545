package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/NordCoder/Trustwatch/internal/adapters"
	"github.com/NordCoder/Trustwatch/internal/domain"
	"github.com/NordCoder/Trustwatch/internal/domain/check"
	"github.com/NordCoder/Trustwatch/internal/domain/result"
	"github.com/NordCoder/Trustwatch/internal/domain/trust"
	"github.com/NordCoder/Trustwatch/internal/obs"
	"github.com/NordCoder/Trustwatch/internal/obs/retry"
)

func (u *Usecase) acquire(p pair) bool {
	u.flightMu.Lock()
	defer u.flightMu.Unlock()
	if _, busy := u.inFlight[p]; busy {
		return false
	}
	u.inFlight[p] = struct{}{}
	u.d.Metrics.InFlight.Inc()
	return true
}

func (u *Usecase) release(p pair) {
	u.flightMu.Lock()
	delete(u.inFlight, p)
	u.flightMu.Unlock()
	u.d.Metrics.InFlight.Dec()
}

// Dispatch starts one probe per known host for def and returns how many were
// started. Pairs whose previous probe is still outstanding are skipped.
func (u *Usecase) Dispatch(ctx context.Context, def check.Definition) int {
	f, ok := u.d.Registry.Lookup(def.Name)
	if !ok {
		u.log.Warn("no adapter for check", zap.String("check", def.Name))
		return 0
	}
	ctx, span := u.tr.Start(ctx, "scheduler.dispatch",
		trace.WithAttributes(attribute.String("check.name", def.Name)),
	)
	defer span.End()
	u.d.Metrics.Dispatches.WithLabelValues(def.Name).Inc()

	launched, skipped := 0, 0
	for _, host := range u.d.Pool.Hosts() {
		p := pair{check: def.Name, host: host}
		if !u.acquire(p) {
			skipped++
			continue
		}
		launched++
		u.wg.Add(1)
		go func() {
			defer u.wg.Done()
			defer u.release(p)
			u.probe(ctx, def, host, f)
		}()
	}
	if skipped > 0 {
		u.d.Metrics.Skipped.WithLabelValues(def.Name).Add(float64(skipped))
		u.log.Debug("pairs still in flight", zap.String("check", def.Name), zap.Int("skipped", skipped))
	}
	span.SetAttributes(attribute.Int("probes.launched", launched), attribute.Int("probes.skipped", skipped))
	return launched
}

// RunProbeForNodes probes hosts with the named check right away and waits for
// the outcomes. Hosts outside the pool and pairs already in flight are skipped.
func (u *Usecase) RunProbeForNodes(ctx context.Context, name string, hosts []string) ([]*result.CheckResult, error) {
	def, ok := u.loaded(name)
	if !ok {
		return nil, fmt.Errorf("%w: check %q", domain.ErrNotFound, name)
	}
	f, ok := u.d.Registry.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: no adapter for check %q", domain.ErrNotFound, name)
	}

	out := make([]*result.CheckResult, len(hosts))
	var g errgroup.Group
	for i, host := range hosts {
		if _, known := u.d.Pool.Get(host); !known {
			continue
		}
		p := pair{check: name, host: host}
		if !u.acquire(p) {
			u.d.Metrics.Skipped.WithLabelValues(name).Inc()
			continue
		}
		u.wg.Add(1)
		g.Go(func() error {
			defer u.wg.Done()
			defer u.release(p)
			out[i] = u.probe(ctx, def, host, f)
			return nil
		})
	}
	_ = g.Wait()

	res := out[:0]
	for _, r := range out {
		if r != nil {
			res = append(res, r)
		}
	}
	return res, nil
}

type outcome struct {
	ok     bool
	status string
}

// probe calls the adapter under the check's deadline and applies the outcome.
// It returns nil when the probe was abandoned because ctx was cancelled.
func (u *Usecase) probe(ctx context.Context, def check.Definition, host string, f adapters.Factory) *result.CheckResult {
	probeID := uuid.NewString()
	ctx, span := u.tr.Start(ctx, "scheduler.probe", trace.WithAttributes(
		attribute.String("check.name", def.Name),
		attribute.String("node.host", host),
		attribute.String("probe.id", probeID),
	))
	defer span.End()
	log := obs.WithTrace(ctx, u.log).With(
		zap.String("check", def.Name), zap.String("host", host), zap.String("probe_id", probeID),
	)

	pctx, cancel := ctx, context.CancelFunc(func() {})
	if def.Timeout > 0 {
		pctx, cancel = u.d.Clock.WithTimeout(ctx, def.Timeout)
	}
	defer cancel()

	crit := trust.Criteria{Check: def.Name, Server: def.Server, Port: def.Port, Required: trust.LevelTrusted}
	done := make(chan outcome, 1)
	start := u.d.Clock.Now()
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error("adapter panic", zap.Any("panic", rec))
				done <- outcome{ok: false, status: trust.StatusError}
			}
		}()
		ok, status := f().IsTrusted(pctx, host, crit)
		done <- outcome{ok: ok, status: status}
	}()

	var o outcome
	select {
	case o = <-done:
	case <-pctx.Done():
	}
	if err := pctx.Err(); err != nil {
		if !errors.Is(err, context.DeadlineExceeded) {
			log.Debug("probe abandoned", zap.Error(err))
			span.SetAttributes(attribute.String("probe.status", "abandoned"))
			return nil
		}
		// a reply that races the deadline belongs to an expired cycle
		o = outcome{ok: false, status: trust.StatusTimeout}
	}

	level := trust.LevelFromOutcome(o.ok, o.status)
	status := string(level)
	if o.status == trust.StatusError {
		status = trust.StatusError
	}

	now := u.d.Clock.Now().UTC()
	lat := now.Sub(start)
	u.d.Metrics.Probes.WithLabelValues(def.Name, status).Inc()
	u.d.Metrics.ProbeDur.WithLabelValues(def.Name).Observe(lat.Seconds())
	span.SetAttributes(attribute.String("probe.status", status))

	prev, applied := u.d.Pool.Update(host, level, now)
	if !applied {
		log.Debug("host left the pool before the probe finished")
	}

	res := &result.CheckResult{
		ProbeID:   probeID,
		CheckName: def.Name,
		Host:      host,
		At:        now,
		Result:    o.ok,
		Status:    status,
		Latency:   lat,
	}
	u.record(ctx, log, res)

	if applied {
		u.afterUpdate(ctx, log, def.Name, prev, trust.Entry{Host: host, Level: level, VTime: now})
	}
	return res
}

func (u *Usecase) record(ctx context.Context, log *zap.Logger, res *result.CheckResult) {
	// a cancelled caller must not drop the record of a probe that did complete
	ctx = context.WithoutCancel(ctx)
	pol := u.opts.ResultRetry
	pol.OnExhaust = func(err error) {
		u.d.Metrics.PersistErrs.Inc()
		log.Warn("store check result", zap.Error(err))
	}
	_ = retry.Do(ctx, func() error { return u.d.Results.Store(ctx, res) }, pol)
}

func (u *Usecase) afterUpdate(ctx context.Context, log *zap.Logger, checkName string, prev, cur trust.Entry) {
	ctx = context.WithoutCancel(ctx)
	if u.d.Mirror != nil {
		if err := u.d.Mirror.Put(ctx, cur); err != nil {
			log.Warn("mirror put", zap.Error(err))
		}
	}
	if prev.Level == cur.Level {
		return
	}
	u.d.Metrics.Changes.Inc()
	log.Info("trust level changed", zap.String("old", string(prev.Level)), zap.String("new", string(cur.Level)))
	if u.d.Events == nil {
		return
	}
	if err := u.d.Events.PublishTrustChanged(ctx, trust.Change{
		CheckName: checkName,
		Host:      cur.Host,
		Old:       prev.Level,
		New:       cur.Level,
		At:        cur.VTime,
	}); err != nil {
		log.Warn("publish trust change", zap.Error(err))
	}
}
