package scheduler

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	config "github.com/NordCoder/Trustwatch/internal/config/trust-scheduler"
)

// Runner drives Usecase.Tick from a fixed-interval ticker.
type Runner struct {
	Log   *zap.Logger
	UC    *Usecase
	Cfg   *config.SchedCfg
	Clock clock.Clock

	ticks    uint64
	mTicks   prometheus.Counter
	mFired   prometheus.Counter
	mErr     prometheus.Counter
	mLoopDur prometheus.Histogram
}

func New(log *zap.Logger, uc *Usecase, cfg *config.SchedCfg, clk clock.Clock, reg prometheus.Registerer) *Runner {
	if clk == nil {
		clk = clock.New()
	}
	f := promauto.With(reg)
	return &Runner{
		Log:   log,
		UC:    uc,
		Cfg:   cfg,
		Clock: clk,
		mTicks: f.NewCounter(prometheus.CounterOpts{
			Name: "trust_scheduler_ticks_total", Help: "Ticks processed while enabled or disabled",
		}),
		mFired: f.NewCounter(prometheus.CounterOpts{
			Name: "trust_scheduler_checks_fired_total", Help: "Checks that became due",
		}),
		mErr: f.NewCounter(prometheus.CounterOpts{
			Name: "trust_scheduler_errors_total", Help: "Errors in scheduler loop",
		}),
		mLoopDur: f.NewHistogram(prometheus.HistogramOpts{
			Name: "trust_scheduler_loop_duration_seconds", Help: "Scheduler tick duration",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (r *Runner) tick(ctx context.Context) {
	start := r.Clock.Now()
	r.ticks++
	r.mTicks.Inc()

	if r.Cfg.RefreshEvery > 0 && r.ticks%uint64(r.Cfg.RefreshEvery) == 0 {
		if err := r.UC.Refresh(ctx); err != nil {
			r.mErr.Inc()
			r.Log.Warn("refresh checks", zap.Error(err))
		}
	}

	fired := r.UC.Tick(ctx)
	if len(fired) > 0 {
		r.mFired.Add(float64(len(fired)))
		r.Log.Debug("checks dispatched", zap.Strings("checks", fired))
	}
	r.mLoopDur.Observe(r.Clock.Since(start).Seconds())
}

// Run ticks until ctx is done, then waits for outstanding probes.
func (r *Runner) Run(ctx context.Context) error {
	ticker := r.Clock.Ticker(r.Cfg.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.drain()
			return ctx.Err()
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Runner) drain() {
	done := make(chan struct{})
	go func() {
		r.UC.Wait()
		close(done)
	}()
	timeout := r.Cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	select {
	case <-done:
	case <-time.After(timeout):
		r.Log.Warn("probes still running at shutdown", zap.Duration("waited", timeout))
	}
}
