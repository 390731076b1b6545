package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/NordCoder/Trustwatch/internal/adapters"
	"github.com/NordCoder/Trustwatch/internal/domain"
	"github.com/NordCoder/Trustwatch/internal/domain/check"
	"github.com/NordCoder/Trustwatch/internal/domain/trust"
)

func countFired(fired map[string]int, names []string) {
	for _, n := range names {
		fired[n]++
	}
}

func TestInitSeedsPoolAndBaseline(t *testing.T) {
	e := newEnv("h1", "h2", "h3")
	e.register(t, baseline, trusted())
	uc := e.start(t, Options{})

	def, err := e.checks.Get(context.Background(), baseline)
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, def.Spacing)

	pool, ok := uc.TrustedPool()
	require.True(t, ok)
	require.Len(t, pool, 3)
	for _, h := range []string{"h1", "h2", "h3"} {
		assert.Equal(t, trust.LevelUnknown, pool[h].Level)
		assert.True(t, pool[h].VTime.Equal(trust.Epoch))
	}
	assert.Len(t, e.mirror.replaced, 3)
	assert.Empty(t, e.results.all())
}

func TestInitKeepsStoredBaseline(t *testing.T) {
	e := newEnv("h1")
	e.register(t, baseline, trusted())
	e.checks.put(baselineDef(20*time.Second, 0))
	uc := e.start(t, Options{})

	loaded := uc.LoadedChecks()
	require.Len(t, loaded, 1)
	assert.Equal(t, 20*time.Second, loaded[0].Spacing)
}

func TestInitFailsWithoutBaselineAdapter(t *testing.T) {
	e := newEnv("h1")
	e.register(t, "DynMem", trusted())
	uc := NewUC(zap.NewNop(), Deps{
		Checks: e.checks, Results: e.results, Nodes: e.nodes, Switch: e.sw, Registry: e.reg,
	}, Options{Baseline: baselineDef(time.Minute, 0)})

	err := uc.Init(context.Background())
	assert.ErrorIs(t, err, adapters.ErrBaselineMissing)
}

func TestInitReadsSwitch(t *testing.T) {
	e := newEnv("h1")
	e.sw.on.Store(false)
	e.register(t, baseline, trusted())
	uc := e.start(t, Options{})

	assert.False(t, uc.Enabled())
	pool, ok := uc.TrustedPool()
	assert.False(t, ok)
	assert.Nil(t, pool)
}

func TestTickFiresFloorOfElapsedOverSpacing(t *testing.T) {
	e := newEnv("h1")
	e.register(t, baseline, trusted())
	e.register(t, "c2", trusted())
	e.checks.put(check.Definition{Name: "c2", Spacing: 2 * time.Second, Enabled: true})
	uc := e.start(t, Options{Tick: time.Second})

	fired := map[string]int{}
	for k := 1; k <= 7; k++ {
		countFired(fired, uc.Tick(context.Background()))
		uc.Wait()
		assert.Equal(t, k/3, fired[baseline], "baseline after %d ticks", k)
		assert.Equal(t, k/2, fired["c2"], "c2 after %d ticks", k)
	}
}

func TestTickSkipsDisabledChecks(t *testing.T) {
	e := newEnv("h1")
	e.register(t, baseline, trusted())
	e.register(t, "c2", trusted())
	e.checks.put(check.Definition{Name: "c2", Spacing: time.Second, Enabled: false})
	uc := e.start(t, Options{Tick: time.Second})

	for i := 0; i < 4; i++ {
		assert.NotContains(t, uc.Tick(context.Background()), "c2")
	}
}

func TestDisableFreezesAccumulators(t *testing.T) {
	ctx := context.Background()
	e := newEnv("h1")
	e.register(t, baseline, trusted())
	uc := e.start(t, Options{Tick: time.Second})

	assert.Empty(t, uc.Tick(ctx))
	assert.Empty(t, uc.Tick(ctx))

	require.NoError(t, uc.Disable(ctx))
	assert.False(t, e.sw.on.Load())
	for i := 0; i < 5; i++ {
		assert.Empty(t, uc.Tick(ctx))
	}

	require.NoError(t, uc.Enable(ctx))
	assert.Equal(t, []string{baseline}, uc.Tick(ctx))
}

func TestSwitchFailureKeepsState(t *testing.T) {
	e := newEnv("h1")
	e.register(t, baseline, trusted())
	uc := e.start(t, Options{})

	e.sw.fail = true
	assert.Error(t, uc.Disable(context.Background()))
	assert.True(t, uc.Enabled())
}

func TestAtMostOneProbePerPair(t *testing.T) {
	release := make(chan struct{})
	blocking := trust.AdapterFunc(func(ctx context.Context, _ string, _ trust.Criteria) (bool, string) {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return true, string(trust.LevelTrusted)
	})
	a, calls := counting(blocking)

	e := newEnv("h1", "h2")
	e.register(t, baseline, a)
	uc := e.start(t, Options{Baseline: baselineDef(time.Second, 0)})
	def, ok := uc.loaded(baseline)
	require.True(t, ok)

	ctx := context.Background()
	assert.Equal(t, 2, uc.Dispatch(ctx, def))
	assert.Equal(t, 0, uc.Dispatch(ctx, def))
	assert.Equal(t, float64(2), testutil.ToFloat64(uc.d.Metrics.Skipped.WithLabelValues(baseline)))

	close(release)
	uc.Wait()
	assert.Equal(t, 2, totalCalls(calls))

	assert.Equal(t, 2, uc.Dispatch(ctx, def))
	uc.Wait()
	assert.Equal(t, 4, totalCalls(calls))
}

func TestTimeoutScenario(t *testing.T) {
	a := trust.AdapterFunc(func(ctx context.Context, host string, _ trust.Criteria) (bool, string) {
		if host == "h2" {
			<-ctx.Done()
			return true, string(trust.LevelTrusted)
		}
		return true, string(trust.LevelTrusted)
	})

	e := newEnv("h1", "h2")
	e.register(t, baseline, a)
	uc := e.start(t, Options{Baseline: baselineDef(time.Second, 50*time.Millisecond)})
	def, _ := uc.loaded(baseline)

	require.Equal(t, 2, uc.Dispatch(context.Background(), def))
	uc.Wait()

	pool, ok := uc.TrustedPool()
	require.True(t, ok)
	assert.Equal(t, trust.LevelTrusted, pool["h1"].Level)
	assert.Equal(t, trust.LevelTimeout, pool["h2"].Level)
	assert.True(t, pool["h2"].VTime.After(trust.Epoch))

	rows := e.results.all()
	require.Len(t, rows, 2)
	byHost := map[string]string{}
	for _, r := range rows {
		byHost[r.Host] = r.Status
		assert.Equal(t, baseline, r.CheckName)
		assert.NotEmpty(t, r.ProbeID)
	}
	assert.Equal(t, "trusted", byHost["h1"])
	assert.Equal(t, "timeout", byHost["h2"])

	changes := e.events.all()
	assert.Len(t, changes, 2)
	for _, c := range changes {
		assert.Equal(t, trust.LevelUnknown, c.Old)
	}
}

func TestUnchangedLevelPublishesNothing(t *testing.T) {
	e := newEnv("h1")
	e.register(t, baseline, trusted())
	uc := e.start(t, Options{Baseline: baselineDef(time.Second, time.Second)})
	def, _ := uc.loaded(baseline)

	uc.Dispatch(context.Background(), def)
	uc.Wait()
	uc.Dispatch(context.Background(), def)
	uc.Wait()

	assert.Len(t, e.events.all(), 1)
	assert.Len(t, e.results.all(), 2)
	assert.Equal(t, 2, e.mirror.puts)
}

func TestPersistFailureKeepsCacheUpdate(t *testing.T) {
	e := newEnv("h1", "h2")
	e.results.fail = true
	e.register(t, baseline, trusted())
	uc := e.start(t, Options{Baseline: baselineDef(time.Second, time.Second)})
	def, _ := uc.loaded(baseline)

	uc.Dispatch(context.Background(), def)
	uc.Wait()

	pool, _ := uc.TrustedPool()
	assert.Equal(t, trust.LevelTrusted, pool["h1"].Level)
	assert.Equal(t, trust.LevelTrusted, pool["h2"].Level)
	assert.Equal(t, float64(2), testutil.ToFloat64(uc.d.Metrics.PersistErrs))
}

func TestAdapterPanicRecordsError(t *testing.T) {
	e := newEnv("h1")
	e.register(t, baseline, trust.AdapterFunc(func(context.Context, string, trust.Criteria) (bool, string) {
		panic("attestation client nil")
	}))
	uc := e.start(t, Options{Baseline: baselineDef(time.Second, time.Second)})
	def, _ := uc.loaded(baseline)

	uc.Dispatch(context.Background(), def)
	uc.Wait()

	rows := e.results.all()
	require.Len(t, rows, 1)
	assert.Equal(t, trust.StatusError, rows[0].Status)
	assert.False(t, rows[0].Result)

	pool, _ := uc.TrustedPool()
	assert.Equal(t, trust.LevelUnknown, pool["h1"].Level)
	assert.True(t, pool["h1"].VTime.After(trust.Epoch))
}

func TestCancelledProbeIsAbandoned(t *testing.T) {
	started := make(chan struct{})
	e := newEnv("h1")
	e.register(t, baseline, trust.AdapterFunc(func(ctx context.Context, _ string, _ trust.Criteria) (bool, string) {
		close(started)
		<-ctx.Done()
		return false, string(trust.LevelUntrusted)
	}))
	uc := e.start(t, Options{Baseline: baselineDef(time.Second, 0)})
	def, _ := uc.loaded(baseline)

	ctx, cancel := context.WithCancel(context.Background())
	uc.Dispatch(ctx, def)
	<-started
	cancel()
	uc.Wait()

	assert.Empty(t, e.results.all())
	pool, _ := uc.TrustedPool()
	assert.Equal(t, trust.LevelUnknown, pool["h1"].Level)
	assert.True(t, pool["h1"].VTime.Equal(trust.Epoch))
}

func TestRunProbeForNodes(t *testing.T) {
	ctx := context.Background()
	a, calls := counting(trusted())
	e := newEnv("h1", "h2", "h3")
	e.register(t, baseline, a)
	uc := e.start(t, Options{})

	res, err := uc.RunProbeForNodes(ctx, baseline, []string{"h2", "ghost"})
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "h2", res[0].Host)
	assert.Equal(t, 1, totalCalls(calls))

	pool, _ := uc.TrustedPool()
	assert.Equal(t, trust.LevelTrusted, pool["h2"].Level)
	assert.Equal(t, trust.LevelUnknown, pool["h1"].Level)

	_, err = uc.RunProbeForNodes(ctx, "nope", []string{"h1"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestReseedNodes(t *testing.T) {
	e := newEnv("h1", "h2")
	e.register(t, baseline, trusted())
	uc := e.start(t, Options{})

	e.nodes.set("h2", "h3")
	added, removed, err := uc.ReseedNodes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"h3"}, added)
	assert.Equal(t, []string{"h1"}, removed)

	pool, _ := uc.TrustedPool()
	assert.Len(t, pool, 2)
	assert.Contains(t, pool, "h3")
	assert.Len(t, e.mirror.replaced, 2)
}
