package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/NordCoder/Trustwatch/internal/domain/check"
	"github.com/NordCoder/Trustwatch/internal/domain/trust"
)

func TestControllerNodeJoinedVerifiesEnabledChecks(t *testing.T) {
	ctx := context.Background()
	base, baseCalls := counting(trusted())
	off, offCalls := counting(trusted())
	e := newEnv("h1", "h2")
	e.register(t, baseline, base)
	e.register(t, "c2", off)
	e.checks.put(check.Definition{Name: "c2", Spacing: time.Minute, Enabled: false})
	uc := e.start(t, Options{})
	c := &Controller{Log: zap.NewNop(), UC: uc}

	e.nodes.set("h1", "h2", "h3")
	require.NoError(t, c.HandleNodeEvent(ctx, NodeEvent{Host: "h3", Kind: NodeJoined}))

	pool, ok := uc.TrustedPool()
	require.True(t, ok)
	assert.Equal(t, trust.LevelTrusted, pool["h3"].Level)
	assert.Equal(t, trust.LevelUnknown, pool["h1"].Level)
	assert.Equal(t, 1, totalCalls(baseCalls))
	assert.Equal(t, 0, totalCalls(offCalls))
	assert.Len(t, e.results.all(), 1)
}

func TestControllerNodeLeft(t *testing.T) {
	ctx := context.Background()
	a, calls := counting(trusted())
	e := newEnv("h1", "h2")
	e.register(t, baseline, a)
	uc := e.start(t, Options{})
	c := &Controller{Log: zap.NewNop(), UC: uc}

	e.nodes.set("h1")
	require.NoError(t, c.HandleNodeEvent(ctx, NodeEvent{Host: "h2", Kind: NodeLeft}))

	pool, _ := uc.TrustedPool()
	assert.NotContains(t, pool, "h2")
	assert.Equal(t, 0, totalCalls(calls))
}

func TestControllerIgnoresBadEvents(t *testing.T) {
	ctx := context.Background()
	e := newEnv("h1")
	e.register(t, baseline, trusted())
	uc := e.start(t, Options{})
	c := &Controller{Log: zap.NewNop(), UC: uc}

	e.nodes.set("h1", "h9")
	assert.NoError(t, c.HandleNodeEvent(ctx, NodeEvent{Kind: NodeJoined}))
	assert.NoError(t, c.HandleNodeEvent(ctx, NodeEvent{Host: "h9", Kind: "rebooted"}))

	pool, _ := uc.TrustedPool()
	assert.NotContains(t, pool, "h9")
}
