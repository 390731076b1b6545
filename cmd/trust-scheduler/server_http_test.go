package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/NordCoder/Trustwatch/internal/adapters"
	"github.com/NordCoder/Trustwatch/internal/domain"
	"github.com/NordCoder/Trustwatch/internal/domain/check"
	"github.com/NordCoder/Trustwatch/internal/domain/trust"
	scheduler "github.com/NordCoder/Trustwatch/internal/services/trust-scheduler"
)

type oneCheck struct{ d *check.Definition }

func (s *oneCheck) Create(_ context.Context, d *check.Definition) error {
	s.d = d
	return nil
}

func (s *oneCheck) Get(context.Context, string) (*check.Definition, error) {
	if s.d == nil {
		return nil, domain.ErrNotFound
	}
	return s.d, nil
}

func (s *oneCheck) List(context.Context) ([]*check.Definition, error) {
	if s.d == nil {
		return nil, nil
	}
	return []*check.Definition{s.d}, nil
}

func (s *oneCheck) Update(_ context.Context, d *check.Definition) error {
	s.d = d
	return nil
}

func (s *oneCheck) Delete(context.Context, string) error { return nil }

type staticNodes []string

func (n staticNodes) ListNodes(context.Context) ([]string, error) { return n, nil }

type switchFlag bool

func (f *switchFlag) PeriodicChecksEnabled(context.Context) (bool, error) { return bool(*f), nil }
func (f *switchFlag) SetPeriodicChecksEnabled(_ context.Context, on bool) error {
	*f = switchFlag(on)
	return nil
}

func TestTrustPoolRoute(t *testing.T) {
	reg := adapters.NewRegistry(adapters.StaticListName)
	require.NoError(t, adapters.Build(reg, []string{adapters.StaticListName}, adapters.CatalogDeps{
		Trusted: []string{"h1"},
	}))
	on := switchFlag(true)
	uc := scheduler.NewUC(zap.NewNop(), scheduler.Deps{
		Checks:   &oneCheck{},
		Nodes:    staticNodes{"h2", "h1"},
		Switch:   &on,
		Registry: reg,
	}, scheduler.Options{Baseline: check.Definition{Name: adapters.StaticListName, Spacing: time.Minute, Enabled: true}})
	require.NoError(t, uc.Init(context.Background()))

	route := trustPoolRoute(uc, zap.NewNop())
	assert.Equal(t, "/trustpool", route.Pattern)

	rec := httptest.NewRecorder()
	route.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/trustpool", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var view poolView
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&view))
	assert.True(t, view.Enabled)
	require.Len(t, view.Nodes, 2)
	assert.Equal(t, "h1", view.Nodes[0].Host)
	assert.Equal(t, trust.LevelUnknown, view.Nodes[0].Level)

	require.NoError(t, uc.Disable(context.Background()))
	rec = httptest.NewRecorder()
	route.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/trustpool", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
