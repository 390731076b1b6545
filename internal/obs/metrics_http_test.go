package obs

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
)

func TestMetricsServerRoutes(t *testing.T) {
	healthy := true
	reg := prometheus.NewRegistry()
	srv := NewMetricsServer(":0", reg, func(context.Context) error {
		if !healthy {
			return errors.New("db down")
		}
		return nil
	}, Route{Pattern: "/extra", Handler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})})

	get := func(path string) int {
		rec := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, get("/healthz"))
	assert.Equal(t, http.StatusOK, get("/metrics"))
	assert.Equal(t, http.StatusTeapot, get("/extra"))

	healthy = false
	assert.Equal(t, http.StatusServiceUnavailable, get("/healthz"))
}
