package main

import (
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/NordCoder/Trustwatch/internal/domain/trust"
	"github.com/NordCoder/Trustwatch/internal/obs"
	scheduler "github.com/NordCoder/Trustwatch/internal/services/trust-scheduler"
)

type poolView struct {
	Enabled bool          `json:"enabled"`
	Nodes   []trust.Entry `json:"nodes,omitempty"`
}

// trustPoolRoute serves the placement view of the pool as JSON.
func trustPoolRoute(uc *scheduler.Usecase, logger *zap.Logger) obs.Route {
	h := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		pool, ok := uc.TrustedPool()
		view := poolView{Enabled: ok}
		for _, e := range pool {
			e.VTime = e.VTime.UTC().Truncate(time.Second)
			view.Nodes = append(view.Nodes, e)
		}
		sort.Slice(view.Nodes, func(i, j int) bool { return view.Nodes[i].Host < view.Nodes[j].Host })

		w.Header().Set("Content-Type", "application/json")
		if !ok {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		if err := json.NewEncoder(w).Encode(view); err != nil {
			logger.Warn("encode trust pool", zap.Error(err))
		}
	})
	return obs.Route{Pattern: "/trustpool", Handler: h}
}
