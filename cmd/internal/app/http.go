package app

import (
	"context"
	"net/http"
	"time"

	"console/cmd/internal/auth/api"
	"console/cmd/internal/auth/gate"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type routes struct {
	log     Logger
	backend *tokenBackend
	reg     *prometheus.Registry
	auth    *api.Handler
	gate    *gate.Gate
}

func registerHTTP(mux *http.ServeMux, rt routes) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := rt.backend.ping(ctx); err != nil {
			rt.log.Info("readyz.store.not_ready", "backend", rt.backend.name, "err", err)
			http.Error(w, "store not ready", http.StatusServiceUnavailable)
			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready\n"))
	})

	mux.Handle("/metrics", promhttp.HandlerFor(rt.reg, promhttp.HandlerOpts{}))

	rt.auth.Register(mux)

	mux.Handle("/", rt.gate.Middleware(pagesHandler(rt.gate.Config().LoginPath, rt.gate.Matches)))
}
