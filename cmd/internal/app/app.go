// Package app wires the console server runtime: config, logging, the token
// store backend, the session machine and gate, and the HTTP routes.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"console/cmd/identity"
	"console/cmd/internal/auth/api"
	"console/cmd/internal/auth/gate"
	"console/cmd/internal/auth/lifecycle"
	"console/cmd/internal/auth/session"
	"console/cmd/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// App owns the HTTP server wiring and the resources behind it.
type App struct {
	cfg Config
	log Logger

	backend *tokenBackend
	handler http.Handler
}

// New constructs a fully wired App from cfg. Session, gate, auth and
// password settings are read from the environment by their packages.
func New(ctx context.Context, cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}

	if err := ValidateSecurityConfig(cfg); err != nil {
		return nil, err
	}

	sessCfg, err := session.LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}
	codec, err := session.NewCodec(sessCfg)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	mx, err := metrics.New(reg)
	if err != nil {
		return nil, err
	}

	pw, err := identity.PasswordsFromEnv()
	if err != nil {
		return nil, err
	}

	backend, err := openBackend(ctx, cfg, sessCfg.CompactGrace, log, mx)
	if err != nil {
		return nil, err
	}

	mgr, err := lifecycle.NewManager(backend.access, backend.refresh, sessCfg.Lifecycle(),
		lifecycle.WithLogger(log),
		lifecycle.WithMetrics(mx),
	)
	if err != nil {
		backend.close()
		return nil, err
	}

	machine := session.NewMachine(mgr,
		session.WithLogger(log),
		session.WithMetrics(mx),
		session.WithVerifier(identity.NewFileVerifier(cfg.UsersFile, pw, log)),
		session.WithStoreTimeout(sessCfg.StoreTimeout),
	)

	g := gate.New(gate.LoadConfigFromEnv(), machine, codec,
		gate.WithLogger(log),
		gate.WithMetrics(mx),
	)
	auth := api.NewHandler(log, api.LoadConfigFromEnv(), machine, g)

	mux := http.NewServeMux()
	registerHTTP(mux, routes{
		log:     log,
		backend: backend,
		reg:     reg,
		auth:    auth,
		gate:    g,
	})

	log.Info("app.ready",
		"token_store", backend.name,
		"codec", sessCfg.Codec,
		"access_ttl", sessCfg.AccessTokenTTL.String(),
		"refresh_ttl", sessCfg.RefreshTokenTTL.String(),
	)

	return &App{
		cfg:     cfg,
		log:     log,
		backend: backend,
		handler: WithSecurityHeaders(mux),
	}, nil
}

// Handler returns the routed handler without request logging.
func (a *App) Handler() http.Handler { return a.handler }

// Close releases the store backend.
func (a *App) Close() {
	if a.backend != nil && a.backend.close != nil {
		a.backend.close()
	}
}

// Run starts the HTTP server and the compactor and blocks until ctx is
// cancelled or the server fails.
func (a *App) Run(ctx context.Context) error {
	defer a.Close()

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           WithRequestLogging(a.handler, a.log),
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	compactCtx, stopCompactor := context.WithCancel(ctx)
	defer stopCompactor()
	go runCompactor(compactCtx, a.log, a.cfg.CompactInterval, a.backend.stores())

	a.log.Info("server.start", "addr", a.cfg.HTTPAddr, "token_store", a.backend.name)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), nonZeroDuration(a.cfg.ShutdownTimeout, 10*time.Second))
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return err
	}

	a.log.Info("server.stopped")
	return nil
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
