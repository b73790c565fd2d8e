package server

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"TradeLens/pkg/cache"
	pkgch "TradeLens/pkg/clickhouse"
	"TradeLens/pkg/config"
	xhttp "TradeLens/pkg/http"
	pkgkafka "TradeLens/pkg/kafka"
	applogger "TradeLens/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
)

// Runner is a long-lived component that stops when its context ends.
type Runner interface {
	Run(ctx context.Context) error
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	l          *applogger.Logger
	reg        *prometheus.Registry
	handler    xhttp.Handler
	bridge     Runner
	engine     Runner
	chClient   *pkgch.Client
	producer   *pkgkafka.Producer
	kv         cache.Service
	httpServer *xhttp.Server
}

// New creates a new App instance with all dependencies. chClient, producer
// and kv may be nil.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	reg *prometheus.Registry,
	handler xhttp.Handler,
	bridge Runner,
	engine Runner,
	chClient *pkgch.Client,
	producer *pkgkafka.Producer,
	kv cache.Service,
) *App {
	if l == nil {
		l = applogger.Nop()
	}
	return &App{
		cfg:      cfg,
		l:        l,
		reg:      reg,
		handler:  handler,
		bridge:   bridge,
		engine:   engine,
		chClient: chClient,
		producer: producer,
		kv:       kv,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	return a.run(sigCh)
}

func (a *App) run(stop <-chan os.Signal) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bridgeDone := a.start(ctx, "page bridge", a.bridge)
	engineDone := a.start(ctx, "engine", a.engine)

	opts := []xhttp.ServerOption{
		xhttp.WithHost(a.cfg.Server.Host),
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithLogger(a.l),
	}
	if a.cfg.Metrics.Enabled && a.reg != nil {
		opts = append(opts, xhttp.WithMetrics(a.reg, a.cfg.Metrics.Path, a.cfg.Server.SlowThreshold))
	}
	a.httpServer = xhttp.NewServer(a.handler, opts...)
	if err := a.httpServer.Start(); err != nil {
		a.l.Error("http server start error", applogger.Error(err))
		return err
	}
	a.l.Info("tradelens started",
		applogger.String("host", a.cfg.Server.Host),
		applogger.Int("port", a.cfg.Server.Port),
		applogger.String("market_source", a.cfg.MarketData.Source),
		applogger.String("state_backend", a.cfg.State.Backend),
	)

	var runErr error
	select {
	case <-stop:
		a.l.Info("shutdown signal received")
	case <-engineDone:
		runErr = errors.New("engine stopped unexpectedly")
		a.l.Error("engine stopped before shutdown")
	}

	// The last log digest goes into the journal before its final flush.
	a.l.RemoveCollector()
	cancel()
	return errors.Join(runErr, a.shutdown(bridgeDone, engineDone))
}

func (a *App) start(ctx context.Context, name string, r Runner) <-chan struct{} {
	done := make(chan struct{})
	if r == nil {
		close(done)
		return done
	}
	go func() {
		defer close(done)
		if err := r.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.l.Error("component stopped", applogger.String("component", name), applogger.Error(err))
		}
	}()
	return done
}

// shutdown stops the HTTP server, waits for the engine to drain the journal
// and closes infrastructure clients.
func (a *App) shutdown(waits ...<-chan struct{}) error {
	a.l.Info("shutting down...")
	timeout := a.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	if a.httpServer != nil {
		if err := a.httpServer.Stop(shutdownCtx); err != nil {
			a.l.Error("http shutdown error", applogger.Error(err))
			errs = append(errs, err)
		}
	}

	for _, done := range waits {
		select {
		case <-done:
		case <-shutdownCtx.Done():
			a.l.Warn("component did not stop in time")
		}
	}

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.l.Warn("kafka producer close error", applogger.Error(err))
		}
	}
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.l.Warn("clickhouse close error", applogger.Error(err))
		}
	}
	if a.kv != nil {
		if err := a.kv.Close(); err != nil {
			a.l.Warn("state cache close error", applogger.Error(err))
		}
	}

	a.l.Info("shutdown complete")
	return errors.Join(errs...)
}
