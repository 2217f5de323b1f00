package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"MarketPulse/internal/middleware"
	"MarketPulse/pkg/config"
	xhttp "MarketPulse/pkg/http"
	applogger "MarketPulse/pkg/logger"
)

// Resource is an infrastructure client closed on shutdown.
type Resource struct {
	Name  string
	Close func() error
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	httpServer *xhttp.Server
	pipeline   *middleware.EventPipeline
	resources  []Resource
}

// New creates a new App. Resources are closed in reverse order, after the HTTP
// server has stopped and the event pipeline has drained.
func New(cfg *config.Config, l *applogger.Logger, srv *xhttp.Server, pipeline *middleware.EventPipeline, resources ...Resource) *App {
	if l == nil {
		l = applogger.Nop()
	}
	return &App{
		cfg:        cfg,
		log:        l,
		httpServer: srv,
		pipeline:   pipeline,
		resources:  resources,
	}
}

// Run starts the application and blocks until SIGINT or SIGTERM.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext starts the application and blocks until ctx is done.
func (a *App) RunContext(ctx context.Context) error {
	// The pipeline outlives ctx so the final flush can still reach its sinks.
	pipeCtx, cancelPipe := context.WithCancel(context.Background())
	defer cancelPipe()

	if a.pipeline != nil {
		a.pipeline.Start(pipeCtx)
	}

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		a.closePipeline()
		a.closeResources()
		return fmt.Errorf("start http server: %w", err)
	}
	a.log.Info("marketpulse started",
		applogger.String("env", a.cfg.Environment),
		applogger.Int("port", a.cfg.Server.Port),
		applogger.String("store", a.cfg.Store.Backend),
		applogger.String("log_backend", a.cfg.Log.Backend),
		applogger.Bool("kafka", a.cfg.Kafka.Enabled),
	)

	<-ctx.Done()
	a.log.Info("shutdown signal received")
	return a.shutdown()
}

// shutdown gracefully stops all services.
func (a *App) shutdown() error {
	var firstErr error

	if err := a.httpServer.Stop(context.Background()); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
		firstErr = err
	}

	a.closePipeline()
	a.closeResources()
	a.log.Info("shutdown complete")
	return firstErr
}

func (a *App) closePipeline() {
	if a.pipeline == nil {
		return
	}
	if err := a.pipeline.Close(); err != nil {
		a.log.Warn("event pipeline close error", applogger.Error(err))
	}
}

func (a *App) closeResources() {
	for i := len(a.resources) - 1; i >= 0; i-- {
		r := a.resources[i]
		if r.Close == nil {
			continue
		}
		if err := r.Close(); err != nil {
			a.log.Warn("close error", applogger.String("resource", r.Name), applogger.Error(err))
		}
	}
	a.resources = nil
}
