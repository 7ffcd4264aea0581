package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"escaperoom/pkg/config"
	"escaperoom/pkg/contracts"
	"escaperoom/pkg/middleware"

	"github.com/julienschmidt/httprouter"
)

const rateLimiterJanitorInterval = 5 * time.Minute

// Worker is a background loop that runs until its context is cancelled.
type Worker func(ctx context.Context)

type Application struct {
	cfg              *config.Config
	server           *http.Server
	idempotencyStore middleware.IdempotencyStore
	rateLimiter      *middleware.RateLimiter
	healthHandler    http.Handler
	appHTTPHandler   http.Handler

	workers     map[string]Worker
	closers     []namedCloser
	stopWorkers context.CancelFunc
	workersDone sync.WaitGroup
}

type namedCloser struct {
	name  string
	close func() error
}

func NewApplication(cfg *config.Config) *Application {
	return &Application{
		cfg:     cfg,
		workers: make(map[string]Worker),
	}
}

// SetApp builds the HTTP stack. health gets Recovery and logging only; every
// other handler sits behind the full middleware chain.
func (a *Application) SetApp(health contracts.Handler, handlers ...contracts.Handler) {
	a.setHealthHandler(health)
	a.setAppHandler(handlers)
	a.setAppServer()
}

// AddWorker registers a background loop started by Run and cancelled on shutdown.
func (a *Application) AddWorker(name string, w Worker) {
	a.workers[name] = w
}

// OnShutdown registers fn to run after the server and workers have stopped,
// in registration order.
func (a *Application) OnShutdown(name string, fn func() error) {
	a.closers = append(a.closers, namedCloser{name: name, close: fn})
}

// Handler returns the root handler served by Run.
func (a *Application) Handler() http.Handler {
	return a.server.Handler
}

func (a *Application) setHealthHandler(health contracts.Handler) {
	healthRouter := httprouter.New()
	health.RegisterRoutes(healthRouter)

	var h http.Handler = healthRouter
	h = middleware.RequestLogging(a.cfg.Log)(h)
	h = middleware.Recovery(a.cfg.Log)(h)
	a.healthHandler = h
	a.cfg.Log.Info("Health endpoints configured with minimal middleware (Recovery + Logging only)")
}

func (a *Application) setAppHandler(handlers []contracts.Handler) {
	appRouter := httprouter.New()
	for _, handler := range handlers {
		handler.RegisterRoutes(appRouter)
	}

	if a.cfg.Client != nil && a.cfg.Client.Redis != nil {
		a.idempotencyStore = middleware.NewRedisIdempotencyStore(a.cfg.Client.Redis, a.cfg.IdempotencyTTL, a.cfg.Log)
		a.cfg.Log.Info("Idempotency keys stored in Redis", "addr", a.cfg.RedisAddr)
	} else {
		a.idempotencyStore = middleware.NewInMemoryIdempotencyStore(a.cfg.IdempotencyTTL)
	}
	a.rateLimiter = middleware.NewRateLimiter(
		a.cfg.RateLimitRPS,
		a.cfg.RateLimitBurst,
		middleware.HolderKeyFunc,
		a.cfg.Log,
	)

	var h http.Handler = appRouter
	h = middleware.Idempotency(a.idempotencyStore, middleware.DefaultIdempotencyHeader)(h)
	h = middleware.RequestTimeout(a.cfg.RequestTimeout)(h)
	h = middleware.RateLimit(a.rateLimiter)(h)
	h = middleware.ContentTypeValidation(a.cfg.Log)(h)
	h = middleware.MaxBodySize(int64(a.cfg.MaxRequestSize))(h)
	h = middleware.RequestLogging(a.cfg.Log)(h)
	h = middleware.Recovery(a.cfg.Log)(h)
	a.appHTTPHandler = h
	a.cfg.Log.Info("Application endpoints configured with full middleware stack")
}

func (a *Application) setAppServer() {
	mux := http.NewServeMux()
	mux.Handle("/health", a.healthHandler)
	mux.Handle("/ready", a.healthHandler)
	mux.Handle("/", a.appHTTPHandler)

	a.server = &http.Server{
		Addr:         ":" + a.cfg.Port,
		Handler:      mux,
		ReadTimeout:  a.cfg.ReadTimeout,
		WriteTimeout: a.cfg.WriteTimeout,
		IdleTimeout:  a.cfg.IdleTimeout,
	}

	a.cfg.Log.Info("HTTP server configured", "port", a.cfg.Port)
}

func (a *Application) startWorkers() {
	ctx, cancel := context.WithCancel(context.Background())
	a.stopWorkers = cancel

	a.rateLimiter.StartJanitor(ctx, rateLimiterJanitorInterval)

	for name, w := range a.workers {
		a.workersDone.Add(1)
		go func(name string, w Worker) {
			defer a.workersDone.Done()
			a.cfg.Log.Info("Background worker started", "worker", name)
			w(ctx)
			a.cfg.Log.Info("Background worker stopped", "worker", name)
		}(name, w)
	}
}

func (a *Application) Run() {
	a.startWorkers()

	serverErrors := make(chan error, 1)

	go func() {
		a.cfg.Log.Info("Starting HTTP server", "address", a.server.Addr)
		serverErrors <- a.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			a.cfg.Log.Fatal("HTTP server failed", "error", err)
		}

	case sig := <-shutdown:
		a.cfg.Log.Info("Shutdown signal received", "signal", sig)
		a.gracefulShutdown()
	}
}

func (a *Application) gracefulShutdown() {
	a.cfg.Log.Info("Starting graceful shutdown...")

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		a.cfg.Log.Error("Server shutdown failed", "error", err)
		if err := a.server.Close(); err != nil {
			a.cfg.Log.Fatal("Could not stop server gracefully", "error", err)
		}
	}

	a.cfg.Log.Info("Stopping background workers...")
	if a.stopWorkers != nil {
		a.stopWorkers()
	}
	a.workersDone.Wait()
	a.idempotencyStore.Stop()
	a.cfg.Log.Info("Background workers stopped")

	for _, c := range a.closers {
		if err := c.close(); err != nil {
			a.cfg.Log.Error("Shutdown hook failed", "hook", c.name, "error", err)
		}
	}
	if a.cfg.Client != nil {
		a.cfg.Client.GracefulShutdown(a.cfg.Log)
	}

	a.cfg.Log.Info("Server stopped gracefully")
}
