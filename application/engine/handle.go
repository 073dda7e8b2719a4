// Package engine provides the lazy, single-flight bootstrap shared by the
// audio and image engines.
package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	pkgerrors "github.com/Skryldev/media-workbench/pkg/errors"
	"github.com/Skryldev/media-workbench/pkg/logger"
	"github.com/Skryldev/media-workbench/pkg/retry"
	"go.uber.org/zap"
)

// InitFunc performs the one-time initialization of an engine.
type InitFunc func(ctx context.Context) error

// TeardownFunc releases whatever InitFunc acquired.
type TeardownFunc func() error

// Handle owns the loaded/loading state of one engine. It is constructed
// explicitly and injected into whatever composes the queue controller.
type Handle struct {
	name     string
	init     InitFunc
	teardown TeardownFunc
	retryCfg retry.Config
	log      *logger.Logger

	mu       sync.Mutex
	loaded   bool
	inflight *loadCall
	// generation advances on every Teardown; a load started in an earlier
	// generation must not mark the handle loaded.
	generation uint64
}

type loadCall struct {
	done       chan struct{}
	err        error
	waiters    int
	generation uint64
}

// ErrTornDown is the cause reported to callers whose load was overtaken by
// a Teardown.
var ErrTornDown = errors.New("engine torn down during initialization")

// Config configures a Handle.
type Config struct {
	Name     string
	Init     InitFunc
	Teardown TeardownFunc
	Retry    retry.Config
	Logger   *logger.Logger
}

// NewHandle creates an unloaded handle.
func NewHandle(cfg Config) *Handle {
	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}
	retryCfg := cfg.Retry
	if retryCfg.MaxAttempts <= 0 {
		retryCfg.MaxAttempts = 1
	}
	if retryCfg.ShouldRetry == nil {
		retryCfg.ShouldRetry = func(err error) bool { return !pkgerrors.IsCancelled(err) }
	}
	log = log.With(zap.String("engine", cfg.Name))
	if retryCfg.OnRetry == nil {
		retryCfg.OnRetry = func(attempt int, err error, wait time.Duration) {
			log.Warn("engine init attempt failed",
				zap.Int("attempt", attempt),
				zap.Duration("retry_in", wait),
				zap.Error(err))
		}
	}
	return &Handle{
		name:     cfg.Name,
		init:     cfg.Init,
		teardown: cfg.Teardown,
		retryCfg: retryCfg,
		log:      log,
	}
}

// Name returns the engine name used in errors and logs.
func (h *Handle) Name() string { return h.name }

// Load initializes the engine once. Concurrent callers share the in-flight
// initialization and observe the same outcome. A failed load leaves the
// handle unloaded so a later call retries.
func (h *Handle) Load(ctx context.Context) error {
	h.mu.Lock()
	if h.loaded {
		h.mu.Unlock()
		return nil
	}
	call := h.inflight
	if call == nil {
		call = &loadCall{done: make(chan struct{}), generation: h.generation}
		h.inflight = call
		// initialization outlives any single caller's cancellation
		go h.run(context.WithoutCancel(ctx), call)
	}
	call.waiters++
	h.mu.Unlock()

	select {
	case <-call.done:
		return call.err
	case <-ctx.Done():
		return pkgerrors.NewCancelledError("engine load abandoned", ctx.Err())
	}
}

func (h *Handle) run(ctx context.Context, call *loadCall) {
	h.log.Info("initializing engine")

	var err error
	if h.init != nil {
		err = retry.Do(ctx, h.retryCfg, func() error { return h.init(ctx) })
	}

	h.mu.Lock()
	stale := call.generation != h.generation
	switch {
	case err != nil:
		call.err = pkgerrors.NewBootstrapError(h.name, err)
	case stale:
		call.err = pkgerrors.NewBootstrapError(h.name, ErrTornDown)
	default:
		h.loaded = true
	}
	if h.inflight == call {
		h.inflight = nil
	}
	h.mu.Unlock()
	close(call.done)

	if err == nil && stale {
		h.log.Info("releasing engine initialized after teardown")
		if h.teardown != nil {
			if terr := h.teardown(); terr != nil {
				h.log.Warn("release after teardown failed", zap.Error(terr))
			}
		}
		return
	}
	if err != nil {
		h.log.Error("engine initialization failed", zap.Error(err))
		return
	}
	h.log.Info("engine ready")
}

// Loaded reports whether initialization has completed successfully.
func (h *Handle) Loaded() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.loaded
}

// Loading reports whether an initialization is in flight.
func (h *Handle) Loading() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.inflight != nil
}

// Teardown releases the engine; the next Load initializes again. A load in
// flight is abandoned: its callers get ErrTornDown and whatever it
// initialized is released when it finishes.
func (h *Handle) Teardown() error {
	h.mu.Lock()
	wasLoaded := h.loaded
	h.loaded = false
	h.generation++
	h.inflight = nil
	h.mu.Unlock()

	if !wasLoaded || h.teardown == nil {
		return nil
	}
	h.log.Info("tearing down engine")
	return h.teardown()
}

func (h *Handle) waiters() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.inflight == nil {
		return 0
	}
	return h.inflight.waiters
}
