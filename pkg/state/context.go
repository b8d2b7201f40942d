package state

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// exitForced is the status used when a repeated exit signal cuts shutdown short.
const exitForced = 130

var exitSignals = []os.Signal{os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT}

// NewContext combines the context interface with a signal driven interrupt
// and a graceful exit.
func NewContext(logger *slog.Logger) Context {
	c := newContext(logger, func() { os.Exit(exitForced) })
	signal.Notify(c.sigChan, exitSignals...)
	return c
}

func newContext(logger *slog.Logger, forceQuit func()) *ctx {
	if logger == nil {
		logger = slog.Default()
	}
	bg, cancel := context.WithCancel(context.Background())
	c := &ctx{
		Context:   bg,
		cancel:    cancel,
		interrupt: NewInterrupt(),
		sigChan:   make(chan os.Signal, 1),
		stopped:   make(chan struct{}),
		forceQuit: forceQuit,
		logger:    logger,
	}
	go c.watch()
	return c
}

type Context interface {
	context.Context
	// Interrupt is flipped by the first exit signal.
	Interrupt() *Interrupt
	// Defer registers a closer executed on Exit, last registered first.
	Defer(fn func())
	// Exit cancels the context and waits for registered closers to return.
	Exit()
	// AwaitExit blocks until the interrupt fires or the context is cancelled, then exits.
	AwaitExit()
}

// Any exit signal received after the interrupt fired force quits, whether
// or not Exit has started.
type ctx struct {
	context.Context
	mu        sync.Mutex
	closers   []func()
	exitOnce  sync.Once
	cancel    context.CancelFunc
	interrupt *Interrupt
	sigChan   chan os.Signal
	stopped   chan struct{}
	forceQuit func()
	logger    *slog.Logger
}

func (ctx *ctx) Interrupt() *Interrupt {
	return ctx.interrupt
}

// watch turns the first signal into an interrupt and any later one into a
// forced quit. It runs until Exit has finished.
func (ctx *ctx) watch() {
	for {
		select {
		case sig := <-ctx.sigChan:
			if ctx.interrupt.IsStopRequested() {
				ctx.logger.Warn("force quitting", "signal", sig.String())
				ctx.forceQuit()
				continue
			}
			ctx.logger.Debug("exit signal received", "signal", sig.String())
			ctx.interrupt.RequestStop()
		case <-ctx.stopped:
			return
		}
	}
}

func (ctx *ctx) Defer(fn func()) {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	ctx.closers = append(ctx.closers, fn)
}

func (ctx *ctx) Exit() {
	ctx.exitOnce.Do(ctx.exit)
}

func (ctx *ctx) exit() {
	ctx.interrupt.RequestStop()
	ctx.cancel()
	ctx.mu.Lock()
	closers := ctx.closers
	ctx.closers = nil
	ctx.mu.Unlock()
	for i := len(closers) - 1; i >= 0; i-- {
		closers[i]()
	}
	ctx.logger.Debug("gracefully quitting")
	signal.Stop(ctx.sigChan)
	close(ctx.stopped)
}

func (ctx *ctx) AwaitExit() {
	select {
	case <-ctx.interrupt.Done():
	case <-ctx.Done():
	}
	ctx.Exit()
}
