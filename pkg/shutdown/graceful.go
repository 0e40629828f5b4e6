package shutdown

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/valyala/fasthttp"

	"pagedesk/internal/retention"
	"pagedesk/pkg/api/auth"
	"pagedesk/pkg/ingest"
	"pagedesk/pkg/logger"
	"pagedesk/pkg/webhooklog"
)

// Components are the parts of a running app, stopped in field order.
// Nil fields are skipped.
type Components struct {
	Server     *fasthttp.Server
	Gateway    *auth.Gateway
	Retention  *retention.Manager
	Processor  *ingest.Processor
	Observer   *ingest.Observer
	Deliveries *webhooklog.Log
}

// ShutdownApp performs graceful shutdown of all app components. Queued
// events are applied before the delivery log closes so their results land.
// Past the ctx deadline the processor discards what is still queued, and
// the log is closed only after every worker has exited.
func ShutdownApp(ctx context.Context, c Components) error {
	logger.Info("shutdown: requested")
	var firstErr error

	// stop accepting new requests
	if c.Server != nil {
		logger.Info("shutdown: stopping FastHTTP server")
		if err := c.Server.Shutdown(); err != nil {
			logger.Error("shutdown: fasthttp shutdown error", "error", err)
			firstErr = err
		}
	}
	if c.Gateway != nil {
		c.Gateway.Close()
	}

	if c.Retention != nil {
		logger.Info("shutdown: stopping retention scheduler")
		c.Retention.Stop()
	}

	if c.Processor != nil {
		logger.Info("shutdown: draining ingest queue")
		c.Processor.Stop(ctx)
	}

	if c.Observer != nil {
		logger.Info("shutdown: waiting for result observer")
		select {
		case <-c.Observer.Done():
		case <-ctx.Done():
			logger.Warn("shutdown: observer did not finish", "error", ctx.Err())
		}
	}

	if c.Deliveries != nil {
		logger.Info("shutdown: closing webhook log")
		if err := c.Deliveries.Close(); err != nil {
			logger.Error("shutdown: webhook log close error", "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	logger.Info("shutdown: complete")
	logger.Sync()
	return firstErr
}

// Abort logs a fatal startup error and exits.
func Abort(msg string, err error) {
	if err != nil {
		logger.Error("startup_aborted", "reason", msg, "error", err)
		fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
	} else {
		logger.Error("startup_aborted", "reason", msg)
		fmt.Fprintln(os.Stderr, msg)
	}
	logger.Sync()
	os.Exit(1)
}

// SetupSignalHandler installs handlers for SIGINT/SIGTERM and SIGPIPE and
// returns a cancellable context. The returned context is cancelled when any
// of the watched signals arrives.
func SetupSignalHandler(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	// handle interrupt/terminate for graceful shutdown
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case s := <-sigc:
			logger.Info("signal_received", "signal", s.String(), "msg", "shutdown requested")
			cancel()
		case <-ctx.Done():
		}
	}()

	// watch for SIGPIPE and dump goroutine stacks to aid diagnostics
	sigpipe := make(chan os.Signal, 1)
	signal.Notify(sigpipe, syscall.SIGPIPE)
	go func() {
		select {
		case s := <-sigpipe:
			logger.Info("signal_received", "signal", s.String(), "msg", "SIGPIPE - dumping goroutine stacks")
			buf := make([]byte, 1<<20)
			n := runtime.Stack(buf, true)
			logger.Info("goroutine_stack_dump", "dump", string(buf[:n]))
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigc)
		signal.Stop(sigpipe)
		cancel()
	}
}
