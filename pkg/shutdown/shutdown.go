package shutdown

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/psantana5/dftd-labeler/pkg/logging"
)

// Manager cancels a run on SIGINT or SIGTERM and runs cleanup functions
// in reverse registration order
type Manager struct {
	mu      sync.Mutex
	funcs   []named
	timeout time.Duration
	logger  *logging.Logger
	signal  os.Signal
}

type named struct {
	name string
	fn   func(context.Context) error
}

// New creates a shutdown manager
func New(timeout time.Duration, logger *logging.Logger) *Manager {
	return &Manager{timeout: timeout, logger: logger}
}

// Register adds a cleanup function
func (m *Manager) Register(name string, fn func(context.Context) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.funcs = append(m.funcs, named{name: name, fn: fn})
}

// Context returns a context cancelled on the first SIGINT or SIGTERM.
// The returned stop function releases the signal handler.
func (m *Manager) Context(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			m.mu.Lock()
			m.signal = sig
			m.mu.Unlock()
			m.logger.Warn("Received signal, stopping at the next structure boundary", map[string]interface{}{"signal": sig.String()})
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}

// Signal returns the signal that cancelled the run, if any
func (m *Manager) Signal() os.Signal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.signal
}

// Shutdown runs every registered function, last registered first, and
// returns the first error
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	funcs := m.funcs
	m.funcs = nil
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	var firstErr error
	for i := len(funcs) - 1; i >= 0; i-- {
		if err := funcs[i].fn(ctx); err != nil {
			m.logger.Error("Shutdown step failed", map[string]interface{}{"step": funcs[i].name, "error": err.Error()})
			if firstErr == nil {
				firstErr = fmt.Errorf("%s: %w", funcs[i].name, err)
			}
		}
	}
	return firstErr
}

// StopHTTPServer creates a shutdown function for an http.Server
func StopHTTPServer(server interface{ Shutdown(context.Context) error }) func(context.Context) error {
	return func(ctx context.Context) error {
		return server.Shutdown(ctx)
	}
}

// CloseResource creates a shutdown function for an io.Closer
func CloseResource(closer interface{ Close() error }) func(context.Context) error {
	return func(context.Context) error {
		return closer.Close()
	}
}
