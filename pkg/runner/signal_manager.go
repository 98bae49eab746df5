package runner

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// SignalManager turns SIGINT and SIGTERM into context cancellation for a serving process.
// Cancellation shuts the process down; it never cancels a turn in flight.
type SignalManager struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// NewSignalManager creates a new manager and immediately starts listening for signals.
func NewSignalManager(parent context.Context) *SignalManager {
	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	return &SignalManager{ctx: ctx, cancel: cancel}
}

// Context returns the signal context.
func (sm *SignalManager) Context() context.Context {
	return sm.ctx
}

// Stop permanently stops the signal listener.
func (sm *SignalManager) Stop() {
	if sm.cancel != nil {
		sm.cancel()
	}
}

// Interrupted reports whether a signal ended the context.
func (sm *SignalManager) Interrupted() bool {
	return sm.ctx.Err() != nil
}

// CheckRace waits briefly to see if a context cancellation follows an error.
// Ctrl+C on a terminal can close stdin slightly before the signal is delivered.
func (sm *SignalManager) CheckRace() {
	if sm.ctx.Err() == nil {
		select {
		case <-sm.ctx.Done():
		case <-time.After(100 * time.Millisecond):
		}
	}
}
