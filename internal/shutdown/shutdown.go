// Package shutdown provides a signal-driven cancellation token, replacing
// the teacher's static "ShuttingDown" bool (golang/internal/gracefulShutdown.go)
// with an owned token per design note in spec.md §9 ("Static signal-received
// flag ... the runtime owns a cancellation token").
package shutdown

import (
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"
)

// Token is a cancellation token flipped once by an OS signal (or a manual
// Trigger call) and observed by every polling loop in the runtime.
type Token struct {
	once sync.Once
	ch   chan struct{}
}

// NewToken creates an unflipped cancellation token.
func NewToken() *Token {
	return &Token{ch: make(chan struct{})}
}

// Done returns a channel that is closed once the token is cancelled. Polling
// loops should select on it alongside their own timeout/ticker channel.
func (t *Token) Done() <-chan struct{} {
	return t.ch
}

// Cancelled reports whether the token has already been flipped.
func (t *Token) Cancelled() bool {
	select {
	case <-t.ch:
		return true
	default:
		return false
	}
}

// Trigger flips the token. Safe to call multiple times or concurrently.
func (t *Token) Trigger() {
	t.once.Do(func() { close(t.ch) })
}

// WatchSignals triggers the token on SIGINT/SIGTERM and logs the signal that
// caused it, mirroring golang/internal/gracefulShutdown.go.
func (t *Token) WatchSignals() {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		zap.S().Infow("received signal, shutting down", "signal", sig.String())
		t.Trigger()
	}()
}
