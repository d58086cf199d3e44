// Package shutdown provides a single-fire signal that any number of senders
// may trigger and the HTTP server observes to begin a graceful drain.
package shutdown

import (
	"context"
	"sync"
)

// Trigger requests shutdown with a cause. Only the first call has an effect;
// it reports whether this call was the one that fired.
type Trigger func(cause error) bool

// Coordinator is a one-shot broadcast built on a cancellable context.
type Coordinator struct {
	ctx    context.Context
	cancel context.CancelCauseFunc

	once  sync.Once
	fired chan struct{}
}

// New derives the shutdown context from parent. Cancelling parent also
// releases Done, with parent's cause.
func New(parent context.Context) *Coordinator {
	ctx, cancel := context.WithCancelCause(parent)
	return &Coordinator{ctx: ctx, cancel: cancel, fired: make(chan struct{})}
}

// Trigger fires the signal. Calls after the first are no-ops and return false.
func (c *Coordinator) Trigger(cause error) bool {
	fired := false
	c.once.Do(func() {
		c.cancel(cause)
		close(c.fired)
		fired = true
	})
	return fired
}

// Fired reports whether Trigger has been called.
func (c *Coordinator) Fired() bool {
	select {
	case <-c.fired:
		return true
	default:
		return false
	}
}

// Done is closed once shutdown has been requested.
func (c *Coordinator) Done() <-chan struct{} {
	return c.ctx.Done()
}

// Context is cancelled once shutdown has been requested.
func (c *Coordinator) Context() context.Context {
	return c.ctx
}

// Cause returns the error passed to the first Trigger, or the parent's
// cause, or nil while the signal has not fired.
func (c *Coordinator) Cause() error {
	if c.ctx.Err() == nil {
		return nil
	}
	return context.Cause(c.ctx)
}
