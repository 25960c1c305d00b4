// Package shutdown implements the one-shot cancellation scope that every
// blocking operation in the dispatcher is threaded through. A single Scope
// is constructed at startup, fed by the OS signal handler, and observed by
// the scheduler, the assigner and the HTTP server.
package shutdown

import (
	"context"
	"sync"

	"github.com/mvplabs/process-dispatcher/internal/logging"
	"github.com/mvplabs/process-dispatcher/internal/sentinel"
)

// ErrTerminating is returned by Guard when the scope fires before (or
// while) the guarded operation runs. The scheduler relaunch loop breaks on
// it; every other error is logged and retried.
const ErrTerminating = sentinel.Error("terminating signal received")

// Scope is a one-shot fan-out cancellation latch. The zero value is not
// usable; construct with NewScope. Once canceled it never resets, and any
// number of observers may wait on Done.
type Scope struct {
	done chan struct{}
	once sync.Once
}

// NewScope returns an unset Scope.
func NewScope() *Scope {
	return &Scope{done: make(chan struct{})}
}

// Cancel sets the latch. Idempotent; only the first call has an effect.
func (s *Scope) Cancel() {
	s.once.Do(func() { close(s.done) })
}

// Done returns a channel that is closed once the scope has been canceled.
func (s *Scope) Done() <-chan struct{} {
	return s.done
}

// Canceled reports whether Cancel has been called.
func (s *Scope) Canceled() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Context derives a context from parent that is additionally canceled when
// the scope fires. Use it for resources that outlive a single Guard call,
// such as an open row stream; pulling from the stream is then wrapped in
// Guard per read. The returned stop function releases the watcher and must
// be called once the resource is closed.
func (s *Scope) Context(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	go func() {
		select {
		case <-s.done:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// Guard races op against the scope. op receives a context that is canceled
// as soon as the scope fires (or the caller's ctx ends), so a well-behaved
// operation unwinds promptly. When the scope wins the race, Guard logs one
// line with label and returns ErrTerminating; op's side effects may or may
// not have begun at that point.
//
// A scope that is already canceled short-circuits before op is invoked.
func Guard[T any](ctx context.Context, s *Scope, label string, op func(context.Context) (T, error)) (T, error) {
	var zero T

	if s.Canceled() {
		logging.Logger().Info("cancellation signal received", "operation", label)
		return zero, ErrTerminating
	}

	opCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type outcome struct {
		v   T
		err error
	}
	// Buffered so the goroutine never blocks after the scope wins the race.
	ch := make(chan outcome, 1)
	go func() {
		v, err := op(opCtx)
		ch <- outcome{v: v, err: err}
	}()

	select {
	case <-s.done:
		cancel()
		logging.Logger().Info("cancellation signal received", "operation", label)
		return zero, ErrTerminating
	case out := <-ch:
		return out.v, out.err
	}
}

// Do is Guard for operations with no result value.
func Do(ctx context.Context, s *Scope, label string, op func(context.Context) error) error {
	_, err := Guard(ctx, s, label, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}
