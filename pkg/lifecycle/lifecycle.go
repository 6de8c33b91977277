// Package lifecycle provides the start-once/stop-and-join goroutine
// wrapper the tracker manager's background worker is built on. It is a
// narrowed form of the teacher's pkg/lifecycle/lifecycle.go, which spawned
// an arbitrary number of tasks under one context/WaitGroup pair; the
// tracker manager only ever needs exactly one long-lived worker, so the
// generic Spawner/Go surface is replaced with Start/Stop and an explicit
// wake channel for prompt cancellation, per spec section 5's preference
// for a condition-variable-style wakeup over bare timed sleeps.
package lifecycle

import (
	"context"
	"sync"
	"time"
)

type Worker struct {
	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	wake    chan struct{}
	wg      sync.WaitGroup
	started bool
}

func NewWorker() *Worker {
	return &Worker{wake: make(chan struct{}, 1)}
}

// Start launches fn on a new goroutine exactly once; subsequent calls are
// no-ops, matching the tracker manager's "start is re-entrant" contract.
func (w *Worker) Start(fn func(ctx context.Context)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return
	}
	w.started = true
	w.ctx, w.cancel = context.WithCancel(context.Background())
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		fn(w.ctx)
	}()
}

// Stop signals the worker and blocks until it has returned. Calling Stop
// before Start, or more than once, is safe and returns immediately.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	cancel := w.cancel
	w.started = false
	w.mu.Unlock()

	cancel()
	w.Wake()
	w.wg.Wait()
}

// Wake nudges a worker blocked in WaitWake out of its sleep without
// waiting for the full sleep duration to elapse. Non-blocking: if a wake
// is already pending it is not duplicated.
func (w *Worker) Wake() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// WaitWake blocks until d elapses, the worker is woken via Wake, or ctx is
// cancelled — whichever happens first.
func (w *Worker) WaitWake(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-w.wake:
	case <-t.C:
	}
}
