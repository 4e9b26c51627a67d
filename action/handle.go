package action

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/KosmosisDire/LCMware/bus"
	lcmerr "github.com/KosmosisDire/LCMware/contract/errors"
	"github.com/KosmosisDire/LCMware/wire"
)

// Handle tracks one submitted goal. It is safe for concurrent use; all of
// its methods may be called from any goroutine at any point in the goal's
// life.
type Handle[F, R any] struct {
	b      *bus.Bus
	action string
	goalID string
	logger *slog.Logger
	onDone func()

	mu         sync.Mutex
	status     Status
	observers  []func(F)
	cancelSent bool
	resolved   bool
	result     wire.Result[R]
	failErr    error
	fbSub      *bus.Subscription
	resSub     *bus.Subscription

	done chan struct{}
}

func newHandle[F, R any](b *bus.Bus, action, goalID string, logger *slog.Logger, onDone func()) *Handle[F, R] {
	return &Handle[F, R]{
		b:      b,
		action: action,
		goalID: goalID,
		logger: logger,
		onDone: onDone,
		status: StatusAccepted,
		done:   make(chan struct{}),
	}
}

func (h *Handle[F, R]) setSubs(fbSub, resSub *bus.Subscription) {
	h.mu.Lock()
	h.fbSub = fbSub
	h.resSub = resSub
	h.mu.Unlock()
}

// GoalID returns the goal's correlation id.
func (h *Handle[F, R]) GoalID() string { return h.goalID }

// Status returns the last observed lifecycle state. A goal that produced no
// feedback may jump from StatusAccepted straight to a terminal state.
func (h *Handle[F, R]) Status() Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status
}

// Done is closed once the goal is terminal or the handle was abandoned by
// Client.Close.
func (h *Handle[F, R]) Done() <-chan struct{} { return h.done }

// OnFeedback registers fn for every feedback message from now on; earlier
// messages are not replayed. Observers run on the node's dispatch goroutine
// in registration order; a panic in one is logged and contained. Once the
// goal is terminal fn will never run.
func (h *Handle[F, R]) OnFeedback(fn func(F)) {
	if fn == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.resolved {
		return
	}
	h.observers = append(h.observers, fn)
}

// Cancel asks the server to stop the goal. Best-effort and asynchronous: the
// goal still ends through its result message, whatever the outcome. Cancel
// does nothing once the goal is terminal, and repeated calls send at most
// one request.
func (h *Handle[F, R]) Cancel(ctx context.Context) error {
	h.mu.Lock()
	if h.resolved || h.cancelSent {
		h.mu.Unlock()
		return nil
	}
	h.cancelSent = true
	h.mu.Unlock()

	if err := h.b.Publish(ctx, wire.CancelChannel(h.action), wire.NewCancel(h.goalID)); err != nil {
		h.mu.Lock()
		h.cancelSent = false
		h.mu.Unlock()
		return fmt.Errorf("cancel goal %s: %w", h.goalID, err)
	}

	return nil
}

// Result blocks until the goal finishes, timeout elapses, ctx is canceled,
// or the node shuts down. timeout must be positive. StatusSucceeded yields
// the result payload; StatusAborted and StatusCanceled yield an *Error.
func (h *Handle[F, R]) Result(ctx context.Context, timeout time.Duration) (R, error) {
	var zero R

	if timeout <= 0 {
		return zero, fmt.Errorf("result for goal %s: %w: timeout %s", h.goalID, lcmerr.ErrInvalidTimeout, timeout)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-h.done:
		return h.outcome()
	case <-timer.C:
		return zero, &lcmerr.TimeoutError{Channel: h.action, Wait: timeout}
	case <-ctx.Done():
		return zero, fmt.Errorf("result for goal %s: %w", h.goalID, ctx.Err())
	case <-h.b.Done():
		return zero, fmt.Errorf("result for goal %s: %w", h.goalID, lcmerr.ErrClosed)
	}
}

func (h *Handle[F, R]) outcome() (R, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var zero R
	if h.failErr != nil {
		return zero, h.failErr
	}
	if h.result.Status == StatusSucceeded {
		return h.result.Payload, nil
	}
	return zero, &Error{GoalID: h.goalID, Status: h.result.Status, Message: h.result.Message}
}

// onFeedback runs on the dispatch goroutine for every feedback message.
func (h *Handle[F, R]) onFeedback(fb F) {
	h.mu.Lock()
	if h.resolved {
		h.mu.Unlock()
		return
	}
	if h.status == StatusAccepted {
		h.status = StatusExecuting
	}
	obs := append(([]func(F))(nil), h.observers...)
	h.mu.Unlock()

	for _, fn := range obs {
		h.notify(fn, fb)
	}
}

func (h *Handle[F, R]) notify(fn func(F), fb F) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("feedback observer panicked", "goal", h.goalID, "panic", r)
		}
	}()

	fn(fb)
}

// onResult applies the terminal result. Duplicates and non-terminal statuses
// are dropped.
func (h *Handle[F, R]) onResult(res wire.Result[R]) {
	if !res.Status.Terminal() {
		h.logger.Warn("dropping result with non-terminal status", "goal", h.goalID, "status", res.Status)
		return
	}

	h.mu.Lock()
	if h.resolved {
		h.mu.Unlock()
		return
	}
	h.resolved = true
	h.status = res.Status
	h.result = res
	h.observers = nil
	fbSub, resSub := h.fbSub, h.resSub
	h.mu.Unlock()

	close(h.done)
	if err := releaseSubs(fbSub, resSub); err != nil {
		h.logger.Warn("failed to release goal subscriptions", "goal", h.goalID, "error", err)
	}
	if h.onDone != nil {
		h.onDone()
	}
}

// abandon resolves the handle with err without a wire result. Status keeps
// its last observed value.
func (h *Handle[F, R]) abandon(err error) error {
	h.mu.Lock()
	if h.resolved {
		h.mu.Unlock()
		return nil
	}
	h.resolved = true
	h.failErr = err
	h.observers = nil
	fbSub, resSub := h.fbSub, h.resSub
	h.mu.Unlock()

	close(h.done)
	return releaseSubs(fbSub, resSub)
}

func releaseSubs(subs ...*bus.Subscription) error {
	var errs []error
	for _, s := range subs {
		if s == nil {
			continue
		}
		if err := s.Unsubscribe(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
