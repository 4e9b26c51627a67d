package action

import (
	"context"
	"fmt"
	"sync"

	"github.com/KosmosisDire/LCMware/bus"
	lcmerr "github.com/KosmosisDire/LCMware/contract/errors"
	"github.com/KosmosisDire/LCMware/wire"
)

// FeedbackWriter streams typed progress for one goal. The server hands one
// to the goal handler; it stays usable from any goroutine the handler spawns
// until the goal's result is published, after which Send fails.
type FeedbackWriter[F any] struct {
	b       *bus.Bus
	channel string
	goalID  string

	mu   sync.Mutex
	done bool
}

func newFeedbackWriter[F any](b *bus.Bus, action, goalID string) *FeedbackWriter[F] {
	return &FeedbackWriter[F]{
		b:       b,
		channel: wire.FeedbackChannel(action, goalID),
		goalID:  goalID,
	}
}

// GoalID returns the goal this writer belongs to.
func (w *FeedbackWriter[F]) GoalID() string { return w.goalID }

// Send publishes one feedback message. Once the goal's result is out it
// fails with ErrClosed; nothing is ever emitted for a finished goal.
func (w *FeedbackWriter[F]) Send(ctx context.Context, fb F) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.done {
		return fmt.Errorf("feedback for finished goal %s: %w", w.goalID, lcmerr.ErrClosed)
	}

	env := wire.Feedback[F]{Header: wire.NewHeader(w.goalID), Payload: fb}
	if err := w.b.Publish(ctx, w.channel, env); err != nil {
		return fmt.Errorf("feedback for goal %s: %w", w.goalID, err)
	}
	w.b.Metrics().FeedbackPublished()

	return nil
}

// seal rejects all future sends. Called right before the result goes out.
func (w *FeedbackWriter[F]) seal() {
	w.mu.Lock()
	w.done = true
	w.mu.Unlock()
}
