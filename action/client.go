package action

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/KosmosisDire/LCMware/bus"
	lcmerr "github.com/KosmosisDire/LCMware/contract/errors"
	"github.com/KosmosisDire/LCMware/wire"
)

// Client submits goals to one action channel and hands back a Handle per
// goal. Safe for concurrent use; any number of goals may be in flight.
type Client[G, F, R any] struct {
	b      *bus.Bus
	action string
	ids    *wire.IDSource
	logger *slog.Logger

	mu      sync.Mutex
	handles map[string]*Handle[F, R]
	closed  bool
}

// NewClient binds a client to the action at channel. Without WithClientName
// a short random name is generated for the goal id prefix.
func NewClient[G, F, R any](b *bus.Bus, channel string, opts ...ClientOption) (*Client[G, F, R], error) {
	if b == nil {
		return nil, fmt.Errorf("action client: %w: nil bus", lcmerr.ErrInvalidArgument)
	}
	if err := wire.ValidateChannel(channel); err != nil {
		return nil, fmt.Errorf("action client: %w", err)
	}

	var cfg clientConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	name := cfg.name
	if name == "" {
		name = wire.RandomClientName("act")
	}
	ids, err := wire.NewIDSource(name)
	if err != nil {
		return nil, fmt.Errorf("action client: %w", err)
	}
	logger := cfg.logger
	if logger == nil {
		logger = b.Logger()
	}

	return &Client[G, F, R]{
		b:       b,
		action:  channel,
		ids:     ids,
		logger:  logger,
		handles: make(map[string]*Handle[F, R]),
	}, nil
}

// Channel returns the action channel the client submits to.
func (c *Client[G, F, R]) Channel() string { return c.action }

// Name returns the client name used as the goal id prefix.
func (c *Client[G, F, R]) Name() string { return c.ids.Name() }

// SendGoal submits goal and returns its Handle without waiting for the
// server. Feedback and result subscriptions are live before the goal is
// published, so nothing can be missed in between.
func (c *Client[G, F, R]) SendGoal(ctx context.Context, goal G) (*Handle[F, R], error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, fmt.Errorf("send goal on %q: %w", c.action, lcmerr.ErrClosed)
	}
	c.mu.Unlock()

	goalID := c.ids.Next()
	h := newHandle[F, R](c.b, c.action, goalID, c.logger, func() { c.forget(goalID) })

	fbChannel := wire.FeedbackChannel(c.action, goalID)
	fbSub, err := bus.Subscribe(c.b, fbChannel, func(_ context.Context, fb wire.Feedback[F]) {
		if fb.Header.ID != goalID {
			c.logger.Debug("dropping feedback with foreign id", "channel", fbChannel, "id", fb.Header.ID)
			return
		}
		h.onFeedback(fb.Payload)
	})
	if err != nil {
		return nil, fmt.Errorf("send goal on %q: %w", c.action, err)
	}

	resChannel := wire.ResultChannel(c.action, goalID)
	resSub, err := bus.Subscribe(c.b, resChannel, func(_ context.Context, res wire.Result[R]) {
		if res.Header.ID != goalID {
			c.logger.Debug("dropping result with foreign id", "channel", resChannel, "id", res.Header.ID)
			return
		}
		h.onResult(res)
	})
	if err != nil {
		_ = fbSub.Unsubscribe()
		return nil, fmt.Errorf("send goal on %q: %w", c.action, err)
	}
	h.setSubs(fbSub, resSub)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = releaseSubs(fbSub, resSub)
		return nil, fmt.Errorf("send goal on %q: %w", c.action, lcmerr.ErrClosed)
	}
	c.handles[goalID] = h
	c.mu.Unlock()

	env := wire.Goal[G]{Header: wire.NewHeader(goalID), Payload: goal}
	if err := c.b.Publish(ctx, wire.GoalChannel(c.action), env); err != nil {
		c.forget(goalID)
		_ = h.abandon(err)
		return nil, fmt.Errorf("send goal on %q: %w", c.action, err)
	}
	c.logger.Debug("goal sent", "channel", c.action, "goal", goalID)

	return h, nil
}

// CancelAll asks the server to stop every goal it currently holds, not just
// this client's. Best-effort and asynchronous, like Handle.Cancel.
func (c *Client[G, F, R]) CancelAll(ctx context.Context) error {
	if err := c.b.Publish(ctx, wire.CancelChannel(c.action), wire.NewCancel("")); err != nil {
		return fmt.Errorf("cancel all on %q: %w", c.action, err)
	}
	return nil
}

func (c *Client[G, F, R]) forget(goalID string) {
	c.mu.Lock()
	delete(c.handles, goalID)
	c.mu.Unlock()
}

// Close abandons every outstanding goal: their subscriptions are released
// and pending Result calls fail with ErrClosed. Close neither cancels goals
// on the server nor touches the bus. Idempotent.
func (c *Client[G, F, R]) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	hs := make([]*Handle[F, R], 0, len(c.handles))
	for _, h := range c.handles {
		hs = append(hs, h)
	}
	c.handles = make(map[string]*Handle[F, R])
	c.mu.Unlock()

	var errs []error
	for _, h := range hs {
		err := h.abandon(fmt.Errorf("goal %s abandoned: %w", h.GoalID(), lcmerr.ErrClosed))
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
