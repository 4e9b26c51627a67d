package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/KosmosisDire/LCMware/bus"
	lcmerr "github.com/KosmosisDire/LCMware/contract/errors"
	"github.com/KosmosisDire/LCMware/pending"
	"github.com/KosmosisDire/LCMware/wire"
)

// Client issues typed calls against one service channel. It is safe for
// concurrent use; any number of calls may be outstanding at once.
type Client[Req, Rsp any] struct {
	b       *bus.Bus
	channel string
	ids     *wire.IDSource
	calls   *pending.Table[wire.Response[Rsp]]
	logger  *slog.Logger
}

// NewClient binds a client to the service at channel. Without WithClientName
// a short random name is generated for the correlation id prefix.
func NewClient[Req, Rsp any](b *bus.Bus, channel string, opts ...ClientOption) (*Client[Req, Rsp], error) {
	if b == nil {
		return nil, fmt.Errorf("service client: %w: nil bus", lcmerr.ErrInvalidArgument)
	}
	if err := wire.ValidateChannel(channel); err != nil {
		return nil, fmt.Errorf("service client: %w", err)
	}

	var cfg clientConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	name := cfg.name
	if name == "" {
		name = wire.RandomClientName("cli")
	}
	ids, err := wire.NewIDSource(name)
	if err != nil {
		return nil, fmt.Errorf("service client: %w", err)
	}
	logger := cfg.logger
	if logger == nil {
		logger = b.Logger()
	}

	return &Client[Req, Rsp]{
		b:       b,
		channel: channel,
		ids:     ids,
		calls:   pending.NewTable[wire.Response[Rsp]](),
		logger:  logger,
	}, nil
}

// Channel returns the service channel the client calls.
func (c *Client[Req, Rsp]) Channel() string { return c.channel }

// Name returns the client name used as the correlation id prefix.
func (c *Client[Req, Rsp]) Name() string { return c.ids.Name() }

// Call sends req and blocks until the response arrives, timeout elapses, ctx
// is canceled, or the node shuts down. timeout must be positive; waiting
// forever is not offered. A response arriving after Call has returned is
// dropped.
func (c *Client[Req, Rsp]) Call(ctx context.Context, req Req, timeout time.Duration) (Rsp, error) {
	var zero Rsp

	if timeout <= 0 {
		return zero, fmt.Errorf("call %q: %w: timeout %s", c.channel, lcmerr.ErrInvalidTimeout, timeout)
	}

	id := c.ids.Next()
	waiter, err := c.calls.Add(id)
	if err != nil {
		return zero, fmt.Errorf("call %q: %w", c.channel, err)
	}
	defer c.calls.Remove(id)

	// listen before sending so a fast responder cannot win the race
	rspChannel := wire.ResponseChannel(c.channel, id)
	sub, err := bus.Subscribe(c.b, rspChannel, func(_ context.Context, rsp wire.Response[Rsp]) {
		if rsp.Header.ID != id {
			c.logger.Debug("dropping response with foreign id", "channel", rspChannel, "id", rsp.Header.ID)
			return
		}
		if !c.calls.Resolve(id, rsp) {
			c.logger.Debug("dropping late response", "channel", rspChannel, "id", id)
		}
	})
	if err != nil {
		return zero, fmt.Errorf("call %q: %w", c.channel, err)
	}
	defer func() { _ = sub.Unsubscribe() }()

	met := c.b.Metrics()
	met.CallStarted()
	defer met.CallFinished()

	env := wire.Request[Req]{Header: wire.NewHeader(id), Payload: req}
	if err := c.b.Publish(ctx, wire.RequestChannel(c.channel), env); err != nil {
		return zero, fmt.Errorf("call %q: %w", c.channel, err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case rsp := <-waiter:
		if !rsp.Success {
			return zero, &lcmerr.RemoteError{Channel: c.channel, Message: rsp.ErrorMessage}
		}
		return rsp.Payload, nil
	case <-timer.C:
		met.CallTimedOut()
		return zero, &lcmerr.TimeoutError{Channel: c.channel, Wait: timeout}
	case <-ctx.Done():
		return zero, fmt.Errorf("call %q: %w", c.channel, ctx.Err())
	case <-c.b.Done():
		return zero, fmt.Errorf("call %q: %w", c.channel, lcmerr.ErrClosed)
	}
}
