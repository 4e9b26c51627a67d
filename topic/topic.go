// Package topic is typed fire-and-forget pub/sub over a bus node: one
// message type per channel, no correlation, no replies. Services and actions
// build their channel sets on top of the same primitives.
package topic

import (
	"context"
	"fmt"

	"github.com/KosmosisDire/LCMware/bus"
	lcmerr "github.com/KosmosisDire/LCMware/contract/errors"
	"github.com/KosmosisDire/LCMware/wire"
)

// Publisher publishes messages of one type to one channel.
type Publisher[T any] struct {
	b       *bus.Bus
	channel string
}

// NewPublisher binds a publisher to channel.
func NewPublisher[T any](b *bus.Bus, channel string) (*Publisher[T], error) {
	if b == nil {
		return nil, fmt.Errorf("topic publisher: %w: nil bus", lcmerr.ErrInvalidArgument)
	}
	if err := wire.ValidateChannel(channel); err != nil {
		return nil, fmt.Errorf("topic publisher: %w", err)
	}
	return &Publisher[T]{b: b, channel: channel}, nil
}

// Channel returns the channel the publisher writes to.
func (p *Publisher[T]) Channel() string { return p.channel }

// Publish encodes msg and hands it to the transport.
func (p *Publisher[T]) Publish(ctx context.Context, msg T) error {
	return p.b.Publish(ctx, p.channel, msg)
}

// Subscriber delivers messages of one type from one channel to a callback.
type Subscriber[T any] struct {
	sub *bus.Subscription
}

// NewSubscriber registers fn for channel. fn runs on the node's dispatch
// goroutine; undecodable payloads are dropped with a warning.
func NewSubscriber[T any](b *bus.Bus, channel string, fn func(ctx context.Context, msg T)) (*Subscriber[T], error) {
	if b == nil {
		return nil, fmt.Errorf("topic subscriber: %w: nil bus", lcmerr.ErrInvalidArgument)
	}
	if fn == nil {
		return nil, fmt.Errorf("topic subscriber %q: %w: nil callback", channel, lcmerr.ErrInvalidArgument)
	}

	sub, err := bus.Subscribe(b, channel, fn)
	if err != nil {
		return nil, fmt.Errorf("topic subscriber: %w", err)
	}
	return &Subscriber[T]{sub: sub}, nil
}

// Channel returns the channel the subscriber listens on.
func (s *Subscriber[T]) Channel() string { return s.sub.Channel() }

// Close stops delivery. Idempotent.
func (s *Subscriber[T]) Close() error { return s.sub.Unsubscribe() }
