package bus

import (
	"context"
	"errors"
	"fmt"

	lcmerr "github.com/KosmosisDire/LCMware/contract/errors"
	"github.com/KosmosisDire/LCMware/contract/transport"
)

type subEntry struct {
	id uint64
	fn func(context.Context, []byte)
}

// channelSub is one transport subscription shared by every registration on
// its channel. Guarded by Bus.mu.
type channelSub struct {
	tsub    transport.Subscription
	entries []subEntry
}

// Subscription is a live typed registration on one channel.
type Subscription struct {
	b       *Bus
	channel string
	id      uint64
}

// Channel returns the channel the subscription is bound to.
func (s *Subscription) Channel() string { return s.channel }

// Unsubscribe removes the registration; the underlying transport
// subscription is released when the last registration on the channel goes.
// Idempotent. A message already picked up by the dispatch loop may still be
// delivered while Unsubscribe runs.
func (s *Subscription) Unsubscribe() error {
	s.b.mu.Lock()
	cs := s.b.subs[s.channel]
	if cs == nil {
		s.b.mu.Unlock()
		return nil
	}

	idx := -1
	for i, e := range cs.entries {
		if e.id == s.id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.b.mu.Unlock()
		return nil
	}
	cs.entries = append(cs.entries[:idx], cs.entries[idx+1:]...)
	if len(cs.entries) > 0 {
		s.b.mu.Unlock()
		return nil
	}

	delete(s.b.subs, s.channel)
	ts := cs.tsub
	s.b.mu.Unlock()

	if err := ts.Unsubscribe(); err != nil {
		return fmt.Errorf("unsubscribe %q: %w", s.channel, errors.Join(lcmerr.ErrTransportFailed, err))
	}

	return nil
}

// Subscribe registers fn for messages on channel, decoding each payload into
// T first. fn runs on the dispatch goroutine: keep it quick, and never call
// a blocking bus operation from inside it. Undecodable payloads are dropped
// with a warning.
func Subscribe[T any](b *Bus, channel string, fn func(ctx context.Context, msg T)) (*Subscription, error) {
	if fn == nil {
		return nil, fmt.Errorf("subscribe %q: %w: nil callback", channel, lcmerr.ErrInvalidArgument)
	}

	raw := func(ctx context.Context, payload []byte) {
		var msg T
		if err := b.cdc.Unmarshal(payload, &msg); err != nil {
			b.logger.Warn("dropping undecodable message", "channel", channel, "error", err)
			return
		}
		fn(ctx, msg)
	}

	return b.subscribe(channel, raw)
}

func (b *Bus) subscribe(channel string, fn func(context.Context, []byte)) (*Subscription, error) {
	if channel == "" {
		return nil, fmt.Errorf("subscribe: %w: empty channel", lcmerr.ErrInvalidArgument)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, fmt.Errorf("subscribe %q: %w", channel, lcmerr.ErrClosed)
	}

	cs := b.subs[channel]
	if cs == nil {
		// first registration on this channel; may touch the network
		tsub, err := b.tr.Subscribe(channel, b.onInbound)
		if err != nil {
			return nil, fmt.Errorf("subscribe %q: %w", channel, errors.Join(lcmerr.ErrTransportFailed, err))
		}
		cs = &channelSub{tsub: tsub}
		b.subs[channel] = cs
	}

	b.nextID++
	cs.entries = append(cs.entries, subEntry{id: b.nextID, fn: fn})

	return &Subscription{b: b, channel: channel, id: b.nextID}, nil
}
