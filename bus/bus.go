package bus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/KosmosisDire/LCMware/codec"
	lcmerr "github.com/KosmosisDire/LCMware/contract/errors"
	"github.com/KosmosisDire/LCMware/contract/transport"
	"github.com/KosmosisDire/LCMware/metrics"
	"github.com/KosmosisDire/LCMware/tap"
)

const defaultQueueDepth = 1024

// Bus is the dispatch node above one Transport. It is concurrency-safe and
// contains no global state; construct one per process (or per transport) and
// inject it into clients and servers.
//
// Delivery is best-effort, matching the substrate: when the inbound queue is
// full the message is dropped and counted, never blocked on.
type Bus struct {
	tr     transport.Transport
	cdc    codec.Codec
	logger *slog.Logger
	sink   tap.Sink
	met    *metrics.Set
	depth  int

	queue chan inbound

	mu     sync.Mutex
	subs   map[string]*channelSub
	nextID uint64
	closed bool

	life   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type inbound struct {
	channel string
	payload []byte
}

// New constructs a node over tr and starts its dispatch loop. The caller
// keeps ownership of tr: Close stops the node without closing the transport.
func New(tr transport.Transport, opts ...Option) (*Bus, error) {
	if tr == nil {
		return nil, fmt.Errorf("new bus: %w: nil transport", lcmerr.ErrInvalidArgument)
	}

	b := &Bus{
		tr:    tr,
		cdc:   codec.JSON(),
		depth: defaultQueueDepth,
		subs:  make(map[string]*channelSub),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}

	b.queue = make(chan inbound, b.depth)
	b.life, b.cancel = context.WithCancel(context.Background())

	b.wg.Add(1)
	go b.run()

	return b, nil
}

// Done is closed when the node shuts down. Blocking waiters select on it to
// fail fast with ErrClosed instead of sitting out their timeouts.
func (b *Bus) Done() <-chan struct{} { return b.life.Done() }

// Logger returns the node's logger, for components that share it.
func (b *Bus) Logger() *slog.Logger { return b.logger }

// Metrics returns the node's metric set; nil when instrumentation is off.
func (b *Bus) Metrics() *metrics.Set { return b.met }

// Publish encodes v and sends it on channel.
func (b *Bus) Publish(ctx context.Context, channel string, v any) error {
	if channel == "" {
		return fmt.Errorf("publish: %w: empty channel", lcmerr.ErrInvalidArgument)
	}

	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return fmt.Errorf("publish to %q: %w", channel, lcmerr.ErrClosed)
	}

	raw, err := b.cdc.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode for %q: %w", channel, errors.Join(lcmerr.ErrSerializationFailed, err))
	}

	if b.sink != nil {
		b.sink.Record(tap.Entry{Time: time.Now(), Direction: tap.Outbound, Channel: channel, Payload: raw})
	}

	if err := b.tr.Publish(ctx, channel, raw); err != nil {
		return fmt.Errorf("publish to %q: %w", channel, errors.Join(lcmerr.ErrTransportFailed, err))
	}
	b.met.MessagePublished()

	return nil
}

// Close stops the dispatch loop and releases every subscription. It does not
// close the transport. Safe to call more than once.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true

	stale := make([]transport.Subscription, 0, len(b.subs))
	for _, cs := range b.subs {
		stale = append(stale, cs.tsub)
	}
	b.subs = make(map[string]*channelSub)
	b.mu.Unlock()

	b.cancel()
	b.wg.Wait()

	var errs []error
	for _, ts := range stale {
		if err := ts.Unsubscribe(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// onInbound is the transport delivery callback. It must not block: the
// message is queued for the dispatch loop or dropped.
func (b *Bus) onInbound(channel string, payload []byte) {
	select {
	case b.queue <- inbound{channel: channel, payload: payload}:
	default:
		b.met.MessageDropped()
		b.logger.Warn("inbound queue full, dropping message", "channel", channel)
	}
}

func (b *Bus) run() {
	defer b.wg.Done()

	for {
		select {
		case <-b.life.Done():
			return
		case m := <-b.queue:
			b.dispatch(m)
		}
	}
}

func (b *Bus) dispatch(m inbound) {
	if b.sink != nil {
		b.sink.Record(tap.Entry{Time: time.Now(), Direction: tap.Inbound, Channel: m.channel, Payload: m.payload})
	}

	b.mu.Lock()
	var fns []func(context.Context, []byte)
	if cs := b.subs[m.channel]; cs != nil {
		fns = make([]func(context.Context, []byte), 0, len(cs.entries))
		for _, e := range cs.entries {
			fns = append(fns, e.fn)
		}
	}
	b.mu.Unlock()

	if len(fns) == 0 {
		return
	}
	b.met.MessageDispatched()

	for _, fn := range fns {
		b.invoke(m, fn)
	}
}

// invoke shields the dispatch loop from subscriber panics.
func (b *Bus) invoke(m inbound, fn func(context.Context, []byte)) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("subscriber panicked", "channel", m.channel, "panic", r)
		}
	}()

	fn(b.life, m.payload)
}
