// Package redisbus runs bus traffic over Redis pub/sub. Channel names are
// used as Redis channels verbatim. Each subscription holds its own PubSub
// and a goroutine pumping its deliveries into the handler.
package redisbus

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	lcmerr "github.com/KosmosisDire/LCMware/contract/errors"
	"github.com/KosmosisDire/LCMware/contract/transport"
)

const subscriberBuffer = 1024

var errClosed = errors.New("redisbus: transport closed")

// Config carries the connection settings for New.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// Transport adapts a Redis client to the transport contract.
type Transport struct {
	client *redis.Client
	owned  bool

	mu     sync.Mutex
	subs   map[*subscription]struct{}
	closed bool
	wg     sync.WaitGroup
}

var _ transport.Transport = (*Transport)(nil)

// New connects to the Redis server in cfg and verifies the connection with a
// ping. The transport owns the client; Close closes it.
func New(ctx context.Context, cfg Config) (*Transport, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis transport: %w: addr required", lcmerr.ErrInvalidArgument)
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis transport: %w", errors.Join(lcmerr.ErrTransportFailed, err))
	}

	return &Transport{client: client, owned: true, subs: make(map[*subscription]struct{})}, nil
}

// NewWithClient wraps an existing client. The caller keeps ownership; Close
// releases the subscriptions but leaves the client open.
func NewWithClient(client *redis.Client) (*Transport, error) {
	if client == nil {
		return nil, fmt.Errorf("redis transport: %w: nil client", lcmerr.ErrInvalidArgument)
	}

	return &Transport{client: client, subs: make(map[*subscription]struct{})}, nil
}

// Publish sends payload on channel.
func (t *Transport) Publish(ctx context.Context, channel string, payload []byte) error {
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return errClosed
	}

	if err := t.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish %q: %w", channel, errors.Join(lcmerr.ErrTransportFailed, err))
	}

	return nil
}

// Subscribe opens a PubSub for channel and pumps its messages into h.
func (t *Transport) Subscribe(channel string, h transport.Handler) (transport.Subscription, error) {
	if h == nil {
		return nil, fmt.Errorf("redis subscribe %q: %w: nil handler", channel, lcmerr.ErrInvalidArgument)
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, errClosed
	}
	ps := t.client.Subscribe(context.Background(), channel)
	s := &subscription{t: t, channel: channel, sub: ps}
	t.subs[s] = struct{}{}
	t.wg.Add(1)
	t.mu.Unlock()

	go func() {
		defer t.wg.Done()

		msgs := ps.Channel(redis.WithChannelSize(subscriberBuffer))
		for msg := range msgs {
			h(channel, []byte(msg.Payload))
		}
	}()

	return s, nil
}

// Close releases every subscription, closes an owned client and waits for
// the pump goroutines to drain.
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	subs := make([]*subscription, 0, len(t.subs))
	for s := range t.subs {
		subs = append(subs, s)
	}
	t.subs = nil
	t.mu.Unlock()

	var errs []error
	for _, s := range subs {
		if err := s.Unsubscribe(); err != nil {
			errs = append(errs, err)
		}
	}
	if t.owned {
		if err := t.client.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	t.wg.Wait()

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("redis close: %w", err)
	}

	return nil
}

func (t *Transport) forget(s *subscription) {
	t.mu.Lock()
	if t.subs != nil {
		delete(t.subs, s)
	}
	t.mu.Unlock()
}

type subscription struct {
	t       *Transport
	channel string
	sub     *redis.PubSub

	mu     sync.Mutex
	closed bool
}

func (s *subscription) Channel() string { return s.channel }

func (s *subscription) Unsubscribe() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.t.forget(s)
	if err := s.sub.Close(); err != nil {
		return fmt.Errorf("redis unsubscribe %q: %w", s.channel, errors.Join(lcmerr.ErrTransportFailed, err))
	}

	return nil
}
