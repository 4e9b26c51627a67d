// Package nats runs bus traffic over a NATS server. Channel names map to
// subjects by dropping the leading slash and turning the remaining path
// separators into subject tokens, so "/demo/svc/add" publishes to
// "demo.svc.add".
package nats

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	lcmerr "github.com/KosmosisDire/LCMware/contract/errors"
	"github.com/KosmosisDire/LCMware/contract/transport"
)

// Config carries the connection settings for New.
type Config struct {
	URL           string
	Name          string
	ConnTimeout   time.Duration
	MaxReconnects int
}

// Transport adapts a NATS connection to the transport contract.
type Transport struct {
	nc    *nats.Conn
	owned bool
}

var _ transport.Transport = (*Transport)(nil)

// New connects to the NATS server in cfg. The transport owns the connection;
// Close drains and closes it.
func New(cfg Config) (*Transport, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("nats transport: %w: url required", lcmerr.ErrInvalidArgument)
	}

	opts := []nats.Option{}
	if cfg.Name != "" {
		opts = append(opts, nats.Name(cfg.Name))
	}

	if cfg.ConnTimeout > 0 {
		opts = append(opts, nats.Timeout(cfg.ConnTimeout))
	}

	if cfg.MaxReconnects != 0 {
		opts = append(opts, nats.MaxReconnects(cfg.MaxReconnects))
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats transport: %w", errors.Join(lcmerr.ErrTransportFailed, err))
	}

	return &Transport{nc: nc, owned: true}, nil
}

// NewWithConn wraps an existing connection. The caller keeps ownership;
// Close leaves the connection open.
func NewWithConn(nc *nats.Conn) (*Transport, error) {
	if nc == nil {
		return nil, fmt.Errorf("nats transport: %w: nil connection", lcmerr.ErrInvalidArgument)
	}

	return &Transport{nc: nc}, nil
}

// Publish sends payload to the subject for channel.
func (t *Transport) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := t.nc.Publish(Subject(channel), payload); err != nil {
		return fmt.Errorf("nats publish %q: %w", channel, errors.Join(lcmerr.ErrTransportFailed, err))
	}

	return nil
}

// Subscribe delivers every message on channel's subject to h. Delivery runs
// on the connection's callback goroutine; h must not block.
func (t *Transport) Subscribe(channel string, h transport.Handler) (transport.Subscription, error) {
	if h == nil {
		return nil, fmt.Errorf("nats subscribe %q: %w: nil handler", channel, lcmerr.ErrInvalidArgument)
	}

	sub, err := t.nc.Subscribe(Subject(channel), func(msg *nats.Msg) {
		h(channel, msg.Data)
	})
	if err != nil {
		return nil, fmt.Errorf("nats subscribe %q: %w", channel, errors.Join(lcmerr.ErrTransportFailed, err))
	}

	return &subscription{channel: channel, sub: sub}, nil
}

// Close drains and closes an owned connection; borrowed connections are left
// alone.
func (t *Transport) Close() error {
	if !t.owned || t.nc.IsClosed() {
		return nil
	}

	_ = t.nc.Drain() //nolint:errcheck // best-effort flush; the connection closes either way
	t.nc.Close()

	return nil
}

// Subject converts a bus channel name to a NATS subject.
func Subject(channel string) string {
	return strings.ReplaceAll(strings.TrimPrefix(channel, "/"), "/", ".")
}

type subscription struct {
	channel string
	sub     *nats.Subscription

	mu     sync.Mutex
	closed bool
}

func (s *subscription) Channel() string { return s.channel }

func (s *subscription) Unsubscribe() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if err := s.sub.Unsubscribe(); err != nil {
		return fmt.Errorf("nats unsubscribe %q: %w", s.channel, errors.Join(lcmerr.ErrTransportFailed, err))
	}

	return nil
}
