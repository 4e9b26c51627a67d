// Package rabbitmq runs bus traffic over a RabbitMQ topic exchange. Channel
// names map to routing keys by dropping the leading slash and replacing the
// remaining path separators with dots. Every subscription declares its own
// exclusive auto-delete queue bound to the exchange, so delivery is fan-out
// like the rest of the transports.
package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	lcmerr "github.com/KosmosisDire/LCMware/contract/errors"
	"github.com/KosmosisDire/LCMware/contract/transport"
)

const (
	defaultExchange = "lcmware"
	exchangeType    = "topic"
)

var errClosed = errors.New("rabbitmq: transport closed")

// Config carries the connection settings for New.
type Config struct {
	URL         string
	Exchange    string // defaults to "lcmware"
	ConnTimeout time.Duration
}

// Transport adapts an AMQP connection to the transport contract.
type Transport struct {
	exchange string
	conn     *amqp.Connection

	mu     sync.Mutex // AMQP channels are not safe for concurrent publish
	ch     *amqp.Channel
	closed bool
}

var _ transport.Transport = (*Transport)(nil)

// New dials RabbitMQ, opens the publisher channel and declares the exchange.
func New(cfg Config) (*Transport, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("rabbitmq transport: %w: url required", lcmerr.ErrInvalidArgument)
	}
	exchange := cfg.Exchange
	if exchange == "" {
		exchange = defaultExchange
	}

	conn, err := amqp.DialConfig(cfg.URL, amqp.Config{
		Locale:     "en_US",
		Properties: amqp.Table{"product": "lcmware"},
		Dial:       amqp.DefaultDial(cfg.ConnTimeout),
	})
	if err != nil {
		return nil, fmt.Errorf("rabbitmq transport: %w", errors.Join(lcmerr.ErrTransportFailed, err))
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq transport: %w", errors.Join(lcmerr.ErrTransportFailed, err))
	}

	if err := ch.ExchangeDeclare(exchange, exchangeType, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq transport: declare %q: %w", exchange, errors.Join(lcmerr.ErrTransportFailed, err))
	}

	return &Transport{exchange: exchange, conn: conn, ch: ch}, nil
}

// Publish sends payload to the exchange under channel's routing key.
func (t *Transport) Publish(ctx context.Context, channel string, payload []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return errClosed
	}

	err := t.ch.PublishWithContext(
		ctx,
		t.exchange,
		RoutingKey(channel),
		false,
		false,
		amqp.Publishing{
			ContentType: "application/octet-stream",
			Body:        payload,
		},
	)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return fmt.Errorf("rabbitmq publish %q: %w", channel, errors.Join(lcmerr.ErrTransportFailed, err))
	}

	return nil
}

// Subscribe binds a fresh exclusive queue to channel's routing key and
// pumps deliveries into h from a dedicated goroutine.
func (t *Transport) Subscribe(channel string, h transport.Handler) (transport.Subscription, error) {
	if h == nil {
		return nil, fmt.Errorf("rabbitmq subscribe %q: %w: nil handler", channel, lcmerr.ErrInvalidArgument)
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, errClosed
	}
	t.mu.Unlock()

	ch, err := t.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("rabbitmq subscribe %q: %w", channel, errors.Join(lcmerr.ErrTransportFailed, err))
	}

	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("rabbitmq subscribe %q: %w", channel, errors.Join(lcmerr.ErrTransportFailed, err))
	}

	if err := ch.QueueBind(q.Name, RoutingKey(channel), t.exchange, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("rabbitmq subscribe %q: %w", channel, errors.Join(lcmerr.ErrTransportFailed, err))
	}

	deliveries, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("rabbitmq subscribe %q: %w", channel, errors.Join(lcmerr.ErrTransportFailed, err))
	}

	go func() {
		for d := range deliveries {
			h(channel, d.Body)
		}
	}()

	return &subscription{channel: channel, ch: ch}, nil
}

// Close shuts the publisher channel and the connection; consumer channels
// close with the connection.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true

	var errs []error
	if err := t.ch.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := t.conn.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("rabbitmq close: %w", errors.Join(lcmerr.ErrTransportFailed, err))
	}

	return nil
}

// RoutingKey converts a bus channel name to an AMQP routing key.
func RoutingKey(channel string) string {
	return strings.ReplaceAll(strings.TrimPrefix(channel, "/"), "/", ".")
}

type subscription struct {
	channel string
	ch      *amqp.Channel

	mu     sync.Mutex
	closed bool
}

func (s *subscription) Channel() string { return s.channel }

// Unsubscribe closes the consumer channel; the exclusive queue is deleted by
// the server.
func (s *subscription) Unsubscribe() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if err := s.ch.Close(); err != nil {
		return fmt.Errorf("rabbitmq unsubscribe %q: %w", s.channel, errors.Join(lcmerr.ErrTransportFailed, err))
	}

	return nil
}
