package transport

import "context"

// Handler consumes raw payload bytes delivered on a channel. Adapters invoke
// it from their own receive goroutines; implementations must be safe for
// concurrent use and should return quickly (hand off, never block).
type Handler func(channel string, payload []byte)

// Transport abstracts the pub/sub substrate the bus node runs on.
// Library users provide an implementation that maps to NATS/Redis/RabbitMQ
// etc.; the core only ever performs connectionless publish/subscribe against
// exact channel strings.
//
// Delivery semantics are best-effort: no acknowledgement, no replay, and a
// message published while nobody is subscribed is gone. All correlation and
// lifecycle guarantees are layered above this interface.
type Transport interface {
	// Publish sends payload on the named channel.
	Publish(ctx context.Context, channel string, payload []byte) error

	// Subscribe registers h for messages arriving on the named channel.
	// Subscriptions to one channel are independent; each receives every
	// message. Channel matching is exact, there are no wildcards.
	Subscribe(channel string, h Handler) (Subscription, error)

	// Close releases the underlying connection. Existing subscriptions
	// become inert.
	Close() error
}
