package transport

// Subscription is a live registration on one channel.
// Implementations must be safe for concurrent use.
type Subscription interface {
	// Channel returns the channel string the subscription is bound to.
	Channel() string

	// Unsubscribe stops delivery to the handler. It is idempotent and safe
	// to call while messages are still arriving.
	Unsubscribe() error
}
