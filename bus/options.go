package bus

import (
	"log/slog"

	"github.com/KosmosisDire/LCMware/codec"
	"github.com/KosmosisDire/LCMware/metrics"
	"github.com/KosmosisDire/LCMware/tap"
)

// Option configures a Bus at construction time.
type Option func(*Bus)

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(b *Bus) { b.logger = l }
}

// WithCodec sets the payload codec. Defaults to codec.JSON(). Every node
// sharing a channel must agree on the codec.
func WithCodec(c codec.Codec) Option {
	return func(b *Bus) {
		if c != nil {
			b.cdc = c
		}
	}
}

// WithQueueDepth bounds the inbound queue; messages arriving while it is
// full are dropped. Defaults to 1024.
func WithQueueDepth(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.depth = n
		}
	}
}

// WithTap attaches a sink that sees every published and dispatched payload.
func WithTap(s tap.Sink) Option {
	return func(b *Bus) { b.sink = s }
}

// WithMetrics attaches Prometheus instrumentation.
func WithMetrics(m *metrics.Set) Option {
	return func(b *Bus) { b.met = m }
}
