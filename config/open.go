package config

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/KosmosisDire/LCMware/adapters/inmemory"
	"github.com/KosmosisDire/LCMware/adapters/nats"
	"github.com/KosmosisDire/LCMware/adapters/rabbitmq"
	"github.com/KosmosisDire/LCMware/adapters/redisbus"
	"github.com/KosmosisDire/LCMware/bus"
	"github.com/KosmosisDire/LCMware/codec"
	lcmerr "github.com/KosmosisDire/LCMware/contract/errors"
	"github.com/KosmosisDire/LCMware/contract/transport"
	"github.com/KosmosisDire/LCMware/metrics"
	"github.com/KosmosisDire/LCMware/tap/kafkatap"
)

// Open builds the transport cfg names.
func Open(ctx context.Context, cfg Config) (transport.Transport, error) {
	switch strings.ToLower(cfg.Transport.Kind) {
	case "", "inmemory":
		return inmemory.New(), nil
	case "nats":
		return nats.New(nats.Config{URL: cfg.Transport.URL})
	case "redis":
		return redisbus.New(ctx, redisbus.Config{
			Addr:     cfg.Transport.Addr,
			Password: cfg.Transport.Password,
			DB:       cfg.Transport.DB,
		})
	case "rabbitmq":
		return rabbitmq.New(rabbitmq.Config{URL: cfg.Transport.URL, Exchange: cfg.Transport.Exchange})
	default:
		return nil, fmt.Errorf("config: %w: unknown transport %q", lcmerr.ErrInvalidArgument, cfg.Transport.Kind)
	}
}

// OpenCodec builds the payload codec cfg names.
func OpenCodec(cfg Config) (codec.Codec, error) {
	switch strings.ToLower(cfg.Node.Codec) {
	case "", "json":
		return codec.JSON(), nil
	case "cbor":
		return codec.CBOR()
	default:
		return nil, fmt.Errorf("config: %w: unknown codec %q", lcmerr.ErrInvalidArgument, cfg.Node.Codec)
	}
}

// NewNode assembles a ready bus node from cfg: transport, codec, queue
// depth, optional prometheus metrics and optional Kafka tap. The returned
// cleanup tears everything down in reverse order.
func NewNode(ctx context.Context, cfg Config, logger *slog.Logger) (*bus.Bus, func(), error) {
	if logger == nil {
		logger = slog.Default()
	}

	tr, err := Open(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	cdc, err := OpenCodec(cfg)
	if err != nil {
		_ = tr.Close()
		return nil, nil, err
	}

	opts := []bus.Option{
		bus.WithLogger(logger),
		bus.WithCodec(cdc),
		bus.WithQueueDepth(cfg.Node.QueueDepth),
	}

	if ns := cfg.Node.MetricsNamespace; ns != "" {
		set := metrics.New(ns)
		if err := set.Register(prometheus.DefaultRegisterer); err != nil {
			_ = tr.Close()
			return nil, nil, fmt.Errorf("config: register metrics: %w", err)
		}
		opts = append(opts, bus.WithMetrics(set))
	}

	var sink *kafkatap.Sink
	if kt := cfg.Tap.Kafka; kt != nil {
		sink, err = kafkatap.New(kafkatap.Config{
			Brokers:  kt.Brokers,
			Topic:    kt.Topic,
			ClientID: kt.ClientID,
		}, logger)
		if err != nil {
			_ = tr.Close()
			return nil, nil, err
		}
		opts = append(opts, bus.WithTap(sink))
	}

	b, err := bus.New(tr, opts...)
	if err != nil {
		if sink != nil {
			_ = sink.Close(ctx)
		}
		_ = tr.Close()
		return nil, nil, err
	}

	cleanup := func() {
		_ = b.Close()
		if sink != nil {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			_ = sink.Close(flushCtx)
			cancel()
		}
		_ = tr.Close()
	}

	return b, cleanup, nil
}
