// Package kafkatap mirrors observed bus traffic into a Kafka topic, giving a
// durable firehose for offline inspection and replay. It implements
// tap.Sink; records are produced asynchronously so the node's hot path never
// waits on Kafka.
package kafkatap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/twmb/franz-go/pkg/kgo"

	lcmerr "github.com/KosmosisDire/LCMware/contract/errors"
	"github.com/KosmosisDire/LCMware/tap"
)

// Config carries the producer settings for New.
type Config struct {
	Brokers  []string
	Topic    string
	ClientID string
}

// Sink produces one Kafka record per observed message, keyed by channel so a
// channel's traffic stays ordered within its partition.
type Sink struct {
	cl     *kgo.Client
	topic  string
	logger *slog.Logger
}

var _ tap.Sink = (*Sink)(nil)

// New builds a sink producing to cfg.Topic. The client connects lazily on
// the first record.
func New(cfg Config, logger *slog.Logger) (*Sink, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka tap: %w: brokers required", lcmerr.ErrInvalidArgument)
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka tap: %w: topic required", lcmerr.ErrInvalidArgument)
	}
	if logger == nil {
		logger = slog.Default()
	}

	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
	}
	if cfg.ClientID != "" {
		opts = append(opts, kgo.ClientID(cfg.ClientID))
	}

	cl, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("kafka tap: %w", errors.Join(lcmerr.ErrTransportFailed, err))
	}

	return &Sink{cl: cl, topic: cfg.Topic, logger: logger}, nil
}

// Record queues one entry for production. Failures are logged and the entry
// is dropped; the tap never backpressures the bus.
func (s *Sink) Record(e tap.Entry) {
	rec := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(e.Channel),
		Value: e.Payload,
		Headers: []kgo.RecordHeader{
			{Key: "direction", Value: []byte(e.Direction.String())},
			{Key: "time_micros", Value: []byte(strconv.FormatInt(e.Time.UnixMicro(), 10))},
		},
	}

	channel := e.Channel
	s.cl.Produce(context.Background(), rec, func(_ *kgo.Record, err error) {
		if err != nil {
			s.logger.Warn("kafka tap record dropped", "channel", channel, "error", err)
		}
	})
}

// Close flushes buffered records and releases the client.
func (s *Sink) Close(ctx context.Context) error {
	defer s.cl.Close()

	if err := s.cl.Flush(ctx); err != nil {
		return fmt.Errorf("kafka tap flush: %w", err)
	}

	return nil
}
