// Package config loads node settings from a YAML file with environment
// overrides, and assembles configured nodes. Absent file fields keep their
// defaults; environment variables win over the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	lcmerr "github.com/KosmosisDire/LCMware/contract/errors"
)

// Config is the full node configuration.
type Config struct {
	Transport Transport `yaml:"transport"`
	Node      Node      `yaml:"node"`
	Tap       Tap       `yaml:"tap"`
}

// Transport selects and parameterizes the pub/sub substrate.
type Transport struct {
	Kind     string `yaml:"kind"` // inmemory, nats, redis, rabbitmq
	URL      string `yaml:"url"`  // nats and rabbitmq
	Addr     string `yaml:"addr"` // redis
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Exchange string `yaml:"exchange"` // rabbitmq
}

// Node tunes the bus itself.
type Node struct {
	QueueDepth       int    `yaml:"queueDepth"`
	Codec            string `yaml:"codec"` // json or cbor
	MetricsNamespace string `yaml:"metricsNamespace"`
}

// Tap configures optional traffic mirroring.
type Tap struct {
	Kafka *KafkaTap `yaml:"kafka"`
}

// KafkaTap configures the Kafka firehose sink.
type KafkaTap struct {
	Brokers  []string `yaml:"brokers"`
	Topic    string   `yaml:"topic"`
	ClientID string   `yaml:"clientId"`
}

// Default returns the configuration used when nothing is specified: an
// in-process transport, JSON payloads, the stock queue depth, no metrics, no
// tap.
func Default() Config {
	return Config{
		Transport: Transport{Kind: "inmemory"},
		Node:      Node{QueueDepth: 1024, Codec: "json"},
	}
}

// Load reads path (when non-empty) over the defaults, applies environment
// overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config %s: %w", path, errors.Join(lcmerr.ErrInvalidArgument, err))
		}
	}

	applyEnv(&cfg)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := envString("LCMWARE_TRANSPORT"); v != "" {
		cfg.Transport.Kind = v
	}
	if v := envString("LCMWARE_TRANSPORT_URL"); v != "" {
		cfg.Transport.URL = v
	}
	if v := envString("LCMWARE_REDIS_ADDR"); v != "" {
		cfg.Transport.Addr = v
	}
	if v := envString("LCMWARE_CODEC"); v != "" {
		cfg.Node.Codec = v
	}
	cfg.Node.QueueDepth = envIntWithFallback("LCMWARE_QUEUE_DEPTH", cfg.Node.QueueDepth)
}

func (c Config) validate() error {
	switch strings.ToLower(c.Transport.Kind) {
	case "", "inmemory", "nats", "redis", "rabbitmq":
	default:
		return fmt.Errorf("config: %w: unknown transport %q", lcmerr.ErrInvalidArgument, c.Transport.Kind)
	}

	switch strings.ToLower(c.Node.Codec) {
	case "", "json", "cbor":
	default:
		return fmt.Errorf("config: %w: unknown codec %q", lcmerr.ErrInvalidArgument, c.Node.Codec)
	}

	if c.Node.QueueDepth <= 0 {
		return fmt.Errorf("config: %w: queue depth %d", lcmerr.ErrInvalidArgument, c.Node.QueueDepth)
	}

	return nil
}

func envString(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func envIntWithFallback(key string, fallback int) int {
	raw := envString(key)
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}
