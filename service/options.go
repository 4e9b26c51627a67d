package service

import "log/slog"

type clientConfig struct {
	name   string
	logger *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*clientConfig)

// WithClientName sets the correlation id prefix. At most
// wire.MaxClientNameLength characters; must be unique among clients sharing
// a service if call volumes make collisions likely.
func WithClientName(name string) ClientOption {
	return func(c *clientConfig) { c.name = name }
}

// WithClientLogger overrides the node's logger for this client.
func WithClientLogger(l *slog.Logger) ClientOption {
	return func(c *clientConfig) { c.logger = l }
}

type serverConfig struct {
	logger *slog.Logger
}

// ServerOption configures a Server.
type ServerOption func(*serverConfig)

// WithServerLogger overrides the node's logger for this server.
func WithServerLogger(l *slog.Logger) ServerOption {
	return func(c *serverConfig) { c.logger = l }
}
