package action

import "log/slog"

type clientConfig struct {
	name   string
	logger *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*clientConfig)

// WithClientName sets the prefix used for generated goal ids. Names are
// limited to wire.MaxClientNameLength characters.
func WithClientName(name string) ClientOption {
	return func(c *clientConfig) { c.name = name }
}

// WithClientLogger overrides the node's logger for this client.
func WithClientLogger(l *slog.Logger) ClientOption {
	return func(c *clientConfig) { c.logger = l }
}

type serverConfig struct {
	logger        *slog.Logger
	maxConcurrent int
}

// ServerOption configures a Server.
type ServerOption func(*serverConfig)

// WithServerLogger overrides the node's logger for this server.
func WithServerLogger(l *slog.Logger) ServerOption {
	return func(c *serverConfig) { c.logger = l }
}

// WithMaxConcurrent bounds how many goals run handlers at once. Further
// goals wait for a slot and can still be canceled while waiting. Zero or
// negative means unbounded.
func WithMaxConcurrent(n int) ServerOption {
	return func(c *serverConfig) { c.maxConcurrent = n }
}
