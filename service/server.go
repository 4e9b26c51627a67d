package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/KosmosisDire/LCMware/bus"
	lcmerr "github.com/KosmosisDire/LCMware/contract/errors"
	"github.com/KosmosisDire/LCMware/wire"
)

// Handler processes one request and returns the response payload or an
// error. It runs on the node's dispatch goroutine, one request at a time;
// long-running work belongs in an action, not a service.
type Handler[Req, Rsp any] func(ctx context.Context, req Req) (Rsp, error)

// Server answers calls on one service channel. Every request gets exactly
// one response: the handler's payload on success, its error message
// otherwise. A handler panic is converted into a failure response.
type Server[Req, Rsp any] struct {
	b       *bus.Bus
	channel string
	h       Handler[Req, Rsp]
	logger  *slog.Logger

	mu  sync.Mutex
	sub *bus.Subscription
}

// NewServer binds handler to the service at channel. Call Start to begin
// serving.
func NewServer[Req, Rsp any](b *bus.Bus, channel string, handler Handler[Req, Rsp], opts ...ServerOption) (*Server[Req, Rsp], error) {
	if b == nil {
		return nil, fmt.Errorf("service server: %w: nil bus", lcmerr.ErrInvalidArgument)
	}
	if err := wire.ValidateChannel(channel); err != nil {
		return nil, fmt.Errorf("service server: %w", err)
	}
	if handler == nil {
		return nil, fmt.Errorf("service server %q: %w: nil handler", channel, lcmerr.ErrInvalidArgument)
	}

	var cfg serverConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	logger := cfg.logger
	if logger == nil {
		logger = b.Logger()
	}

	return &Server[Req, Rsp]{b: b, channel: channel, h: handler, logger: logger}, nil
}

// Channel returns the service channel the server answers on.
func (s *Server[Req, Rsp]) Channel() string { return s.channel }

// Start subscribes to the request channel. Starting twice without a Close in
// between fails with ErrAlreadyStarted.
func (s *Server[Req, Rsp]) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sub != nil {
		return fmt.Errorf("service server %q: %w", s.channel, lcmerr.ErrAlreadyStarted)
	}
	sub, err := bus.Subscribe(s.b, wire.RequestChannel(s.channel), s.handle)
	if err != nil {
		return fmt.Errorf("service server %q: %w", s.channel, err)
	}
	s.sub = sub
	s.logger.Info("service server started", "channel", s.channel)

	return nil
}

// Close stops serving. Requests already picked up are still answered.
// Idempotent.
func (s *Server[Req, Rsp]) Close() error {
	s.mu.Lock()
	sub := s.sub
	s.sub = nil
	s.mu.Unlock()

	if sub == nil {
		return nil
	}
	return sub.Unsubscribe()
}

func (s *Server[Req, Rsp]) handle(ctx context.Context, req wire.Request[Req]) {
	id := req.Header.ID
	if id == "" {
		s.logger.Warn("dropping request without correlation id", "channel", s.channel)
		return
	}

	rsp := wire.Response[Rsp]{Header: wire.NewHeader(id)}
	payload, err := s.invoke(ctx, req.Payload)
	if err != nil {
		rsp.ErrorMessage = err.Error()
		s.logger.Warn("handler failed", "channel", s.channel, "id", id, "error", err)
	} else {
		rsp.Success = true
		rsp.Payload = payload
	}

	if err := s.b.Publish(ctx, wire.ResponseChannel(s.channel, id), rsp); err != nil {
		s.logger.Error("failed to publish response", "channel", s.channel, "id", id, "error", err)
	}
}

// invoke runs the handler, converting a panic into an error.
func (s *Server[Req, Rsp]) invoke(ctx context.Context, req Req) (rsp Rsp, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()

	return s.h(ctx, req)
}
