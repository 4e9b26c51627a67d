package action

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/KosmosisDire/LCMware/bus"
	lcmerr "github.com/KosmosisDire/LCMware/contract/errors"
	"github.com/KosmosisDire/LCMware/wire"
)

// GoalHandler executes one goal. ctx is canceled when the goal is asked to
// stop or the server shuts down; a handler that notices and returns an error
// finishes the goal as StatusCanceled. Returning nil finishes it as
// StatusSucceeded with the returned payload; any other error finishes it as
// StatusAborted. fb streams progress to the caller.
type GoalHandler[G, F, R any] func(ctx context.Context, goal G, fb *FeedbackWriter[F]) (R, error)

// Server executes goals submitted to one action channel, each in its own
// goroutine. Every accepted goal ends with exactly one result message,
// whatever the handler does.
type Server[G, F, R any] struct {
	b      *bus.Bus
	action string
	h      GoalHandler[G, F, R]
	logger *slog.Logger
	sem    chan struct{} // bounds concurrent executions; nil = unbounded

	mu        sync.Mutex
	active    map[string]*activeGoal
	goalSub   *bus.Subscription
	cancelSub *bus.Subscription
	life      context.Context
	stop      context.CancelFunc
	wg        sync.WaitGroup
}

// activeGoal is one execution in flight. canceled is guarded by Server.mu.
type activeGoal struct {
	cancel   context.CancelFunc
	canceled bool
}

// NewServer binds handler to the action at channel. Call Start to begin
// accepting goals.
func NewServer[G, F, R any](b *bus.Bus, channel string, handler GoalHandler[G, F, R], opts ...ServerOption) (*Server[G, F, R], error) {
	if b == nil {
		return nil, fmt.Errorf("action server: %w: nil bus", lcmerr.ErrInvalidArgument)
	}
	if err := wire.ValidateChannel(channel); err != nil {
		return nil, fmt.Errorf("action server: %w", err)
	}
	if handler == nil {
		return nil, fmt.Errorf("action server %q: %w: nil handler", channel, lcmerr.ErrInvalidArgument)
	}

	var cfg serverConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	logger := cfg.logger
	if logger == nil {
		logger = b.Logger()
	}
	var sem chan struct{}
	if cfg.maxConcurrent > 0 {
		sem = make(chan struct{}, cfg.maxConcurrent)
	}

	return &Server[G, F, R]{
		b:      b,
		action: channel,
		h:      handler,
		logger: logger,
		sem:    sem,
		active: make(map[string]*activeGoal),
	}, nil
}

// Channel returns the action channel the server executes for.
func (s *Server[G, F, R]) Channel() string { return s.action }

// ActiveGoals returns the ids of the goals currently held by the server.
func (s *Server[G, F, R]) ActiveGoals() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.active))
	for id := range s.active {
		ids = append(ids, id)
	}
	return ids
}

// Start subscribes to the goal and cancel channels. Starting twice without a
// Close in between fails with ErrAlreadyStarted.
func (s *Server[G, F, R]) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.goalSub != nil {
		return fmt.Errorf("action server %q: %w", s.action, lcmerr.ErrAlreadyStarted)
	}

	goalSub, err := bus.Subscribe(s.b, wire.GoalChannel(s.action), s.onGoal)
	if err != nil {
		return fmt.Errorf("action server %q: %w", s.action, err)
	}
	cancelSub, err := bus.Subscribe(s.b, wire.CancelChannel(s.action), s.onCancel)
	if err != nil {
		_ = goalSub.Unsubscribe()
		return fmt.Errorf("action server %q: %w", s.action, err)
	}

	s.goalSub = goalSub
	s.cancelSub = cancelSub
	s.life, s.stop = context.WithCancel(context.Background())
	s.logger.Info("action server started", "channel", s.action)

	return nil
}

// Close stops accepting goals, cancels the context of every execution in
// flight and waits until each has published its result. Idempotent.
func (s *Server[G, F, R]) Close() error {
	s.mu.Lock()
	goalSub, cancelSub := s.goalSub, s.cancelSub
	stop := s.stop
	s.goalSub, s.cancelSub, s.stop = nil, nil, nil
	s.mu.Unlock()

	if goalSub == nil {
		return nil
	}

	err := releaseSubs(goalSub, cancelSub)
	stop()
	s.wg.Wait()

	return err
}

// onGoal runs on the dispatch goroutine for every submitted goal.
func (s *Server[G, F, R]) onGoal(_ context.Context, g wire.Goal[G]) {
	id := g.Header.ID
	if id == "" {
		s.logger.Warn("dropping goal without id", "channel", s.action)
		return
	}

	s.mu.Lock()
	if s.stop == nil {
		s.mu.Unlock()
		s.logger.Debug("server stopped, dropping goal", "channel", s.action, "goal", id)
		return
	}
	if _, exists := s.active[id]; exists {
		s.mu.Unlock()
		s.logger.Warn("duplicate goal id, ignoring", "channel", s.action, "goal", id)
		return
	}
	gctx, cancel := context.WithCancel(s.life)
	s.active[id] = &activeGoal{cancel: cancel}
	s.wg.Add(1)
	s.mu.Unlock()

	s.logger.Info("goal accepted", "channel", s.action, "goal", id)
	s.b.Metrics().GoalStarted()

	go s.execute(gctx, id, g.Payload)
}

// onCancel runs on the dispatch goroutine. An empty goal id cancels every
// goal the server currently holds; unknown ids are a no-op.
func (s *Server[G, F, R]) onCancel(_ context.Context, c wire.Cancel) {
	if c.GoalID == "" {
		s.mu.Lock()
		cancels := make([]context.CancelFunc, 0, len(s.active))
		for _, ag := range s.active {
			ag.canceled = true
			cancels = append(cancels, ag.cancel)
		}
		s.mu.Unlock()

		s.logger.Info("cancel requested for all goals", "channel", s.action, "count", len(cancels))
		for _, cancel := range cancels {
			cancel()
		}
		return
	}

	s.mu.Lock()
	ag := s.active[c.GoalID]
	if ag != nil {
		ag.canceled = true
	}
	s.mu.Unlock()

	if ag == nil {
		s.logger.Debug("cancel for unknown goal", "channel", s.action, "goal", c.GoalID)
		return
	}
	s.logger.Info("cancel requested", "channel", s.action, "goal", c.GoalID)
	ag.cancel()
}

func (s *Server[G, F, R]) execute(ctx context.Context, id string, goal G) {
	defer s.wg.Done()

	fb := newFeedbackWriter[F](s.b, s.action, id)

	var (
		payload R
		err     error
	)
	if s.sem != nil {
		select {
		case s.sem <- struct{}{}:
			payload, err = s.invoke(ctx, goal, fb)
			<-s.sem
		case <-ctx.Done():
			err = ctx.Err()
		}
	} else {
		payload, err = s.invoke(ctx, goal, fb)
	}

	s.mu.Lock()
	ag := s.active[id]
	wasCanceled := ag != nil && ag.canceled
	delete(s.active, id)
	s.mu.Unlock()

	res := wire.Result[R]{Header: wire.NewHeader(id)}
	switch {
	case err == nil:
		res.Status = wire.StatusSucceeded
		res.Payload = payload
	case wasCanceled || ctx.Err() != nil:
		res.Status = wire.StatusCanceled
		res.Message = err.Error()
		if errors.Is(err, context.Canceled) {
			res.Message = "goal canceled"
		}
	default:
		res.Status = wire.StatusAborted
		res.Message = err.Error()
		if res.Message == "" {
			res.Message = "handler failed"
		}
	}

	// nothing may be emitted for this goal after its result
	fb.seal()

	if pubErr := s.b.Publish(context.Background(), wire.ResultChannel(s.action, id), res); pubErr != nil {
		s.logger.Error("failed to publish result", "channel", s.action, "goal", id, "error", pubErr)
	}
	s.b.Metrics().GoalFinished(res.Status.String())
	s.logger.Info("goal finished", "channel", s.action, "goal", id, "status", res.Status.String())
}

// invoke runs the handler, converting a panic into an error.
func (s *Server[G, F, R]) invoke(ctx context.Context, goal G, fb *FeedbackWriter[F]) (payload R, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()

	return s.h(ctx, goal, fb)
}
