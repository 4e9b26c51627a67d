// Package inmemory provides a process-local Transport: exact-channel fan-out
// with no network. It backs tests, examples and single-process deployments;
// several Bus nodes may share one Transport to reach each other.
package inmemory

import (
	"context"
	"errors"
	"sync"

	"github.com/KosmosisDire/LCMware/contract/transport"
)

var errClosed = errors.New("inmemory: transport closed")

// Transport is a thread-safe in-memory implementation of
// transport.Transport. Publish delivers synchronously, in the caller's
// goroutine, to every live subscription whose channel matches exactly.
type Transport struct {
	mu     sync.RWMutex
	subs   map[string]map[uint64]transport.Handler
	nextID uint64
	closed bool
}

// Ensure Transport implements the contract.
var _ transport.Transport = (*Transport)(nil)

// New creates an empty in-memory transport.
func New() *Transport {
	return &Transport{subs: make(map[string]map[uint64]transport.Handler)}
}

// Publish delivers payload to current subscribers of channel. Absent
// subscribers mean the message is simply gone, like on a real bus.
func (t *Transport) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.RLock()
	if t.closed {
		t.mu.RUnlock()
		return errClosed
	}
	handlers := make([]transport.Handler, 0, len(t.subs[channel]))
	for _, h := range t.subs[channel] {
		handlers = append(handlers, h)
	}
	t.mu.RUnlock()

	for _, h := range handlers {
		h(channel, payload)
	}

	return nil
}

// Subscribe registers h for channel until the returned subscription is
// released.
func (t *Transport) Subscribe(channel string, h transport.Handler) (transport.Subscription, error) {
	if h == nil {
		return nil, errors.New("inmemory: nil handler")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, errClosed
	}

	byID := t.subs[channel]
	if byID == nil {
		byID = make(map[uint64]transport.Handler)
		t.subs[channel] = byID
	}
	t.nextID++
	byID[t.nextID] = h

	return &subscription{t: t, channel: channel, id: t.nextID}, nil
}

// Close drops every subscription and rejects further use.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closed = true
	t.subs = make(map[string]map[uint64]transport.Handler)

	return nil
}

type subscription struct {
	t       *Transport
	channel string
	id      uint64
}

func (s *subscription) Channel() string { return s.channel }

func (s *subscription) Unsubscribe() error {
	s.t.mu.Lock()
	defer s.t.mu.Unlock()

	byID := s.t.subs[s.channel]
	if byID == nil {
		return nil
	}
	delete(byID, s.id)
	if len(byID) == 0 {
		delete(s.t.subs, s.channel)
	}

	return nil
}
