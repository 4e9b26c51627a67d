// Package memory builds ready-to-use in-process nodes. It is the quickest
// way to stand the stack up in tests and examples: one shared transport, one
// bus node, no network.
package memory

import (
	"github.com/KosmosisDire/LCMware/adapters/inmemory"
	"github.com/KosmosisDire/LCMware/bus"
)

// New constructs a bus node backed by a fresh in-memory transport and
// returns it with a cleanup that closes both.
func New(opts ...bus.Option) (*bus.Bus, func(), error) {
	tr := inmemory.New()

	b, err := bus.New(tr, opts...)
	if err != nil {
		_ = tr.Close()
		return nil, nil, err
	}

	cleanup := func() {
		_ = b.Close()
		_ = tr.Close()
	}

	return b, cleanup, nil
}

// NewPair constructs two bus nodes sharing one in-memory transport, so
// traffic published on either is delivered to both. Handy for exercising a
// client node against a server node in one process.
func NewPair(opts ...bus.Option) (*bus.Bus, *bus.Bus, func(), error) {
	tr := inmemory.New()

	a, err := bus.New(tr, opts...)
	if err != nil {
		_ = tr.Close()
		return nil, nil, nil, err
	}

	b, err := bus.New(tr, opts...)
	if err != nil {
		_ = a.Close()
		_ = tr.Close()
		return nil, nil, nil, err
	}

	cleanup := func() {
		_ = a.Close()
		_ = b.Close()
		_ = tr.Close()
	}

	return a, b, cleanup, nil
}
