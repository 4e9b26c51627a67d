// Package pending tracks in-flight correlated calls: one single-use result
// slot per correlation id. The table guarantees exactly-once resolution;
// results arriving for unknown ids are reported so callers can drop them.
package pending

import (
	"fmt"
	"sync"

	lcmerr "github.com/KosmosisDire/LCMware/contract/errors"
)

// Table maps correlation ids to single-use result slots. Safe for concurrent
// use. Construct with NewTable; the zero value is not usable.
type Table[T any] struct {
	mu    sync.Mutex
	slots map[string]chan T
}

// NewTable returns an empty table.
func NewTable[T any]() *Table[T] {
	return &Table[T]{slots: make(map[string]chan T)}
}

// Add registers id and returns the channel its result will arrive on. The
// channel is buffered so Resolve never blocks. Registering an id that is
// already pending fails with ErrDuplicateID.
func (t *Table[T]) Add(id string) (<-chan T, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.slots[id]; ok {
		return nil, fmt.Errorf("%w: correlation id %q already pending", lcmerr.ErrDuplicateID, id)
	}
	ch := make(chan T, 1)
	t.slots[id] = ch
	return ch, nil
}

// Resolve delivers v to the waiter registered under id and removes the
// entry. It reports false when nothing is pending under id, which is how
// late or duplicate results get dropped.
func (t *Table[T]) Resolve(id string, v T) bool {
	t.mu.Lock()
	ch, ok := t.slots[id]
	if ok {
		delete(t.slots, id)
	}
	t.mu.Unlock()

	if !ok {
		return false
	}
	ch <- v
	return true
}

// Remove forgets id without delivering anything. Callers use it when they
// stop waiting (timeout, canceled context, shutdown). Idempotent.
func (t *Table[T]) Remove(id string) {
	t.mu.Lock()
	delete(t.slots, id)
	t.mu.Unlock()
}

// Len returns the number of calls still pending.
func (t *Table[T]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.slots)
}
