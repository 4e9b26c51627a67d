package tap

import "sync"

// Recorder is a thread-safe in-memory Sink for tests and debugging.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
}

// Ensure Recorder implements the contract.
var _ Sink = (*Recorder)(nil)

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder { return &Recorder{} }

// Record stores a copy of the entry, including its payload bytes.
func (r *Recorder) Record(e Entry) {
	e.Payload = append([]byte(nil), e.Payload...)
	r.mu.Lock()
	r.entries = append(r.entries, e)
	r.mu.Unlock()
}

// Entries returns a snapshot of everything recorded so far.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Entry(nil), r.entries...)
}

// Len returns the number of recorded entries.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
