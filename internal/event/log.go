package event

import "sync"

// Sink receives emitted envelopes in order. The engine appends to a sink
// only after the emitting operation has fully succeeded; a failed
// operation emits nothing.
type Sink interface {
	Append(env Envelope)
}

// Log is an in-memory append-only notification log. It backs the read
// API's event listing and the test fixtures; durable storage is handled
// downstream by the persistence worker.
type Log struct {
	mu      sync.RWMutex
	entries []Envelope
}

func NewLog() *Log {
	return &Log{}
}

func (l *Log) Append(env Envelope) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, env)
}

// Events returns a copy of all appended envelopes in emit order.
func (l *Log) Events() []Envelope {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Envelope, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of appended envelopes.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Fanout replicates every envelope to each underlying sink in order.
type Fanout []Sink

func (f Fanout) Append(env Envelope) {
	for _, s := range f {
		s.Append(env)
	}
}
