// Package events is the per-job event bus: it accepts output chunks from
// the job runner and fans them out to zero or more subscribers without
// ever blocking the runner. One bus exists per job, with a monotonic
// chunk index for snapshot/live de-duplication.
package events

import (
	"sync"

	"github.com/cuemby/ridge/pkg/types"
)

const subscriberBufferSize = 256

// Bus multiplexes one job's output chunks to its subscribers.
type Bus struct {
	mu          sync.Mutex
	buffer      []types.OutputChunk
	subscribers map[*subscriber]bool
	closed      bool
}

type subscriber struct {
	ch chan types.OutputChunk
}

// NewBus returns an empty, open bus.
func NewBus() *Bus {
	return &Bus{subscribers: make(map[*subscriber]bool)}
}

// Publish appends chunk to the persisted-in-memory buffer and forwards it
// to every current subscriber. Forwarding is non-blocking: a subscriber
// whose buffer is full is dropped, not the publisher.
func (b *Bus) Publish(chunk types.OutputChunk) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.buffer = append(b.buffer, chunk)
	for s := range b.subscribers {
		select {
		case s.ch <- chunk:
		default:
			delete(b.subscribers, s)
			close(s.ch)
		}
	}
}

// Subscribe returns a snapshot of every chunk published so far and a
// channel of subsequent live chunks. Concatenating snapshot and live,
// taken in that order, reproduces the full sequence exactly once — the
// snapshot is built under the same lock that registers the subscriber, so
// no chunk published after Subscribe returns can be missing from live and
// no chunk in the snapshot can also arrive on live. cancel may be called at any time to stop receiving without affecting
// other subscribers or the publisher.
func (b *Bus) Subscribe() (snapshot []types.OutputChunk, live <-chan types.OutputChunk, cancel func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	snap := make([]types.OutputChunk, len(b.buffer))
	copy(snap, b.buffer)

	if b.closed {
		ch := make(chan types.OutputChunk)
		close(ch)
		return snap, ch, func() {}
	}

	sub := &subscriber{ch: make(chan types.OutputChunk, subscriberBufferSize)}
	b.subscribers[sub] = true

	cancelOnce := sync.Once{}
	cancelFn := func() {
		cancelOnce.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subscribers[sub]; ok {
				delete(b.subscribers, sub)
				close(sub.ch)
			}
		})
	}

	return snap, sub.ch, cancelFn
}

// Close ends every subscriber's live stream cleanly. Called once the job
// reaches a terminal state. After Close, Subscribe still works and yields
// the full buffer on an already-closed channel.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for s := range b.subscribers {
		close(s.ch)
		delete(b.subscribers, s)
	}
}

// Registry holds one Bus per in-flight or recently terminal job.
type Registry struct {
	mu    sync.Mutex
	buses map[string]*Bus
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{buses: make(map[string]*Bus)}
}

// GetOrCreate returns the bus for jobID, creating it if absent.
func (r *Registry) GetOrCreate(jobID string) *Bus {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.buses[jobID]
	if !ok {
		b = NewBus()
		r.buses[jobID] = b
	}
	return b
}

// Get returns the bus for jobID, or nil if none exists.
func (r *Registry) Get(jobID string) *Bus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buses[jobID]
}

// Remove drops the bus for jobID from the registry. pkg/core does not call
// it: terminal jobs keep their bus, so late subscribers still get the
// in-memory buffer. The persisted output buffer in the store remains the
// durable record.
func (r *Registry) Remove(jobID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.buses, jobID)
}
