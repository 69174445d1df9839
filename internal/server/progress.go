package server

import (
	"sync"

	"github.com/alnah/go-scribe/internal/jobs"
)

// eventQueueSize bounds each subscriber's queue. A slow websocket reader
// loses intermediate progress events rather than stalling the pipeline.
const eventQueueSize = 16

// Event is one progress update for a job.
type Event struct {
	JobID  string      `json:"job_id"`
	Status jobs.Status `json:"status"`
	Done   int         `json:"chunks_done"`
	Total  int         `json:"chunks_total"`
	Error  string      `json:"error,omitempty"`
}

// Broker fans job progress events out to websocket subscribers.
type Broker struct {
	mu   sync.RWMutex
	subs map[string]map[chan Event]struct{}
}

// NewBroker creates an empty Broker.
func NewBroker() *Broker {
	return &Broker{subs: make(map[string]map[chan Event]struct{})}
}

// Subscribe returns a bounded channel receiving events for jobID.
// The caller must Unsubscribe when done.
func (b *Broker) Subscribe(jobID string) chan Event {
	ch := make(chan Event, eventQueueSize)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs[jobID] == nil {
		b.subs[jobID] = make(map[chan Event]struct{})
	}
	b.subs[jobID][ch] = struct{}{}
	return ch
}

// Unsubscribe removes and closes a subscription channel.
func (b *Broker) Unsubscribe(jobID string, ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if set, ok := b.subs[jobID]; ok {
		if _, ok := set[ch]; ok {
			delete(set, ch)
			close(ch)
		}
		if len(set) == 0 {
			delete(b.subs, jobID)
		}
	}
}

// Publish delivers an event to every subscriber of the job. Sends never
// block: a full subscriber queue drops its oldest event to make room, so
// the latest state, including the terminal one, always gets through.
func (b *Broker) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs[ev.JobID] {
		select {
		case ch <- ev:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- ev:
		default:
		}
	}
}
