package events

import (
	"context"
	"sync"
)

type Published struct {
	Topic string
	Key   string
	Event Event
}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Published
	Err    error
}

func (r *Recorder) Publish(_ context.Context, topic, key string, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.events = append(r.events, Published{Topic: topic, Key: key, Event: event})
	return nil
}

func (r *Recorder) Close() error { return nil }

func (r *Recorder) Events() []Published {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Published(nil), r.events...)
}

func (r *Recorder) Types(topic string) []string {
	var out []string
	for _, p := range r.Events() {
		if p.Topic == topic {
			out = append(out, p.Event.Type)
		}
	}
	return out
}
