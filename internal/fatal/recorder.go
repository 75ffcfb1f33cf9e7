package fatal

import "sync"

// Recorder is an Escalator that records calls instead of acting.
// Done is closed on the first call, mirroring the "first call wins" rule.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	done   chan struct{}
	once   sync.Once
	hook   func(Event)
}

// NewRecorder returns an empty Recorder. The optional hook runs on the
// first escalation, like Handler hooks do.
func NewRecorder(hook func(Event)) *Recorder {
	return &Recorder{done: make(chan struct{}), hook: hook}
}

// Fatal implements Escalator.
func (r *Recorder) Fatal(reason string, err error) {
	r.record(Event{Kind: KindFatal, Reason: reason, Err: err})
}

// Restart implements Escalator.
func (r *Recorder) Restart(reason string) {
	r.record(Event{Kind: KindRestart, Reason: reason})
}

func (r *Recorder) record(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	r.once.Do(func() {
		if r.hook != nil {
			r.hook(ev)
		}
		close(r.done)
	})
}

// Done is closed after the first escalation.
func (r *Recorder) Done() <-chan struct{} {
	return r.done
}

// Events returns a copy of every recorded escalation.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Count returns how many escalations of kind were recorded.
func (r *Recorder) Count(kind Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}
