package statusbus

import (
	"fmt"
	"sync"
	"time"
)

// Status is the constraint satisfied by every status enum carried on the bus.
type Status interface {
	comparable
	fmt.Stringer
}

// Observable is a channel a Subscriber can listen on.
type Observable interface {
	ID() ChannelID
	attach(s *Subscriber)
}

// Channel is a named single-slot broadcast channel carrying one status type.
//
// The bus does not enforce a single writer; which coordinator may publish
// on a channel is decided by the wiring in the node package.
type Channel[T Status] struct {
	id  ChannelID
	bus *Bus

	// lock is a one-slot semaphore so acquisition can time out.
	lock  chan struct{}
	value T

	subsMu sync.RWMutex
	subs   []*Subscriber
}

func newChannel[T Status](id ChannelID, initial T, bus *Bus) *Channel[T] {
	return &Channel[T]{
		id:    id,
		bus:   bus,
		lock:  make(chan struct{}, 1),
		value: initial,
	}
}

// ID returns the channel identity.
func (c *Channel[T]) ID() ChannelID {
	return c.id
}

func (c *Channel[T]) attach(s *Subscriber) {
	c.subsMu.Lock()
	c.subs = append(c.subs, s)
	c.subsMu.Unlock()
}

func (c *Channel[T]) acquire(timeout time.Duration) bool {
	select {
	case c.lock <- struct{}{}:
		return true
	default:
	}
	if timeout <= 0 {
		return false
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case c.lock <- struct{}{}:
		return true
	case <-t.C:
		return false
	}
}

func (c *Channel[T]) release() {
	<-c.lock
}

// Publish stores v as the channel's latest value and notifies every
// subscriber.
//
// The whole operation, lock acquisition plus delivery into each
// subscriber's backlog, shares one timeout. A non-positive timeout means
// "do not wait".
//
// Parameters:
//   - v: New status value
//   - timeout: Upper bound on the time spent blocked
//
// Returns:
//   - error: ErrClosed after Close, ErrTimeout if a subscriber stayed behind
func (c *Channel[T]) Publish(v T, timeout time.Duration) error {
	if c.bus.Closed() {
		return ErrClosed
	}
	deadline := time.Now().Add(timeout)

	if !c.acquire(timeout) {
		return fmt.Errorf("%w: %s channel busy", ErrTimeout, c.id)
	}
	if c.bus.Closed() {
		c.release()
		return ErrClosed
	}
	c.value = v
	c.release()

	c.subsMu.RLock()
	subs := make([]*Subscriber, len(c.subs))
	copy(subs, c.subs)
	c.subsMu.RUnlock()

	for _, s := range subs {
		if !s.notify(c.id, time.Until(deadline)) {
			return fmt.Errorf("%w: %s subscriber %q backlog full", ErrTimeout, c.id, s.name)
		}
	}
	return nil
}

// Read returns the most recently published value, or the initial value if
// nothing has been published yet.
//
// Parameters:
//   - timeout: Upper bound on waiting for the channel lock
//
// Returns:
//   - T: Latest value
//   - error: ErrTimeout if the lock could not be taken in time
func (c *Channel[T]) Read(timeout time.Duration) (T, error) {
	if !c.acquire(timeout) {
		var zero T
		return zero, fmt.Errorf("%w: reading %s", ErrTimeout, c.id)
	}
	v := c.value
	c.release()
	return v, nil
}
