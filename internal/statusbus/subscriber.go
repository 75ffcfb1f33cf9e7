package statusbus

import (
	"context"
	"fmt"
	"time"
)

// Subscriber receives change notifications for a fixed set of channels.
//
// A notification carries only the channel identity; the subscriber reads
// the channel to get the value. Several notifications for the same channel
// may be pending, in which case later reads simply see the same latest value.
type Subscriber struct {
	name  string
	queue chan ChannelID
}

// Name returns the subscriber name used in error messages.
func (s *Subscriber) Name() string {
	return s.name
}

// C exposes the notification queue for use in select loops.
func (s *Subscriber) C() <-chan ChannelID {
	return s.queue
}

// Wait blocks until a subscribed channel publishes, the timeout elapses or
// ctx ends.
//
// Parameters:
//   - ctx: Cancels the wait on shutdown
//   - timeout: Upper bound on the wait; non-positive polls once
//
// Returns:
//   - ChannelID: Channel that produced a new value
//   - error: ErrTimeout, or ctx.Err() when cancelled
func (s *Subscriber) Wait(ctx context.Context, timeout time.Duration) (ChannelID, error) {
	select {
	case id := <-s.queue:
		return id, nil
	default:
	}
	if timeout <= 0 {
		return "", fmt.Errorf("%w: %s has nothing pending", ErrTimeout, s.name)
	}

	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case id := <-s.queue:
		return id, nil
	case <-t.C:
		return "", fmt.Errorf("%w: %s waited %v", ErrTimeout, s.name, timeout)
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (s *Subscriber) notify(id ChannelID, within time.Duration) bool {
	select {
	case s.queue <- id:
		return true
	default:
	}
	if within <= 0 {
		return false
	}
	t := time.NewTimer(within)
	defer t.Stop()
	select {
	case s.queue <- id:
		return true
	case <-t.C:
		return false
	}
}
