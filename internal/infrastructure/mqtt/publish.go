package mqtt

import (
	"context"
	"fmt"
)

// maxPayloadSize caps a single message (64KB). Node payloads are small JSON.
const maxPayloadSize = 64 << 10

// Publish sends payload to topic with the configured QoS.
//
// The wait for broker acknowledgement is bounded by ctx; callers that need
// the one-second button payload budget pass a context with that deadline.
// Without a deadline the default publish timeout applies.
//
// Parameters:
//   - ctx: Bounds the acknowledgement wait
//   - topic: Destination topic (see Topics)
//   - payload: Message body
//   - retained: Whether the broker keeps it for late subscribers
//
// Returns:
//   - error: ErrInvalidTopic, ErrNotConnected, ErrTimeout or ErrPublishFailed
func (c *Client) Publish(ctx context.Context, topic string, payload []byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if c.cfg.QoS < 0 || c.cfg.QoS > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultPublishTimeout)
		defer cancel()
	}

	token := c.client.Publish(topic, byte(c.cfg.QoS), retained, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("%w: %s: %w", ErrTimeout, topic, ctx.Err())
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}
