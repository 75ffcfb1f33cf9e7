package feedback

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ButtonPublish names the publish button in payloads.
const ButtonPublish = "publish"

// Payload is the outbound message sent when the publish button is pressed.
type Payload struct {
	ID        string    `json:"id"`
	Button    string    `json:"button"`
	Message   string    `json:"message"`
	UptimeMS  int64     `json:"uptime_ms"`
	Timestamp time.Time `json:"timestamp"`
}

// NewPayload builds the publish-button payload.
func NewPayload(uptime time.Duration, now time.Time) Payload {
	ms := uptime.Milliseconds()
	return Payload{
		ID:        uuid.NewString(),
		Button:    ButtonPublish,
		Message:   fmt.Sprintf("Button 1 pressed at %d", ms),
		UptimeMS:  ms,
		Timestamp: now.UTC(),
	}
}
