package stateguard

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventFlowStarted   ActivityEventType = "oauth.flow.started"
	ActivityEventFlowCompleted ActivityEventType = "oauth.flow.completed"
	ActivityEventFlowRejected  ActivityEventType = "oauth.flow.rejected"
	ActivityEventSweepExpired  ActivityEventType = "oauth.sweep.expired"
)

// ActivityEvent captures audit-friendly information about a flow action.
type ActivityEvent struct {
	EventID    uuid.UUID
	EventType  ActivityEventType
	Provider   string
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
// Sinks run best-effort: errors are logged, never surfaced to the flow.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}
