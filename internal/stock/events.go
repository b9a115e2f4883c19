package stock

import "context"

// MovementRecordedEvent represents a persisted movement ready for ledger posting.
type MovementRecordedEvent struct {
	Movement Movement
}

// IntegrationHandler receives movement events after they are committed.
type IntegrationHandler interface {
	HandleMovementRecorded(ctx context.Context, evt MovementRecordedEvent) error
}
