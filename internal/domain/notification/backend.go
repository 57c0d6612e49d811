package notification

import (
	"context"

	"attendance_bot/internal/domain/attendance"
)

// Backend delivers an event through one mechanism.
type Backend interface {
	Kind() Kind
	Send(ctx context.Context, ev attendance.Event) error
}
