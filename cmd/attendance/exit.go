package main

import (
	"fmt"

	"github.com/pkg/errors"

	"attendance_bot/internal/domain/attendance"
)

const (
	exitOK             = 0
	exitConfig         = 1
	exitAuthentication = 2
	exitTransport      = 3
	exitUnexpected     = 4
)

// outcomeError carries a failed run outcome up to main.
type outcomeError struct {
	outcome attendance.Outcome
	message string
}

func (e *outcomeError) Error() string {
	return fmt.Sprintf("%s: %s", e.outcome, e.message)
}

// errorFromEvent is nil for the outcomes that end with exit code 0.
func errorFromEvent(ev attendance.Event) error {
	if !ev.Outcome().Failed() {
		return nil
	}
	return &outcomeError{outcome: ev.Outcome(), message: ev.Message}
}

func exitCodeFor(o attendance.Outcome) int {
	switch o {
	case attendance.OutcomeSuccess, attendance.OutcomeAlreadyMarked, attendance.OutcomeNoActiveInstrument:
		return exitOK
	case attendance.OutcomeAuthenticationFailed:
		return exitAuthentication
	case attendance.OutcomeTransportError:
		return exitTransport
	default:
		return exitUnexpected
	}
}

// exitCode maps a command error to the process exit code. Anything that is
// not a run outcome is a configuration or usage error.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var oe *outcomeError
	if errors.As(err, &oe) {
		return exitCodeFor(oe.outcome)
	}
	return exitConfig
}
