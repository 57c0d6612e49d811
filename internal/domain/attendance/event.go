package attendance

import (
	"fmt"
	"time"
)

// Event is what notification backends receive. It is derived from a Result
// and never modified afterwards.
type Event struct {
	Result    Result
	Message   string
	Timestamp time.Time
}

// NewEvent derives the event for a result. The same result always yields the
// same event.
func NewEvent(r Result) Event {
	return Event{
		Result:    r,
		Message:   describe(r),
		Timestamp: r.FinishedAt,
	}
}

func (e Event) Outcome() Outcome {
	return e.Result.Outcome
}

// Title is a short headline for backends that show one.
func (e Event) Title() string {
	if e.Result.Outcome.Failed() {
		return "Attendance - Failed"
	}
	return "Attendance - " + string(e.Result.Outcome)
}

func describe(r Result) string {
	name := "the open session"
	if r.Instrument != nil {
		name = r.Instrument.String()
	}
	switch r.Outcome {
	case OutcomeSuccess:
		return fmt.Sprintf("Presence recorded for %s.", name)
	case OutcomeAlreadyMarked:
		return fmt.Sprintf("Presence was already recorded for %s.", name)
	case OutcomeNoActiveInstrument:
		return "No attendance session is open right now."
	case OutcomeAuthenticationFailed:
		return fmt.Sprintf("Authentication failed during %s: %s", r.Stage, errText(r.Err))
	case OutcomeTransportError:
		return fmt.Sprintf("Could not reach the portal during %s: %s", r.Stage, errText(r.Err))
	case OutcomeUnexpectedResponse:
		return fmt.Sprintf("Unexpected portal response during %s: %s", r.Stage, errText(r.Err))
	default:
		return fmt.Sprintf("Unknown outcome %q", r.Outcome)
	}
}

func errText(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}
