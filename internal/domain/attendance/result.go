// internal/domain/attendance/result.go
package attendance

import "time"

// Outcome is the closed set of run outcomes.
type Outcome string

const (
	OutcomeSuccess              Outcome = "Success"
	OutcomeAlreadyMarked        Outcome = "AlreadyMarked"
	OutcomeNoActiveInstrument   Outcome = "NoActiveInstrument"
	OutcomeAuthenticationFailed Outcome = "AuthenticationFailed"
	OutcomeTransportError       Outcome = "TransportError"
	OutcomeUnexpectedResponse   Outcome = "UnexpectedResponse"
)

// Failed reports whether the outcome should end the process with a non-zero code.
func (o Outcome) Failed() bool {
	switch o {
	case OutcomeSuccess, OutcomeAlreadyMarked, OutcomeNoActiveInstrument:
		return false
	default:
		return true
	}
}

// Stage names a step of the run state machine.
type Stage string

const (
	StageStart          Stage = "start"
	StageAuthenticating Stage = "authenticating"
	StageLocating       Stage = "locating"
	StageSubmitting     Stage = "submitting"
	StageNotifying      Stage = "notifying"
	StageDone           Stage = "done"
)

// Result is the single artifact a run produces.
type Result struct {
	RunID      string
	Outcome    Outcome
	Stage      Stage // stage that produced the outcome
	Instrument *Instrument
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// Failure builds a Result for a fatal stage error.
func Failure(stage Stage, err error) Result {
	return Result{Outcome: OutcomeFromError(err), Stage: stage, Err: err}
}

// Completed builds a non-error Result.
func Completed(outcome Outcome, stage Stage, inst *Instrument) Result {
	return Result{Outcome: outcome, Stage: stage, Instrument: inst}
}
