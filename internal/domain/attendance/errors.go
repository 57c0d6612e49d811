package attendance

import "errors"

// Error markers. Portal code wraps them with context; OutcomeFromError maps
// them back to an Outcome.
var (
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrTransport            = errors.New("transport error")
	ErrUnexpectedResponse   = errors.New("unexpected response")
	ErrSessionExpired       = errors.New("session expired")
)

// OutcomeFromError classifies a stage error. Unknown errors are treated as an
// unexpected response since they indicate a contract the code did not foresee.
func OutcomeFromError(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, ErrAuthenticationFailed), errors.Is(err, ErrSessionExpired):
		return OutcomeAuthenticationFailed
	case errors.Is(err, ErrTransport):
		return OutcomeTransportError
	default:
		return OutcomeUnexpectedResponse
	}
}
