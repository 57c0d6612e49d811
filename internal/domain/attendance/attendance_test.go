package attendance_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"attendance_bot/internal/domain/attendance"
)

func TestOutcomeFromError(t *testing.T) {
	tests := []struct {
		err  error
		want attendance.Outcome
	}{
		{err: nil, want: attendance.OutcomeSuccess},
		{err: errors.Wrap(attendance.ErrAuthenticationFailed, "login"), want: attendance.OutcomeAuthenticationFailed},
		{err: errors.Wrap(attendance.ErrSessionExpired, "form"), want: attendance.OutcomeAuthenticationFailed},
		{err: fmt.Errorf("%w: GET /my/: %w", attendance.ErrTransport, errors.New("connection refused")), want: attendance.OutcomeTransportError},
		{err: errors.Wrap(attendance.ErrUnexpectedResponse, "listing"), want: attendance.OutcomeUnexpectedResponse},
		{err: errors.New("something else"), want: attendance.OutcomeUnexpectedResponse},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, attendance.OutcomeFromError(tc.err), "%v", tc.err)
	}
}

func TestOutcomeFailed(t *testing.T) {
	assert.False(t, attendance.OutcomeSuccess.Failed())
	assert.False(t, attendance.OutcomeAlreadyMarked.Failed())
	assert.False(t, attendance.OutcomeNoActiveInstrument.Failed())
	assert.True(t, attendance.OutcomeAuthenticationFailed.Failed())
	assert.True(t, attendance.OutcomeTransportError.Failed())
	assert.True(t, attendance.OutcomeUnexpectedResponse.Failed())
}

func TestNewEventIsDeterministic(t *testing.T) {
	finished := time.Date(2025, 10, 13, 10, 42, 0, 0, time.UTC)
	res := attendance.Completed(attendance.OutcomeSuccess, attendance.StageSubmitting, &attendance.Instrument{ID: "42", DisplayName: "Networks lab"})
	res.FinishedAt = finished

	first := attendance.NewEvent(res)
	second := attendance.NewEvent(res)

	assert.Equal(t, first, second)
	assert.Equal(t, "Presence recorded for Networks lab.", first.Message)
	assert.Equal(t, finished, first.Timestamp)
	assert.Equal(t, "Attendance - Success", first.Title())
}

func TestEventMessages(t *testing.T) {
	inst := &attendance.Instrument{ID: "42"}
	tests := []struct {
		name string
		res  attendance.Result
		want string
	}{
		{
			name: "already marked",
			res:  attendance.Completed(attendance.OutcomeAlreadyMarked, attendance.StageSubmitting, inst),
			want: "Presence was already recorded for 42.",
		},
		{
			name: "nothing open",
			res:  attendance.Completed(attendance.OutcomeNoActiveInstrument, attendance.StageLocating, nil),
			want: "No attendance session is open right now.",
		},
		{
			name: "auth failure",
			res:  attendance.Failure(attendance.StageAuthenticating, errors.Wrap(attendance.ErrAuthenticationFailed, "portal rejected the credentials")),
			want: "Authentication failed during authenticating: portal rejected the credentials: authentication failed",
		},
		{
			name: "transport failure",
			res:  attendance.Failure(attendance.StageLocating, attendance.ErrTransport),
			want: "Could not reach the portal during locating: transport error",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ev := attendance.NewEvent(tc.res)
			assert.Equal(t, tc.want, ev.Message)
			assert.Equal(t, tc.res.Outcome, ev.Outcome())
		})
	}

	failed := attendance.NewEvent(attendance.Failure(attendance.StageSubmitting, attendance.ErrUnexpectedResponse))
	assert.Equal(t, "Attendance - Failed", failed.Title())
}

func TestInstrumentOpenAt(t *testing.T) {
	opens := time.Date(2025, 10, 13, 10, 0, 0, 0, time.UTC)
	inst := attendance.Instrument{ID: "1", OpenedAt: opens, ClosesAt: opens.Add(2 * time.Hour)}

	assert.True(t, inst.HasWindow())
	assert.True(t, inst.OpenAt(opens))
	assert.True(t, inst.OpenAt(opens.Add(time.Hour)))
	assert.False(t, inst.OpenAt(opens.Add(2*time.Hour)))
	assert.False(t, inst.OpenAt(opens.Add(-time.Minute)))

	assert.True(t, attendance.Instrument{ID: "2"}.OpenAt(opens), "no window means open")
	assert.Equal(t, "2", attendance.Instrument{ID: "2"}.String())
}

func TestCredentialsNeverPrintPassword(t *testing.T) {
	creds := attendance.Credentials{Username: "student", Password: "hunter2"}
	for _, format := range []string{"%v", "%+v", "%#v", "%s"} {
		assert.NotContains(t, fmt.Sprintf(format, creds), "hunter2", format)
	}
	assert.True(t, creds.Valid())
	assert.False(t, attendance.Credentials{Username: "student"}.Valid())
}

func TestSessionUsable(t *testing.T) {
	var nilSession *attendance.Session
	assert.False(t, nilSession.Usable())
	assert.False(t, (&attendance.Session{SessKey: "k", Cookies: []string{"MoodleSession"}}).Usable())
	assert.True(t, (&attendance.Session{SessKey: "k", Cookies: []string{"MoodleSession"}, Authenticated: true}).Usable())
}

func TestNewRunRecord(t *testing.T) {
	res := attendance.Completed(attendance.OutcomeSuccess, attendance.StageSubmitting, &attendance.Instrument{ID: "42"})
	res.RunID = "run-1"
	rec := attendance.NewRunRecord(attendance.NewEvent(res))

	assert.Equal(t, "run-1", rec.RunID)
	assert.True(t, rec.InstrumentID.Valid)
	assert.Equal(t, "42", rec.InstrumentID.String)

	empty := attendance.NewRunRecord(attendance.NewEvent(attendance.Completed(attendance.OutcomeNoActiveInstrument, attendance.StageLocating, nil)))
	assert.False(t, empty.InstrumentID.Valid)
}
