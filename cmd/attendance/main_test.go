package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attendance_bot/internal/domain/attendance"
	"attendance_bot/internal/testsupport"
)

type cliTestEnv struct {
	portal   *testsupport.Portal
	lockPath string
}

// setupCLITestEnv points the environment at a fake portal with notifications off.
func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()
	p := testsupport.NewPortal(t, "student", "hunter2")
	lockPath := filepath.Join(t.TempDir(), "attendance.lock")

	for key, value := range map[string]string{
		"MOODLE_URL":              p.URL(),
		"MOODLE_AUTH_MODE":        "native",
		"MOODLE_USERNAME":         "student",
		"MOODLE_PASSWORD":         "hunter2",
		"ATTENDANCE_LISTING_URLS": p.ListingPath(),
		"ATTENDANCE_LOCK_FILE":    lockPath,
		"ATTENDANCE_NOTIFY":       "none",
		"ATTENDANCE_TIMEOUT":      "5",
		"LOG_LEVEL":               "error",
		"ENVIRONMENT":             "test",
		"DATABASE_URL":            "",
		"DISCORD_WEBHOOK":         "",
		"ATTENDANCE_WEBHOOK_URL":  "",
		"ATTENDANCE_NTFY_URL":     "",
		"TELEGRAM_TOKEN":          "",
		"TELEGRAM_CHAT_ID":        "",
		"ATTENDANCE_DESKTOP":      "",
		"ATTENDANCE_SCHEDULE":     "",
	} {
		t.Setenv(key, value)
	}
	return &cliTestEnv{portal: p, lockPath: lockPath}
}

func runCLI(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := execute(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestExitCodeForOutcomes(t *testing.T) {
	tests := []struct {
		outcome attendance.Outcome
		want    int
	}{
		{attendance.OutcomeSuccess, 0},
		{attendance.OutcomeAlreadyMarked, 0},
		{attendance.OutcomeNoActiveInstrument, 0},
		{attendance.OutcomeAuthenticationFailed, 2},
		{attendance.OutcomeTransportError, 3},
		{attendance.OutcomeUnexpectedResponse, 4},
	}
	for _, tc := range tests {
		ev := attendance.NewEvent(attendance.Result{Outcome: tc.outcome})
		assert.Equal(t, tc.want, exitCode(errorFromEvent(ev)), string(tc.outcome))
	}
	assert.Equal(t, 1, exitCode(assert.AnError))
}

func TestRunRecordsPresence(t *testing.T) {
	env := setupCLITestEnv(t)
	env.portal.SetRows(testsupport.Row{SessID: "42", Description: "Networks lab", Link: true})

	code, stdout, _ := runCLI("run")

	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "Success: Presence recorded for Networks lab.")
	assert.Equal(t, 1, env.portal.Stats().SubmitPosts)
}

func TestRunNothingOpenExitsZero(t *testing.T) {
	env := setupCLITestEnv(t)

	code, stdout, _ := runCLI("run")

	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "NoActiveInstrument")
	assert.Zero(t, env.portal.Stats().SubmitPosts)
}

func TestRunBadPasswordFlag(t *testing.T) {
	env := setupCLITestEnv(t)

	code, _, stderr := runCLI("run", "--password", "wrong")

	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "AuthenticationFailed")
	assert.Zero(t, env.portal.Stats().ListingGets)
}

func TestRunMissingCredentials(t *testing.T) {
	env := setupCLITestEnv(t)
	t.Setenv("MOODLE_PASSWORD", "")

	code, _, stderr := runCLI("run")

	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "missing Moodle credentials")
	assert.Zero(t, env.portal.Stats().LoginPosts)
}

func TestRunUnreachablePortal(t *testing.T) {
	setupCLITestEnv(t)
	srv := httptest.NewServer(nil)
	url := srv.URL
	srv.Close()
	t.Setenv("MOODLE_URL", url)

	code, _, _ := runCLI("run")
	assert.Equal(t, 3, code)
}

func TestRunSkipsWhenLocked(t *testing.T) {
	env := setupCLITestEnv(t)
	env.portal.SetRows(testsupport.Row{SessID: "42", Description: "Networks lab", Link: true})

	held := flock.New(env.lockPath)
	ok, err := held.TryLock()
	require.NoError(t, err)
	require.True(t, ok)
	defer held.Unlock()

	code, _, _ := runCLI("run")

	assert.Equal(t, 0, code)
	assert.Zero(t, env.portal.Stats().LoginPosts)
}

func TestScheduleRejectsBadCron(t *testing.T) {
	setupCLITestEnv(t)

	code, _, stderr := runCLI("schedule", "--cron", "every morning")

	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "invalid cron expression")
}

func TestTestNotifyWebhook(t *testing.T) {
	setupCLITestEnv(t)
	srv := httptest.NewServer(nil) // DefaultServeMux answers 404
	defer srv.Close()

	code, stdout, _ := runCLI("test-notify", "--notify", "webhook", "-w", srv.URL)

	assert.Equal(t, 1, code)
	assert.Contains(t, stdout, "webhook: failed")
}

func TestTestNotifyWithoutBackends(t *testing.T) {
	setupCLITestEnv(t)

	code, stdout, _ := runCLI("test-notify")

	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "No notification backend configured")
}
