package portal

import (
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"attendance_bot/internal/domain/attendance"
	"attendance_bot/internal/infra/config"
)

type parts struct {
	client    *Client
	contract  *Contract
	auth      *Authenticator
	locator   *Locator
	submitter *Submitter
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newParts(t *testing.T, cfg *config.AppConfig) parts {
	t.Helper()
	c, err := NewComponents(cfg, quietLogger())
	require.NoError(t, err)
	return parts{
		client:    c.Client,
		contract:  c.Contract,
		auth:      c.Auth,
		locator:   c.Locator,
		submitter: c.Submitter,
	}
}

func credentials(cfg *config.AppConfig) attendance.Credentials {
	return attendance.Credentials{Username: cfg.Username, Password: cfg.Password}
}

// todayAt returns hh:mm on the current local date.
func todayAt(hour, minute int) time.Time {
	now := time.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
}
