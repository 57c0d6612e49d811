package testsupport

import (
	"path/filepath"
	"testing"

	"attendance_bot/internal/infra/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.AppConfig
}

// NewConfig produces a config with credentials and a lock file unique to
// the test. Notifications are disabled unless an option enables them.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.AppConfig {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Username = "student"
	cfg.Password = "hunter2"
	cfg.RequestTimeoutSeconds = 5
	cfg.LockFile = filepath.Join(base, "attendance.lock")
	cfg.Portal.BaseURL = "http://127.0.0.1:1"
	cfg.Portal.ListingURLs = []string{"/mod/attendance/view.php?id=1"}
	cfg.Notifications.Backends = []string{"none"}
	cfg.Notifications.TimeoutSeconds = 2

	builder := &configBuilder{t: t, baseDir: base, cfg: cfg}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithPortal points the config at a fake portal and copies its credentials.
func WithPortal(p *Portal) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Portal.BaseURL = p.URL()
		b.cfg.Portal.ListingURLs = []string{p.ListingPath()}
		b.cfg.Username = p.username
		b.cfg.Password = p.password
	}
}

// WithCredentials overrides the configured username and password.
func WithCredentials(username, password string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Username = username
		b.cfg.Password = password
	}
}

// WithAuthMode selects native or shibboleth login.
func WithAuthMode(mode string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Portal.AuthMode = mode
	}
}

// WithWebhook enables the webhook backend.
func WithWebhook(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Notifications.WebhookURL = url
		b.cfg.Notifications.Backends = nil
	}
}

// WithTimezone sets the zone the portal renders session times in.
func WithTimezone(name string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Portal.Timezone = name
	}
}
