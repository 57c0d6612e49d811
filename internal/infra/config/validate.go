package config

import (
	"net/url"
	"regexp"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"attendance_bot/internal/domain/notification"
)

// ErrMissingCredentials is returned when MOODLE_USERNAME or MOODLE_PASSWORD is absent.
var ErrMissingCredentials = errors.New("missing Moodle credentials: set MOODLE_USERNAME and MOODLE_PASSWORD or pass --username/--password")

// Validate checks everything a run needs except credentials.
func (cfg *AppConfig) Validate() error {
	if cfg.Portal.BaseURL == "" {
		return errors.New("portal base_url is not set (MOODLE_URL)")
	}
	u, err := url.Parse(cfg.Portal.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.Errorf("portal base_url %q is not an absolute URL", cfg.Portal.BaseURL)
	}
	switch cfg.Portal.AuthMode {
	case AuthModeNative, AuthModeShibboleth:
	default:
		return errors.Errorf("unknown auth_mode %q (expected %s or %s)", cfg.Portal.AuthMode, AuthModeNative, AuthModeShibboleth)
	}
	if len(cfg.Portal.ListingURLs) == 0 {
		return errors.New("no attendance listing URL configured (ATTENDANCE_LISTING_URLS)")
	}
	if _, err := regexp.Compile(cfg.Portal.PresenceLabel); err != nil {
		return errors.Wrap(err, "invalid presence_label")
	}
	if _, err := cfg.Portal.Location(); err != nil {
		return err
	}
	if len(cfg.Portal.SuccessMarkers) == 0 {
		return errors.New("at least one success marker is required")
	}
	if cfg.RequestTimeoutSeconds <= 0 {
		return errors.Errorf("request timeout must be positive, got %d", cfg.RequestTimeoutSeconds)
	}
	if cfg.Notifications.TimeoutSeconds <= 0 {
		return errors.Errorf("notification timeout must be positive, got %d", cfg.Notifications.TimeoutSeconds)
	}
	return cfg.ValidateNotifications()
}

// ValidateNotifications checks backend names and their settings.
func (cfg *AppConfig) ValidateNotifications() error {
	for _, name := range cfg.Notifications.Backends {
		if name == "none" {
			continue
		}
		kind, ok := notification.ParseKind(name)
		if !ok {
			return errors.Errorf("unknown notification backend %q", name)
		}
		if !cfg.backendConfigured(kind) {
			return errors.Errorf("notification backend %q selected but not configured", kind)
		}
	}
	return nil
}

// ValidateSchedule checks the cron expressions used by the schedule command.
func (cfg *AppConfig) ValidateSchedule() error {
	if len(cfg.Schedule.Cron) == 0 {
		return errors.New("no cron expression configured (ATTENDANCE_SCHEDULE or --cron)")
	}
	for _, spec := range cfg.Schedule.Cron {
		if _, err := cron.ParseStandard(spec); err != nil {
			return errors.Wrapf(err, "invalid cron expression %q", spec)
		}
	}
	return nil
}

// RequireCredentials fails when either secret is missing.
func (cfg *AppConfig) RequireCredentials() error {
	if cfg.Username == "" || cfg.Password == "" {
		return ErrMissingCredentials
	}
	return nil
}

// EnabledBackends resolves which backends a run should use. An explicit
// selection wins; otherwise every configured backend is used, desktop only
// when switched on.
func (cfg *AppConfig) EnabledBackends() []notification.Kind {
	if len(cfg.Notifications.Backends) > 0 {
		var kinds []notification.Kind
		seen := map[notification.Kind]bool{}
		for _, name := range cfg.Notifications.Backends {
			kind, ok := notification.ParseKind(name)
			if !ok || seen[kind] {
				continue
			}
			seen[kind] = true
			kinds = append(kinds, kind)
		}
		return kinds
	}

	var kinds []notification.Kind
	for _, kind := range notification.Kinds() {
		if kind == notification.KindDesktop && !cfg.Notifications.Desktop {
			continue
		}
		if cfg.backendConfigured(kind) {
			kinds = append(kinds, kind)
		}
	}
	return kinds
}

func (cfg *AppConfig) backendConfigured(kind notification.Kind) bool {
	n := cfg.Notifications
	switch kind {
	case notification.KindWebhook:
		return n.WebhookURL != ""
	case notification.KindNtfy:
		return n.NtfyURL != ""
	case notification.KindTelegram:
		return n.TelegramToken != "" && n.TelegramChatID != 0
	case notification.KindDesktop:
		return true
	default:
		return false
	}
}
