package config

import (
	"io/fs"
	"os"
	"strconv"
	"strings" // For LogLevel normalization
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
)

// DefaultFileName is looked up in the working directory when no --config is given.
const DefaultFileName = "attendance.toml"

// PortalConfig describes the Moodle instance and the markup contract the bot relies on.
type PortalConfig struct {
	BaseURL           string   `toml:"base_url"`
	AuthMode          string   `toml:"auth_mode"` // native | shibboleth
	LoginPath         string   `toml:"login_path"`
	LoginTokenField   string   `toml:"login_token_field"`
	LogoutMarker      string   `toml:"logout_marker"`
	LoginErrorMarkers []string `toml:"login_error_markers"`
	ListingURLs       []string `toml:"listing_urls"`
	SubmitPath        string   `toml:"submit_path"`
	SubmitLinkText    string   `toml:"submit_link_text"`
	PresenceLabel     string   `toml:"presence_label"` // regexp
	SuccessMarkers    []string `toml:"success_markers"`
	AlreadyMarkers    []string `toml:"already_marked_markers"`
	ExpiredMarkers    []string `toml:"expired_markers"`
	UserAgent         string   `toml:"user_agent"`
	Timezone          string   `toml:"timezone"` // IANA name the portal renders session times in

	Shibboleth ShibbolethConfig `toml:"shibboleth"`
}

// ShibbolethConfig holds the federated login settings.
type ShibbolethConfig struct {
	LoginPath   string `toml:"login_path"`
	IdPEntityID string `toml:"idp_entity_id"`
	TokenField  string `toml:"token_field"`
	ACSPath     string `toml:"acs_path"`
}

// NotificationsConfig selects and configures delivery backends.
type NotificationsConfig struct {
	Backends       []string `toml:"backends"` // empty means every configured backend
	WebhookURL     string   `toml:"webhook_url"`
	NtfyURL        string   `toml:"ntfy_url"`
	Desktop        bool     `toml:"desktop"`
	DesktopTitle   string   `toml:"desktop_title"`
	TelegramToken  string   `toml:"telegram_token"`
	TelegramChatID int64    `toml:"telegram_chat_id"`
	TimeoutSeconds int      `toml:"timeout_seconds"`
}

// DatabaseConfig points at the optional run journal.
type DatabaseConfig struct {
	URL string `toml:"url"`
}

// ScheduleConfig holds the cron expressions used by the schedule command.
type ScheduleConfig struct {
	Cron []string `toml:"cron"`
}

// AppConfig holds all configuration for the application
type AppConfig struct {
	Username              string `toml:"-"`
	Password              string `toml:"-"`
	LogLevel              string `toml:"log_level"`
	Environment           string `toml:"environment"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
	LockFile              string `toml:"lock_file"`

	Portal        PortalConfig        `toml:"portal"`
	Notifications NotificationsConfig `toml:"notifications"`
	Database      DatabaseConfig      `toml:"database"`
	Schedule      ScheduleConfig      `toml:"schedule"`

	// Path of the TOML file that was read, empty when none.
	SourcePath string `toml:"-"`
}

// Load builds the configuration from defaults, an optional TOML file,
// the .env file (if present) and environment variables, in that order.
func Load(path string) (*AppConfig, error) {
	cfg := Default()

	resolved, exists, err := resolvePath(path)
	if err != nil {
		return nil, err
	}
	if exists {
		if err := readFile(resolved, cfg); err != nil {
			return nil, err
		}
		cfg.SourcePath = resolved
	}

	// Attempt to load .env file. Errors are ignored if the file doesn't exist.
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	cfg.normalize()
	return cfg, nil
}

func resolvePath(path string) (string, bool, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultFileName
	}
	_, err := os.Stat(path)
	if err == nil {
		return path, true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		if explicit {
			return "", false, errors.Errorf("config file %s does not exist", path)
		}
		return path, false, nil
	}
	return "", false, errors.Wrap(err, "stat config")
}

func readFile(path string, cfg *AppConfig) error {
	file, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "open config")
	}
	defer file.Close()

	decoder := toml.NewDecoder(file)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(cfg); err != nil {
		return errors.Wrapf(err, "parse config %s", path)
	}
	return nil
}

func (cfg *AppConfig) applyEnv() error {
	cfg.Username = os.Getenv("MOODLE_USERNAME")
	cfg.Password = os.Getenv("MOODLE_PASSWORD")

	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.Environment, "ENVIRONMENT")
	setString(&cfg.LockFile, "ATTENDANCE_LOCK_FILE")
	setString(&cfg.Portal.BaseURL, "MOODLE_URL")
	setString(&cfg.Portal.AuthMode, "MOODLE_AUTH_MODE")
	setString(&cfg.Portal.Timezone, "ATTENDANCE_TIMEZONE")
	setString(&cfg.Notifications.WebhookURL, "DISCORD_WEBHOOK") // name kept for existing deployments
	setString(&cfg.Notifications.WebhookURL, "ATTENDANCE_WEBHOOK_URL")
	setString(&cfg.Notifications.NtfyURL, "ATTENDANCE_NTFY_URL")
	setString(&cfg.Notifications.TelegramToken, "TELEGRAM_TOKEN")
	setString(&cfg.Database.URL, "DATABASE_URL")

	if v := os.Getenv("ATTENDANCE_LISTING_URLS"); v != "" {
		cfg.Portal.ListingURLs = splitList(v)
	}
	if v := os.Getenv("ATTENDANCE_NOTIFY"); v != "" {
		cfg.Notifications.Backends = splitList(v)
	}
	if v := os.Getenv("ATTENDANCE_SCHEDULE"); v != "" {
		cfg.Schedule.Cron = strings.Split(v, ";")
	}

	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return errors.Wrap(err, "invalid TELEGRAM_CHAT_ID")
		}
		cfg.Notifications.TelegramChatID = id
	}
	if v := os.Getenv("ATTENDANCE_TIMEOUT"); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrap(err, "invalid ATTENDANCE_TIMEOUT")
		}
		cfg.RequestTimeoutSeconds = secs
	}
	if v := os.Getenv("ATTENDANCE_DESKTOP"); v != "" {
		on, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrap(err, "invalid ATTENDANCE_DESKTOP")
		}
		cfg.Notifications.Desktop = on
	}
	return nil
}

func (cfg *AppConfig) normalize() {
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info" // Default log level
	}
	cfg.Environment = strings.ToLower(strings.TrimSpace(cfg.Environment))
	if cfg.Environment == "" {
		cfg.Environment = "development" // Default environment
	}
	cfg.Portal.AuthMode = strings.ToLower(strings.TrimSpace(cfg.Portal.AuthMode))
	cfg.Portal.Timezone = strings.TrimSpace(cfg.Portal.Timezone)
	if cfg.Portal.Timezone == "" {
		cfg.Portal.Timezone = "Local"
	}
	cfg.Portal.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.Portal.BaseURL), "/")
	cfg.Portal.ListingURLs = trimAll(cfg.Portal.ListingURLs)
	cfg.Notifications.Backends = trimAll(cfg.Notifications.Backends)
	cfg.Schedule.Cron = trimAll(cfg.Schedule.Cron)
}

// RequestTimeout is the bound applied to every portal request.
func (cfg *AppConfig) RequestTimeout() time.Duration {
	return time.Duration(cfg.RequestTimeoutSeconds) * time.Second
}

// Location is the timezone session windows on the listing are read in.
func (p PortalConfig) Location() (*time.Location, error) {
	name := strings.TrimSpace(p.Timezone)
	if name == "" {
		name = "Local"
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, errors.Wrapf(err, "unknown portal timezone %q", name)
	}
	return loc, nil
}

// NotificationTimeout bounds each backend delivery.
func (cfg *AppConfig) NotificationTimeout() time.Duration {
	return time.Duration(cfg.Notifications.TimeoutSeconds) * time.Second
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func splitList(v string) []string {
	return trimAll(strings.Split(v, ","))
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
