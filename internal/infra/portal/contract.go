package portal

import (
	"bytes"
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/pkg/errors"

	"attendance_bot/internal/infra/config"
)

// Contract is the compiled form of the portal markup settings.
type Contract struct {
	AuthMode          string
	LoginPath         string
	LoginTokenField   string
	LogoutMarker      string
	LoginErrorMarkers []string
	ListingURLs       []string
	SubmitPath        string
	SubmitLinkText    string
	PresenceLabel     *regexp.Regexp
	SuccessMarkers    []string
	AlreadyMarkers    []string
	ExpiredMarkers    []string
	Location          *time.Location // session windows are rendered in this zone
	Shibboleth        config.ShibbolethConfig
}

// NewContract validates and compiles the portal settings.
func NewContract(cfg config.PortalConfig) (*Contract, error) {
	label, err := regexp.Compile(cfg.PresenceLabel)
	if err != nil {
		return nil, errors.Wrap(err, "compile presence label")
	}
	if cfg.LoginTokenField == "" {
		return nil, errors.New("login token field is empty")
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	return &Contract{
		AuthMode:          cfg.AuthMode,
		LoginPath:         cfg.LoginPath,
		LoginTokenField:   cfg.LoginTokenField,
		LogoutMarker:      cfg.LogoutMarker,
		LoginErrorMarkers: cfg.LoginErrorMarkers,
		ListingURLs:       cfg.ListingURLs,
		SubmitPath:        cfg.SubmitPath,
		SubmitLinkText:    strings.TrimSpace(cfg.SubmitLinkText),
		PresenceLabel:     label,
		SuccessMarkers:    cfg.SuccessMarkers,
		AlreadyMarkers:    cfg.AlreadyMarkers,
		ExpiredMarkers:    cfg.ExpiredMarkers,
		Location:          loc,
		Shibboleth:        cfg.Shibboleth,
	}, nil
}

// onLoginPage reports whether resp is (or was redirected to) a login form.
func (c *Contract) onLoginPage(resp *Response) bool {
	if resp.URL != nil && c.LoginPath != "" && strings.HasSuffix(resp.URL.Path, c.LoginPath) {
		return true
	}
	return hasInput(resp.Body, c.LoginTokenField)
}

// sessionExpired reports whether the portal answered as if we were logged out.
func (c *Contract) sessionExpired(resp *Response) bool {
	return c.onLoginPage(resp) || containsAny(resp.Body, c.ExpiredMarkers)
}

// containsAny matches markers against the raw markup and, for text markers
// written with entities (&eacute;), against the unescaped markup.
func containsAny(body []byte, markers []string) bool {
	var unescaped string
	for _, m := range markers {
		if m == "" {
			continue
		}
		if bytes.Contains(body, []byte(m)) {
			return true
		}
		if unescaped == "" {
			unescaped = html.UnescapeString(string(body))
		}
		if strings.Contains(unescaped, m) {
			return true
		}
	}
	return false
}
