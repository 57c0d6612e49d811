package portal

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"attendance_bot/internal/domain/attendance"
	"attendance_bot/internal/infra/config"
)

// Authenticator performs the login handshake and hands out sessions.
type Authenticator struct {
	client   *Client
	contract *Contract
	now      func() time.Time
	logger   logrus.FieldLogger
}

func NewAuthenticator(client *Client, contract *Contract, logger logrus.FieldLogger) *Authenticator {
	return &Authenticator{
		client:   client,
		contract: contract,
		now:      time.Now,
		logger:   logger,
	}
}

// Login authenticates creds and returns a fully established session.
func (a *Authenticator) Login(ctx context.Context, creds attendance.Credentials) (*attendance.Session, error) {
	if !creds.Valid() {
		return nil, authFailedf("username or password is empty")
	}
	log := a.logger.WithFields(logrus.Fields{"user": creds.Username, "mode": a.contract.AuthMode})
	log.Info("Starting portal authentication")

	var (
		landing *Response
		err     error
	)
	switch a.contract.AuthMode {
	case config.AuthModeShibboleth:
		landing, err = a.loginShibboleth(ctx, creds)
	default:
		landing, err = a.loginNative(ctx, creds)
	}
	if err != nil {
		log.WithError(err).Warn("Portal authentication failed")
		return nil, err
	}

	session, err := a.establish(landing)
	if err != nil {
		log.WithError(err).Warn("Portal login did not yield a usable session")
		return nil, err
	}
	log.WithField("landing", session.LandingURL).Info("Authentication completed successfully")
	return session, nil
}

// Reauthenticate discards the current cookies and logs in again.
func (a *Authenticator) Reauthenticate(ctx context.Context, creds attendance.Credentials) (*attendance.Session, error) {
	if err := a.client.ResetSession(); err != nil {
		return nil, err
	}
	return a.Login(ctx, creds)
}

func (a *Authenticator) loginNative(ctx context.Context, creds attendance.Credentials) (*Response, error) {
	page, err := a.client.Get(ctx, a.contract.LoginPath)
	if err != nil {
		return nil, err
	}
	if page.Status != http.StatusOK {
		return nil, unexpectedf("login page returned HTTP %d", page.Status)
	}
	token, err := ExtractToken(page.Body, a.contract.LoginTokenField)
	if err != nil {
		return nil, errors.WithMessage(err, "login page")
	}

	form := url.Values{
		"username":                 {creds.Username},
		"password":                 {creds.Password},
		a.contract.LoginTokenField: {token},
		"anchor":                   {""},
	}
	resp, err := a.client.PostForm(ctx, page.URL.String(), form)
	if err != nil {
		return nil, err
	}
	if err := a.checkLanding(resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// loginShibboleth walks the federated flow: pick the IdP, post the
// credentials with the IdP's execution token, then relay the SAML assertion
// back to the service provider.
func (a *Authenticator) loginShibboleth(ctx context.Context, creds attendance.Credentials) (*Response, error) {
	shib := a.contract.Shibboleth

	page, err := a.client.Get(ctx, shib.LoginPath)
	if err != nil {
		return nil, err
	}
	if page.Status != http.StatusOK {
		return nil, unexpectedf("shibboleth login page returned HTTP %d", page.Status)
	}

	idpPage, err := a.client.PostForm(ctx, page.URL.String(), url.Values{"idp": {shib.IdPEntityID}})
	if err != nil {
		return nil, err
	}
	if idpPage.Status != http.StatusOK {
		return nil, unexpectedf("identity provider page returned HTTP %d", idpPage.Status)
	}
	execution, err := ExtractToken(idpPage.Body, shib.TokenField)
	if err != nil {
		return nil, errors.WithMessage(err, "identity provider page")
	}

	action := *idpPage.URL
	action.RawQuery = ""
	action.Fragment = ""
	resp, err := a.client.PostForm(ctx, action.String(), url.Values{
		"username":      {creds.Username},
		"password":      {creds.Password},
		shib.TokenField: {execution},
		"_eventId":      {"submit"},
		"geolocation":   {""},
	})
	if err != nil {
		return nil, err
	}
	if containsAny(resp.Body, a.contract.LoginErrorMarkers) {
		return nil, authFailedf("identity provider rejected the credentials")
	}

	target, fields, err := a.samlRelay(resp)
	if err != nil {
		return nil, err
	}
	landing, err := a.client.PostForm(ctx, target, fields)
	if err != nil {
		return nil, err
	}
	if err := a.checkLanding(landing); err != nil {
		return nil, err
	}
	return landing, nil
}

// samlRelay reads the auto-submitting form the IdP returns after a
// successful login.
func (a *Authenticator) samlRelay(resp *Response) (string, url.Values, error) {
	doc, err := parseHTML(resp.Body)
	if err != nil {
		return "", nil, err
	}
	assertion := findFirst(doc, inputNamed("SAMLResponse"))
	relay := findFirst(doc, inputNamed("RelayState"))
	if assertion == nil || relay == nil || attrValue(assertion, "value") == "" {
		return "", nil, authFailedf("no SAML assertion in identity provider response, are the credentials correct?")
	}

	target := a.contract.Shibboleth.ACSPath
	if form := closestForm(assertion); form != nil {
		if action := attrValue(form, "action"); action != "" {
			if u, err := resp.Resolve(action); err == nil {
				target = u.String()
			}
		}
	}
	return target, url.Values{
		"RelayState":   {attrValue(relay, "value")},
		"SAMLResponse": {attrValue(assertion, "value")},
	}, nil
}

// checkLanding classifies the page reached after submitting credentials.
func (a *Authenticator) checkLanding(resp *Response) error {
	if containsAny(resp.Body, a.contract.LoginErrorMarkers) {
		return authFailedf("portal rejected the credentials")
	}
	if a.contract.onLoginPage(resp) {
		return authFailedf("portal sent us back to the login page")
	}
	if resp.Status >= http.StatusBadRequest {
		return unexpectedf("login landing page returned HTTP %d", resp.Status)
	}
	return nil
}

// establish builds the session from the landing page. A session missing its
// sesskey or cookies is never handed out.
func (a *Authenticator) establish(landing *Response) (*attendance.Session, error) {
	sesskey := extractSessKey(landing.Body, a.contract.LogoutMarker)
	if sesskey == "" {
		return nil, unexpectedf("landing page %s carries no sesskey", landing.URL.Path)
	}
	cookies := a.client.Cookies()
	if len(cookies) == 0 {
		return nil, unexpectedf("portal did not set a session cookie")
	}
	names := make([]string, 0, len(cookies))
	for _, c := range cookies {
		names = append(names, c.Name)
	}
	return &attendance.Session{
		SessKey:       sesskey,
		Cookies:       names,
		Authenticated: true,
		EstablishedAt: a.now(),
		LandingURL:    landing.URL.String(),
	}, nil
}

func closestForm(n *html.Node) *html.Node {
	if isElement(n, atom.Form) {
		return n
	}
	return closest(n, atom.Form)
}
