package portal

import (
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	maxBodyBytes   = 8 << 20
	defaultTimeout = 30 * time.Second
)

// Response is a fully read HTTP response. URL is the final location after
// redirects were followed.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
	URL    *url.URL
}

// Resolve turns an href found in the page into an absolute URL.
func (r *Response) Resolve(href string) (*url.URL, error) {
	return r.URL.Parse(strings.TrimSpace(href))
}

// Client issues portal requests for one run. Cookies set by responses are
// kept in memory and replayed on later requests; nothing is persisted.
type Client struct {
	base      *url.URL
	http      *http.Client
	userAgent string
	logger    logrus.FieldLogger
}

// NewClient builds a client rooted at baseURL.
func NewClient(baseURL string, timeout time.Duration, userAgent string, logger logrus.FieldLogger) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return nil, errors.Wrap(err, "parse portal base url")
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, errors.Errorf("portal base url %q is not absolute", baseURL)
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, errors.Wrap(err, "create cookie jar")
	}
	return &Client{
		base:      base,
		http:      &http.Client{Timeout: timeout, Jar: jar},
		userAgent: userAgent,
		logger:    logger,
	}, nil
}

// Resolve maps a configured target onto the portal. Absolute URLs are used
// as-is; paths are taken relative to the base URL, including its path prefix.
func (c *Client) Resolve(target string) (*url.URL, error) {
	ref, err := url.Parse(strings.TrimSpace(target))
	if err != nil {
		return nil, errors.Wrapf(err, "parse target %q", target)
	}
	if ref.IsAbs() {
		return ref, nil
	}
	u := *c.base
	u.Path = strings.TrimRight(c.base.Path, "/") + "/" + strings.TrimLeft(ref.Path, "/")
	u.RawPath = ""
	u.RawQuery = ref.RawQuery
	u.Fragment = ""
	return &u, nil
}

func (c *Client) Get(ctx context.Context, target string) (*Response, error) {
	return c.Do(ctx, http.MethodGet, target, nil, nil)
}

func (c *Client) PostForm(ctx context.Context, target string, form url.Values) (*Response, error) {
	return c.Do(ctx, http.MethodPost, target, form, nil)
}

// Do performs one request and reads the whole body. Connection failures,
// DNS failures and timeouts are reported as transport errors.
func (c *Client) Do(ctx context.Context, method, target string, form url.Values, headers http.Header) (*Response, error) {
	u, err := c.Resolve(target)
	if err != nil {
		return nil, unexpectedf("%v", err)
	}

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, errors.Wrap(err, "build portal request")
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	for key, values := range headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, transportError(method+" "+u.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, transportError("read "+u.Path, err)
	}

	c.logger.WithFields(logrus.Fields{
		"method":   method,
		"path":     u.Path,
		"status":   resp.StatusCode,
		"final":    resp.Request.URL.Path,
		"duration": time.Since(start).Round(time.Millisecond),
	}).Debug("portal request")

	return &Response{
		Status: resp.StatusCode,
		Header: resp.Header,
		Body:   data,
		URL:    resp.Request.URL,
	}, nil
}

// Cookies returns the cookies the jar would send to the portal root.
func (c *Client) Cookies() []*http.Cookie {
	root := *c.base
	root.Path = strings.TrimRight(c.base.Path, "/") + "/"
	return c.http.Jar.Cookies(&root)
}

// ResetSession drops every cookie so the next login starts clean.
func (c *Client) ResetSession() error {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return errors.Wrap(err, "create cookie jar")
	}
	c.http.Jar = jar
	return nil
}
