package portal

import (
	"context"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"attendance_bot/internal/domain/attendance"
)

// windowPattern matches "10:00 - 12:00", "8h30 – 10h00", "10AM - 12:30PM".
var windowPattern = regexp.MustCompile(`(?i)(\d{1,2})(?:[:h](\d{2}))?\s*([ap]\.?m\.?)?\s*[-–—]\s*(\d{1,2})(?:[:h](\d{2}))?\s*([ap]\.?m\.?)?`)

// Locator finds the attendance session currently open for self-marking.
type Locator struct {
	client   *Client
	contract *Contract
	now      func() time.Time
	logger   logrus.FieldLogger
}

func NewLocator(client *Client, contract *Contract, logger logrus.FieldLogger) *Locator {
	return &Locator{
		client:   client,
		contract: contract,
		now:      time.Now,
		logger:   logger,
	}
}

// FindActiveInstrument scans the listing pages and returns the open
// instrument that opened most recently, or nil when nothing is open.
func (l *Locator) FindActiveInstrument(ctx context.Context, session *attendance.Session) (*attendance.Instrument, error) {
	if !session.Usable() {
		return nil, authFailedf("locator called without an authenticated session")
	}
	// Windows are printed in the portal's timezone, not the host's.
	now := l.now().In(l.contract.Location)

	var best *attendance.Instrument
	for _, listing := range l.contract.ListingURLs {
		resp, err := l.client.Get(ctx, listing)
		if err != nil {
			return nil, err
		}
		if resp.Status != http.StatusOK {
			return nil, unexpectedf("listing %s returned HTTP %d", listing, resp.Status)
		}
		if l.contract.onLoginPage(resp) {
			return nil, unexpectedf("listing %s answered with the login page", listing)
		}

		candidates, err := l.scan(resp, session, now)
		if err != nil {
			return nil, err
		}
		for i := range candidates {
			c := candidates[i]
			if best == nil || c.OpenedAt.After(best.OpenedAt) {
				best = &c
			}
		}
		l.logger.WithFields(logrus.Fields{"listing": listing, "open": len(candidates)}).Debug("Scanned attendance listing")
	}

	if best == nil {
		l.logger.Info("No attendance session is open")
		return nil, nil
	}
	l.logger.WithFields(logrus.Fields{"instrument": best.ID, "name": best.DisplayName}).Info("Found open attendance session")
	return best, nil
}

// scan returns the open instruments on one listing page in document order.
func (l *Locator) scan(resp *Response, session *attendance.Session, now time.Time) ([]attendance.Instrument, error) {
	doc, err := parseHTML(resp.Body)
	if err != nil {
		return nil, err
	}

	var found []attendance.Instrument
	seen := map[string]bool{}
	for _, a := range findAll(doc, func(n *html.Node) bool { return isElement(n, atom.A) }) {
		href, ok := attr(a, "href")
		if !ok {
			continue
		}
		u, err := resp.Resolve(href)
		if err != nil {
			continue
		}
		text := textContent(a)
		if !l.isSubmitLink(u, text) {
			continue
		}

		scope := closest(a, atom.Tr)
		if scope == nil {
			scope = a.Parent
		}
		inst := l.instrumentFrom(u, text, scope, session, resp.URL.String())
		if seen[inst.ID] {
			continue
		}
		seen[inst.ID] = true

		if opened, closes, ok := parseWindow(textContent(scope), now); ok {
			inst.OpenedAt, inst.ClosesAt = opened, closes
			if !inst.OpenAt(now) {
				l.logger.WithFields(logrus.Fields{"instrument": inst.ID, "opens": opened, "closes": closes}).Debug("Skipping attendance session outside its window")
				continue
			}
		}
		found = append(found, inst)
	}
	return found, nil
}

func (l *Locator) isSubmitLink(u *url.URL, text string) bool {
	if l.contract.SubmitPath != "" && strings.HasSuffix(u.Path, l.contract.SubmitPath) {
		return true
	}
	return l.contract.SubmitLinkText != "" && text == l.contract.SubmitLinkText
}

func (l *Locator) instrumentFrom(u *url.URL, linkText string, row *html.Node, session *attendance.Session, source string) attendance.Instrument {
	query := u.Query()
	token := query.Get("sesskey")
	if token == "" {
		token = session.SessKey
	}
	query.Del("sesskey")
	endpoint := *u
	endpoint.RawQuery = query.Encode()
	endpoint.Fragment = ""

	id := query.Get("sessid")
	if id == "" {
		id = endpoint.String()
	}

	name := linkText
	if isElement(row, atom.Tr) {
		if cell := findFirst(row, func(n *html.Node) bool { return isElement(n, atom.Td) }); cell != nil {
			if t := textContent(cell); t != "" {
				name = t
			}
		}
	}

	return attendance.Instrument{
		ID:                 id,
		DisplayName:        name,
		SubmissionEndpoint: endpoint.String(),
		SubmissionToken:    token,
		Source:             source,
	}
}

// parseWindow finds the first plausible time range in text and anchors it on
// now's date in now's location. Each end needs minutes or a meridiem (the start may borrow the
// end's) so dates like 2025-10-13 are not taken for times.
func parseWindow(text string, now time.Time) (time.Time, time.Time, bool) {
	for _, m := range windowPattern.FindAllStringSubmatch(text, -1) {
		if (m[2] == "" && m[3] == "" && m[6] == "") || (m[5] == "" && m[6] == "") {
			continue
		}
		startMin, ok := minutesOfDay(m[1], m[2], m[3], m[6])
		if !ok {
			continue
		}
		endMin, ok := minutesOfDay(m[4], m[5], m[6], "")
		if !ok {
			continue
		}
		day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		opened := day.Add(time.Duration(startMin) * time.Minute)
		closes := day.Add(time.Duration(endMin) * time.Minute)
		if !closes.After(opened) {
			// Crosses midnight: before its end time the window started yesterday.
			if now.Before(closes) {
				opened = opened.AddDate(0, 0, -1)
			} else {
				closes = closes.AddDate(0, 0, 1)
			}
		}
		return opened, closes, true
	}
	return time.Time{}, time.Time{}, false
}

// minutesOfDay converts an hour/minute/meridiem triple. When the start of a
// range has no meridiem it borrows the end's ("10 - 11:30AM").
func minutesOfDay(hourText, minuteText, meridiem, fallbackMeridiem string) (int, bool) {
	hour, err := strconv.Atoi(hourText)
	if err != nil {
		return 0, false
	}
	minute := 0
	if minuteText != "" {
		if minute, err = strconv.Atoi(minuteText); err != nil || minute > 59 {
			return 0, false
		}
	}
	if meridiem == "" {
		meridiem = fallbackMeridiem
	}
	switch strings.ToLower(strings.ReplaceAll(meridiem, ".", "")) {
	case "am":
		if hour < 1 || hour > 12 {
			return 0, false
		}
		if hour == 12 {
			hour = 0
		}
	case "pm":
		if hour < 1 || hour > 12 {
			return 0, false
		}
		if hour != 12 {
			hour += 12
		}
	default:
		if hour > 23 {
			return 0, false
		}
	}
	return hour*60 + minute, true
}
