package portal

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"attendance_bot/internal/domain/attendance"
)

// maxReauthentications bounds how often one submission may log in again.
const maxReauthentications = 1

// Submitter records presence on a located instrument.
type Submitter struct {
	client   *Client
	contract *Contract
	logger   logrus.FieldLogger
}

func NewSubmitter(client *Client, contract *Contract, logger logrus.FieldLogger) *Submitter {
	return &Submitter{
		client:   client,
		contract: contract,
		logger:   logger,
	}
}

// Submit records presence and classifies the portal's answer. When the
// portal reports the session as gone, reauth is called once and the
// submission retried once; nothing else is retried.
func (s *Submitter) Submit(ctx context.Context, session *attendance.Session, inst attendance.Instrument, reauth attendance.Reauthenticate) attendance.Result {
	log := s.logger.WithField("instrument", inst.ID)
	reauths := 0
	for {
		outcome, err := s.attempt(ctx, session, inst, reauths > 0, log)
		if err == nil {
			log.WithField("outcome", outcome).Info("Attendance submission finished")
			return attendance.Completed(outcome, attendance.StageSubmitting, &inst)
		}
		if !errors.Is(err, attendance.ErrSessionExpired) {
			return s.failure(err, inst)
		}
		if reauth == nil {
			log.WithError(err).Error("Session expired and no re-authentication is available")
			return s.failure(errors.Wrap(attendance.ErrAuthenticationFailed, err.Error()), inst)
		}
		if reauths >= maxReauthentications {
			log.WithError(err).Error("Session expired again after re-authentication")
			return s.failure(errors.Wrap(attendance.ErrAuthenticationFailed, err.Error()), inst)
		}

		reauths++
		log.WithError(err).Warn("Portal session expired, re-authenticating once")
		fresh, rerr := reauth(ctx)
		if rerr != nil {
			if !errors.Is(rerr, attendance.ErrTransport) && !errors.Is(rerr, attendance.ErrAuthenticationFailed) {
				rerr = errors.Wrap(attendance.ErrAuthenticationFailed, "re-authentication: "+rerr.Error())
			}
			return s.failure(rerr, inst)
		}
		session = fresh
	}
}

func (s *Submitter) failure(err error, inst attendance.Instrument) attendance.Result {
	res := attendance.Failure(attendance.StageSubmitting, err)
	res.Instrument = &inst
	return res
}

// attempt loads the form and posts it once.
func (s *Submitter) attempt(ctx context.Context, session *attendance.Session, inst attendance.Instrument, refreshed bool, log logrus.FieldLogger) (attendance.Outcome, error) {
	if !session.Usable() {
		return "", expiredf("no usable session")
	}
	token := inst.SubmissionToken
	if token == "" || refreshed {
		token = session.SessKey
	}
	formURL, err := withQuery(inst.SubmissionEndpoint, "sesskey", token)
	if err != nil {
		return "", unexpectedf("submission endpoint %q: %v", inst.SubmissionEndpoint, err)
	}

	page, err := s.client.Get(ctx, formURL)
	if err != nil {
		return "", err
	}
	if s.contract.sessionExpired(page) {
		return "", expiredf("attendance form answered with the login page")
	}
	if containsAny(page.Body, s.contract.AlreadyMarkers) {
		return attendance.OutcomeAlreadyMarked, nil
	}
	if page.Status >= http.StatusBadRequest {
		return "", unexpectedf("attendance form returned HTTP %d", page.Status)
	}

	form, err := s.contract.parseAttendanceForm(page, token)
	if err != nil {
		// Some portals record presence as soon as the link is followed.
		if containsAny(page.Body, s.contract.SuccessMarkers) {
			return attendance.OutcomeSuccess, nil
		}
		return "", err
	}

	log.WithFields(logrus.Fields{"action": form.action, "status": form.status}).Debug("Posting attendance form")
	start := time.Now()
	resp, err := s.client.PostForm(ctx, form.action, form.values)
	if err != nil {
		return "", err
	}
	log.WithField("duration", time.Since(start).Round(time.Millisecond)).Debug("Attendance form posted")

	switch {
	case s.contract.sessionExpired(resp):
		return "", expiredf("submission answered with the login page")
	case containsAny(resp.Body, s.contract.AlreadyMarkers):
		return attendance.OutcomeAlreadyMarked, nil
	case resp.Status >= http.StatusBadRequest:
		return "", unexpectedf("submission returned HTTP %d", resp.Status)
	case containsAny(resp.Body, s.contract.SuccessMarkers):
		return attendance.OutcomeSuccess, nil
	default:
		return "", unexpectedf("submission response matched no known marker")
	}
}

func withQuery(raw, key, value string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if value == "" {
		return u.String(), nil
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
