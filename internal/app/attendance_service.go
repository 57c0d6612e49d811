package app

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"attendance_bot/internal/domain/attendance"
	"attendance_bot/internal/domain/notification"
)

const journalTimeout = 5 * time.Second

// Authenticator logs the user into the portal.
type Authenticator interface {
	Login(ctx context.Context, creds attendance.Credentials) (*attendance.Session, error)
	Reauthenticate(ctx context.Context, creds attendance.Credentials) (*attendance.Session, error)
}

// InstrumentLocator finds the attendance session to mark, nil when none is open.
type InstrumentLocator interface {
	FindActiveInstrument(ctx context.Context, session *attendance.Session) (*attendance.Instrument, error)
}

// AttendanceSubmitter records presence on an instrument.
type AttendanceSubmitter interface {
	Submit(ctx context.Context, session *attendance.Session, inst attendance.Instrument, reauth attendance.Reauthenticate) attendance.Result
}

// Portal is the set of collaborators for one run. They share a transport
// client, so a new Portal is built for every run.
type Portal struct {
	Auth      Authenticator
	Locator   InstrumentLocator
	Submitter AttendanceSubmitter
}

// PortalFactory builds the Portal for a new run.
type PortalFactory func() (*Portal, error)

// Report is everything a run produced.
type Report struct {
	Result     attendance.Result
	Event      attendance.Event
	Deliveries []notification.Delivery
}

// AttendanceService performs one complete attendance run.
type AttendanceService interface {
	Run(ctx context.Context, creds attendance.Credentials) Report
}

// AttendanceServiceImpl implements the AttendanceService interface.
type AttendanceServiceImpl struct {
	newPortal PortalFactory
	notifier  NotificationService
	journal   attendance.Journal // optional
	logger    logrus.FieldLogger
	now       func() time.Time
	newRunID  func() string
}

func NewAttendanceServiceImpl(
	newPortal PortalFactory,
	notifier NotificationService,
	journal attendance.Journal,
	logger logrus.FieldLogger,
) *AttendanceServiceImpl {
	return &AttendanceServiceImpl{
		newPortal: newPortal,
		notifier:  notifier,
		journal:   journal,
		logger:    logger,
		now:       time.Now,
		newRunID:  uuid.NewString,
	}
}

// Run walks Start → Authenticating → Locating → Submitting → Notifying → Done.
// A fatal stage skips straight to Notifying. Every run yields exactly one
// Result, one Event and one Notify call.
func (s *AttendanceServiceImpl) Run(ctx context.Context, creds attendance.Credentials) Report {
	runID := s.newRunID()
	log := s.logger.WithField("run_id", runID)
	started := s.now()
	log.WithField("stage", attendance.StageStart).Info("Attendance run started")

	res := s.execute(ctx, creds, log)
	res.RunID = runID
	res.StartedAt = started
	res.FinishedAt = s.now()

	resLog := log.WithFields(logrus.Fields{"stage": res.Stage, "outcome": res.Outcome})
	if res.Err != nil {
		resLog = resLog.WithError(res.Err)
	}
	if res.Outcome.Failed() {
		resLog.Error("Attendance run failed")
	} else {
		resLog.Info("Attendance run produced a result")
	}

	ev := attendance.NewEvent(res)
	log.WithField("stage", attendance.StageNotifying).Debug("Dispatching notifications")
	deliveries := s.notifier.Notify(ctx, ev)

	s.record(ctx, ev, log)

	log.WithFields(logrus.Fields{
		"stage":    attendance.StageDone,
		"outcome":  res.Outcome,
		"duration": res.FinishedAt.Sub(started).Round(time.Millisecond),
	}).Info("Attendance run finished")

	return Report{Result: res, Event: ev, Deliveries: deliveries}
}

func (s *AttendanceServiceImpl) execute(ctx context.Context, creds attendance.Credentials, log logrus.FieldLogger) attendance.Result {
	portal, err := s.newPortal()
	if err != nil {
		return attendance.Failure(attendance.StageStart, errors.Wrap(err, "prepare portal client"))
	}

	log.WithField("stage", attendance.StageAuthenticating).Info("Authenticating")
	session, err := portal.Auth.Login(ctx, creds)
	if err != nil {
		return attendance.Failure(attendance.StageAuthenticating, err)
	}
	if !session.Usable() {
		return attendance.Failure(attendance.StageAuthenticating,
			errors.Wrap(attendance.ErrAuthenticationFailed, "login returned an incomplete session"))
	}

	log.WithField("stage", attendance.StageLocating).Info("Looking for an open attendance session")
	inst, err := portal.Locator.FindActiveInstrument(ctx, session)
	if err != nil {
		return attendance.Failure(attendance.StageLocating, err)
	}
	if inst == nil {
		return attendance.Completed(attendance.OutcomeNoActiveInstrument, attendance.StageLocating, nil)
	}

	log.WithFields(logrus.Fields{"stage": attendance.StageSubmitting, "instrument": inst.ID}).Info("Submitting attendance")
	reauth := func(ctx context.Context) (*attendance.Session, error) {
		log.WithField("stage", attendance.StageSubmitting).Warn("Re-authenticating")
		return portal.Auth.Reauthenticate(ctx, creds)
	}
	res := portal.Submitter.Submit(ctx, session, *inst, reauth)
	res.Stage = attendance.StageSubmitting
	if res.Instrument == nil {
		res.Instrument = inst
	}
	return res
}

// record appends the run to the journal. Journal trouble is logged and
// never changes the outcome.
func (s *AttendanceServiceImpl) record(ctx context.Context, ev attendance.Event, log logrus.FieldLogger) {
	if s.journal == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), journalTimeout)
	defer cancel()
	if err := s.journal.Record(ctx, attendance.NewRunRecord(ev)); err != nil {
		log.WithError(err).Warn("Could not record run in journal")
	}
}
