package app

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"attendance_bot/internal/domain/attendance"
	"attendance_bot/internal/domain/notification"
)

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func usableSession() *attendance.Session {
	return &attendance.Session{SessKey: "k", Cookies: []string{"MoodleSession"}, Authenticated: true}
}

type fakeAuth struct {
	session  *attendance.Session
	err      error
	logins   int
	reauths  int
	reauthFn func() (*attendance.Session, error)
}

func (f *fakeAuth) Login(context.Context, attendance.Credentials) (*attendance.Session, error) {
	f.logins++
	return f.session, f.err
}

func (f *fakeAuth) Reauthenticate(context.Context, attendance.Credentials) (*attendance.Session, error) {
	f.reauths++
	if f.reauthFn != nil {
		return f.reauthFn()
	}
	return usableSession(), nil
}

type fakeLocator struct {
	inst  *attendance.Instrument
	err   error
	calls int
}

func (f *fakeLocator) FindActiveInstrument(context.Context, *attendance.Session) (*attendance.Instrument, error) {
	f.calls++
	return f.inst, f.err
}

type fakeSubmitter struct {
	result      attendance.Result
	callReauth  bool
	calls       int
	reauthError error
}

func (f *fakeSubmitter) Submit(ctx context.Context, _ *attendance.Session, inst attendance.Instrument, reauth attendance.Reauthenticate) attendance.Result {
	f.calls++
	if f.callReauth {
		_, f.reauthError = reauth(ctx)
	}
	return f.result
}

type recordingBackend struct {
	kind  notification.Kind
	err   error
	panic bool
	block bool

	mu     sync.Mutex
	events []attendance.Event
}

func (b *recordingBackend) Kind() notification.Kind {
	return b.kind
}

func (b *recordingBackend) Send(ctx context.Context, ev attendance.Event) error {
	if b.panic {
		panic("backend exploded")
	}
	if b.block {
		<-ctx.Done()
		return ctx.Err()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, ev)
	return b.err
}

func (b *recordingBackend) received() []attendance.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]attendance.Event(nil), b.events...)
}

type countingNotifier struct {
	inner NotificationService
	calls int
}

func (n *countingNotifier) Notify(ctx context.Context, ev attendance.Event) []notification.Delivery {
	n.calls++
	return n.inner.Notify(ctx, ev)
}

type fakeJournal struct {
	records []*attendance.RunRecord
	err     error
}

func (j *fakeJournal) Record(_ context.Context, rec *attendance.RunRecord) error {
	j.records = append(j.records, rec)
	return j.err
}

type harness struct {
	auth      *fakeAuth
	locator   *fakeLocator
	submitter *fakeSubmitter
	backend   *recordingBackend
	notifier  *countingNotifier
	journal   *fakeJournal
	service   *AttendanceServiceImpl
}

func newHarness() *harness {
	h := &harness{
		auth:      &fakeAuth{session: usableSession()},
		locator:   &fakeLocator{},
		submitter: &fakeSubmitter{},
		backend:   &recordingBackend{kind: notification.KindWebhook},
		journal:   &fakeJournal{},
	}
	h.notifier = &countingNotifier{inner: NewNotificationServiceImpl([]notification.Backend{h.backend}, time.Second, quietLogger())}
	factory := func() (*Portal, error) {
		return &Portal{Auth: h.auth, Locator: h.locator, Submitter: h.submitter}, nil
	}
	h.service = NewAttendanceServiceImpl(factory, h.notifier, h.journal, quietLogger())
	h.service.newRunID = func() string { return "run-1" }
	return h
}

func (h *harness) run() Report {
	return h.service.Run(context.Background(), attendance.Credentials{Username: "student", Password: "hunter2"})
}
