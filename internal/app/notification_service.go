package app

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"attendance_bot/internal/domain/attendance"
	"attendance_bot/internal/domain/notification"
)

const defaultNotifyTimeout = 10 * time.Second

// NotificationService fans a run's event out to every enabled backend.
type NotificationService interface {
	// Notify delivers ev to all backends and reports one Delivery per
	// backend, in backend order. It never fails the run.
	Notify(ctx context.Context, ev attendance.Event) []notification.Delivery
}

// NotificationServiceImpl implements the NotificationService interface.
type NotificationServiceImpl struct {
	backends []notification.Backend
	timeout  time.Duration
	logger   logrus.FieldLogger
}

func NewNotificationServiceImpl(backends []notification.Backend, timeout time.Duration, logger logrus.FieldLogger) *NotificationServiceImpl {
	if timeout <= 0 {
		timeout = defaultNotifyTimeout
	}
	return &NotificationServiceImpl{
		backends: backends,
		timeout:  timeout,
		logger:   logger,
	}
}

// Notify runs the backends concurrently and waits for all of them. A slow,
// failing or panicking backend only affects its own Delivery.
func (s *NotificationServiceImpl) Notify(ctx context.Context, ev attendance.Event) []notification.Delivery {
	deliveries := make([]notification.Delivery, len(s.backends))
	if len(s.backends) == 0 {
		s.logger.Debug("No notification backend enabled")
		return deliveries
	}

	// Deliveries still go out when the run itself was cancelled.
	ctx = context.WithoutCancel(ctx)

	var wg sync.WaitGroup
	for i, backend := range s.backends {
		wg.Add(1)
		go func() {
			defer wg.Done()
			deliveries[i] = s.deliver(ctx, backend, ev)
		}()
	}
	wg.Wait()

	for _, d := range deliveries {
		log := s.logger.WithFields(logrus.Fields{"backend": d.Backend, "duration": d.Duration.Round(time.Millisecond)})
		if d.OK() {
			log.Info("Notification delivered")
		} else {
			log.WithError(d.Err).Warn("Notification delivery failed")
		}
	}
	return deliveries
}

func (s *NotificationServiceImpl) deliver(ctx context.Context, backend notification.Backend, ev attendance.Event) (d notification.Delivery) {
	d.Backend = backend.Kind()
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			d.Err = errors.Errorf("%s backend panicked: %v", d.Backend, r)
		}
		d.Duration = time.Since(start)
	}()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	d.Err = backend.Send(ctx, ev)
	return d
}
