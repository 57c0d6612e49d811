package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"time"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"attendance_bot/internal/app"
	"attendance_bot/internal/domain/attendance"
	"attendance_bot/internal/infra/config"
	"attendance_bot/internal/infra/database"
	"attendance_bot/internal/infra/notifier"
	"attendance_bot/internal/infra/portal"
)

// runEnv holds what outlives a single run: the dispatcher and the journal.
// The portal client is built fresh for every run.
type runEnv struct {
	cfg      *config.AppConfig
	notifier *app.NotificationServiceImpl
	service  *app.AttendanceServiceImpl
	db       *sql.DB
}

func newRunEnv(ctx context.Context, cfg *config.AppConfig, log *logrus.Logger) (*runEnv, error) {
	backends, err := notifier.Build(cfg, log.WithField("component", "notifier"))
	if err != nil {
		return nil, err
	}
	rt := &runEnv{
		cfg:      cfg,
		notifier: app.NewNotificationServiceImpl(backends, cfg.NotificationTimeout(), log.WithField("component", "dispatcher")),
	}

	var journal attendance.Journal
	if cfg.Database.URL != "" {
		if repo, db, err := openJournal(ctx, cfg.Database.URL); err != nil {
			log.WithError(err).Warn("Run journal unavailable, continuing without it")
		} else {
			rt.db = db
			journal = repo
			log.Info("Run journal connected")
		}
	}

	newPortal := func() (*app.Portal, error) {
		c, err := portal.NewComponents(cfg, log)
		if err != nil {
			return nil, err
		}
		return &app.Portal{Auth: c.Auth, Locator: c.Locator, Submitter: c.Submitter}, nil
	}
	rt.service = app.NewAttendanceServiceImpl(newPortal, rt.notifier, journal, log)
	return rt, nil
}

func openJournal(ctx context.Context, url string) (*database.PostgresRunRepository, *sql.DB, error) {
	db, err := database.NewPostgresConnection(ctx, url)
	if err != nil {
		return nil, nil, err
	}
	repo := database.NewPostgresRunRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	return repo, db, nil
}

func (rt *runEnv) Close() {
	if rt.db != nil {
		rt.db.Close()
	}
}

func (rt *runEnv) credentials() attendance.Credentials {
	return attendance.Credentials{Username: rt.cfg.Username, Password: rt.cfg.Password}
}

// prepare validates everything a run needs before anything touches the network.
func prepare(cfg *config.AppConfig) error {
	if err := cfg.RequireCredentials(); err != nil {
		return err
	}
	return cfg.Validate()
}

// withRunLock runs fn while holding the run lock. When another process holds
// it, fn is skipped and locked is true.
func withRunLock(path string, fn func() error) (locked bool, err error) {
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return false, errors.Wrap(err, "acquire run lock")
	}
	if !ok {
		return true, nil
	}
	defer lock.Unlock()
	return false, fn()
}

func printReport(w io.Writer, report app.Report) {
	fmt.Fprintf(w, "%s: %s\n", report.Result.Outcome, report.Event.Message)
	for _, d := range report.Deliveries {
		if d.OK() {
			fmt.Fprintf(w, "  %-8s sent (%s)\n", d.Backend, d.Duration.Round(time.Millisecond))
		} else {
			fmt.Fprintf(w, "  %-8s failed: %v\n", d.Backend, d.Err)
		}
	}
}
