package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"attendance_bot/internal/infra/scheduler"
)

// scheduledRunTimeout bounds one scheduled run including notifications.
const scheduledRunTimeout = 10 * time.Minute

func newScheduleCommand(ctx *commandContext) *cobra.Command {
	var cronSpecs []string

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Stay resident and run on cron expressions",
		Long: `Run attendance on one or more cron expressions until interrupted.
Each tick is an independent run with a fresh login. A tick that fires while
the previous run is still going is skipped.`,
		Example: `  attendance schedule --cron "0 8 * * 1-5" --cron "30 13 * * 1-5"`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if len(cronSpecs) > 0 {
				cfg.Schedule.Cron = cronSpecs
			}
			if err := prepare(cfg); err != nil {
				return err
			}
			if err := cfg.ValidateSchedule(); err != nil {
				return err
			}
			log := ctx.log()

			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			rt, err := newRunEnv(signalCtx, cfg, log)
			if err != nil {
				return err
			}
			defer rt.Close()

			job := func(jobCtx context.Context) {
				locked, err := withRunLock(cfg.LockFile, func() error {
					report := rt.service.Run(jobCtx, rt.credentials())
					printReport(cmd.OutOrStdout(), report)
					return nil
				})
				switch {
				case err != nil:
					log.WithError(err).Error("Scheduled run could not start")
				case locked:
					log.WithField("lock", cfg.LockFile).Warn("Another attendance run is in progress, skipping tick")
				}
			}

			sched := scheduler.NewRunScheduler(cfg.Schedule.Cron, job, scheduledRunTimeout, log.WithField("component", "scheduler"))
			if err := sched.Start(); err != nil {
				return err
			}
			log.WithFields(logrus.Fields{"cron": cfg.Schedule.Cron, "next": sched.Next()}).Info("Waiting for the next scheduled run")

			<-signalCtx.Done() // Block until a signal is received
			log.Info("Shutting down scheduler...")
			sched.Stop()
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&cronSpecs, "cron", nil, "Cron expression (repeatable, overrides ATTENDANCE_SCHEDULE)")
	return cmd
}
