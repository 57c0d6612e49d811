package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"attendance_bot/internal/app"
	"attendance_bot/internal/domain/attendance"
	"attendance_bot/internal/infra/notifier"
)

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification through every enabled backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := cfg.ValidateNotifications(); err != nil {
				return err
			}
			log := ctx.log()

			backends, err := notifier.Build(cfg, log.WithField("component", "notifier"))
			if err != nil {
				return err
			}
			if len(backends) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No notification backend configured")
				return nil
			}

			now := time.Now()
			res := attendance.Completed(attendance.OutcomeSuccess, attendance.StageDone, nil)
			res.RunID = uuid.NewString()
			res.StartedAt, res.FinishedAt = now, now
			ev := attendance.Event{
				Result:    res,
				Message:   "Test notification from the attendance bot.",
				Timestamp: now,
			}

			svc := app.NewNotificationServiceImpl(backends, cfg.NotificationTimeout(), log.WithField("component", "dispatcher"))
			failed := 0
			for _, d := range svc.Notify(cmd.Context(), ev) {
				if d.OK() {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: sent\n", d.Backend)
					continue
				}
				failed++
				fmt.Fprintf(cmd.OutOrStdout(), "%s: failed: %v\n", d.Backend, d.Err)
			}
			if failed > 0 {
				return errors.Errorf("%d of %d notification backends failed", failed, len(backends))
			}
			return nil
		},
	}
}
