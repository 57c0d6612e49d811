package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Perform one attendance run and exit",
		Long: `Log in, find the attendance session that is open right now, record
presence on it and send one notification with the outcome.

Exit codes: 0 success, already marked or nothing open (also when another run
holds the lock); 1 configuration error; 2 authentication failed; 3 portal
unreachable; 4 unexpected portal response.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := prepare(cfg); err != nil {
				return err
			}
			log := ctx.log()

			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			var runErr error
			locked, err := withRunLock(cfg.LockFile, func() error {
				rt, err := newRunEnv(signalCtx, cfg, log)
				if err != nil {
					return err
				}
				defer rt.Close()

				report := rt.service.Run(signalCtx, rt.credentials())
				printReport(cmd.OutOrStdout(), report)
				runErr = errorFromEvent(report.Event)
				return nil
			})
			if err != nil {
				return err
			}
			if locked {
				log.WithField("lock", cfg.LockFile).Warn("Another attendance run is in progress, skipping")
				return nil
			}
			return runErr
		},
	}
}
