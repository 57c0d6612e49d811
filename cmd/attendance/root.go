package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	ctx := newCommandContext()

	rootCmd := &cobra.Command{
		Use:           "attendance",
		Short:         "Record presence on the open Moodle attendance session",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&ctx.flags.configPath, "config", "c", "", "Configuration file path (default ./attendance.toml when present)")
	flags.StringVar(&ctx.flags.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flags.IntVar(&ctx.flags.timeout, "timeout", 0, "Per-request timeout in seconds")
	flags.StringVar(&ctx.flags.notify, "notify", "", "Comma-separated notification backends (webhook, ntfy, desktop, telegram) or none")
	flags.StringVarP(&ctx.flags.webhookURL, "webhook-url", "w", "", "Webhook URL (Discord compatible)")
	flags.StringVar(&ctx.flags.ntfyURL, "ntfy-url", "", "ntfy topic URL")
	flags.StringVarP(&ctx.flags.username, "username", "u", "", "Moodle username (default $MOODLE_USERNAME)")
	flags.StringVarP(&ctx.flags.password, "password", "p", "", "Moodle password (default $MOODLE_PASSWORD)")

	rootCmd.AddCommand(newRunCommand(ctx))
	rootCmd.AddCommand(newScheduleCommand(ctx))
	rootCmd.AddCommand(newTestNotifyCommand(ctx))

	return rootCmd
}
