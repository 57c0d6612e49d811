// Command attendance records presence on the currently open Moodle
// attendance session and reports the outcome through the configured
// notification backends.
//
// It is meant to be started by cron or a systemd timer (`attendance run`),
// or to stay resident with its own schedule (`attendance schedule`).
package main
