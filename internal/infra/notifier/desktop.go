package notifier

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"attendance_bot/internal/domain/attendance"
	"attendance_bot/internal/domain/notification"
)

type command struct {
	name string
	args []string
}

// Desktop shows the event through whichever host notifier is installed.
// A host without one is not an error.
type Desktop struct {
	title    string
	goos     string
	lookPath func(string) (string, error)
	run      func(ctx context.Context, name string, args ...string) error
	logger   logrus.FieldLogger
}

func NewDesktop(title string, logger logrus.FieldLogger) *Desktop {
	return &Desktop{
		title:    title,
		goos:     runtime.GOOS,
		lookPath: exec.LookPath,
		run:      runCommand,
		logger:   logger,
	}
}

func (d *Desktop) Kind() notification.Kind {
	return notification.KindDesktop
}

// Send tries the platform's notifiers in order and stops at the first one
// that succeeds.
func (d *Desktop) Send(ctx context.Context, ev attendance.Event) error {
	title := d.title
	if title == "" {
		title = ev.Title()
	} else if ev.Outcome().Failed() {
		title += " - Failed"
	}

	var lastErr error
	tried := 0
	for _, c := range d.commands(title, ev.Message) {
		if _, err := d.lookPath(c.name); err != nil {
			continue
		}
		tried++
		if err := d.run(ctx, c.name, c.args...); err != nil {
			d.logger.WithError(err).WithField("command", c.name).Debug("Desktop notifier failed, trying next")
			lastErr = errors.Wrapf(err, "run %s", c.name)
			continue
		}
		return nil
	}
	if tried == 0 {
		d.logger.WithField("os", d.goos).Debug("No desktop notifier available, skipping")
		return nil
	}
	return lastErr
}

func (d *Desktop) commands(title, message string) []command {
	switch d.goos {
	case "linux", "freebsd", "openbsd", "netbsd":
		return []command{
			{name: "notify-send", args: []string{"--app-name=attendance", title, message}},
			{name: "termux-notification", args: []string{"--title", title, "--content", message}},
		}
	case "android":
		return []command{
			{name: "termux-notification", args: []string{"--title", title, "--content", message}},
		}
	case "darwin":
		return []command{
			{name: "terminal-notifier", args: []string{"-title", title, "-message", message}},
			{name: "osascript", args: []string{"-e", fmt.Sprintf("display notification %q with title %q", message, title)}},
		}
	case "windows":
		return []command{
			{name: "powershell", args: []string{"-NoProfile", "-NonInteractive", "-Command", balloonScript(title, message)}},
		}
	default:
		return nil
	}
}

func balloonScript(title, message string) string {
	quote := func(s string) string { return "'" + strings.ReplaceAll(s, "'", "''") + "'" }
	return strings.Join([]string{
		"Add-Type -AssemblyName System.Windows.Forms",
		"$n = New-Object System.Windows.Forms.NotifyIcon",
		"$n.Icon = [System.Drawing.SystemIcons]::Information",
		"$n.Visible = $true",
		fmt.Sprintf("$n.ShowBalloonTip(10000, %s, %s, 'Info')", quote(title), quote(message)),
		"Start-Sleep -Seconds 5",
		"$n.Dispose()",
	}, "; ")
}

func runCommand(ctx context.Context, name string, args ...string) error {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		if msg := strings.TrimSpace(string(out)); msg != "" {
			return errors.Wrap(err, msg)
		}
		return err
	}
	return nil
}
