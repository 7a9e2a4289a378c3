// Package notifier delivers desktop notifications into a target user's
// graphical session (spec.md §4.7). The daemon runs as root (or at least
// privileged enough to see other users' processes); notify-send itself must
// run inside the user's own session bus, so delivery is brokered through
// systemd-run rather than invoked directly.
package notifier

import (
	"bytes"
	"fmt"
	"os/exec"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/JacquesDurand/notify-done/internal/session"
	"github.com/JacquesDurand/notify-done/internal/tracker"
)

const appName = "notify-done"

// runner abstracts process execution so tests can substitute a fake.
type runner func(name string, args []string) ([]byte, error)

// Notifier sends completed-process notifications via systemd-run + notify-send.
type Notifier struct {
	log *logrus.Logger
	run runner
}

// New returns a Notifier. log may be nil.
func New(log *logrus.Logger) *Notifier {
	if log == nil {
		log = logrus.New()
	}
	return &Notifier{log: log, run: execRun}
}

func execRun(name string, args []string) ([]byte, error) {
	cmd := exec.Command(name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return stderr.Bytes(), err
	}
	return nil, nil
}

// Notify sends a notification describing process's completion into sess's
// session (spec.md §4.7). Failures are logged and swallowed: a notification
// delivery failure must never affect tracking state (spec.md §8).
func (n *Notifier) Notify(sess session.UserSession, process tracker.CompletedProcess) {
	summary := fmt.Sprintf("Command completed: %s", process.Comm)
	body := formatBody(process)

	if err := n.sendNotifySend(sess, summary, body); err != nil {
		n.log.WithFields(logrus.Fields{
			"uid":  sess.UID,
			"comm": process.Comm,
		}).WithError(err).Warn("notification delivery failed")
	}
}

// SendTest delivers a canned notification used by the "test" CLI subcommand
// (spec.md §6) to let a user confirm their session can receive notifications.
func (n *Notifier) SendTest(sess session.UserSession) error {
	return n.sendNotifySend(sess, appName+" test", "If you see this, notifications are working!")
}

func formatBody(p tracker.CompletedProcess) string {
	status := "succeeded"
	if p.ExitCode != 0 {
		status = "failed"
	}
	return fmt.Sprintf("%s\nDuration: %s\nExit code: %d", status, FormatDuration(p.Duration), p.ExitCode)
}

func (n *Notifier) sendNotifySend(sess session.UserSession, summary, body string) error {
	envVars := []string{
		fmt.Sprintf("XDG_RUNTIME_DIR=/run/user/%d", sess.UID),
		fmt.Sprintf("DBUS_SESSION_BUS_ADDRESS=%s", sess.DBusAddress),
	}
	if sess.Display != "" {
		if sess.Kind == session.KindWayland {
			envVars = append(envVars, fmt.Sprintf("WAYLAND_DISPLAY=%s", sess.Display))
		} else {
			envVars = append(envVars, fmt.Sprintf("DISPLAY=%s", sess.Display))
		}
	}

	args := []string{
		"--user",
		"--machine", fmt.Sprintf("%s@.host", sess.Username),
		"--quiet",
		"--pipe",
		"--wait",
		"--collect",
	}
	for _, ev := range envVars {
		args = append(args, "--setenv", ev)
	}
	args = append(args, "notify-send", "--app-name="+appName, summary, body)

	stderr, err := n.run("systemd-run", args)
	if err != nil {
		return fmt.Errorf("notifier: systemd-run failed: %w (%s)", err, stderr)
	}
	return nil
}

// FormatDuration renders d the way the §4.7 notification body and the
// foreground wrapper's completion line both want it: "Xs", "Xm Ys", or
// "Xh Ym Zs".
func FormatDuration(d time.Duration) string {
	secs := int64(d / time.Second)
	switch {
	case secs < 60:
		return fmt.Sprintf("%ds", secs)
	case secs < 3600:
		return fmt.Sprintf("%dm %ds", secs/60, secs%60)
	default:
		return fmt.Sprintf("%dh %dm %ds", secs/3600, (secs%3600)/60, secs%60)
	}
}
