// Package escalate installs the rootshell setuid helper on the device,
// establishing a privileged execution path that does not depend on the
// bridge's own privilege level.
package escalate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rayhunter-dev/installer/internal/device"
	"github.com/rayhunter-dev/installer/internal/errors"
	"github.com/rayhunter-dev/installer/internal/logging"
)

// helperSearchPaths lists where the rootshell binary may live locally,
// first match wins.
func helperSearchPaths(target string) []string {
	return []string{
		filepath.Join("rootshell", "rootshell"),
		filepath.Join("target", target, "release", "rootshell"),
	}
}

// postConditionCeiling bounds the wait for each privileged sub-step to
// become visible on the device. Privileged commands apply asynchronously
// on the device side, so each step is confirmed by polling its
// post-condition instead of sleeping a fixed delay.
const postConditionCeiling = 10 * time.Second

// Escalator stages and activates the rootshell helper.
type Escalator struct {
	session  *device.Session
	log      *logging.Logger
	target   string // build target triple, for the artifact search path
	ceiling  time.Duration
	interval time.Duration
}

// New creates an Escalator for the given session.
func New(session *device.Session, target string, log *logging.Logger) *Escalator {
	return &Escalator{
		session:  session,
		log:      log.WithStage("escalate"),
		target:   target,
		ceiling:  postConditionCeiling,
		interval: 500 * time.Millisecond,
	}
}

// Escalate locates, stages and activates the helper. It never fails the
// pipeline: when the helper binary cannot be found locally it logs a
// warning and returns nil, leaving downstream privileged commands as
// best-effort no-ops.
func (e *Escalator) Escalate(ctx context.Context) error {
	local := e.locateHelper()
	if local == "" {
		e.log.Warn("rootshell binary not found locally, skipping escalation",
			"searched", strings.Join(helperSearchPaths(e.target), ", "))
		return nil
	}

	dev := e.session.Device()
	tempPath := dev.TempDir + "/rootshell"

	e.log.Info("staging rootshell helper", "local", local, "temp", tempPath)
	if err := e.session.Push(ctx, local, tempPath); err != nil {
		return err
	}

	steps := []struct {
		command string
		// check confirms the step applied; empty output means not yet.
		check string
		want  string
	}{
		{
			command: fmt.Sprintf("cp %s %s", tempPath, dev.RootshellPath),
			check:   fmt.Sprintf("ls %s 2>/dev/null", dev.RootshellPath),
			want:    dev.RootshellPath,
		},
		{
			command: fmt.Sprintf("chown root %s", dev.RootshellPath),
			check:   fmt.Sprintf("ls -l %s 2>/dev/null", dev.RootshellPath),
			want:    "root",
		},
		{
			command: fmt.Sprintf("chmod 4755 %s", dev.RootshellPath),
			check:   fmt.Sprintf("ls -l %s 2>/dev/null", dev.RootshellPath),
			want:    "rws",
		},
	}

	for _, step := range steps {
		e.log.Debug("privileged sub-step", "command", step.command)
		if _, err := e.session.Root(ctx, step.command); err != nil {
			return err
		}
		if err := e.awaitPostCondition(ctx, step.check, step.want); err != nil {
			// Without serial the privileged dispatch is a best-effort
			// pipe through a helper that may not exist yet; a lapsed
			// post-condition then means nothing was executed at all, and
			// polling the remaining sub-steps would lapse identically.
			if errors.IsTimeout(err) && !e.session.Serial.Available {
				e.log.Warn("privileged fallback produced no visible effect, skipping helper activation")
				return nil
			}
			return err
		}
	}

	return e.verify(ctx)
}

// locateHelper returns the first local rootshell binary found.
func (e *Escalator) locateHelper() string {
	for _, candidate := range helperSearchPaths(e.target) {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// awaitPostCondition polls a shell check until its output contains want.
// This replaces the fixed sleeps the device's asynchronous command
// application would otherwise require.
func (e *Escalator) awaitPostCondition(ctx context.Context, check, want string) error {
	deadline := time.Now().Add(e.ceiling)

	for {
		out, err := e.session.Shell(ctx, check)
		if err == nil && strings.Contains(out, want) {
			return nil
		}

		if time.Now().After(deadline) {
			return errors.NewTimeoutError("post-condition "+check, e.ceiling)
		}

		select {
		case <-ctx.Done():
			return errors.Wrap(errors.ErrCanceled, "post-condition "+check)
		case <-time.After(e.interval):
		}
	}
}

// verify runs an identity check through the helper over the plain bridge
// shell. A working setuid helper answers uid=0 without serial help.
func (e *Escalator) verify(ctx context.Context) error {
	dev := e.session.Device()

	out, err := e.session.Shell(ctx, dev.RootshellPath+" -c id")
	if err != nil {
		e.log.Warn("rootshell verification failed", "error", err.Error())
		return nil
	}
	if !strings.Contains(out, "uid=0") {
		e.log.Warn("rootshell installed but not privileged", "id", strings.TrimSpace(out))
		return nil
	}

	e.log.Info("rootshell active", "path", dev.RootshellPath)
	return nil
}
