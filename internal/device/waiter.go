package device

import (
	"context"
	"time"

	"github.com/rayhunter-dev/installer/internal/errors"
)

// The waiters below are the pipeline's only recovery mechanism for
// transport flakiness: a transiently failed command is never retried
// directly, the pipeline instead waits for the device state the command
// was meant to produce.
//
// Every wait is bounded by a configurable ceiling and honors context
// cancellation, so an unplugged device surfaces as a TimeoutError and an
// operator interrupt unwinds cleanly.

// WaitForShell blocks until the bridge shell answers a trivial probe.
func (s *Session) WaitForShell(ctx context.Context) error {
	return s.waitFor(ctx, "shell to come up", s.poll.ShellTimeout, s.shellResponds)
}

// WaitForShellDown blocks until the bridge shell stops answering. Used
// during reboot to confirm the shutdown actually began; returning while
// the old session still answers would race a stale "still up" probe
// against a device that has not started rebooting yet.
func (s *Session) WaitForShellDown(ctx context.Context) error {
	return s.waitFor(ctx, "shell to go down", s.poll.ShutdownTimeout, func(ctx context.Context) bool {
		return !s.shellResponds(ctx)
	})
}

// WaitForAgent blocks until the boot agent process is observed running.
func (s *Session) WaitForAgent(ctx context.Context) error {
	return s.waitFor(ctx, "boot agent", s.poll.AgentTimeout, s.agentRunning)
}

// waitFor polls predicate at the configured interval until it holds,
// the ceiling lapses, or ctx is canceled. The first probe fires
// immediately so an already-satisfied condition never costs an interval.
func (s *Session) waitFor(ctx context.Context, what string, ceiling time.Duration, predicate func(context.Context) bool) error {
	deadline := time.Now().Add(ceiling)

	for {
		if predicate(ctx) {
			return nil
		}

		if time.Now().After(deadline) {
			return errors.NewTimeoutError("waiting for "+what, ceiling)
		}

		select {
		case <-ctx.Done():
			return errors.Wrap(errors.ErrCanceled, "waiting for "+what)
		case <-time.After(s.poll.Interval):
		}
	}
}
