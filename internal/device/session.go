// Package device is the single point of contact with the modem. It owns
// the resolved transports for the lifetime of a pipeline run, dispatches
// plain and privileged commands with the documented fallback order, and
// provides the bounded polling primitives the pipeline synchronizes on.
//
// The device itself is the shared mutable store: no stage passes results
// to the next in memory, every cross-stage fact is re-derived by probing
// through this package.
package device

import (
	"context"
	"fmt"

	"github.com/rayhunter-dev/installer/internal/adb"
	"github.com/rayhunter-dev/installer/internal/config"
	"github.com/rayhunter-dev/installer/internal/errors"
	"github.com/rayhunter-dev/installer/internal/logging"
	"github.com/rayhunter-dev/installer/internal/runner"
	"github.com/rayhunter-dev/installer/internal/serial"
)

// Session holds the transports resolved at pipeline start. It is
// constructed once and passed by reference into every stage; transports
// are never re-resolved mid-run.
type Session struct {
	Bridge adb.Endpoint
	Serial serial.Endpoint

	device config.DeviceConfig
	poll   config.PollConfig
	runner runner.Runner
	log    *logging.Logger
}

// NewSession creates a Session over the given transports.
func NewSession(bridge adb.Endpoint, ser serial.Endpoint, cfg *config.Config, r runner.Runner, log *logging.Logger) *Session {
	return &Session{
		Bridge: bridge,
		Serial: ser,
		device: cfg.Device,
		poll:   cfg.Poll,
		runner: r,
		log:    log,
	}
}

// Device returns the on-device filesystem layout for this session.
func (s *Session) Device() config.DeviceConfig {
	return s.device
}

// Shell runs a plain shell command on the device through the bridge.
func (s *Session) Shell(ctx context.Context, command string) (string, error) {
	if !s.Bridge.Available {
		return "", errors.NewTransportError("adb", "no bridge shell", errors.ErrShellUnavailable).WithFatal()
	}

	out, err := s.runner.Run(ctx, s.Bridge.Path, adb.ShellArgs(command)...)
	if err != nil {
		return out, errors.NewDispatchError(command, err).WithOutput(out)
	}
	return out, nil
}

// Push copies a local file to a device path through the bridge.
func (s *Session) Push(ctx context.Context, local, remote string) error {
	if !s.Bridge.Available {
		return errors.NewTransportError("adb", "no bridge shell", errors.ErrShellUnavailable).WithFatal()
	}

	out, err := s.runner.Run(ctx, s.Bridge.Path, adb.PushArgs(local, remote)...)
	if err != nil {
		return errors.NewDispatchError(runner.Quote("push", local, remote), err).WithOutput(out)
	}
	return nil
}

// Root runs a privileged command on the device.
//
// The serial channel is tried first: AT+SYSCMD executes as root before
// any shell-level root exists, which is what makes installing the
// rootshell helper possible in the first place. Without serial the
// command is piped through the helper over the bridge; if the helper is
// not installed yet that necessarily fails, and the failure is swallowed
// so downstream stages can treat the dispatch as a best-effort no-op.
func (s *Session) Root(ctx context.Context, command string) (string, error) {
	if s.Serial.Available {
		out, err := s.runner.Run(ctx, s.Serial.Path, serial.SystemCommandFrame(command))
		if err != nil {
			return out, errors.NewDispatchError(command, err).WithOutput(out)
		}
		return out, nil
	}

	if !s.Bridge.Available {
		return "", errors.NewTransportError("adb", "no transport for privileged command", errors.ErrShellUnavailable).WithFatal()
	}

	piped := fmt.Sprintf("echo %q | %s", command, s.device.RootshellPath)
	out, err := s.Shell(ctx, piped)
	if err != nil {
		s.log.Warn("privileged fallback failed, treating as no-op",
			"command", command,
			"error", err.Error())
		return out, nil
	}
	return out, nil
}

// SendFrame writes one raw AT frame through the serial channel. Used for
// frames that are not system commands, like the USB composition switch
// that forces the device into its debug state.
func (s *Session) SendFrame(ctx context.Context, frame string) error {
	if !s.Serial.Available {
		return errors.NewTransportError("serial", "no serial channel for frame", errors.ErrSerialUnavailable)
	}

	out, err := s.runner.Run(ctx, s.Serial.Path, frame)
	if err != nil {
		return errors.NewDispatchError(frame, err).WithOutput(out)
	}
	return nil
}

// EnsureForward establishes a local-to-device tcp forward for port,
// checking existing bindings first so repeated runs never stack
// duplicate forwards.
func (s *Session) EnsureForward(ctx context.Context, port int) error {
	if !s.Bridge.Available {
		return errors.NewTransportError("adb", "no bridge shell", errors.ErrShellUnavailable).WithFatal()
	}

	out, err := s.runner.Run(ctx, s.Bridge.Path, adb.ForwardListArgs()...)
	if err != nil {
		return errors.NewDispatchError("forward --list", err).WithOutput(out)
	}
	if adb.HasForward(out, port) {
		s.log.Debug("port forward already present", "port", port)
		return nil
	}

	out, err = s.runner.Run(ctx, s.Bridge.Path, adb.ForwardArgs(port)...)
	if err != nil {
		return errors.NewDispatchError(fmt.Sprintf("forward tcp:%d", port), err).WithOutput(out)
	}
	s.log.Info("port forward established", "port", port)
	return nil
}
