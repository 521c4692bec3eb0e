package device

import (
	"context"
)

// rebootCommand asks the device's init for a graceful delayed restart.
const rebootCommand = "shutdown -r -t 1 now"

// Reboot triggers a graceful restart and resynchronizes across the
// shutdown/boot-up transition.
//
// Order matters: the shell must be observed going down before waiting
// for it to come back, and the boot agent (the device's own runtime
// watchdog, not the just-deployed daemon) must be observed before the
// deployed daemon's init system can be trusted to have run.
func (s *Session) Reboot(ctx context.Context) error {
	log := s.log.WithStage("reboot")

	log.Info("requesting device restart")
	if _, err := s.Root(ctx, rebootCommand); err != nil {
		// The reboot may still land; the waiters below decide.
		log.Warn("restart dispatch reported failure", "error", err.Error())
	}

	log.Info("waiting for shutdown to begin")
	if err := s.WaitForShellDown(ctx); err != nil {
		return err
	}

	log.Info("waiting for shell to return")
	if err := s.WaitForShell(ctx); err != nil {
		return err
	}

	log.Info("waiting for boot agent", "process", s.device.AgentProcess)
	if err := s.WaitForAgent(ctx); err != nil {
		return err
	}

	log.Info("device back up")
	return nil
}
