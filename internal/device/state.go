package device

import (
	"context"
	"strings"
)

// State is the externally observed provisioning state of the device.
// There is no push notification from the device; every transition is
// detected by polling.
type State string

const (
	// StateOffline means no shell is reachable.
	StateOffline State = "offline"
	// StateShellUp means the bridge shell answers a trivial probe.
	StateShellUp State = "shell-up"
	// StateReady means the boot agent process is running, i.e. the
	// device finished booting into its normal runtime.
	StateReady State = "ready"
)

// CurrentState probes the device and reports its observed state.
func (s *Session) CurrentState(ctx context.Context) State {
	if !s.shellResponds(ctx) {
		return StateOffline
	}
	if s.agentRunning(ctx) {
		return StateReady
	}
	return StateShellUp
}

// shellResponds issues the trivial shell probe.
func (s *Session) shellResponds(ctx context.Context) bool {
	_, err := s.Shell(ctx, "true")
	return err == nil
}

// agentRunning reports whether the boot agent process shows up in ps.
func (s *Session) agentRunning(ctx context.Context) bool {
	out, err := s.Shell(ctx, "ps")
	if err != nil {
		return false
	}
	return strings.Contains(out, s.device.AgentProcess)
}

// ProcessRunning reports whether any process matching name shows up in
// the device process list.
func (s *Session) ProcessRunning(ctx context.Context, name string) bool {
	out, err := s.Shell(ctx, "ps")
	if err != nil {
		return false
	}
	return strings.Contains(out, name)
}
