package device

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/rayhunter-dev/installer/internal/errors"
)

func TestWaitForShellSucceedsOnceProbePasses(t *testing.T) {
	var probes atomic.Int32
	r := &fakeRunner{handler: func(string, []string) (string, error) {
		if probes.Add(1) < 4 {
			return "", errExit
		}
		return "", nil
	}}
	s := newTestSession(r, false)

	if err := s.WaitForShell(context.Background()); err != nil {
		t.Fatalf("WaitForShell() error = %v", err)
	}
	if probes.Load() < 4 {
		t.Errorf("probes = %d, want at least 4", probes.Load())
	}
}

func TestWaitForShellTimesOut(t *testing.T) {
	r := &fakeRunner{handler: func(string, []string) (string, error) {
		return "", errExit
	}}
	s := newTestSession(r, false)

	err := s.WaitForShell(context.Background())
	if err == nil {
		t.Fatal("WaitForShell() error = nil, want timeout")
	}
	if !errors.IsTimeout(err) {
		t.Errorf("error = %v, want timeout classification", err)
	}
}

func TestWaitForShellHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := &fakeRunner{handler: func(string, []string) (string, error) {
		return "", errExit
	}}
	s := newTestSession(r, false)

	err := s.WaitForShell(ctx)
	if err == nil {
		t.Fatal("WaitForShell() error = nil, want cancellation")
	}
	if !errors.Is(err, errors.ErrCanceled) {
		t.Errorf("error = %v, want ErrCanceled", err)
	}
}

func TestWaitForShellDownRefusesWhileShellResponsive(t *testing.T) {
	// The shell keeps answering: WaitForShellDown must not report
	// success, it must run into its ceiling.
	r := &fakeRunner{}
	s := newTestSession(r, false)

	err := s.WaitForShellDown(context.Background())
	if err == nil {
		t.Fatal("WaitForShellDown() = nil while shell is responsive, want timeout")
	}
	if !errors.IsTimeout(err) {
		t.Errorf("error = %v, want timeout", err)
	}
}

func TestWaitForShellDownSucceedsWhenShellDies(t *testing.T) {
	var probes atomic.Int32
	r := &fakeRunner{handler: func(string, []string) (string, error) {
		if probes.Add(1) < 3 {
			return "", nil // still up
		}
		return "", errExit // gone
	}}
	s := newTestSession(r, false)

	if err := s.WaitForShellDown(context.Background()); err != nil {
		t.Fatalf("WaitForShellDown() error = %v", err)
	}
}

func TestWaitForAgentMatchesProcessList(t *testing.T) {
	var probes atomic.Int32
	r := &fakeRunner{handler: func(_ string, args []string) (string, error) {
		if strings.Contains(args[1], "ps") && probes.Add(1) >= 2 {
			return "  412 root  atfwd_daemon\n", nil
		}
		return "  100 root  init\n", nil
	}}
	s := newTestSession(r, false)

	if err := s.WaitForAgent(context.Background()); err != nil {
		t.Fatalf("WaitForAgent() error = %v", err)
	}
}

func TestCurrentStateTransitions(t *testing.T) {
	tests := []struct {
		name    string
		handler func(name string, args []string) (string, error)
		want    State
	}{
		{
			name: "offline",
			handler: func(string, []string) (string, error) {
				return "", errExit
			},
			want: StateOffline,
		},
		{
			name: "shell up, agent absent",
			handler: func(_ string, args []string) (string, error) {
				if args[1] == "ps" {
					return "  100 root  init\n", nil
				}
				return "", nil
			},
			want: StateShellUp,
		},
		{
			name: "ready",
			handler: func(_ string, args []string) (string, error) {
				if args[1] == "ps" {
					return "  412 root  atfwd_daemon\n", nil
				}
				return "", nil
			},
			want: StateReady,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestSession(&fakeRunner{handler: tt.handler}, false)
			if got := s.CurrentState(context.Background()); got != tt.want {
				t.Errorf("CurrentState() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRebootSequence(t *testing.T) {
	// Scripted boot cycle: shell answers, then goes away, then returns,
	// then the agent appears.
	var phase atomic.Int32 // 0: up, 1: down, 2: up again
	var shellProbes atomic.Int32

	r := &fakeRunner{handler: func(name string, args []string) (string, error) {
		if name == "serial-bin" {
			phase.Store(1)
			return "OK", nil
		}
		if args[1] == "ps" {
			if phase.Load() == 2 {
				return "  412 root  atfwd_daemon\n", nil
			}
			return "", errExit
		}
		// trivial shell probe
		switch phase.Load() {
		case 1:
			if shellProbes.Add(1) >= 3 {
				phase.Store(2)
			}
			return "", errExit
		default:
			return "", nil
		}
	}}
	s := newTestSession(r, true)

	if err := s.Reboot(context.Background()); err != nil {
		t.Fatalf("Reboot() error = %v", err)
	}
	if phase.Load() != 2 {
		t.Errorf("phase = %d, want full cycle observed", phase.Load())
	}
}
