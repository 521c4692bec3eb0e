package errors

import (
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestTransportErrorFormatting(t *testing.T) {
	err := NewTransportError("serial", "self-test failed", New("exit status 1"))

	msg := err.Error()
	if !strings.Contains(msg, "transport error [serial]") {
		t.Errorf("Error() = %q, want transport prefix", msg)
	}
	if !strings.Contains(msg, "self-test failed") {
		t.Errorf("Error() = %q, want message included", msg)
	}
}

func TestTransportErrorFatality(t *testing.T) {
	soft := NewTransportError("serial", "binary not found", ErrSerialUnavailable)
	if IsFatal(soft) {
		t.Error("serial transport error should not be fatal")
	}
	if !IsSoft(soft) {
		t.Error("serial transport error should be soft")
	}

	fatal := NewTransportError("adb", "unrecognized platform", ErrPlatformUnsupported).WithFatal()
	if !IsFatal(fatal) {
		t.Error("adb platform error should be fatal")
	}
}

func TestDispatchErrorCarriesOutput(t *testing.T) {
	err := NewDispatchError("chmod 4755 /bin/rootshell", New("exit status 1")).
		WithOutput("chmod: /bin/rootshell: Permission denied\n")

	msg := err.Error()
	if !strings.Contains(msg, `cmd="chmod 4755 /bin/rootshell"`) {
		t.Errorf("Error() = %q, want command context", msg)
	}
	if !strings.Contains(msg, "Permission denied") {
		t.Errorf("Error() = %q, want trimmed device output", msg)
	}
	if strings.HasSuffix(msg, "\n") {
		t.Errorf("Error() = %q, output should be trimmed", msg)
	}
}

func TestDispatchErrorOutputIsBounded(t *testing.T) {
	err := NewDispatchError("ps", New("exit status 1")).
		WithOutput(strings.Repeat("x", 10000))

	if got := len([]rune(err.Output)); got > maxCapturedOutput {
		t.Errorf("captured output = %d runes, want at most %d", got, maxCapturedOutput)
	}
	if !strings.HasSuffix(err.Output, "...") {
		t.Error("truncated output should end with an ellipsis")
	}
}

func TestBuildErrorIsAlwaysFatal(t *testing.T) {
	err := NewBuildError("cargo build failed", New("exit status 101")).
		WithTool("cargo").
		WithTarget("armv7-unknown-linux-gnueabihf")

	if !IsFatal(err) {
		t.Error("build errors must be fatal")
	}
	if !strings.Contains(err.Error(), "tool=cargo") {
		t.Errorf("Error() = %q, want tool context", err.Error())
	}
	if !strings.Contains(err.Error(), "target=armv7-unknown-linux-gnueabihf") {
		t.Errorf("Error() = %q, want target context", err.Error())
	}
}

func TestDeployErrorSoftDowngrade(t *testing.T) {
	fatal := NewDeployError("artifact missing", ErrArtifactMissing)
	if !IsFatal(fatal) {
		t.Error("deploy error should default to fatal")
	}

	soft := NewDeployError("init script missing", nil).WithPath("/etc/init.d/misc-daemon").WithSoft()
	if IsFatal(soft) {
		t.Error("WithSoft should downgrade deploy error")
	}
	if !strings.Contains(soft.Error(), "path=/etc/init.d/misc-daemon") {
		t.Errorf("Error() = %q, want path context", soft.Error())
	}
}

func TestVerifyErrorClassifiesAsTimeout(t *testing.T) {
	err := NewVerifyError(8080, 30*time.Second, nil)

	if !IsTimeout(err) {
		t.Error("verify error should classify as timeout")
	}
	if IsFatal(err) {
		t.Error("verify error must never be fatal")
	}
	if !Is(err, ErrTimeout) {
		t.Error("verify error should match ErrTimeout")
	}
	if !strings.Contains(err.Error(), "port 8080") {
		t.Errorf("Error() = %q, want port in message", err.Error())
	}
}

func TestTimeoutError(t *testing.T) {
	err := NewTimeoutError("waiting for shell", 5*time.Minute)

	if !IsTimeout(err) {
		t.Error("TimeoutError should classify as timeout")
	}
	if !Is(err, ErrTimeout) {
		t.Error("TimeoutError should match ErrTimeout sentinel")
	}
	want := "timeout error: waiting for shell (timeout: 5m0s)"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestSentinelsAreFatalWhenWrapped(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"platform wrapped", fmt.Errorf("resolve: %w", ErrPlatformUnsupported), true},
		{"toolchain wrapped", Wrap(ErrToolchainMissing, "native build"), true},
		{"artifact wrapped", Wrapf(ErrArtifactMissing, "deploy %s", "daemon"), true},
		{"unknown error", New("something unexpected"), true},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		if got := IsFatal(tt.err); got != tt.want {
			t.Errorf("%s: IsFatal() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestIsSoftExcludesTimeouts(t *testing.T) {
	timeout := NewTimeoutError("verify", 30*time.Second)
	if IsSoft(timeout) {
		t.Error("timeouts are not soft errors")
	}

	soft := NewDispatchError("stop service", New("exit status 1"))
	if !IsSoft(soft) {
		t.Error("dispatch errors should be soft")
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(nil, "context") != nil {
		t.Error("Wrap(nil) should return nil")
	}
	if Wrapf(nil, "context %d", 1) != nil {
		t.Error("Wrapf(nil) should return nil")
	}
}
