package build

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rayhunter-dev/installer/internal/config"
	"github.com/rayhunter-dev/installer/internal/errors"
	"github.com/rayhunter-dev/installer/internal/logging"
)

type fakeRunner struct {
	mu      sync.Mutex
	handler func(name string, args []string) (string, error)
	calls   [][]string
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string{name}, args...))
	f.mu.Unlock()
	if f.handler == nil {
		return "", nil
	}
	return f.handler(name, args)
}

func (f *fakeRunner) RunIn(ctx context.Context, _ string, name string, args ...string) (string, error) {
	return f.Run(ctx, name, args...)
}

var errExit = errors.New("exit status 101")

func testBuildConfig(t *testing.T) config.BuildConfig {
	t.Helper()
	return config.BuildConfig{
		Target:       "armv7-unknown-linux-gnueabihf",
		ArtifactPath: filepath.Join(t.TempDir(), "rayhunter-daemon"),
	}
}

func writeArtifact(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("\x7fELF"), 0755); err != nil {
		t.Fatal(err)
	}
}

// noTools simulates a host with neither docker nor a cross toolchain.
func noTools(string) (string, error) {
	return "", errors.New("not found")
}

func TestSkipPolicyReturnsExistingArtifactWithoutBuilding(t *testing.T) {
	cfg := testBuildConfig(t)
	writeArtifact(t, cfg.ArtifactPath)

	r := &fakeRunner{}
	o := New(cfg, r, logging.NopLogger())
	o.lookPath = noTools

	artifact, err := o.Build(context.Background(), KeepExisting)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if !artifact.Reused {
		t.Error("artifact should be marked reused")
	}
	if artifact.Path != cfg.ArtifactPath {
		t.Errorf("Path = %q, want %q", artifact.Path, cfg.ArtifactPath)
	}
	if len(r.calls) != 0 {
		t.Errorf("no build tool should run on skip, got %v", r.calls)
	}
}

func TestNativeBuildRequiresCrossCompiler(t *testing.T) {
	cfg := testBuildConfig(t)

	o := New(cfg, &fakeRunner{}, logging.NopLogger())
	o.lookPath = noTools

	_, err := o.Build(context.Background(), AlwaysRebuild)
	if err == nil {
		t.Fatal("Build() error = nil, want toolchain error")
	}
	if !errors.Is(err, errors.ErrToolchainMissing) {
		t.Errorf("error = %v, want ErrToolchainMissing", err)
	}
	if !errors.IsFatal(err) {
		t.Error("missing toolchain must be fatal")
	}
}

func TestNativeBuildInvokesCargo(t *testing.T) {
	cfg := testBuildConfig(t)

	r := &fakeRunner{handler: func(name string, _ []string) (string, error) {
		if name == "cargo" {
			writeArtifact(t, cfg.ArtifactPath)
		}
		return "", nil
	}}
	o := New(cfg, r, logging.NopLogger())
	o.lookPath = func(name string) (string, error) {
		if name == "arm-linux-gnueabihf-gcc" {
			return "/usr/bin/" + name, nil
		}
		return "", errors.New("not found")
	}

	artifact, err := o.Build(context.Background(), AlwaysRebuild)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if artifact.Reused {
		t.Error("fresh build should not be marked reused")
	}

	if len(r.calls) != 1 {
		t.Fatalf("got %d tool calls, want 1: %v", len(r.calls), r.calls)
	}
	call := r.calls[0]
	if call[0] != "cargo" || call[1] != "build" || call[2] != "--release" {
		t.Errorf("call = %v, want cargo build --release", call)
	}
	if call[4] != cfg.Target {
		t.Errorf("target = %q, want %q", call[4], cfg.Target)
	}
}

func TestContainerBuildPreferredWhenDockerRunning(t *testing.T) {
	cfg := testBuildConfig(t)

	r := &fakeRunner{handler: func(name string, _ []string) (string, error) {
		if name == "cross" {
			writeArtifact(t, cfg.ArtifactPath)
		}
		return "", nil
	}}
	o := New(cfg, r, logging.NopLogger())
	o.lookPath = func(name string) (string, error) {
		return "/usr/bin/" + name, nil
	}

	if _, err := o.Build(context.Background(), AlwaysRebuild); err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	// docker info probe, then the cross build; never cargo directly.
	if r.calls[0][0] != "docker" || r.calls[0][1] != "info" {
		t.Errorf("first call = %v, want docker info", r.calls[0])
	}
	if r.calls[1][0] != "cross" {
		t.Errorf("second call = %v, want cross build", r.calls[1])
	}
}

func TestDockerInstalledButStoppedFallsBackToNative(t *testing.T) {
	cfg := testBuildConfig(t)

	r := &fakeRunner{handler: func(name string, _ []string) (string, error) {
		if name == "docker" {
			return "Cannot connect to the Docker daemon", errExit
		}
		if name == "cargo" {
			writeArtifact(t, cfg.ArtifactPath)
		}
		return "", nil
	}}
	o := New(cfg, r, logging.NopLogger())
	o.lookPath = func(name string) (string, error) {
		return "/usr/bin/" + name, nil
	}

	if _, err := o.Build(context.Background(), AlwaysRebuild); err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if last := r.calls[len(r.calls)-1]; last[0] != "cargo" {
		t.Errorf("last call = %v, want native cargo build", last)
	}
}

func TestBuildToolFailureIsFatal(t *testing.T) {
	cfg := testBuildConfig(t)

	r := &fakeRunner{handler: func(name string, _ []string) (string, error) {
		if name == "cargo" {
			return "error[E0308]: mismatched types", errExit
		}
		return "", nil
	}}
	o := New(cfg, r, logging.NopLogger())
	o.lookPath = func(name string) (string, error) {
		if name == "docker" {
			return "", errors.New("not found")
		}
		return "/usr/bin/" + name, nil
	}

	_, err := o.Build(context.Background(), AlwaysRebuild)
	if err == nil {
		t.Fatal("Build() error = nil, want fatal build error")
	}
	if !errors.IsFatal(err) {
		t.Error("build tool failure must be fatal")
	}

	var be *errors.BuildError
	if !errors.As(err, &be) {
		t.Fatalf("error type = %T, want *BuildError", err)
	}
	if be.Tool != "cargo" {
		t.Errorf("Tool = %q, want cargo", be.Tool)
	}
}

func TestLastLines(t *testing.T) {
	out := "a\nb\nc\nd\ne"
	if got := lastLines(out, 2); got != "d\ne" {
		t.Errorf("lastLines() = %q, want %q", got, "d\ne")
	}
	if got := lastLines("only", 5); got != "only" {
		t.Errorf("lastLines() = %q, want %q", got, "only")
	}
}
