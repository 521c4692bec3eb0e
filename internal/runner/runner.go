// Package runner defines the command execution interface used by every
// component that shells out to host tools (adb, the serial binary, cargo,
// docker). Abstracting exec behind an interface keeps transport and build
// logic testable without a device or toolchain present.
package runner

import (
	"context"
	"os/exec"
	"strings"
)

// Runner executes a host command and returns its combined output.
//
// Implementations must honor context cancellation: a canceled context
// kills the underlying process.
type Runner interface {
	// Run executes name with args and returns combined stdout/stderr.
	Run(ctx context.Context, name string, args ...string) (string, error)

	// RunIn is Run with an explicit working directory. Used for builds
	// that must execute from the source tree.
	RunIn(ctx context.Context, dir, name string, args ...string) (string, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run executes name with args and returns combined output.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	return run(ctx, "", name, args...)
}

// RunIn executes name with args from dir.
func (ExecRunner) RunIn(ctx context.Context, dir, name string, args ...string) (string, error) {
	return run(ctx, dir, name, args...)
}

func run(ctx context.Context, dir, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// Quote joins command words into a display string for logs and error
// messages. It is not shell-safe quoting; device commands are passed as
// argument vectors, never re-parsed.
func Quote(words ...string) string {
	return strings.Join(words, " ")
}
