// Package serial provides discovery of and framing for the serial AT
// command channel.
//
// The channel is driven through a small helper binary that opens the
// modem's AT port and writes a single command frame. It matters because
// AT+SYSCMD reaches the device as root before any shell-level root
// exists, which makes serial the bootstrap path for privilege
// escalation.
package serial

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/rayhunter-dev/installer/internal/config"
	"github.com/rayhunter-dev/installer/internal/errors"
	"github.com/rayhunter-dev/installer/internal/logging"
	"github.com/rayhunter-dev/installer/internal/runner"
)

// Endpoint is the resolved serial transport. Availability is optional;
// the pipeline degrades to the rootshell fallback path without it.
type Endpoint struct {
	// Path is the serial helper executable.
	Path string
	// Available reports whether AT frames can be sent.
	Available bool
}

// SystemCommandFrame wraps a shell command in the AT system-command frame
// understood by the modem firmware. Commands sent this way execute as
// root regardless of the bridge shell's privilege level.
func SystemCommandFrame(command string) string {
	return "AT+SYSCMD=" + command
}

// UsbCompositionFrame returns the AT frame that switches the device USB
// composition to one that exposes the debug bridge.
func UsbCompositionFrame() string {
	return "AT+USBCOMP=1,1,9025"
}

// PrebuiltPath returns the expected location of a prebuilt serial helper
// for a host platform, relative to the working tree.
func PrebuiltPath(goos, goarch string) string {
	name := fmt.Sprintf("serial-%s-%s", goos, goarch)
	if goos == "windows" {
		name += ".exe"
	}
	return filepath.Join("serial", name)
}

// sourceDir is the serial helper's cargo source tree, when vendored.
const sourceDir = "serial"

// Resolve locates or builds the serial helper. Every failure here is
// soft: the endpoint comes back unavailable and the pipeline continues
// on the bridge-shell fallback path.
func Resolve(ctx context.Context, log *logging.Logger, cfg config.ToolsConfig, r runner.Runner) Endpoint {
	log = log.WithTransport("serial")

	if cfg.SerialPath != "" {
		if _, err := os.Stat(cfg.SerialPath); err == nil {
			return finish(ctx, log, cfg.SerialPath, r)
		}
		log.Warn("configured serial_path not found, continuing without serial",
			"path", cfg.SerialPath)
		return Endpoint{}
	}

	prebuilt := PrebuiltPath(runtime.GOOS, runtime.GOARCH)
	if _, err := os.Stat(prebuilt); err == nil {
		return finish(ctx, log, prebuilt, r)
	}

	built, err := buildFromSource(ctx, log, r)
	if err != nil {
		log.Warn("serial channel unavailable, privileged commands will use rootshell fallback",
			"error", err.Error())
		return Endpoint{}
	}
	return finish(ctx, log, built, r)
}

// buildFromSource compiles the helper from the vendored cargo tree.
// Native cargo is preferred; cross is attempted when native fails, since
// some hosts only carry the containerized toolchain.
func buildFromSource(ctx context.Context, log *logging.Logger, r runner.Runner) (string, error) {
	if _, err := os.Stat(filepath.Join(sourceDir, "Cargo.toml")); err != nil {
		return "", errors.NewTransportError("serial", "no prebuilt binary and no source tree", errors.ErrSerialUnavailable)
	}

	artifact := filepath.Join(sourceDir, "target", "release", "serial")

	log.Info("building serial helper from source")
	if out, err := r.RunIn(ctx, sourceDir, "cargo", "build", "--release"); err != nil {
		log.Warn("native cargo build failed, trying cross", "output", out)
		if out, err := r.RunIn(ctx, sourceDir, "cross", "build", "--release"); err != nil {
			log.Debug("cross build failed", "output", out)
			return "", errors.NewTransportError("serial", "cargo and cross builds both failed",
				errors.ErrSerialUnavailable)
		}
	}

	if _, err := os.Stat(artifact); err != nil {
		return "", errors.NewTransportError("serial", "build produced no binary", errors.ErrSerialUnavailable)
	}
	return artifact, nil
}

// finish clears any host quarantine marker and runs the helper self-test.
// Both steps are best effort.
func finish(ctx context.Context, log *logging.Logger, path string, r runner.Runner) Endpoint {
	if runtime.GOOS == "darwin" {
		// Gatekeeper blocks freshly downloaded binaries until the
		// quarantine attribute is removed.
		if out, err := r.Run(ctx, "xattr", "-d", "com.apple.quarantine", path); err != nil {
			log.Debug("quarantine clear skipped", "output", out)
		}
	}

	if out, err := r.Run(ctx, path, "--version"); err != nil {
		log.Warn("serial helper self-test failed, keeping transport anyway", "output", out)
	}

	log.Debug("serial channel resolved", "path", path)
	return Endpoint{Path: path, Available: true}
}
