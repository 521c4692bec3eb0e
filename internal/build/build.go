// Package build produces the deployable daemon artifact. The build tool
// itself is opaque: this package only decides whether to build at all,
// whether to build in a container or natively, and turns tool failures
// into fatal pipeline errors.
package build

import (
	"context"
	"os"
	"os/exec"
	"strings"

	"github.com/rayhunter-dev/installer/internal/config"
	"github.com/rayhunter-dev/installer/internal/errors"
	"github.com/rayhunter-dev/installer/internal/logging"
	"github.com/rayhunter-dev/installer/internal/runner"
)

// Artifact identifies a produced daemon binary.
type Artifact struct {
	// Path is the local filesystem location of the binary.
	Path string
	// Target is the architecture triple it was built for.
	Target string
	// Reused reports whether an existing artifact was kept instead of
	// rebuilding.
	Reused bool
}

// RebuildPolicy decides what to do when an artifact already exists.
// Injecting the decision keeps the orchestrator testable without
// simulating terminal input.
type RebuildPolicy interface {
	// Rebuild returns true to rebuild, false to keep the existing
	// artifact.
	Rebuild(artifactPath string) bool
}

// RebuildPolicyFunc adapts a function to the RebuildPolicy interface.
type RebuildPolicyFunc func(artifactPath string) bool

// Rebuild calls the wrapped function.
func (f RebuildPolicyFunc) Rebuild(artifactPath string) bool {
	return f(artifactPath)
}

// KeepExisting is the deterministic non-interactive policy: an existing
// artifact is always reused.
var KeepExisting = RebuildPolicyFunc(func(string) bool { return false })

// AlwaysRebuild forces a fresh build regardless of existing output.
var AlwaysRebuild = RebuildPolicyFunc(func(string) bool { return true })

// crossGCCCandidates are the arm cross compiler front ends accepted for a
// native build; at least one must be present.
var crossGCCCandidates = []string{
	"arm-linux-gnueabihf-gcc",
	"armv7-unknown-linux-gnueabihf-gcc",
}

// Orchestrator builds the daemon artifact.
type Orchestrator struct {
	cfg    config.BuildConfig
	runner runner.Runner
	log    *logging.Logger

	// lookPath is swappable for tests.
	lookPath func(string) (string, error)
}

// New creates a build Orchestrator.
func New(cfg config.BuildConfig, r runner.Runner, log *logging.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		runner:   r,
		log:      log.WithStage("build"),
		lookPath: exec.LookPath,
	}
}

// Build produces the daemon artifact, honoring the rebuild policy when
// output from a previous run is present. Tool failures are fatal; a
// partially built tree must never reach deploy.
func (o *Orchestrator) Build(ctx context.Context, policy RebuildPolicy) (Artifact, error) {
	if _, err := os.Stat(o.cfg.ArtifactPath); err == nil {
		if !policy.Rebuild(o.cfg.ArtifactPath) {
			o.log.Info("reusing existing artifact", "path", o.cfg.ArtifactPath)
			return Artifact{Path: o.cfg.ArtifactPath, Target: o.cfg.Target, Reused: true}, nil
		}
		o.log.Info("rebuilding over existing artifact", "path", o.cfg.ArtifactPath)
	}

	if o.dockerUsable(ctx) {
		if err := o.containerBuild(ctx); err != nil {
			return Artifact{}, err
		}
	} else if err := o.nativeBuild(ctx); err != nil {
		return Artifact{}, err
	}

	if _, err := os.Stat(o.cfg.ArtifactPath); err != nil {
		return Artifact{}, errors.NewBuildError("build completed but artifact is missing", errors.ErrArtifactMissing).
			WithTarget(o.cfg.Target)
	}

	return Artifact{Path: o.cfg.ArtifactPath, Target: o.cfg.Target}, nil
}

// dockerUsable reports whether a container engine is both installed and
// actually running. An installed-but-stopped daemon falls through to the
// native path.
func (o *Orchestrator) dockerUsable(ctx context.Context) bool {
	if _, err := o.lookPath("docker"); err != nil {
		return false
	}
	if _, err := o.runner.Run(ctx, "docker", "info"); err != nil {
		o.log.Debug("docker installed but not running, using native build")
		return false
	}
	return true
}

// containerBuild runs the cross build inside the container toolchain.
func (o *Orchestrator) containerBuild(ctx context.Context) error {
	o.log.Info("building in container", "target", o.cfg.Target)

	out, err := o.runner.Run(ctx, "cross", "build", "--release", "--target", o.cfg.Target)
	if err != nil {
		return errors.NewBuildError("container build failed", err).
			WithTool("cross").
			WithTarget(o.cfg.Target).
			WithOutput(lastLines(out, 15))
	}
	return nil
}

// nativeBuild runs cargo with the host cross toolchain. The compiler
// front end is the hard requirement; a missing linker or multilib subset
// only warns, cargo will succeed or fail on its own terms.
func (o *Orchestrator) nativeBuild(ctx context.Context) error {
	if !o.hasCrossGCC() {
		return errors.NewBuildError("no arm cross compiler found", errors.ErrToolchainMissing).
			WithTarget(o.cfg.Target)
	}

	if _, err := o.lookPath("arm-linux-gnueabihf-ld"); err != nil {
		o.log.Warn("cross linker not found separately, relying on gcc driver")
	}

	o.log.Info("building natively", "target", o.cfg.Target)
	out, err := o.runner.Run(ctx, "cargo", "build", "--release", "--target", o.cfg.Target)
	if err != nil {
		return errors.NewBuildError("cargo build failed", err).
			WithTool("cargo").
			WithTarget(o.cfg.Target).
			WithOutput(lastLines(out, 15))
	}
	return nil
}

// hasCrossGCC reports whether any accepted cross compiler front end is on
// the PATH.
func (o *Orchestrator) hasCrossGCC() bool {
	for _, gcc := range crossGCCCandidates {
		if _, err := o.lookPath(gcc); err == nil {
			return true
		}
	}
	return false
}

// lastLines trims build output to a short tail for error context.
func lastLines(out string, n int) string {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
