// Package pipeline sequences the provisioning stages against a single
// device session: transport resolution, debug-mode switch, privilege
// escalation, build, deploy, reboot and verification.
//
// Stage failures are classified, not uniform. Fatal errors abort the
// run immediately; soft errors are logged and the pipeline continues
// with reduced capability; a verification timeout is surfaced to the
// caller as its own outcome because by then the deployment itself has
// already landed.
package pipeline

import (
	"context"
	"os"

	"github.com/rayhunter-dev/installer/internal/adb"
	"github.com/rayhunter-dev/installer/internal/build"
	"github.com/rayhunter-dev/installer/internal/config"
	"github.com/rayhunter-dev/installer/internal/deploy"
	"github.com/rayhunter-dev/installer/internal/device"
	"github.com/rayhunter-dev/installer/internal/errors"
	"github.com/rayhunter-dev/installer/internal/escalate"
	"github.com/rayhunter-dev/installer/internal/logging"
	"github.com/rayhunter-dev/installer/internal/runner"
	"github.com/rayhunter-dev/installer/internal/serial"
	"github.com/rayhunter-dev/installer/internal/verify"
)

// Options tunes a pipeline run.
type Options struct {
	// SkipBuild reuses the existing daemon artifact and never invokes
	// the build toolchain, even when the artifact is stale.
	SkipBuild bool

	// Rebuild decides whether an existing artifact is rebuilt. Nil
	// defaults to keeping whatever is already built.
	Rebuild build.RebuildPolicy
}

// Pipeline runs the full provisioning sequence.
type Pipeline struct {
	cfg  *config.Config
	run  runner.Runner
	log  *logging.Logger
	opts Options

	// resolve produces the session transports; swappable for tests.
	resolve func(ctx context.Context) (adb.Endpoint, serial.Endpoint, error)
}

// New creates a Pipeline over the given configuration and runner.
func New(cfg *config.Config, r runner.Runner, log *logging.Logger, opts Options) *Pipeline {
	if opts.Rebuild == nil {
		opts.Rebuild = build.KeepExisting
	}
	p := &Pipeline{
		cfg:  cfg,
		run:  r,
		log:  log.WithStage("pipeline"),
		opts: opts,
	}
	p.resolve = p.resolveTransports
	return p
}

// Run executes every stage in order. The returned error is nil on full
// success, a timeout-classified error when the deployment landed but
// the service could not be verified in budget, and anything else when
// the run aborted.
func (p *Pipeline) Run(ctx context.Context) error {
	bridge, ser, err := p.resolve(ctx)
	if err != nil {
		return err
	}
	session := device.NewSession(bridge, ser, p.cfg, p.run, p.log)

	// Composition first: on a factory-fresh device the bridge shell does
	// not exist until the serial frame switches the USB composition, so
	// waiting for the shell before sending it would never return.
	if err := p.forceDebugMode(ctx, session); err != nil {
		return err
	}

	p.log.Info("waiting for device shell")
	if err := session.WaitForShell(ctx); err != nil {
		return err
	}

	if err := escalate.New(session, p.cfg.Build.Target, p.log).Escalate(ctx); err != nil {
		if errors.IsFatal(err) {
			return err
		}
		p.log.Warn("privilege escalation incomplete, continuing", "error", err.Error())
	}

	artifact, err := p.buildArtifact(ctx)
	if err != nil {
		return err
	}

	if err := deploy.New(session, p.log).Deploy(ctx, artifact); err != nil {
		return err
	}

	if err := session.Reboot(ctx); err != nil {
		return err
	}

	return verify.New(session, p.cfg.Verify, p.log).Verify(ctx)
}

// resolveTransports locates the bridge and serial endpoints. The bridge
// is mandatory; a missing serial channel degrades privileged dispatch
// to the rootshell fallback but never blocks the run.
func (p *Pipeline) resolveTransports(ctx context.Context) (adb.Endpoint, serial.Endpoint, error) {
	bridge, err := adb.Resolve(ctx, p.log, p.cfg.Tools)
	if err != nil {
		return adb.Endpoint{}, serial.Endpoint{}, err
	}

	ser := serial.Resolve(ctx, p.log, p.cfg.Tools, p.run)
	if !ser.Available {
		p.log.Warn("serial channel unavailable, privileged commands use rootshell fallback")
	}
	return bridge, ser, nil
}

// forceDebugMode switches the device's USB composition so the bridge
// shell is exposed. The switch needs the serial channel; without it the
// pipeline relies on the shell wait that follows, a device already in
// the debug composition being the only one reachable then.
func (p *Pipeline) forceDebugMode(ctx context.Context, session *device.Session) error {
	if !session.Serial.Available {
		p.log.Debug("no serial channel, assuming debug composition already active")
		return nil
	}

	p.log.Info("switching usb composition to debug mode")
	if err := session.SendFrame(ctx, serial.UsbCompositionFrame()); err != nil {
		if errors.IsFatal(err) {
			return err
		}
		p.log.Warn("composition switch reported failure, continuing", "error", err.Error())
	}
	return nil
}

// buildArtifact produces the daemon binary to deploy, honoring the
// skip-build request and the rebuild policy.
func (p *Pipeline) buildArtifact(ctx context.Context) (build.Artifact, error) {
	if p.opts.SkipBuild {
		if _, err := os.Stat(p.cfg.Build.ArtifactPath); err != nil {
			return build.Artifact{}, errors.NewBuildError("build skipped but no artifact present", errors.ErrArtifactMissing).
				WithTarget(p.cfg.Build.Target)
		}
		p.log.Info("build skipped, reusing existing artifact", "path", p.cfg.Build.ArtifactPath)
		return build.Artifact{
			Path:   p.cfg.Build.ArtifactPath,
			Target: p.cfg.Build.Target,
			Reused: true,
		}, nil
	}

	return build.New(p.cfg.Build, p.run, p.log).Build(ctx, p.opts.Rebuild)
}
