// Package deploy stages the daemon binary, its configuration and its
// service-management scripts onto the device. Staging is idempotent:
// every file is plainly overwritten, so re-running against an already
// provisioned device produces the identical on-device file set.
package deploy

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rayhunter-dev/installer/internal/build"
	"github.com/rayhunter-dev/installer/internal/device"
	"github.com/rayhunter-dev/installer/internal/errors"
	"github.com/rayhunter-dev/installer/internal/logging"
)

// daemonBinaryName is the staged daemon filename on the device.
const daemonBinaryName = "rayhunter-daemon"

// localConfigName is the daemon config file kept next to the installer.
const localConfigName = "config.toml"

// ServiceUnit is a named init script staged to the device. Units are
// optional: a missing source script skips that unit with a warning.
type ServiceUnit struct {
	Name string
}

// serviceUnits lists the init scripts the daemon installation carries.
var serviceUnits = []ServiceUnit{
	{Name: "rayhunter_daemon"},
	{Name: "misc-daemon"},
}

// scriptSearchDirs are the local locations a unit script may come from,
// first match wins.
var scriptSearchDirs = []string{
	filepath.Join("dist", "scripts"),
	filepath.Join("installer", "dist", "scripts"),
}

// Deployer stages files onto the device.
type Deployer struct {
	session *device.Session
	log     *logging.Logger

	// localConfigPath is overridable for tests.
	localConfigPath string
}

// New creates a Deployer for the given session.
func New(session *device.Session, log *logging.Logger) *Deployer {
	return &Deployer{
		session:         session,
		log:             log.WithStage("deploy"),
		localConfigPath: localConfigName,
	}
}

// Deploy stages configuration, the daemon binary and the service scripts.
// Individual steps soft-fail except where a half-staged daemon would go
// unnoticed: a missing artifact and unusable transport abort.
func (d *Deployer) Deploy(ctx context.Context, artifact build.Artifact) error {
	dev := d.session.Device()

	// Data directory first; everything else lands inside it.
	if _, err := d.session.Root(ctx, fmt.Sprintf("mkdir -p %s/qmdl", dev.DataDir)); err != nil {
		if errors.IsFatal(err) {
			return err
		}
		d.log.Warn("data directory creation reported failure, continuing", "error", err.Error())
	}

	// Stop a previously deployed daemon. It may simply not be running.
	if _, err := d.session.Root(ctx, fmt.Sprintf("%s/rayhunter_daemon stop", dev.InitDir)); err != nil {
		if errors.IsFatal(err) {
			return err
		}
		d.log.Debug("service stop reported failure, likely not running")
	}

	if err := d.stageConfig(ctx); err != nil {
		return err
	}
	if err := d.stageDaemon(ctx, artifact); err != nil {
		return err
	}

	for _, unit := range serviceUnits {
		if err := d.stageUnit(ctx, unit); err != nil {
			return err
		}
	}

	d.log.Info("deploy complete", "data_dir", dev.DataDir)
	return nil
}

// stageConfig resolves (or synthesizes) the local daemon config and
// pushes it to the device data directory.
func (d *Deployer) stageConfig(ctx context.Context) error {
	dev := d.session.Device()

	local, err := ResolveConfigFile(d.localConfigPath, d.log)
	if err != nil {
		return err
	}

	remote := dev.DataDir + "/config.toml"
	if err := d.session.Push(ctx, local, remote); err != nil {
		return errors.NewDeployError("failed to stage daemon config", err).WithPath(remote)
	}
	if _, err := d.session.Root(ctx, "chmod 644 "+remote); err != nil && errors.IsFatal(err) {
		return err
	}

	d.log.Info("daemon config staged", "remote", remote)
	return nil
}

// stageDaemon pushes the built daemon binary. The artifact must exist
// locally; deploying nothing is the one mistake this stage cannot warn
// its way through.
func (d *Deployer) stageDaemon(ctx context.Context, artifact build.Artifact) error {
	dev := d.session.Device()

	if _, err := os.Stat(artifact.Path); err != nil {
		return errors.NewDeployError("daemon artifact not found locally", errors.ErrArtifactMissing).
			WithPath(artifact.Path)
	}

	remote := dev.DataDir + "/" + daemonBinaryName
	if err := d.session.Push(ctx, artifact.Path, remote); err != nil {
		return errors.NewDeployError("failed to stage daemon binary", err).WithPath(remote)
	}
	if _, err := d.session.Root(ctx, "chmod 755 "+remote); err != nil && errors.IsFatal(err) {
		return err
	}

	d.log.Info("daemon binary staged", "remote", remote, "target", artifact.Target)
	return nil
}

// stageUnit pushes one init script through the temp dir and installs it
// with the privileged path. A unit with no local source is skipped.
func (d *Deployer) stageUnit(ctx context.Context, unit ServiceUnit) error {
	dev := d.session.Device()

	local := findUnitScript(unit)
	if local == "" {
		d.log.Warn("service script not found locally, skipping unit", "unit", unit.Name)
		return nil
	}

	temp := dev.TempDir + "/" + unit.Name
	installed := dev.InitDir + "/" + unit.Name

	if err := d.session.Push(ctx, local, temp); err != nil {
		return errors.NewDeployError("failed to push service script", err).WithPath(temp)
	}
	if _, err := d.session.Root(ctx, fmt.Sprintf("cp %s %s", temp, installed)); err != nil {
		if errors.IsFatal(err) {
			return err
		}
		d.log.Warn("service script install reported failure", "unit", unit.Name, "error", err.Error())
		return nil
	}
	if _, err := d.session.Root(ctx, "chmod 755 "+installed); err != nil && errors.IsFatal(err) {
		return err
	}

	d.log.Info("service script staged", "unit", unit.Name, "remote", installed)
	return nil
}

// findUnitScript returns the first local source for a unit script.
func findUnitScript(unit ServiceUnit) string {
	for _, dir := range scriptSearchDirs {
		candidate := filepath.Join(dir, unit.Name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}
