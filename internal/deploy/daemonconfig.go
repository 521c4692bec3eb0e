package deploy

import (
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/rayhunter-dev/installer/internal/errors"
	"github.com/rayhunter-dev/installer/internal/logging"
)

// DaemonConfig is the TOML document staged to the device for the daemon
// itself. The installer only synthesizes and copies it; the daemon is the
// consumer of every key.
type DaemonConfig struct {
	QmdlStorePath       string `toml:"qmdl_store_path"`
	Port                int    `toml:"port"`
	DebugMode           bool   `toml:"debug_mode"`
	UILevel             int    `toml:"ui_level"`
	EnableDummyAnalyzer bool   `toml:"enable_dummy_analyzer"`
	ColorblindMode      bool   `toml:"colorblind_mode"`
	FullBackgroundColor bool   `toml:"full_background_color"`
	ShowScreenOverlay   bool   `toml:"show_screen_overlay"`
	EnableAnimation     bool   `toml:"enable_animation"`
}

// DefaultDaemonConfig returns the documented daemon defaults.
func DefaultDaemonConfig() DaemonConfig {
	return DaemonConfig{
		QmdlStorePath:       "/data/rayhunter/qmdl",
		Port:                8080,
		DebugMode:           false,
		UILevel:             1,
		EnableDummyAnalyzer: false,
		ColorblindMode:      false,
		FullBackgroundColor: false,
		ShowScreenOverlay:   true,
		EnableAnimation:     true,
	}
}

// ResolveConfigFile returns the local daemon config to stage. An existing
// file is used as-is; otherwise the defaults are synthesized and written
// to path first, so every later run sees the same stable file.
func ResolveConfigFile(path string, log *logging.Logger) (string, error) {
	if _, err := os.Stat(path); err == nil {
		log.Debug("using existing daemon config", "path", path)
		return path, nil
	}

	log.Info("no local daemon config, synthesizing defaults", "path", path)

	data, err := toml.Marshal(DefaultDaemonConfig())
	if err != nil {
		return "", errors.NewDeployError("failed to encode default daemon config", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", errors.NewDeployError("failed to persist default daemon config", err).WithPath(path)
	}
	return path, nil
}
