// Package config holds the installer's own configuration: transport
// overrides, poll intervals, wait ceilings and build settings. This is
// distinct from the daemon configuration staged onto the device, which
// lives in internal/deploy.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete installer configuration
type Config struct {
	Logging LoggingConfig `mapstructure:"logging"`
	Tools   ToolsConfig   `mapstructure:"tools"`
	Device  DeviceConfig  `mapstructure:"device"`
	Poll    PollConfig    `mapstructure:"poll"`
	Build   BuildConfig   `mapstructure:"build"`
	Verify  VerifyConfig  `mapstructure:"verify"`
}

// LoggingConfig controls the structured log output
type LoggingConfig struct {
	// Level is the minimum log level (debug, info, warn, error)
	Level string `mapstructure:"level"`
	// Dir is where install.log is written; empty means stderr only
	Dir string `mapstructure:"dir"`
}

// ToolsConfig controls host-side tool resolution
type ToolsConfig struct {
	// AdbPath overrides adb discovery; empty means search PATH then
	// download the platform-tools bundle
	AdbPath string `mapstructure:"adb_path"`
	// SerialPath overrides the serial binary location
	SerialPath string `mapstructure:"serial_path"`
	// Dir is where downloaded tool bundles are unpacked
	Dir string `mapstructure:"dir"`
	// PlatformToolsBaseURL is the download location for adb bundles
	PlatformToolsBaseURL string `mapstructure:"platform_tools_base_url"`
}

// DeviceConfig holds the fixed on-device filesystem layout
type DeviceConfig struct {
	// DataDir is the daemon's data directory on the device
	DataDir string `mapstructure:"data_dir"`
	// InitDir is where service scripts are staged
	InitDir string `mapstructure:"init_dir"`
	// RootshellPath is the installed setuid helper path
	RootshellPath string `mapstructure:"rootshell_path"`
	// TempDir is the push staging area on the device
	TempDir string `mapstructure:"temp_dir"`
	// AgentProcess signals the device finished booting when present in ps
	AgentProcess string `mapstructure:"agent_process"`
}

// PollConfig bounds the device state polling loops. The original installer
// polled forever; these ceilings are generous but finite so an unplugged
// device surfaces as a timeout instead of a hung process.
type PollConfig struct {
	// Interval between probes
	Interval time.Duration `mapstructure:"interval"`
	// ShellTimeout bounds waiting for the bridge shell to answer
	ShellTimeout time.Duration `mapstructure:"shell_timeout"`
	// AgentTimeout bounds waiting for the boot agent process
	AgentTimeout time.Duration `mapstructure:"agent_timeout"`
	// ShutdownTimeout bounds waiting for the shell to go away on reboot
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// BuildConfig controls artifact production
type BuildConfig struct {
	// Target is the cross-compilation target triple
	Target string `mapstructure:"target"`
	// ArtifactPath is where the daemon binary lands after a build
	ArtifactPath string `mapstructure:"artifact_path"`
	// Skip reuses an existing artifact without prompting
	Skip bool `mapstructure:"skip"`
	// AssumeYes answers every prompt with its documented default
	AssumeYes bool `mapstructure:"assume_yes"`
}

// VerifyConfig controls connectivity verification
type VerifyConfig struct {
	// Port is the local and device HTTP port to forward and probe
	Port int `mapstructure:"port"`
	// Budget is the hard ceiling on the HTTP probe loop
	Budget time.Duration `mapstructure:"budget"`
	// Interval between HTTP probes
	Interval time.Duration `mapstructure:"interval"`
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level: "info",
		},
		Tools: ToolsConfig{
			Dir:                  filepath.Join(ConfigDir(), "tools"),
			PlatformToolsBaseURL: "https://dl.google.com/android/repository",
		},
		Device: DeviceConfig{
			DataDir:       "/data/rayhunter",
			InitDir:       "/etc/init.d",
			RootshellPath: "/bin/rootshell",
			TempDir:       "/tmp",
			AgentProcess:  "atfwd_daemon",
		},
		Poll: PollConfig{
			Interval:        time.Second,
			ShellTimeout:    5 * time.Minute,
			AgentTimeout:    5 * time.Minute,
			ShutdownTimeout: time.Minute,
		},
		Build: BuildConfig{
			Target:       "armv7-unknown-linux-gnueabihf",
			ArtifactPath: filepath.Join("target", "armv7-unknown-linux-gnueabihf", "release", "rayhunter-daemon"),
		},
		Verify: VerifyConfig{
			Port:     8080,
			Budget:   30 * time.Second,
			Interval: time.Second,
		},
	}
}

// SetDefaults registers all default values with viper so they are
// available even without a config file
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)

	viper.SetDefault("tools.adb_path", defaults.Tools.AdbPath)
	viper.SetDefault("tools.serial_path", defaults.Tools.SerialPath)
	viper.SetDefault("tools.dir", defaults.Tools.Dir)
	viper.SetDefault("tools.platform_tools_base_url", defaults.Tools.PlatformToolsBaseURL)

	viper.SetDefault("device.data_dir", defaults.Device.DataDir)
	viper.SetDefault("device.init_dir", defaults.Device.InitDir)
	viper.SetDefault("device.rootshell_path", defaults.Device.RootshellPath)
	viper.SetDefault("device.temp_dir", defaults.Device.TempDir)
	viper.SetDefault("device.agent_process", defaults.Device.AgentProcess)

	viper.SetDefault("poll.interval", defaults.Poll.Interval)
	viper.SetDefault("poll.shell_timeout", defaults.Poll.ShellTimeout)
	viper.SetDefault("poll.agent_timeout", defaults.Poll.AgentTimeout)
	viper.SetDefault("poll.shutdown_timeout", defaults.Poll.ShutdownTimeout)

	viper.SetDefault("build.target", defaults.Build.Target)
	viper.SetDefault("build.artifact_path", defaults.Build.ArtifactPath)
	viper.SetDefault("build.skip", defaults.Build.Skip)
	viper.SetDefault("build.assume_yes", defaults.Build.AssumeYes)

	viper.SetDefault("verify.port", defaults.Verify.Port)
	viper.SetDefault("verify.budget", defaults.Verify.Budget)
	viper.SetDefault("verify.interval", defaults.Verify.Interval)
}

// Load unmarshals the current viper state into a Config
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "rayhunter")
	}
	// Fall back to ~/.config/rayhunter
	home, err := os.UserHomeDir()
	if err != nil {
		return ".rayhunter"
	}
	return filepath.Join(home, ".config", "rayhunter")
}

// ConfigFile returns the path to the installer config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
