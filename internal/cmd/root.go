package cmd

import (
	"context"
	"strings"

	"github.com/rayhunter-dev/installer/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "rayhunter-install",
	Short: "Provision the rayhunter daemon onto a connected modem",
	Long: `rayhunter-install provisions the rayhunter IMSI-catcher detector onto a
locked-down cellular modem over its USB debug bridge, installing a
privileged helper, building the daemon for the device architecture,
staging it with its configuration and service scripts, and verifying
the deployed service answers over a forwarded port.`,
	SilenceUsage: true,
}

// Execute runs the root command with the given context. The context
// carries signal cancellation so a Ctrl-C interrupts the polling loops
// instead of abandoning the device mid-stage.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/rayhunter/config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "log at debug level")
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath("$HOME/.config/rayhunter")
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("RAYHUNTER")
	// Replace dots with underscores for nested keys in env vars
	// e.g., RAYHUNTER_VERIFY_PORT for verify.port
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}
