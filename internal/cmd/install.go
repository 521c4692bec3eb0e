package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/rayhunter-dev/installer/internal/build"
	"github.com/rayhunter-dev/installer/internal/config"
	"github.com/rayhunter-dev/installer/internal/errors"
	"github.com/rayhunter-dev/installer/internal/logging"
	"github.com/rayhunter-dev/installer/internal/pipeline"
	"github.com/rayhunter-dev/installer/internal/runner"
	"github.com/rayhunter-dev/installer/internal/util"
)

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Build, deploy and verify the daemon on the connected device",
	Long: `Run the full provisioning pipeline against the connected device:
resolve transports, switch the USB composition into debug mode, install
the rootshell helper, build the daemon, stage it with its configuration
and service scripts, reboot, and verify the service answers over a
forwarded port.`,
	RunE: runInstall,
}

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
)

func init() {
	rootCmd.AddCommand(installCmd)

	installCmd.Flags().Bool("skip-build", false, "reuse the existing daemon artifact without building")
	_ = viper.BindPFlag("build.skip", installCmd.Flags().Lookup("skip-build"))
	installCmd.Flags().BoolP("yes", "y", false, "never prompt; keep an existing artifact")
	_ = viper.BindPFlag("build.assume_yes", installCmd.Flags().Lookup("yes"))
}

func runInstall(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if viper.GetBool("verbose") {
		cfg.Logging.Level = "debug"
	}

	log, err := logging.NewLogger(cfg.Logging.Dir, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer log.Close()

	opts := pipeline.Options{
		SkipBuild: cfg.Build.Skip,
		Rebuild:   rebuildPolicy(cfg, cmd),
	}

	p := pipeline.New(cfg, runner.ExecRunner{}, log, opts)
	if err := p.Run(cmd.Context()); err != nil {
		var verifyErr *errors.VerifyError
		if errors.As(err, &verifyErr) {
			fmt.Fprintln(cmd.OutOrStdout(), warnStyle.Render(
				fmt.Sprintf("deployed, but the service did not answer on port %d; it may still be starting", cfg.Verify.Port)))
			return err
		}
		line := failStyle.Render("installation failed: " + err.Error())
		if width, _, werr := term.GetSize(int(os.Stderr.Fd())); werr == nil {
			line = util.TruncateANSI(line, width)
		}
		fmt.Fprintln(cmd.ErrOrStderr(), line)
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render(
		fmt.Sprintf("rayhunter is up: http://localhost:%d/", cfg.Verify.Port)))
	return nil
}

// rebuildPolicy decides what happens when a daemon artifact already
// exists. Non-interactive runs and --yes keep the existing artifact;
// on a terminal the operator is asked once.
func rebuildPolicy(cfg *config.Config, cmd *cobra.Command) build.RebuildPolicy {
	if cfg.Build.AssumeYes || !term.IsTerminal(int(os.Stdin.Fd())) {
		return build.KeepExisting
	}

	return build.RebuildPolicyFunc(func(path string) bool {
		return promptRebuild(cmd, path)
	})
}

// promptRebuild asks the operator whether an existing artifact should
// be rebuilt. Anything but an explicit yes keeps it.
func promptRebuild(cmd *cobra.Command, path string) bool {
	fmt.Fprintf(cmd.OutOrStdout(), "daemon artifact %s already exists, rebuild? [y/N] ", path)
	answer, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}
