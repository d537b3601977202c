package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version of adbinfo.
const Version = "0.1.0"

var (
	cfgFile    string
	logLevel   string
	serialFlag string
)

var rootCmd = &cobra.Command{
	Use:     "adbinfo",
	Short:   "Connect to an Android device over USB and show its properties",
	Version: Version,
	Long: `adbinfo picks an ADB-capable USB device, authenticates with it through the
adb server, and shows its model, manufacturer, Android version, SDK level and
serial. Run without a subcommand to open the terminal view.`,
	SilenceUsage: true,
	PreRunE:      requireDeps(),
	RunE:         runUI,
}

// requireDeps returns a PersistentPreRunE that checks for external dependencies
// and prompts to nickname any new devices.
func requireDeps() func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := checkDeps(cfg); err != nil {
			return err
		}
		checkNewDevices(cmd.Context(), cfg)
		return nil
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $XDG_CONFIG_HOME/adbinfo/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&serialFlag, "serial", "", "USB serial of the device to use")
}

// Execute runs the root command.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
