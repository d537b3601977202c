package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/FluidXR/adbinfo/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage adbinfo configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		fmt.Printf("Config file: %s\n\n", configPath())
		serial := cfg.Serial
		if serial == "" {
			serial = "(first ADB device found)"
		}
		fmt.Printf("Device serial: %s\n", serial)
		fmt.Printf("adb: %s (server %s:%d)\n", cfg.ADB.Binary, cfg.ADB.Host, cfg.ADB.Port)
		fmt.Printf("Auth timeout: %s\n", cfg.AuthTimeout)
		fmt.Printf("Key store: %s\n", cfg.KeyStore)
		fmt.Printf("History: %t\n", cfg.History)
		fmt.Printf("Log: %s -> %s\n", cfg.Log.Level, cfg.LogFile())
		fmt.Printf("Web: https://%s\n", cfg.Web.Addr)
		fmt.Printf("\nDevices:\n")
		if len(cfg.Devices) == 0 {
			fmt.Println("  (none configured)")
		}
		for serial, dc := range cfg.Devices {
			fmt.Printf("  - %s", serial)
			if dc.Nickname != "" {
				fmt.Printf(" (%s)", dc.Nickname)
			}
			fmt.Println()
		}
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create default config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.DefaultConfig()
		if err := saveConfig(cfg); err != nil {
			return err
		}
		fmt.Printf("Config created at %s\n", configPath())
		return nil
	},
}

var configSetSerialCmd = &cobra.Command{
	Use:   "set-serial [serial]",
	Short: "Pin device selection to a USB serial (no argument clears it)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadFrom(configPath())
		if err != nil {
			return err
		}
		cfg.Serial = ""
		if len(args) == 1 {
			cfg.Serial = args[0]
		}
		if err := saveConfig(cfg); err != nil {
			return err
		}
		if cfg.Serial == "" {
			fmt.Println("Cleared device serial; the first ADB device found will be used.")
			return nil
		}
		fmt.Printf("Device serial set to %s\n", cfg.Serial)
		return nil
	},
}

var configNicknameCmd = &cobra.Command{
	Use:   "nickname <serial> <name>",
	Short: "Set a nickname for a device",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		serial := args[0]
		name := args[1]

		cfg, err := config.LoadFrom(configPath())
		if err != nil {
			return err
		}
		dc := cfg.Devices[serial]
		dc.Nickname = name
		cfg.Devices[serial] = dc
		if err := saveConfig(cfg); err != nil {
			return err
		}
		fmt.Printf("Set nickname for %s: %s\n", serial, name)
		return nil
	},
}

var configSetKeyStoreCmd = &cobra.Command{
	Use:       "set-key-store <memory|sqlite>",
	Short:     "Choose where ADB keys are kept",
	Long:      `memory generates a fresh key for every connect attempt; sqlite keeps keys in the local database so a device only needs approving once.`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{config.KeyStoreMemory, config.KeyStoreSQLite},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadFrom(configPath())
		if err != nil {
			return err
		}
		cfg.KeyStore = args[0]
		if err := cfg.Validate(); err != nil {
			return err
		}
		if err := saveConfig(cfg); err != nil {
			return err
		}
		fmt.Printf("Key store set to %s\n", cfg.KeyStore)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configSetSerialCmd)
	configCmd.AddCommand(configNicknameCmd)
	configCmd.AddCommand(configSetKeyStoreCmd)
	rootCmd.AddCommand(configCmd)
}
