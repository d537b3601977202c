package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/FluidXR/adbinfo/internal/config"
	"github.com/FluidXR/adbinfo/internal/store"
	"github.com/FluidXR/adbinfo/internal/usbdev"
)

var devicesCmd = &cobra.Command{
	Use:               "devices",
	Short:             "List ADB-capable USB devices and what the adb server sees",
	PersistentPreRunE: requireDeps(),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log, err := consoleLogger(cfg)
		if err != nil {
			return err
		}
		server := newServer(cfg, log)

		fmt.Println("USB devices with an ADB interface:")
		usb := usbdev.NewManager(server, cfg.Serial, log)
		if !usb.Available() {
			fmt.Println("  (USB access unavailable)")
		} else {
			cands, err := usb.Candidates()
			if err != nil {
				return err
			}
			if len(cands) == 0 {
				fmt.Println("  (none)")
			}
			for _, c := range cands {
				fmt.Printf("  %s%s\n", c, nicknameSuffix(cfg, c.Serial))
			}
		}

		devices, err := server.Devices(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Println("\nadb server devices:")
		if len(devices) == 0 {
			fmt.Println("  No devices connected.")
			return nil
		}

		var db *store.DB
		if cfg.History {
			db, err = store.Open(dataDir())
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer db.Close()
		}

		for _, d := range devices {
			status := string(d.State)
			if !d.IsOnline() {
				status = "OFFLINE"
			}
			fmt.Printf("  %-20s %s  [%s] [%s]%s\n",
				d.Serial, d.Model, d.ConnType, status, nicknameSuffix(cfg, d.Serial))

			if db == nil {
				continue
			}
			stats, err := db.GetDeviceStats(d.Serial)
			if err == nil && stats.Sessions > 0 {
				fmt.Printf("    Sessions: %d | Unclosed: %d | Last seen: %s\n",
					stats.Sessions, stats.Open, stats.LastSeen.Local().Format("2006-01-02 15:04"))
			}
		}
		return nil
	},
}

func nicknameSuffix(cfg *config.Config, serial string) string {
	if nick := cfg.Nickname(serial); nick != "" {
		return fmt.Sprintf(" (%s)", nick)
	}
	return ""
}

func init() {
	rootCmd.AddCommand(devicesCmd)
}
