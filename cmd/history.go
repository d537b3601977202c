package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/FluidXR/adbinfo/internal/store"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show past device sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if !cfg.History {
			fmt.Println("Session history is disabled (history: false in config).")
			return nil
		}

		db, err := store.Open(dataDir())
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer db.Close()

		sessions, err := db.Sessions(serialFlag, historyLimit)
		if err != nil {
			return err
		}
		if len(sessions) == 0 {
			fmt.Println("No sessions recorded.")
			return nil
		}

		for _, s := range sessions {
			end := "open"
			if s.DisconnectedAt != nil {
				end = s.DisconnectedAt.Sub(s.ConnectedAt).Round(time.Second).String()
			}
			fmt.Printf("%s  %-20s %s %s  Android %s (SDK %s)  [%s]%s\n",
				s.ConnectedAt.Local().Format("2006-01-02 15:04:05"),
				s.Serial, s.Manufacturer, s.Model, s.Release, s.SDK,
				end, nicknameSuffix(cfg, s.Serial))
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum number of sessions to show (0 for all)")
	rootCmd.AddCommand(historyCmd)
}
