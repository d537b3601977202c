package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/FluidXR/adbinfo/internal/adb"
	"github.com/FluidXR/adbinfo/internal/config"
	"github.com/FluidXR/adbinfo/internal/store"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List stored ADB keys and their fingerprints",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.KeyStore != config.KeyStoreSQLite {
			fmt.Printf("Key store is %q: keys live only for one connect attempt and are not listed.\n", cfg.KeyStore)
			fmt.Println("Switch with: adbinfo config set-key-store sqlite")
			return nil
		}

		db, err := store.Open(dataDir())
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer db.Close()

		keys, err := db.Keys()
		if err != nil {
			return err
		}
		if len(keys) == 0 {
			fmt.Println("No keys stored. One is generated on the first connect.")
			return nil
		}
		for _, k := range keys {
			rsaKey, err := adb.ParsePrivateKey(k.PrivateKey)
			if err != nil {
				fmt.Printf("%-12s (unreadable: %v)\n", k.Name, err)
				continue
			}
			pk := adb.PrivateKey{Name: k.Name, Key: rsaKey}
			fmt.Printf("%-12s %s  created %s\n", k.Name, pk.Fingerprint(), k.CreatedAt.Local().Format("2006-01-02"))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(keysCmd)
}
