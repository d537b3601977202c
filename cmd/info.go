package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/FluidXR/adbinfo/internal/session"
)

var infoJSON bool

// deviceInfo is the JSON form of the info command.
type deviceInfo struct {
	Serial         string `json:"serial"`
	Nickname       string `json:"nickname,omitempty"`
	Model          string `json:"model"`
	Manufacturer   string `json:"manufacturer"`
	AndroidVersion string `json:"android_version"`
	SDK            string `json:"sdk"`
}

var infoCmd = &cobra.Command{
	Use:               "info",
	Short:             "Connect once, print the device properties, and disconnect",
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
		a, err := newApp(cfg, log)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		ctrl := a.controller()
		if err := ctrl.Connect(ctx); err != nil {
			fmt.Fprintln(os.Stderr, ctrl.State().Status)
			return err
		}
		defer func() {
			if err := ctrl.Disconnect(context.WithoutCancel(ctx)); err != nil {
				log.Warn().Err(err).Msg("disconnect")
			}
		}()

		st := ctrl.State()
		if infoJSON {
			m := st.Info.Map()
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(deviceInfo{
				Serial:         st.Serial,
				Nickname:       cfg.Nickname(st.Serial),
				Model:          m[session.LabelModel],
				Manufacturer:   m[session.LabelManufacturer],
				AndroidVersion: m[session.LabelAndroidVersion],
				SDK:            m[session.LabelSDK],
			})
		}

		fmt.Println(st.Status)
		for _, f := range st.Info {
			value := f.Value
			if f.Label == session.LabelSerial {
				if nick := cfg.Nickname(value); nick != "" {
					value = fmt.Sprintf("%s (%s)", value, nick)
				}
			}
			fmt.Printf("  %-16s %s\n", f.Label+":", value)
		}
		return nil
	},
}

func init() {
	infoCmd.Flags().BoolVar(&infoJSON, "json", false, "print JSON")
	rootCmd.AddCommand(infoCmd)
}
