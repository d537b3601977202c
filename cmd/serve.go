package cmd

import (
	"context"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/FluidXR/adbinfo/internal/web"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:               "serve",
	Short:             "Serve the device view over HTTPS",
	PersistentPreRunE: requireDeps(),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if serveAddr != "" {
			cfg.Web.Addr = serveAddr
		}
		log, err := consoleLogger(cfg)
		if err != nil {
			return err
		}

		certFile, keyFile := cfg.Web.CertFile, cfg.Web.KeyFile
		if certFile == "" || keyFile == "" {
			dir := filepath.Join(dataDir(), "tls")
			certFile, keyFile = filepath.Join(dir, "cert.pem"), filepath.Join(dir, "key.pem")
		}
		cert, err := web.LoadOrCreateCertificate(certFile, keyFile)
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
		srv := web.New(ctx, ctrl, log)
		srv.Nickname = cfg.Nickname
		defer func() {
			if err := ctrl.Disconnect(context.WithoutCancel(ctx)); err != nil {
				log.Warn().Err(err).Msg("disconnect on exit")
			}
		}()
		return srv.ListenAndServeTLS(ctx, cfg.Web.Addr, cert)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config, localhost:8443)")
	rootCmd.AddCommand(serveCmd)
}
