package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/FluidXR/adbinfo/internal/adb"
	"github.com/FluidXR/adbinfo/internal/config"
	"github.com/FluidXR/adbinfo/internal/keystore"
	"github.com/FluidXR/adbinfo/internal/session"
	"github.com/FluidXR/adbinfo/internal/store"
	"github.com/FluidXR/adbinfo/internal/usbdev"
)

func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.ConfigPath()
}

// dataDir holds the database and key files. An alternate --config file gets
// its own, next to it.
func dataDir() string {
	if cfgFile != "" {
		return filepath.Dir(cfgFile)
	}
	return config.ConfigDir()
}

func keyDir() string {
	if cfgFile != "" {
		return filepath.Join(dataDir(), "keys")
	}
	return config.KeyDir()
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadFrom(configPath())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if serialFlag != "" {
		cfg.Serial = serialFlag
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return cfg, nil
}

func saveConfig(cfg *config.Config) error {
	return config.SaveTo(cfg, configPath())
}

func newLogger(level string, w io.Writer) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger(), nil
}

// consoleLogger logs to stderr for commands that own the terminal line by line.
func consoleLogger(cfg *config.Config) (zerolog.Logger, error) {
	return newLogger(cfg.Log.Level, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
}

// fileLogger logs to the configured log file for views that own the screen.
func fileLogger(cfg *config.Config) (zerolog.Logger, io.Closer, error) {
	path := cfg.LogFile()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("open log file: %w", err)
	}
	log, err := newLogger(cfg.Log.Level, f)
	if err != nil {
		f.Close()
		return zerolog.Nop(), nil, err
	}
	return log, f, nil
}

func newServer(cfg *config.Config, log zerolog.Logger) *adb.Server {
	return adb.NewServer(cfg.ADB.Binary, cfg.ADB.Host, cfg.ADB.Port, log)
}

// app holds the collaborators of one session controller.
type app struct {
	cfg    *config.Config
	log    zerolog.Logger
	server *adb.Server
	usb    *usbdev.Manager
	db     *store.DB
}

func newApp(cfg *config.Config, log zerolog.Logger) (*app, error) {
	a := &app{cfg: cfg, log: log}
	a.server = newServer(cfg, log)
	a.usb = usbdev.NewManager(a.server, cfg.Serial, log)
	if cfg.KeyStore == config.KeyStoreSQLite || cfg.History {
		db, err := store.Open(dataDir())
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		a.db = db
	}
	return a, nil
}

func (a *app) controller() *session.Controller {
	opts := session.Options{
		Devices:       a.usb,
		Authenticator: adb.NewDaemonAuthenticator(a.server, keyDir(), a.cfg.AuthTimeout, a.log),
		Logger:        a.log,
	}
	if a.cfg.KeyStore == config.KeyStoreSQLite {
		storage := keystore.NewPersistent(a.db, a.log)
		opts.NewStorage = func() keystore.Storage { return storage }
	}
	if a.cfg.History {
		opts.Recorder = a.db
	}
	return session.New(opts)
}

func (a *app) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}
