package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nhle/notifycore/internal/app"
	"github.com/nhle/notifycore/internal/credential"
	"github.com/nhle/notifycore/internal/model"
	"github.com/nhle/notifycore/internal/store"
)

var (
	verbose    bool
	configPath string
	rootCmd    *cobra.Command
)

func init() {
	rootCmd = &cobra.Command{
		Use:   "notifyctl",
		Short: "Real-time marketplace notifications in the terminal",
		Long: `notifyctl keeps a live connection to the marketplace backend, merges direct
messages and system notifications into one feed, and manages this device's
push registration.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", model.DefaultConfigPath(), "Path to config file")
}

// Execute runs the root command.
func Execute(version string) error {
	rootCmd.AddCommand(inboxCmd)
	rootCmd.AddCommand(feedCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(readCmd)
	rootCmd.AddCommand(readAllCmd)
	rootCmd.AddCommand(pushCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(devserverCmd)

	rootCmd.Version = version
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// env is what most subcommands need: config, store and a session.
type env struct {
	cfg     *model.AppConfig
	store   *store.SQLiteStore
	session *app.Session
	logger  *slog.Logger
}

func (e *env) Close() {
	e.session.Close()
	if err := e.store.Close(); err != nil {
		e.logger.Warn("closing store", slog.Any("error", err))
	}
}

// openEnv loads configuration and credentials and builds a session.
func openEnv() (*env, error) {
	logger := newLogger()

	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	id, err := credential.LoadIdentity()
	if err != nil {
		return nil, fmt.Errorf("loading session (run `notifyctl login <token>` first): %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0o700); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}
	s, err := store.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		return nil, err
	}

	sess, err := app.New(cfg, id, s, logger)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	return &env{cfg: cfg, store: s, session: sess, logger: logger}, nil
}
