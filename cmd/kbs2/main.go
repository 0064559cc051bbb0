// Package main is the CLI entry point for kbs2.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/woodruffw/kbs2/internal/config"
	"github.com/woodruffw/kbs2/internal/session"
)

var (
	cfgFile string
	verbose bool
	quiet   bool
)

func main() {
	root := &cobra.Command{
		Use:   "kbs2",
		Short: "A local, age-backed secret manager",
		Long:  `kbs2 stores secrets as individually encrypted records under a single directory, keyed by an age identity that can live bare on disk or behind a passphrase-holding agent.`,
	}

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		setupLogging()
		return nil
	}

	root.PersistentFlags().
		StringVarP(&cfgFile, "config", "c", "", "config file (default: ~/.config/kbs2/config.toml)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress informational output")
	root.MarkFlagsMutuallyExclusive("verbose", "quiet")

	root.AddGroup(
		&cobra.Group{ID: "store", Title: "Store:"},
		&cobra.Group{ID: "keys", Title: "Keys:"},
		&cobra.Group{ID: "agent", Title: "Agent:"},
	)

	root.AddCommand(initCmd())
	root.AddCommand(newCmd())
	root.AddCommand(listCmd())
	root.AddCommand(dumpCmd())
	root.AddCommand(envCmd())
	root.AddCommand(rmCmd())
	root.AddCommand(renameCmd())
	root.AddCommand(rewrapCmd())
	root.AddCommand(rekeyCmd())
	root.AddCommand(agentCmd())

	if err := fang.Execute(context.Background(), root); err != nil {
		os.Exit(1)
	}
}

func setupLogging() {
	setupLoggingWithWriter(os.Stderr)
}

func setupLoggingWithWriter(w io.Writer) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	} else if quiet {
		level = slog.LevelWarn
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
	})))
}

// loadSession loads the configured config file and constructs a
// Session from it, spawning the agent if the config calls for one.
func loadSession() (*session.Session, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return session.New(cfg)
}

func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.DefaultConfigPath()
}
