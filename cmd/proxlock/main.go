// Copyright © 2024 Mutker Telag <witty.text5011@fastmail.com>
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"codeberg.org/mutker/proxlock/internal/config"
	"codeberg.org/mutker/proxlock/internal/logger"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "proxlock:", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "proxlock",
		Short:         "Lock the desktop session when a paired Bluetooth device moves away",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().String("config", "", "configuration file (default /etc/proxlock.toml)")
	config.RegisterFlags(root.PersistentFlags())

	root.AddCommand(
		newRunCmd(),
		newMonitorCmd(),
		newDevicesCmd(),
		newHistoryCmd(),
		newVersionCmd(),
	)

	return root
}

// loadConfig loads configuration with cmd's flags taking precedence and
// initializes logging from it.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(
		config.WithConfigFile(path),
		config.WithFlags(cmd.Flags()),
	)
	if err != nil {
		return nil, err
	}

	logger.InitWithWriter(cmd.ErrOrStderr(), cfg.Level(), logger.IsService())
	logger.Debug().Str("file", cfg.ConfigFile).Msg("Config loaded")

	return cfg, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "proxlock", version)
		},
	}
}
