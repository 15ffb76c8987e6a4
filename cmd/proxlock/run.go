package main

import (
	"context"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"codeberg.org/mutker/proxlock/internal/config"
	"codeberg.org/mutker/proxlock/internal/logger"
	"codeberg.org/mutker/proxlock/internal/ui"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the proximity lock daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			d, err := newDaemon(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer d.close()

			if cfg.Monitor {
				logger.Info().Msg("Monitor mode activated, lock decisions are not applied")
			}

			err = d.run(cmd.Context(), nil)
			logger.Info().Msg("Exiting...")
			return err
		},
	}
}

func newMonitorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "monitor",
		Short: "Show live signal strength and lock decisions without locking",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			cfg.Monitor = true

			// Log lines would corrupt the alternate screen.
			logger.InitWithWriter(io.Discard, cfg.Level(), false)

			d, err := newDaemon(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer d.close()

			p := tea.NewProgram(
				ui.New(d.ctrl, ui.WithPeer(peerLabel(cfg)), ui.WithMonitorOnly(true)),
				tea.WithAltScreen(),
			)
			d.bus.Subscribe("ui", ui.Listener(p))

			return d.run(cmd.Context(), func(ctx context.Context) error {
				stop := context.AfterFunc(ctx, p.Quit)
				defer stop()

				_, err := p.Run()
				return err
			})
		},
	}
}

func peerLabel(cfg *config.Config) string {
	switch {
	case cfg.Demo:
		return "simulated peer"
	case cfg.Peer != "":
		return cfg.Peer
	default:
		return "first named device"
	}
}
