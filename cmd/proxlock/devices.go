package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"codeberg.org/mutker/proxlock/internal/peer"
)

func newDevicesCmd() *cobra.Command {
	var (
		duration time.Duration
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "devices",
		Short: "Scan for nearby devices to use as the peer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			found, err := peer.Discover(cmd.Context(), peer.Adapter(cfg.Adapter), duration)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(found)
			}

			if len(found) == 0 {
				fmt.Fprintln(out, "No devices found")
				return nil
			}

			rows := make([][]string, 0, len(found))
			for _, d := range found {
				rows = append(rows, []string{d.Address, d.Name, strconv.Itoa(d.RSSI)})
			}
			fmt.Fprintln(out, table.New().
				Border(lipgloss.NormalBorder()).
				Headers("ADDRESS", "NAME", "RSSI").
				Rows(rows...).
				String())
			return nil
		},
	}

	cmd.Flags().DurationVar(&duration, "duration", 10*time.Second, "how long to scan")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")

	return cmd
}
