package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"codeberg.org/mutker/proxlock/internal/journal"
	"codeberg.org/mutker/proxlock/internal/logger"
)

func newHistoryCmd() *cobra.Command {
	var (
		limit  int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print recent journal entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			jc := cfg.JournalConfig()
			jc.Enabled = true
			j, err := journal.NewService(jc, logger.Component("journal"))
			if err != nil {
				return err
			}
			defer j.Close()

			entries, err := j.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(entries)
			}

			if len(entries) == 0 {
				fmt.Fprintln(out, "No journal entries")
				return nil
			}

			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, []string{
					e.Time.Local().Format(time.DateTime),
					e.Type,
					shortSession(e.SessionID),
					entryDetail(e),
				})
			}
			fmt.Fprintln(out, table.New().
				Border(lipgloss.NormalBorder()).
				Headers("TIME", "EVENT", "SESSION", "DETAIL").
				Rows(rows...).
				String())
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")

	return cmd
}

func shortSession(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func entryDetail(e journal.Entry) string {
	var parts []string
	if e.State != "" {
		parts = append(parts, e.State)
	}
	if e.Smoothed != nil {
		parts = append(parts, strconv.FormatFloat(*e.Smoothed, 'f', 1, 64)+" dBm")
	}
	if e.Reason != "" {
		parts = append(parts, "reason="+e.Reason)
	}
	if e.Radio != "" {
		parts = append(parts, "radio="+e.Radio)
	}
	if e.Failures > 0 {
		parts = append(parts, "failures="+strconv.Itoa(e.Failures))
	}
	if e.Error != "" {
		parts = append(parts, e.Error)
	}
	return strings.Join(parts, " ")
}
