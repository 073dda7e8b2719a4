package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newPresetsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "List audio presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			rows := make([][]string, 0)
			for _, p := range cfg.AllPresets() {
				bitrate := p.Bitrate
				if p.Format.Lossless() || bitrate == "" {
					bitrate = "-"
				}
				normalize := "no"
				if p.Normalize {
					normalize = "yes"
				}
				rows = append(rows, []string{p.Name, string(p.Format), bitrate, normalize})
			}
			columns := []tableColumn{
				{Header: "Name"},
				{Header: "Format"},
				{Header: "Bitrate", AlignRight: true},
				{Header: "Normalize"},
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(columns, rows, isTerminal(out)))
			return nil
		},
	}
}
