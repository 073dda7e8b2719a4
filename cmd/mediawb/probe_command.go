package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	workbench "github.com/Skryldev/media-workbench"
	"github.com/Skryldev/media-workbench/pkg/progress"
)

func newProbeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "probe FILE...",
		Short: "Show stream properties of audio files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := ctx.newLogger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			wb, err := ctx.newWorkbench(log, progress.NoopReporter{})
			if err != nil {
				return err
			}
			defer wb.Close()

			rows := make([][]string, 0, len(args))
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("read %s: %w", path, err)
				}
				meta, err := wb.ProbeAudio(cmd.Context(), workbench.File{Name: filepath.Base(path), Data: data})
				if err != nil {
					return fmt.Errorf("probe %s: %w", path, err)
				}
				rows = append(rows, []string{
					filepath.Base(path),
					meta.Format,
					meta.Codec,
					meta.Duration.Round(10 * time.Millisecond).String(),
					strconv.Itoa(meta.SampleRate),
					strconv.Itoa(meta.Channels),
					formatBitrate(meta.Bitrate),
				})
			}

			out := cmd.OutOrStdout()
			if v := wb.EngineVersion(); v != "" {
				fmt.Fprintln(out, v)
			}
			columns := []tableColumn{
				{Header: "File"},
				{Header: "Container"},
				{Header: "Codec"},
				{Header: "Duration", AlignRight: true},
				{Header: "Rate", AlignRight: true},
				{Header: "Ch", AlignRight: true},
				{Header: "Bitrate", AlignRight: true},
			}
			fmt.Fprintln(out, renderTable(columns, rows, isTerminal(out)))
			return nil
		},
	}
}

func formatBitrate(bps int) string {
	if bps <= 0 {
		return "-"
	}
	return strconv.Itoa(bps/1000) + "k"
}
