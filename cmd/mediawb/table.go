package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	workbench "github.com/Skryldev/media-workbench"
)

// tableColumn describes one column of CLI output.
type tableColumn struct {
	Header     string
	AlignRight bool
	// Status marks a column holding queue item statuses; it is colored
	// when the output is a terminal.
	Status bool
}

var statusColors = map[string]text.Colors{
	string(workbench.StatusCompleted):  {text.FgGreen},
	string(workbench.StatusError):      {text.FgRed, text.Bold},
	string(workbench.StatusPending):    {text.FgYellow},
	string(workbench.StatusProcessing): {text.FgCyan},
}

func colorStatus(val interface{}) string {
	s, _ := val.(string)
	if c, ok := statusColors[s]; ok {
		return c.Sprint(s)
	}
	return s
}

// renderTable lays rows out under columns. Short rows are padded; color
// applies status colors.
func renderTable(columns []tableColumn, rows [][]string, color bool) string {
	if len(columns) == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(columns))
	configs := make([]table.ColumnConfig, len(columns))
	for i, col := range columns {
		header[i] = col.Header
		cfg := table.ColumnConfig{Number: i + 1, Align: text.AlignLeft, AlignHeader: text.AlignLeft}
		if col.AlignRight {
			cfg.Align = text.AlignRight
		}
		if col.Status && color {
			cfg.Transformer = colorStatus
		}
		configs[i] = cfg
	}
	tw.AppendHeader(header)
	tw.SetColumnConfigs(configs)

	for _, row := range rows {
		r := make(table.Row, len(columns))
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}
	return tw.Render()
}
