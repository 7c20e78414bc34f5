package format

import (
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"

	"github.com/storacha/silo/pkg/config"
)

var dimmed = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Italic(true)

// TableFormatter formats output as a table
type TableFormatter struct {
	writer io.Writer
}

func (f *TableFormatter) Format(data any) error {
	switch v := data.(type) {
	case []config.Layer:
		return f.formatLayers(v)
	default:
		return fmt.Errorf("table format not supported for type %T", data)
	}
}

// formatLayers lists the configuration layers in precedence order, lowest first.
func (f *TableFormatter) formatLayers(layers []config.Layer) error {
	if len(layers) == 0 {
		_, err := fmt.Fprintln(f.writer, dimmed.Render("No configuration layers"))
		return err
	}

	rows := make([]table.Row, 0, len(layers))
	for i, l := range layers {
		status := "absent"
		if l.Applied {
			status = "applied"
		}
		rows = append(rows, table.Row{strconv.Itoa(i + 1), l.Name, status, strconv.Itoa(l.Keys)})
	}

	width := 8
	for _, l := range layers {
		width = max(width, len(l.Name)+2)
	}
	columns := []table.Column{
		{Title: "ORDER", Width: 6},
		{Title: "LAYER", Width: width},
		{Title: "STATUS", Width: 9},
		{Title: "KEYS", Width: 6},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithFocused(false),
		table.WithHeight(len(rows)),
		table.WithWidth(width+40),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	// nothing is selectable in a static table
	s.Selected = s.Cell
	t.SetStyles(s)

	view := t.View()
	if view == "" {
		return f.fallbackLayers(layers)
	}
	_, err := fmt.Fprintln(f.writer, view)
	return err
}

func (f *TableFormatter) fallbackLayers(layers []config.Layer) error {
	for _, l := range layers {
		_, _ = fmt.Fprintf(f.writer, "%s applied=%t keys=%d\n", l.Name, l.Applied, l.Keys)
	}
	return nil
}
