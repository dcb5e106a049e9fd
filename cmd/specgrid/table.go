package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// column describes one table column.
type column struct {
	header string
	align  text.Align
}

func leftColumn(header string) column  { return column{header: header, align: text.AlignLeft} }
func rightColumn(header string) column { return column{header: header, align: text.AlignRight} }

// renderTable draws rows under columns. Short rows are padded; a non-empty
// footer is rendered below a separator.
func renderTable(columns []column, rows [][]string, footer []string) string {
	if len(columns) == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(toRow(columns, nil, func(c column, _ string) string { return c.header }))
	for _, row := range rows {
		tw.AppendRow(toRow(columns, row, nil))
	}
	if len(footer) > 0 {
		tw.AppendFooter(toRow(columns, footer, nil))
		tw.Style().Format.Footer = text.FormatDefault
	}

	configs := make([]table.ColumnConfig, len(columns))
	for i, c := range columns {
		configs[i] = table.ColumnConfig{
			Number:           i + 1,
			Align:            c.align,
			AlignFooter:      c.align,
			AlignHeader:      text.AlignLeft,
			WidthMax:         72,
			WidthMaxEnforcer: text.WrapSoft,
		}
	}
	tw.SetColumnConfigs(configs)
	return tw.Render()
}

func toRow(columns []column, values []string, pick func(column, string) string) table.Row {
	row := make(table.Row, len(columns))
	for i, c := range columns {
		value := ""
		if i < len(values) {
			value = values[i]
		}
		if pick != nil {
			value = pick(c, value)
		}
		row[i] = value
	}
	return row
}
