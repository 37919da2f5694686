package dashboard

import (
	pretty "github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/franz/culture-recs/internal/table"
)

// cellWidth caps a rendered column; longer cells are trimmed
const cellWidth = 40

func renderGrid(headers []string, rows [][]string, width int) string {
	if len(headers) == 0 {
		return ""
	}

	tw := pretty.NewWriter()
	tw.SetStyle(pretty.StyleRounded)
	if width > 0 {
		tw.SetAllowedRowLength(width)
	}

	header := make(pretty.Row, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(pretty.Row, len(headers))
		for i := range headers {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]pretty.ColumnConfig, len(headers))
	for i := range headers {
		configs[i] = pretty.ColumnConfig{
			Number:           i + 1,
			WidthMax:         cellWidth,
			WidthMaxEnforcer: text.Trim,
			AlignHeader:      text.AlignLeft,
		}
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}

// renderTable draws every row of t; null cells are blank
func renderTable(t *table.Table, width int) string {
	rows := make([][]string, t.Len())
	for i := range rows {
		cells := t.Row(i)
		rows[i] = make([]string, len(cells))
		for j, v := range cells {
			rows[i][j] = v.String()
		}
	}
	return renderGrid(t.Columns(), rows, width)
}

// renderRecords draws records using the first record's keys as header
func renderRecords(records []table.Record, width int) string {
	if len(records) == 0 {
		return ""
	}
	headers := records[0].Keys()
	rows := make([][]string, len(records))
	for i, rec := range records {
		rows[i] = make([]string, len(headers))
		for j, h := range headers {
			rows[i][j] = rec.GetString(h)
		}
	}
	return renderGrid(headers, rows, width)
}
