package importer

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"

	"github.com/franz/culture-recs/internal/table"
)

// decodeXLSX reads the first sheet of an Office Open XML workbook
func decodeXLSX(data []byte) (*table.Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return fromGrid(rows)
}

// decodeXLS reads the first sheet of a legacy BIFF workbook
func decodeXLS(data []byte) (*table.Table, error) {
	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}

	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, errors.New("workbook has no sheets")
	}

	grid := make([][]string, 0, int(sheet.MaxRow)+1)
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheet.Row(i)
		if row == nil {
			grid = append(grid, nil)
			continue
		}
		cells := make([]string, row.LastCol())
		for c := row.FirstCol(); c < row.LastCol(); c++ {
			cells[c] = row.Col(c)
		}
		grid = append(grid, cells)
	}
	return fromGrid(grid)
}

// fromGrid turns sheet rows into a table using the first row as header.
// Spreadsheet rows are ragged, so short rows are padded and trailing cells
// past the header are ignored.
func fromGrid(rows [][]string) (*table.Table, error) {
	if len(rows) == 0 {
		return nil, errors.New("empty sheet")
	}

	t := table.New(dedupeHeader(rows[0])...)
	if t.Width() == 0 {
		return nil, errors.New("sheet has no header row")
	}

	for _, cells := range rows[1:] {
		if len(cells) > t.Width() {
			cells = cells[:t.Width()]
		}
		if allBlank(cells) {
			continue
		}
		if err := appendPadded(t, cells); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func allBlank(cells []string) bool {
	for _, c := range cells {
		if c != "" {
			return false
		}
	}
	return true
}
