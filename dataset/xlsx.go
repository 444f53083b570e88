package dataset

import (
	"sleepdx.com/sdp/types"
	"errors"
	"fmt"
	"github.com/xuri/excelize/v2"
	"io"
	"path"
	"strings"
)

// ParseXLSX reads the first sheet of a workbook through parseTable. Blank rows
// are skipped.
func ParseXLSX(source string, r io.Reader) (*types.LabeledDataset, error) {
	book, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer book.Close()
	sheets := book.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	rows, err := book.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	records := make([][]string, 0, len(rows))
	for _, row := range rows {
		if !blank(row) {
			records = append(records, row)
		}
	}
	if len(records) == 0 {
		return nil, errors.New("empty table")
	}
	return parseTable(source, records[0], records[1:])
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

type parser func(source string, r io.Reader) (*types.LabeledDataset, error)

// parserFor picks the table parser by file extension; anything but .xlsx is CSV.
func parserFor(name string) parser {
	if strings.EqualFold(path.Ext(name), ".xlsx") {
		return ParseXLSX
	}
	return ParseCSV
}
