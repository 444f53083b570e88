package dataset

import (
	"sleepdx.com/sdp/types"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ParseCSV reads a headered comma separated table through parseTable.
func ParseCSV(source string, r io.Reader) (*types.LabeledDataset, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty table")
		}
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	return parseTable(source, header, records)
}

// parseTable builds a dataset from a header and its rows. Columns are matched
// onto canonical features by name or display alias, unrecognised columns are
// ignored and the label column is required. Text values of categorical
// columns are label encoded by sorted unique value and recorded in the
// codebook. Rows shorter than the header read as empty cells.
func parseTable(source string, header []string, records [][]string) (*types.LabeledDataset, error) {
	labelCol := -1
	featureCols := map[string]int{}
	var supplied, ignored []string
	for i, h := range header {
		if types.IsLabelColumn(h) {
			labelCol = i
			continue
		}
		name, ok := types.ResolveColumn(h)
		if !ok {
			ignored = append(ignored, h)
			continue
		}
		if _, dup := featureCols[name]; dup {
			return nil, fmt.Errorf("column %q maps onto feature %s twice", h, name)
		}
		featureCols[name] = i
		supplied = append(supplied, name)
	}
	if labelCol < 0 {
		return nil, errors.New("label column not found")
	}
	if len(ignored) > 0 {
		datasetLogger.Debug().Str("source", source).Strs("columns", ignored).Msg("Ignoring unrecognised columns")
	}
	schema, _ := types.NewSchema(supplied)
	if schema.Len() == 0 {
		return nil, errors.New("no known feature columns")
	}
	if len(records) == 0 {
		return nil, errors.New("table has no rows")
	}

	ds := &types.LabeledDataset{
		Source:   source,
		Schema:   schema,
		Rows:     make([][]float64, len(records)),
		Labels:   make([]string, len(records)),
		Codebook: types.Codebook{},
	}
	for i := range ds.Rows {
		ds.Rows[i] = make([]float64, schema.Len())
	}
	for j, name := range schema.Features {
		col := featureCols[name]
		cells := make([]string, len(records))
		for i, rec := range records {
			cells[i] = cell(rec, col)
		}
		values, codes, err := decodeColumn(name, cells)
		if err != nil {
			return nil, err
		}
		if codes != nil {
			ds.Codebook[name] = codes
		}
		for i, v := range values {
			ds.Rows[i][j] = v
		}
	}
	for i, rec := range records {
		label := cell(rec, labelCol)
		if label == "" {
			label = types.LabelNone
		}
		ds.Labels[i] = label
	}
	return ds, nil
}

func cell(rec []string, col int) string {
	if col >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[col])
}

// decodeColumn returns numeric values for the column. Categorical columns
// holding text are encoded and the codes are returned alongside.
func decodeColumn(name string, cells []string) ([]float64, map[string]int, error) {
	values := make([]float64, len(cells))
	numeric := true
	for i, c := range cells {
		v, err := strconv.ParseFloat(c, 64)
		if err != nil {
			numeric = false
			break
		}
		values[i] = v
	}
	if numeric {
		return values, nil, nil
	}
	feature, _ := types.LookupFeature(name)
	if !feature.Categorical {
		for i, c := range cells {
			if _, err := strconv.ParseFloat(c, 64); err != nil {
				return nil, nil, fmt.Errorf("row %d: feature %s: %q is not numeric", i+1, name, c)
			}
		}
	}
	for i, c := range cells {
		if c == "" {
			return nil, nil, fmt.Errorf("row %d: feature %s is empty", i+1, name)
		}
	}
	codes := types.FitCodebook(cells)
	for i, c := range cells {
		values[i] = float64(codes[c])
	}
	return values, codes, nil
}
