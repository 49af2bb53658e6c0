package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/tphakala/birdclef-go/internal/errors"
)

// Table is a CSV file with a header row
type Table struct {
	Header []string
	Rows   [][]string
	index  map[string]int
}

// ReadTable reads a headed CSV file. Rows may have fewer fields than the header.
func ReadTable(path string) (*Table, error) {
	file, err := os.Open(path) //nolint:gosec // dataset path
	if err != nil {
		return nil, errors.New(err).
			Component("dataset").
			Category(errors.CategoryFileIO).
			FileContext(path, 0).
			Build()
	}
	defer file.Close()

	table, err := ParseTable(file)
	if err != nil {
		return nil, errors.New(fmt.Errorf("error reading CSV file '%s': %w", path, err)).
			Component("dataset").
			Category(errors.CategoryFileParsing).
			FileContext(path, 0).
			Build()
	}
	return table, nil
}

// ParseTable parses headed CSV from r
func ParseTable(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("missing header row")
	}

	header := records[0]
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	t := &Table{Header: header, Rows: records[1:], index: make(map[string]int, len(header))}
	for i, name := range header {
		t.index[strings.TrimSpace(name)] = i
	}
	return t, nil
}

// Column returns the index of the first named column present, or -1.
func (t *Table) Column(names ...string) int {
	for _, name := range names {
		if i, ok := t.index[name]; ok {
			return i
		}
	}
	return -1
}

// RequireColumns returns the indexes of names or an error naming the first missing column
func (t *Table) RequireColumns(names ...string) ([]int, error) {
	idx := make([]int, len(names))
	for i, name := range names {
		c := t.Column(name)
		if c < 0 {
			return nil, errors.Newf("missing required column %q", name).
				Component("dataset").
				Category(errors.CategoryFileParsing).
				Build()
		}
		idx[i] = c
	}
	return idx, nil
}

// Field returns row[col] trimmed, or "" when the row is short or col is -1
func Field(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[col])
}
