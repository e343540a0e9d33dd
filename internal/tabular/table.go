// Package tabular reads contact rows from CSV and XLSX files and writes
// processed records back out as CSV or JSON.
package tabular

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/contact-mx/internal/model"
)

// Table is a parsed sheet: the header in file order and one Row per data line.
type Table struct {
	Header []string
	Rows   []model.Row
}

// ReadFile parses path as CSV or XLSX based on its extension.
func ReadFile(ctx context.Context, path string) (*Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return ReadXLSX(path, XLSXOptions{})
	case ".tsv":
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrapf(err, "tabular: open %s", path)
		}
		defer f.Close() //nolint:errcheck
		return ReadCSV(ctx, f, CSVOptions{Delimiter: '\t'})
	case ".csv", ".txt", "":
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrapf(err, "tabular: open %s", path)
		}
		defer f.Close() //nolint:errcheck
		return ReadCSV(ctx, f, CSVOptions{})
	default:
		return nil, eris.Errorf("tabular: unsupported file type %q", filepath.Ext(path))
	}
}

// newTable builds rows from raw records keyed by header. Header cells are
// trimmed; blank and repeated header names are dropped, first one wins.
// Short records leave missing columns empty and lines with no content are
// skipped.
func newTable(header []string, records [][]string) *Table {
	t := &Table{}
	index := make([]int, 0, len(header))
	seen := make(map[string]struct{}, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		if _, dup := seen[h]; dup {
			continue
		}
		seen[h] = struct{}{}
		t.Header = append(t.Header, h)
		index = append(index, i)
	}

	for _, rec := range records {
		if blank(rec) {
			continue
		}
		row := make(model.Row, len(t.Header))
		for j, col := range t.Header {
			if i := index[j]; i < len(rec) {
				row[col] = rec[i]
			} else {
				row[col] = ""
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

func blank(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
