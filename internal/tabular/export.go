package tabular

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/contact-mx/internal/model"
)

// ExportHeader returns the export column order: sourceHeader first, then any
// other original columns in first-seen record order (sorted within a
// record), then the processed columns not already present. A processed
// column that shares a name with an original column keeps that column's
// position.
func ExportHeader(records []model.ContactRecord, sourceHeader []string) []string {
	var header []string
	seen := make(map[string]struct{})
	add := func(col string) {
		if _, ok := seen[col]; ok {
			return
		}
		seen[col] = struct{}{}
		header = append(header, col)
	}

	for _, col := range sourceHeader {
		add(col)
	}
	for _, r := range records {
		keys := make([]string, 0, len(r.OriginalRow))
		for k := range r.OriginalRow {
			if _, ok := seen[k]; !ok {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		for _, k := range keys {
			add(k)
		}
	}
	for _, col := range model.ExportColumns {
		add(col)
	}
	return header
}

// exportRow lays out one record under header. Processed values take
// precedence over same-named original columns.
func exportRow(r *model.ContactRecord, header []string, processed map[string]int) []string {
	values := r.ExportValues()
	out := make([]string, len(header))
	for i, col := range header {
		if j, ok := processed[col]; ok {
			out[i] = values[j]
			continue
		}
		out[i] = r.OriginalRow.Get(col)
	}
	return out
}

// WriteCSV writes records with a header row. sourceHeader preserves the input
// column order and may be nil.
func WriteCSV(w io.Writer, records []model.ContactRecord, sourceHeader []string) error {
	header := ExportHeader(records, sourceHeader)
	processed := make(map[string]int, len(model.ExportColumns))
	for i, col := range model.ExportColumns {
		processed[col] = i
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return eris.Wrap(err, "tabular: write csv header")
	}
	for i := range records {
		if err := cw.Write(exportRow(&records[i], header, processed)); err != nil {
			return eris.Wrapf(err, "tabular: write csv row %d", i)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return eris.Wrap(err, "tabular: flush csv")
	}
	return nil
}

// WriteJSON writes records as an indented JSON array.
func WriteJSON(w io.Writer, records []model.ContactRecord) error {
	if records == nil {
		records = []model.ContactRecord{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return eris.Wrap(err, "tabular: encode json")
	}
	return nil
}
