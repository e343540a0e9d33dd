package contact

import (
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/contact-mx/internal/model"
)

// ErrScenarioUndetected is returned when the headers match neither input shape.
var ErrScenarioUndetected = eris.New("contact: could not detect input scenario")

// MaxEmailSlots is the number of email_<n> columns read per row in the
// multi-email scenario.
const MaxEmailSlots = 3

// DetectScenario picks the extraction strategy from the first row's columns.
// Any email_1..email_3 column selects the multi-email shape; otherwise an
// email column selects the single-email shape.
func DetectScenario(headers []string) (model.ScenarioKind, error) {
	set := make(map[string]struct{}, len(headers))
	for _, h := range headers {
		set[h] = struct{}{}
	}
	for n := 1; n <= MaxEmailSlots; n++ {
		if _, ok := set[slotColumn(n)]; ok {
			return model.ScenarioMultiEmail, nil
		}
	}
	if _, ok := set["email"]; ok {
		return model.ScenarioSingleEmail, nil
	}
	return "", eris.Wrapf(ErrScenarioUndetected, "columns %v", headers)
}

// Headers returns the sorted column names of row.
func Headers(row model.Row) []string {
	out := make([]string, 0, len(row))
	for k := range row {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
