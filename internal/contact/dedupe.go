package contact

import "github.com/sells-group/contact-mx/internal/model"

// Deduplicate keeps the first record seen for each email, preserving input
// order. Later duplicates are dropped whole, even when their other fields differ.
func Deduplicate(records []model.ContactRecord) []model.ContactRecord {
	seen := make(map[string]struct{}, len(records))
	out := make([]model.ContactRecord, 0, len(records))
	for _, r := range records {
		if _, ok := seen[r.Email]; ok {
			continue
		}
		seen[r.Email] = struct{}{}
		out = append(out, r)
	}
	return out
}
