package contact

import (
	"strings"

	"github.com/sells-group/contact-mx/internal/model"
)

// Canonical attribute keys read by the extractor.
const (
	FieldFullName  = "full_name"
	FieldFirstName = "first_name"
	FieldLastName  = "last_name"
	FieldTitle     = "title"
	FieldPhone     = "phone"
	FieldWebsite   = "website"
)

// FieldMapper maps a single-email row's columns onto canonical attribute keys.
type FieldMapper interface {
	Map(row model.Row) map[string]string
}

// FieldMapperFunc adapts a function to FieldMapper.
type FieldMapperFunc func(row model.Row) map[string]string

// Map calls f(row).
func (f FieldMapperFunc) Map(row model.Row) map[string]string {
	return f(row)
}

// fieldAliases lists accepted column spellings per canonical key, in
// priority order. Comparison uses normalizeHeader.
var fieldAliases = map[string][]string{
	FieldFullName:  {"full_name", "fullname", "name", "contact_name", "contact", "person_name"},
	FieldFirstName: {"first_name", "firstname", "first", "given_name", "forename"},
	FieldLastName:  {"last_name", "lastname", "last", "surname", "family_name"},
	FieldTitle:     {"title", "job_title", "jobtitle", "position", "role", "designation"},
	FieldPhone:     {"phone", "telephone", "phone_number", "tel", "mobile", "mobile_phone", "work_phone"},
	FieldWebsite:   {"website", "url", "web", "company_website", "website_url", "company_url", "homepage"},
}

// DefaultFieldMapper resolves common header spellings onto canonical keys.
// When no full name column exists it is assembled from first and last names.
type DefaultFieldMapper struct{}

// Map returns the trimmed, non-empty canonical values found in row.
func (DefaultFieldMapper) Map(row model.Row) map[string]string {
	byHeader := make(map[string]string, len(row))
	for k, v := range row {
		nk := normalizeHeader(k)
		if _, exists := byHeader[nk]; exists && strings.TrimSpace(v) == "" {
			continue
		}
		byHeader[nk] = v
	}

	out := make(map[string]string, len(fieldAliases))
	for canonical, aliases := range fieldAliases {
		for _, alias := range aliases {
			if v := strings.TrimSpace(byHeader[alias]); v != "" {
				out[canonical] = v
				break
			}
		}
	}

	if out[FieldFullName] == "" {
		full := strings.TrimSpace(out[FieldFirstName] + " " + out[FieldLastName])
		if full != "" {
			out[FieldFullName] = full
		}
	}
	return out
}

// normalizeHeader lowercases a column name and folds separators to underscores.
func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '.':
			return '_'
		}
		return r
	}, h)
}
