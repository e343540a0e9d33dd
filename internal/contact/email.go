// Package contact turns raw input rows into normalized contact records and
// applies the record-level passes (deduplication, enrichment).
package contact

import (
	"strings"

	"github.com/rotisserie/eris"
)

// ErrInvalidEmail is returned for blank values and values without an '@'.
var ErrInvalidEmail = eris.New("contact: invalid email")

// EmailNormalizer canonicalizes raw email strings.
type EmailNormalizer struct {
	// PreserveLocalCase keeps the local part as written and lowercases only
	// the domain. By default the whole address is lowercased.
	PreserveLocalCase bool
}

// Normalize trims raw, validates it, and returns local@domain with the
// domain lowercased. The local part is lowercased too unless
// PreserveLocalCase is set, so "Jane@x.com" and "jane@x.com" dedupe as one
// address. The split happens at the last '@' so quoted local parts survive.
func (n EmailNormalizer) Normalize(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", eris.Wrap(ErrInvalidEmail, "empty value")
	}
	at := strings.LastIndex(s, "@")
	if at < 0 {
		return "", eris.Wrapf(ErrInvalidEmail, "missing @ in %q", s)
	}
	local, domain := s[:at], s[at+1:]
	if local == "" || domain == "" {
		return "", eris.Wrapf(ErrInvalidEmail, "empty local part or domain in %q", s)
	}
	if !n.PreserveLocalCase {
		local = strings.ToLower(local)
	}
	return local + "@" + strings.ToLower(domain), nil
}

// NormalizeEmail normalizes with the default (fully lowercased) policy.
func NormalizeEmail(raw string) (string, error) {
	return EmailNormalizer{}.Normalize(raw)
}
