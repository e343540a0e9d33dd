package mx

import (
	"strings"

	"github.com/sells-group/contact-mx/internal/model"
)

// Signatures holds the MX hostname substrings that identify each provider.
type Signatures struct {
	Google  []string `yaml:"google"`
	Outlook []string `yaml:"outlook"`
}

// DefaultSignatures returns the built-in pattern lists.
func DefaultSignatures() Signatures {
	return Signatures{
		Google: []string{
			"google",
			"gmail",
			"googlemail",
			"aspmx.l.google.com",
			"alt1.aspmx.l.google.com",
			"alt2.aspmx.l.google.com",
		},
		Outlook: []string{
			"outlook",
			"microsoft",
			"hotmail",
			"protection.outlook.com",
			"mail.protection.outlook.com",
			"olc.protection.outlook.com",
		},
	}
}

// Match maps MX hostnames to a provider label. Google patterns are tested
// against every record before Outlook; no match (or no records) yields
// "others".
func (s Signatures) Match(records []string) string {
	if len(records) == 0 {
		return model.ProviderOthers
	}
	lower := make([]string, len(records))
	for i, r := range records {
		lower[i] = strings.ToLower(r)
	}
	if anyContains(lower, s.Google) {
		return model.ProviderGoogle
	}
	if anyContains(lower, s.Outlook) {
		return model.ProviderOutlook
	}
	return model.ProviderOthers
}

func anyContains(records, patterns []string) bool {
	for _, r := range records {
		for _, p := range patterns {
			if p != "" && strings.Contains(r, strings.ToLower(p)) {
				return true
			}
		}
	}
	return false
}
