package contact

import (
	"regexp"
	"strings"
)

var (
	schemePrefix = regexp.MustCompile(`(?i)^https?://`)
	wwwPrefix    = regexp.MustCompile(`(?i)^www\.`)
)

// CleanWebsite reduces a website or email value to a lowercase host.
// Email-looking input yields the part after the '@'. Anything else has its
// scheme and leading "www." stripped and is cut at the first '/', '?' or '#'.
// Unusable input yields "".
func CleanWebsite(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}

	if strings.Contains(s, "@") {
		parts := strings.Split(s, "@")
		host := parts[1]
		if i := strings.IndexAny(host, "?#"); i >= 0 {
			host = host[:i]
		}
		return strings.ToLower(host)
	}

	s = schemePrefix.ReplaceAllString(s, "")
	s = wwwPrefix.ReplaceAllString(s, "")
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimRight(s, "/")
	return strings.ToLower(s)
}
