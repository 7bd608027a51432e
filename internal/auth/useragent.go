package auth

import "regexp"

var (
	browserRe = regexp.MustCompile(`(Chrome|Firefox|Safari|Edge|Opera)/[\d.]+`)
	osRe      = regexp.MustCompile(`(Windows|Mac|Linux|Android|iOS)`)
)

// ParseUserAgent reduces a User-Agent header to a short "Browser on OS"
// label, used as the default device name when a request carries none.
func ParseUserAgent(userAgent string) string {
	browser := "Unknown Browser"
	if m := browserRe.FindStringSubmatch(userAgent); m != nil {
		browser = m[1]
	}

	os := "Unknown OS"
	if m := osRe.FindStringSubmatch(userAgent); m != nil {
		os = m[1]
	}

	return browser + " on " + os
}
