package utils

import (
	"net/url"
	"strings"
)

// Converts a "file://" URI to a filesystem path. Anything else passes
// through unchanged, so the same value can be fed in as either form.
func UriToPath(u string) string {
	if strings.HasPrefix(u, "file://") {
		uu, err := url.Parse(u)
		if err == nil {
			return uu.Path
		}
	}
	return u
}

// Converts a filesystem path to a "file://" URI.
func PathToURI(p string) string {
	u := url.URL{Scheme: "file", Path: p}
	return u.String()
}
