// SPDX-License-Identifier: MPL-2.0

package platform

import "strings"

type macOSRelease struct {
	codename string
	version  string
}

// macOSReleases is ordered newest first.
var macOSReleases = []macOSRelease{
	{"tahoe", "26"},
	{"sequoia", "15"},
	{"sonoma", "14"},
	{"ventura", "13"},
	{"monterey", "12"},
	{"big_sur", "11"},
	{"catalina", "10.15"},
	{"mojave", "10.14"},
	{"high_sierra", "10.13"},
	{"sierra", "10.12"},
}

// CanonicalMacOS returns the codename for a macOS codename or product
// version ("14.5" and "sonoma" both yield "sonoma").
func CanonicalMacOS(s string) (string, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, r := range macOSReleases {
		if s == r.codename || s == r.version || strings.HasPrefix(s, r.version+".") {
			return r.codename, true
		}
	}
	return "", false
}

// macOSRank orders codenames oldest-first; unknown names yield ok=false.
func macOSRank(codename string) (rank int, ok bool) {
	for i, r := range macOSReleases {
		if r.codename == codename {
			return len(macOSReleases) - i, true
		}
	}
	return 0, false
}

// IsMacOSCodename reports whether s is a known codename.
func IsMacOSCodename(s string) bool {
	_, ok := macOSRank(s)
	return ok
}
