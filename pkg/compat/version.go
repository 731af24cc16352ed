package compat

import (
	"strings"

	"golang.org/x/mod/semver"
)

// VersionPair holds the versions reported by the server.
type VersionPair struct {
	API      string `json:"api"`
	Platform string `json:"unraid"`
}

// ensureVPrefix returns s with a leading "v" if it doesn't already have one.
func ensureVPrefix(s string) string {
	if s != "" && !strings.HasPrefix(s, "v") {
		return "v" + s
	}
	return s
}

// Canonical returns v in canonical semver form, tolerating a missing "v",
// surrounding whitespace, prerelease and build suffixes. ok is false when v
// is not a version.
func Canonical(v string) (string, bool) {
	sv := ensureVPrefix(strings.TrimSpace(v))
	if !semver.IsValid(sv) {
		return "", false
	}
	return semver.Canonical(sv), true
}

// AtLeast reports whether observed >= minimum. ok is false when either side
// does not parse.
func AtLeast(observed, minimum string) (atLeast, ok bool) {
	o, okO := Canonical(observed)
	m, okM := Canonical(minimum)
	if !okO || !okM {
		return false, false
	}
	return semver.Compare(o, m) >= 0, true
}
