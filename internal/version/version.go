// Package version exposes the build version embedded from the VERSION file.
package version

import (
	_ "embed"
	"strings"
)

//go:embed VERSION
var versionContent string

// Get returns the current version, with whitespace trimmed.
func Get() string {
	return strings.TrimSpace(versionContent)
}

// String returns the version formatted for display.
func String() string {
	return "flowpilot " + Get()
}
