// Package version provides semantic version helpers for the schema
// migrator and the server build identity.
package version

import (
	"fmt"
	"strings"

	"golang.org/x/mod/semver"
)

// Version is the service version, overridable at build time via
// -ldflags "-X github.com/usesemdex/semdex/internal/version.Version=...".
var Version = "0.1.0"

// GetCurrentVersion returns the version the running binary was built as.
func GetCurrentVersion() string {
	return Version
}

// canonical prefixes a version with "v" so it is valid for semver compare.
func canonical(version string) string {
	if strings.HasPrefix(version, "v") {
		return version
	}
	return "v" + version
}

// IsVersionGreaterThan reports whether version is strictly newer than target.
func IsVersionGreaterThan(version, target string) bool {
	return semver.Compare(canonical(version), canonical(target)) > 0
}

// IsVersionGreaterOrEqualThan reports whether version is at least target.
func IsVersionGreaterOrEqualThan(version, target string) bool {
	return semver.Compare(canonical(version), canonical(target)) >= 0
}

// GetSchemaVersion maps a release version to its schema version
// (major.minor.0); patch releases never change the schema.
func GetSchemaVersion(version string) string {
	v := canonical(version)
	majorMinor := semver.MajorMinor(v)
	if majorMinor == "" {
		return "0.0.0"
	}
	return fmt.Sprintf("%s.0", strings.TrimPrefix(majorMinor, "v"))
}
