// Package build exposes version metadata for -version and the buildinfo
// endpoint, mirroring cmd/tempo/build.
package build

import "github.com/prometheus/common/version"

// Info is the version string printed by -version and served on /buildinfo.
func Info() string {
	return version.Print("roomserver")
}
