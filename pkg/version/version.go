// Package version exposes the server build version.
package version

import "runtime/debug"

// fallback can be overridden at build time:
//
//	-ldflags "-X github.com/sheetforge/sheetforge/pkg/version.fallback=v1.2.3"
var fallback = "dev"

// Version reports the module version recorded in build info, or the
// ldflags-provided fallback for local builds.
func Version() string {
	if bi, ok := debug.ReadBuildInfo(); ok {
		if v := bi.Main.Version; v != "" && v != "(devel)" {
			return v
		}
	}
	return fallback
}
