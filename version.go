package mapkv

import (
	"fmt"
	"runtime"
)

// Version constants
const (
	// Major is the major version number
	Major = 0

	// Minor is the minor version number
	Minor = 1

	// Patch is the patch version number
	Patch = 0
)

// BuildInfo describes the running binary.
type BuildInfo struct {
	Version  string
	Compiler string
	Target   string
}

// Version returns the version string of mapkv.
func Version() string {
	return fmt.Sprintf("v%d.%d.%d", Major, Minor, Patch)
}

// GetBuildInfo returns build information.
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:  Version(),
		Compiler: runtime.Compiler,
		Target:   runtime.GOOS + "/" + runtime.GOARCH,
	}
}
