// Package version reports build metadata stamped in with -ldflags
package version

import "runtime"

// BuildInfo describes the running binary
type BuildInfo struct {
	Service string `json:"service"`
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
	Go      string `json:"go"`
}

// Set at build time:
//
//	-ldflags "-X repoharvest/internal/core/version.version=v0.1.0 -X repoharvest/internal/core/version.commit=abcd"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Info returns the build information for service
func Info(service string) BuildInfo {
	return BuildInfo{
		Service: service,
		Version: version,
		Commit:  commit,
		Date:    date,
		Go:      runtime.Version(),
	}
}

// UserAgent returns "service/version" for outbound HTTP clients
func UserAgent(service string) string { return service + "/" + version }
