// Package version holds the build version, overridable at link time with
// -ldflags "-X geotrack/internal/version.Version=...".
package version

var Version = "1.0.0"
