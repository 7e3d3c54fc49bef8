// Package catdb holds build information of the catdb tool.
package catdb

var (
	// Version of catdb, set during the build.
	Version = "v0.1.0"

	// Build timestamp, set during the build.
	Build = "n/a"
)
