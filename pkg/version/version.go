// Package version holds build-time version metadata.
package version

var (
	// Version is the deskd version, overridden at build time via -ldflags.
	Version = "dev"
	// GitCommit is the git revision the binary was built from.
	GitCommit = ""
)
