// Package version carries build information stamped at link time.
package version

// Set via -ldflags "-X github.com/quantfold/marketcurator/internal/version.Version=..."
var (
	Version = "dev"
	Commit  = "unknown"
)
