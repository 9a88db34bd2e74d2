// Package version provides build-time version information.
//
// Set at build time via ldflags:
//
//	go build -ldflags "-X github.com/rickgao/chartflow/internal/version.Version=1.0.0 \
//	                   -X github.com/rickgao/chartflow/internal/version.Commit=$(git rev-parse --short HEAD) \
//	                   -X github.com/rickgao/chartflow/internal/version.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
//
// Version is also stamped into every consolidation manifest.
package version

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// String returns "<version> (<commit>) built <time>".
func String() string {
	return Version + " (" + Commit + ") built " + BuildTime
}
