package core

import "fmt"

// Build metadata, injected with ldflags:
//
//	go build -ldflags "-X inpaint_backend/core.Version=$(git describe --tags --always) \
//	  -X inpaint_backend/core.GitCommit=$(git rev-parse --short HEAD) \
//	  -X inpaint_backend/core.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)" .
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// GetVersionInfo returns e.g. "v1.0.0 (built 2024-01-15T10:30:00Z, commit abc1234)".
func GetVersionInfo() string {
	return fmt.Sprintf("%s (built %s, commit %s)", Version, BuildTime, GitCommit)
}
