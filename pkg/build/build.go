package build

// Values are overridden at link time with -ldflags "-X github.com/storacha/silo/pkg/build.Version=...".
var (
	Version = "v0.0.0-dev"
	Commit  = "unknown"
	Date    = "unknown"
	BuiltBy = "unknown"
)
