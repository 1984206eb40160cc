package version

// Version is set at build time with -ldflags "-X virome-runner/core/internal/version.Version=...".
var Version = "dev"
