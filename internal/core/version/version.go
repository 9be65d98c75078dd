package version

// Version is set at build time via -ldflags "-X .../version.Version=x.y.z"
var Version = "0.1.0-dev"
