package cli

// Version is the release this binary reports and compares against GitHub releases.
// Release builds override it with -ldflags "-X github.com/Fepozopo/imghist/pkg/cli.Version=...".
var Version = "0.1.0"
