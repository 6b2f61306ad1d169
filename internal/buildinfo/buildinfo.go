// ABOUTME: Version string and build-mode helpers shared by the shell and CLI
// ABOUTME: Version is set via ldflags; the dev flag comes from a build tag

package buildinfo

import "runtime"

// Version is set by goreleaser at build time.
var Version = "0.0.0-dev"

// Mode names the build configuration for logs and IPC responses.
func Mode() string {
	if DevBuild {
		return "development"
	}
	return "release"
}

// Platform returns the OS/architecture pair the binary was compiled for.
func Platform() string {
	return runtime.GOOS + "/" + runtime.GOARCH
}
