//go:build !dev

package buildinfo

// DevBuild reports whether this is a development build.
const DevBuild = false
