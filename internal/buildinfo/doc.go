// Package buildinfo reports how the running binary was built.
//
// The development build is selected with the "dev" build tag:
//
//	go build -tags dev ./cmd/engagemate
//
// Version is stamped by the release pipeline:
//
//	go build -ldflags "-X github.com/2389/engagemate/internal/buildinfo.Version=1.4.0" ./cmd/engagemate
package buildinfo
