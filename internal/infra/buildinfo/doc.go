// Package buildinfo exposes build-time version information for the syncmesh
// binaries.
//
// Values are injected at build time via ldflags:
//
//	go build -ldflags "-X github.com/yndnr/syncmesh-go/internal/infra/buildinfo.Version=v1.0.0"
package buildinfo
