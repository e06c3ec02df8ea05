//go:build !cgo_sqlite
// +build !cgo_sqlite

package history

// Compiled by default. The modernc driver is pure Go, so the server
// cross-compiles without a C toolchain.
//
// Build command:
//   CGO_ENABLED=0 go build ./...

import (
	_ "modernc.org/sqlite"
)

const (
	// DriverName is the SQLite driver to use
	DriverName = "sqlite"

	// BuildMode describes the current build configuration
	BuildMode = "purego"
)
