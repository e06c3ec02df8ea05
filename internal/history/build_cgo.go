//go:build cgo_sqlite
// +build cgo_sqlite

package history

// Compiled when building with CGO and the cgo_sqlite tag. The mattn driver
// links the C SQLite library and is noticeably faster for write-heavy logs.
//
// Build command:
//   CGO_ENABLED=1 go build -tags cgo_sqlite ./...

import (
	_ "github.com/mattn/go-sqlite3"
)

const (
	// DriverName is the SQLite driver to use
	DriverName = "sqlite3"

	// BuildMode describes the current build configuration
	BuildMode = "cgo"
)
