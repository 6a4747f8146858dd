//go:build !sqlite_cgo

package vectorstore

// This file is compiled by default and when CGO is unavailable. It uses a
// pure Go SQLite implementation, which requires no C compiler and
// cross-compiles cleanly at the cost of slower scans.
//
// Driver used: modernc.org/sqlite

import (
	_ "modernc.org/sqlite"
)

const (
	// DriverName is the SQLite driver to use
	DriverName = "sqlite"

	// BuildMode describes the current build configuration
	BuildMode = "purego"
)
