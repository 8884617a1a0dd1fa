//go:build cgo_sqlite

package sqlite

// Built with the C SQLite amalgamation:
//
//	CGO_ENABLED=1 go build -tags cgo_sqlite ./...

import (
	_ "github.com/mattn/go-sqlite3"
)

const (
	// DriverName is the database/sql driver registered by the linked SQLite implementation.
	DriverName = "sqlite3"

	BuildMode = "cgo"
)
