// Package db persists prediction records.
package db

import (
	"context"
	"errors"
	"fmt"

	"calhousing/housing"
)

const (
	BackendCSV    = "csv"
	BackendSQLite = "sqlite"
)

// ErrNoLog is returned by LoadAll when nothing has been logged yet.
var ErrNoLog = errors.New("no predictions logged")

// RecordStore is an append-only prediction log.
type RecordStore interface {
	Append(ctx context.Context, rec housing.Record) error
	LoadAll(ctx context.Context) ([]housing.Record, error)
	Path() string
	Close() error
}

// Open returns the store for backend at path.
func Open(backend, path string) (RecordStore, error) {
	switch backend {
	case BackendCSV, "":
		return NewCSVLog(path), nil
	case BackendSQLite:
		return OpenSQLite(path)
	default:
		return nil, fmt.Errorf("unknown log backend %q", backend)
	}
}
