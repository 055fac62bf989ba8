// Package store provides the per-context persistent key/value store.
//
// Values are JSON documents filed under fixed string keys. Reads that fail
// for any reason resolve to a caller-supplied fallback and writes that fail
// are swallowed: the in-memory state of the caller stays authoritative for
// the current session.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// ErrNotFound is returned by backends when a key has never been written.
var ErrNotFound = errors.New("store: key not found")

// Backend is the raw byte storage behind a Store.
type Backend interface {
	// Read returns the bytes stored under key, or ErrNotFound.
	Read(key string) ([]byte, error)
	// Write fully overwrites the value stored under key.
	Write(key string, data []byte) error
}

// Store encodes values as JSON on top of a Backend.
type Store struct {
	backend Backend
	logger  *slog.Logger
}

// New creates a Store. The logger must not be the process default logger
// once console capture is installed; nil disables diagnostics.
func New(backend Backend, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Store{backend: backend, logger: logger}
}

// Get decodes the value under key into a T. Absent keys, backend failures
// and corrupt data all yield fallback.
func Get[T any](s *Store, key string, fallback T) T {
	data, err := s.backend.Read(key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Debug("store: read failed", slog.String("key", key), slog.String("error", err.Error()))
		}
		return fallback
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		s.logger.Debug("store: corrupt value", slog.String("key", key), slog.String("error", err.Error()))
		return fallback
	}
	return v
}

// Set encodes v and overwrites the value under key. It reports whether the
// write landed; failures are never propagated.
func (s *Store) Set(key string, v any) bool {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Debug("store: encode failed", slog.String("key", key), slog.String("error", err.Error()))
		return false
	}
	if err := s.backend.Write(key, data); err != nil {
		s.logger.Debug("store: write failed", slog.String("key", key), slog.String("error", err.Error()))
		return false
	}
	return true
}

// Close releases the backend if it holds resources.
func (s *Store) Close() error {
	if c, ok := s.backend.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Drivers accepted by Open.
const (
	DriverFS     = "fs"
	DriverSQLite = "sqlite"
)

// Open builds a Store for the configured driver. For DriverFS path is a
// directory, for DriverSQLite a database file.
func Open(driver, path string, logger *slog.Logger) (*Store, error) {
	switch driver {
	case DriverFS:
		b, err := NewFS(path)
		if err != nil {
			return nil, err
		}
		return New(b, logger), nil
	case DriverSQLite:
		b, err := OpenSQLite(path)
		if err != nil {
			return nil, err
		}
		return New(b, logger), nil
	default:
		return nil, fmt.Errorf("store: unknown driver %q", driver)
	}
}
