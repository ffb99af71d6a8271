// Package sentinel holds the storage-level facts stores report. Services map them
// to domain errors; input problems use pkg/domain-errors directly.
package sentinel

import "errors"

var (
	// ErrNotFound means no row or object matched.
	ErrNotFound = errors.New("not found")
	// ErrConflict means a write hit a uniqueness rule.
	ErrConflict = errors.New("conflict")
	// ErrInvalidState means the record exists but cannot take the requested change.
	ErrInvalidState = errors.New("invalid state")
)
