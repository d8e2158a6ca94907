/*
errors.go - Centralized error types for the catalog

PURPOSE:
  All catalog error types in one place. The boundary layer (HTTP handlers,
  ingestion orchestrator) needs to tell three situations apart:
  1. Caller errors   - blank names, invalid entries (map to 400 / skip row)
  2. Missing data    - a lookup with no result (empty response, never a panic)
  3. Internal errors - storage failures, broken invariants (escalate)

USAGE:
  Callers classify with errors.Is or the helpers below:

    if catalog.IsClientError(err) {
        // skip the row, keep the file transaction alive
    }

SEE ALSO:
  - resolver.go, upsert.go: Producers of these errors
  - ingest/orchestrator.go: Row-skip vs file-abort classification
*/
package catalog

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrBlankName is returned when a resolver is handed an empty or
	// whitespace-only name. This is a caller contract violation.
	ErrBlankName = errors.New("blank name")

	// ErrNotFound is returned when a lookup that requires a row finds none.
	ErrNotFound = errors.New("not found")

	// ErrUniqueViolation is returned by stores when an insert collides with
	// an existing natural key. Resolvers absorb it by re-reading.
	ErrUniqueViolation = errors.New("unique constraint violation")

	// ErrInvalidEntry is returned when an entity violates its invariants
	// (non-positive price, percentage out of range, inverted window).
	ErrInvalidEntry = errors.New("invalid entry")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// InvalidEntryError names the field that violated an invariant.
type InvalidEntryError struct {
	Field string
	Value string
}

func (e *InvalidEntryError) Error() string {
	return fmt.Sprintf("invalid entry: %s=%s", e.Field, e.Value)
}

func (e *InvalidEntryError) Unwrap() error { return ErrInvalidEntry }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError reports whether the error is caused by invalid input rather
// than a storage or consistency failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrBlankName) || errors.Is(err, ErrInvalidEntry)
}

// IsNotFound reports whether the error indicates a missing row.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
