package store

import "errors"

var (
	// ErrNotFound is returned when a record, collection, or account
	// doesn't exist.
	ErrNotFound = errors.New("weft: not found")

	// ErrExists is returned by CreateAccount when the name is taken.
	ErrExists = errors.New("weft: already exists")

	// ErrBatchTooLarge is returned when DeleteRecordBatch is handed more
	// than MaxBatchKeys ids.
	ErrBatchTooLarge = errors.New("weft: batch exceeds maximum key count")

	// ErrBadScanField is returned when a scan targets a field no index
	// covers.
	ErrBadScanField = errors.New("weft: field is not scannable")
)
