package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSnapshotName marks a report file whose name is not a MM-DD-YYYY date.
	ErrInvalidSnapshotName = errors.New("snapshot file name is not a MM-DD-YYYY date")
	// ErrMalformedRow marks a report row with an unusable region or count.
	ErrMalformedRow = errors.New("malformed report row")
	// ErrAliasChain is returned when an alias points at another alias.
	ErrAliasChain = errors.New("alias target is itself an alias")
	// ErrNoSnapshots is returned when an ingestion run has nothing to build from.
	ErrNoSnapshots = errors.New("no usable snapshots")

	// ErrDateNotFound is returned when a dd/mm/yyyy key is not in the date index.
	ErrDateNotFound = errors.New("date key not found")
	// ErrRegionNotFound is returned when a table has no rows for the region.
	ErrRegionNotFound = errors.New("region not found")
	// ErrInvalidRange is returned for a start after the end or an ordinal
	// outside the date index.
	ErrInvalidRange = errors.New("invalid date range")
	// ErrInvalidWindow is returned for a rolling window shorter than one day.
	ErrInvalidWindow = errors.New("rolling window must be at least 1 day")
	// ErrUnknownVariable is returned for a metric name outside Variables.
	ErrUnknownVariable = errors.New("unknown variable")
)

// FileError records a report file that was excluded from an ingestion run.
type FileError struct {
	Path string
	Err  error
}

func (e FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e FileError) Unwrap() error {
	return e.Err
}
