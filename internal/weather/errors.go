package weather

import (
	"errors"
	"fmt"
	"strconv"
)

// FetchError reports that the feed could not be retrieved or decoded.
type FetchError struct {
	Source string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ShapeError reports a payload that lacks the expected structure.
type ShapeError struct {
	Reason string
}

func (e *ShapeError) Error() string {
	return "malformed feed payload: " + e.Reason
}

// ReferentialIntegrityError reports a measurement whose station is unknown to
// the store. StationID is nil when the measurement carried no station at all.
type ReferentialIntegrityError struct {
	MeasurementID string
	StationID     *int64
	Err           error
}

func (e *ReferentialIntegrityError) Error() string {
	station := "<null>"
	if e.StationID != nil {
		station = strconv.FormatInt(*e.StationID, 10)
	}
	msg := fmt.Sprintf("measurement %s references unknown station %s", e.MeasurementID, station)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ReferentialIntegrityError) Unwrap() error { return e.Err }

// StorageError reports a failure of the underlying persistence layer.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// FailureKind classifies why a cycle failed.
type FailureKind string

// FailureKind values, one per error class of the pipeline.
const (
	FailureNone                 FailureKind = "none"
	FailureFetch                FailureKind = "fetch"
	FailureShape                FailureKind = "shape"
	FailureReferentialIntegrity FailureKind = "referential_integrity"
	FailureStorage              FailureKind = "storage"
)

// KindOf returns the failure kind carried by err. Errors that are none of the
// typed pipeline errors map to fallback.
func KindOf(err error, fallback FailureKind) FailureKind {
	if err == nil {
		return FailureNone
	}
	var (
		shapeErr   *ShapeError
		refErr     *ReferentialIntegrityError
		storageErr *StorageError
		fetchErr   *FetchError
	)
	switch {
	case errors.As(err, &shapeErr):
		return FailureShape
	case errors.As(err, &refErr):
		return FailureReferentialIntegrity
	case errors.As(err, &storageErr):
		return FailureStorage
	case errors.As(err, &fetchErr):
		return FailureFetch
	default:
		return fallback
	}
}
