package models

import (
	"errors"
	"fmt"
)

var (
	// ErrTaskResolved is returned when a task already carries the other terminal status.
	ErrTaskResolved     = errors.New("task already resolved for today")
	ErrTestModeDisabled = errors.New("test mode is disabled")
	ErrInvalidTimeOfDay = errors.New("invalid time of day, expected HH:MM")
	ErrNotStarted       = errors.New("routine service not started")
	ErrClosed           = errors.New("routine service closed")
)

// PersistenceError means the status store could not load or save a date.
// The in-memory state stays authoritative for the session.
type PersistenceError struct {
	Op   string
	Date string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("status store %s %s: %v", e.Op, e.Date, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// UnknownTaskError is returned by mutations that reference an id outside the catalog.
type UnknownTaskError struct {
	TaskID string
}

func (e *UnknownTaskError) Error() string {
	return fmt.Sprintf("unknown task %q", e.TaskID)
}

// DataIntegrityWarning describes a skipped or defaulted record. It is logged, never returned
// from a mutation.
type DataIntegrityWarning struct {
	Date   string
	TaskID string
	Reason string
}

func (w *DataIntegrityWarning) Error() string {
	if w.TaskID == "" {
		return fmt.Sprintf("data integrity warning (date %s): %s", w.Date, w.Reason)
	}
	return fmt.Sprintf("data integrity warning (date %s, task %q): %s", w.Date, w.TaskID, w.Reason)
}
