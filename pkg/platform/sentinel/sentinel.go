// Package sentinel holds the infrastructure facts stores report. Services
// translate them into domain errors; they never reach HTTP responses.
package sentinel

import "errors"

var (
	// ErrNotFound: no row for the id or UID.
	ErrNotFound = errors.New("not found")
	// ErrConflict: the saved version is stale or the row was modified
	// concurrently.
	ErrConflict = errors.New("conflict")
	// ErrAlreadyUsed: a unique value such as a UID or receipt number is taken.
	ErrAlreadyUsed = errors.New("already used")
	// ErrInvalidState: the row is in a state the store refuses to write over.
	ErrInvalidState = errors.New("invalid state")
	// ErrLocked: another registrar holds the record or resource lock.
	ErrLocked = errors.New("locked")
)
