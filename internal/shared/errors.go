package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInactiveParty indicates the referenced customer or supplier is deactivated.
	ErrInactiveParty = errors.New("party is inactive")
)
