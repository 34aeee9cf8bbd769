package repository

import "errors"

// ErrNotFound is returned when a requested document does not exist. Callers
// that treat absence as a normal state (membership lookups, share tokens)
// match on it with errors.Is.
var ErrNotFound = errors.New("not found")
