package store

import "errors"

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateEmail is returned when a create would reuse an email
// that already belongs to another account.
var ErrDuplicateEmail = errors.New("email already registered")
