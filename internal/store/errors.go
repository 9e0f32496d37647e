package store

import "errors"

// ErrNotFound is returned by Get when the key has no stored value.
var ErrNotFound = errors.New("store: key not found")

// ErrEmptyKey is returned when an operation is called with an empty key.
var ErrEmptyKey = errors.New("store: empty key")
