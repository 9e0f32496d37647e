package database

import "errors"

// ErrEmptyPath is returned when Open is called without a database path.
var ErrEmptyPath = errors.New("database: path is required")
