package mux

import "github.com/go-errors/errors"

// Launch validation failures reported through a session's error status.
var (
	errEmptyCwd       = errors.New("working directory not set")
	errUnreachableCwd = errors.New("working directory does not exist or is not a directory")
)
