package store

import (
	"fmt"

	"github.com/alexeynavarkin/materialstore/internal/material"
)

// StoreIOError is a failure to read or write the store. It is not retried.
type StoreIOError struct {
	Op   string
	Path string
	Err  error
}

func (e *StoreIOError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("store %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("store %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StoreIOError) Unwrap() error { return e.Err }

// JobNotFoundError means the job has no persisted runs at all. A query
// that matches nothing inside an existing run is not an error.
type JobNotFoundError struct {
	JobName material.JobName
}

func (e *JobNotFoundError) Error() string {
	return fmt.Sprintf("job %q not found", string(e.JobName))
}

func ioErr(op, path string, err error) error {
	return &StoreIOError{Op: op, Path: path, Err: err}
}
