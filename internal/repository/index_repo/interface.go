package index_repo

import (
	"errors"
)

var ErrClosed = errors.New("index is closed")

// Entry is one persisted record of a written material. Several entries of
// the same run may share an ID.
type Entry struct {
	ID       string            `json:"id"`
	FileType string            `json:"fileType"`
	Metadata map[string]string `json:"metadata"`
}

type Index interface {
	// Append makes e visible to List for the run; appends are atomic.
	Append(jobName, jobTimestamp string, e Entry) error
	// List returns the run's entries in append order, nil when the run has none.
	List(jobName, jobTimestamp string) ([]Entry, error)
	// Timestamps returns the job's runs in ascending order.
	Timestamps(jobName string) ([]string, error)
	Close() error
}
