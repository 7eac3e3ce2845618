package diff

import (
	"fmt"

	"github.com/alexeynavarkin/materialstore/internal/material"
)

// DiffComputationError reports that the contents of a pair could not be
// compared. It is recorded on the product and does not stop a reduction.
type DiffComputationError struct {
	Left  material.ID
	Right material.ID
	Err   error
}

func (e *DiffComputationError) Error() string {
	return fmt.Sprintf("diff %s vs %s: %v", e.Left.Short(), e.Right.Short(), e.Err)
}

func (e *DiffComputationError) Unwrap() error { return e.Err }
