// Package diff computes how different the two sides of a material product
// are, as a percentage.
package diff

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/alexeynavarkin/materialstore/internal/material"
	"github.com/alexeynavarkin/materialstore/internal/reduce"
)

// ContentReader loads the bytes of a stored material.
type ContentReader interface {
	Read(m material.Material) ([]byte, error)
}

type Differ struct {
	r         ContentReader
	lg        *zap.Logger
	tolerance uint8
}

type Option func(*Differ)

// WithTolerance sets how far an 8-bit image channel may drift before the
// pixel counts as different.
func WithTolerance(t uint8) Option {
	return func(d *Differ) { d.tolerance = t }
}

func NewDiffer(r ContentReader, lg *zap.Logger, opts ...Option) *Differ {
	if lg == nil {
		lg = zap.NewNop()
	}
	d := &Differ{r: r, lg: lg}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Compute returns the diff ratio of left and right. ok is false when the
// pair cannot be compared at all: one side is missing or either file type
// is not diffable, whatever the bytes are.
func (d *Differ) Compute(left, right material.Material) (ratio float64, ok bool, err error) {
	if left.IsNull() || right.IsNull() {
		return 0, false, nil
	}
	diffability := left.Diffability()
	if diffability == material.Unable || right.Diffability() == material.Unable {
		return 0, false, nil
	}
	if left.ID() == right.ID() {
		return 0, true, nil
	}
	if diffability != right.Diffability() {
		return 100, true, nil
	}

	lb, err := d.r.Read(left)
	if err != nil {
		return 0, false, d.fail(left, right, err)
	}
	rb, err := d.r.Read(right)
	if err != nil {
		return 0, false, d.fail(left, right, err)
	}

	switch diffability {
	case material.AsImage:
		ratio, err = ImageRatio(lb, rb, d.tolerance)
	case material.AsText:
		ratio, err = TextRatio(lb, rb)
	default:
		err = fmt.Errorf("unsupported diffability %s", diffability)
	}
	if err != nil {
		return 0, false, d.fail(left, right, err)
	}
	return ratio, true, nil
}

func (d *Differ) fail(left, right material.Material, err error) error {
	return &DiffComputationError{Left: left.ID(), Right: right.ID(), Err: err}
}

// Process fills in the diff ratio of every product of a copy of g. A
// product that cannot be decoded keeps its error and the rest go on.
func (d *Differ) Process(g *reduce.Group) (*reduce.Group, error) {
	out := reduce.NewGroupFrom(g)
	failed := 0
	for _, p := range g.All() {
		ratio, ok, err := d.Compute(p.Left, p.Right)
		switch {
		case err != nil:
			failed++
			d.lg.Warn("failed to compute diff",
				zap.Stringer("left", p.Left.ID()),
				zap.Stringer("right", p.Right.ID()),
				zap.Error(err),
			)
			p.SetError(err)
		case ok:
			p.SetDiffRatio(ratio)
		}
		out.Add(p)
	}

	d.lg.Info("diff computed",
		zap.Stringer("job", g.JobName()),
		zap.Int("products", out.Size()),
		zap.Int("warnings", out.CountWarning()),
		zap.Int("failed", failed),
	)
	return out, nil
}
