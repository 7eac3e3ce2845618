package reduce

import (
	"encoding/json"
	"fmt"

	"github.com/alexeynavarkin/materialstore/internal/material"
	"github.com/alexeynavarkin/materialstore/internal/metadata"
)

// MaterialProduct pairs a left and a right material. Either side may be
// material.NullMaterial, in which case the other side is a bachelor.
type MaterialProduct struct {
	Left  material.Material
	Right material.Material
	// Query describes what the counterpart of the primary side had to
	// look like to be paired with it.
	Query metadata.Query

	diffRatio float64
	computed  bool
	err       error
}

var NullMaterialProduct = MaterialProduct{}

func NewMaterialProduct(left, right material.Material, query metadata.Query) MaterialProduct {
	return MaterialProduct{Left: left, Right: right, Query: query}
}

// DiffRatio returns the computed ratio in [0, 100]. ok is false while the
// ratio has not been, or cannot be, computed.
func (p MaterialProduct) DiffRatio() (ratio float64, ok bool) {
	return p.diffRatio, p.computed
}

func (p *MaterialProduct) SetDiffRatio(ratio float64) {
	p.diffRatio = ratio
	p.computed = true
	p.err = nil
}

// SetError records a failure to compute the ratio for this pair only.
func (p *MaterialProduct) SetError(err error) {
	p.err = err
	p.diffRatio = 0
	p.computed = false
}

func (p MaterialProduct) Err() error {
	return p.err
}

// IsBachelor reports whether exactly one side is null.
func (p MaterialProduct) IsBachelor() bool {
	return p.Left.IsNull() != p.Right.IsNull()
}

// Primary is the side used for ordering and labelling: left unless it is
// null.
func (p MaterialProduct) Primary() material.Material {
	if p.Left.IsNull() {
		return p.Right
	}
	return p.Left
}

// Exceeds reports whether the ratio was computed and is strictly above
// threshold.
func (p MaterialProduct) Exceeds(threshold float64) bool {
	return p.computed && p.diffRatio > threshold
}

func (p MaterialProduct) Equal(other MaterialProduct) bool {
	return p.Left.Equal(other.Left) &&
		p.Right.Equal(other.Right) &&
		p.Query.Equal(other.Query) &&
		p.computed == other.computed &&
		p.diffRatio == other.diffRatio
}

func (p MaterialProduct) String() string {
	ratio := "-"
	if p.computed {
		ratio = fmt.Sprintf("%.2f", p.diffRatio)
	}
	return fmt.Sprintf("MaterialProduct(left=%s right=%s diffRatio=%s)", p.Left, p.Right, ratio)
}

func (p MaterialProduct) MarshalJSON() ([]byte, error) {
	var ratio *float64
	if p.computed {
		r := p.diffRatio
		ratio = &r
	}
	var errMsg string
	if p.err != nil {
		errMsg = p.err.Error()
	}
	return json.Marshal(struct {
		Left            material.Material `json:"left"`
		Right           material.Material `json:"right"`
		QueryOnMetadata metadata.Query    `json:"queryOnMetadata"`
		DiffRatio       *float64          `json:"diffRatio"`
		Error           string            `json:"error,omitempty"`
	}{p.Left, p.Right, p.Query, ratio, errMsg})
}
