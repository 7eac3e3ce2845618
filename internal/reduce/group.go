// Package reduce pairs the materials of two job runs into products and
// classifies the result.
package reduce

import (
	"encoding/json"
	"fmt"
	"iter"
	"slices"
	"time"

	"go.uber.org/multierr"

	"github.com/alexeynavarkin/materialstore/internal/material"
	"github.com/alexeynavarkin/materialstore/internal/metadata"
)

// DefaultThreshold is the warning threshold used when Config leaves it unset.
const DefaultThreshold = 0.0

// Config collects everything Build needs up front.
type Config struct {
	Left  material.MaterialList
	Right material.MaterialList

	LabelLeft  string
	LabelRight string

	IgnoreKeys     metadata.IgnoreKeys
	IdentifyValues metadata.IdentifyValues
	SortKeys       metadata.SortKeys

	// Threshold is the diff ratio above which a product counts as a
	// warning. Must be within [0, 100].
	Threshold float64

	// Clock defaults to time.Now.
	Clock func() time.Time
}

// Group is the result of a reduction: an ordered sequence of products and
// the configuration that produced it.
type Group struct {
	jobName         material.JobName
	left            material.MaterialList
	right           material.MaterialList
	labelLeft       string
	labelRight      string
	ignoreKeys      metadata.IgnoreKeys
	identifyValues  metadata.IdentifyValues
	sortKeys        metadata.SortKeys
	threshold       float64
	resultTimestamp material.JobTimestamp
	products        []MaterialProduct
}

// NullGroup has no inputs and no products.
var NullGroup = &Group{}

// NewGroup returns a group with cfg's settings and no products.
func NewGroup(cfg Config) (*Group, error) {
	if cfg.Threshold < 0 || cfg.Threshold > 100 {
		return nil, fmt.Errorf("threshold %v out of range [0, 100]", cfg.Threshold)
	}

	jobName := cfg.Left.JobName()
	if jobName == "" {
		jobName = cfg.Right.JobName()
	}

	return &Group{
		jobName:         jobName,
		left:            cfg.Left,
		right:           cfg.Right,
		labelLeft:       labelOr(cfg.LabelLeft, "left"),
		labelRight:      labelOr(cfg.LabelRight, "right"),
		ignoreKeys:      cfg.IgnoreKeys,
		identifyValues:  cfg.IdentifyValues,
		sortKeys:        slices.Clone(cfg.SortKeys),
		threshold:       cfg.Threshold,
		resultTimestamp: material.NowAfter(cfg.Clock, cfg.Left.JobTimestamp(), cfg.Right.JobTimestamp()),
	}, nil
}

func labelOr(label, fallback string) string {
	if label == "" {
		return fallback
	}
	return label
}

func (g *Group) JobName() material.JobName { return g.jobName }
func (g *Group) Left() material.MaterialList { return g.left }
func (g *Group) Right() material.MaterialList { return g.right }
func (g *Group) LabelLeft() string { return g.labelLeft }
func (g *Group) LabelRight() string { return g.labelRight }
func (g *Group) IgnoreKeys() metadata.IgnoreKeys { return g.ignoreKeys }
func (g *Group) IdentifyValues() metadata.IdentifyValues { return g.identifyValues }
func (g *Group) SortKeys() metadata.SortKeys { return slices.Clone(g.sortKeys) }
func (g *Group) Threshold() float64 { return g.threshold }
func (g *Group) ResultTimestamp() material.JobTimestamp { return g.resultTimestamp }

func (g *Group) Add(p MaterialProduct) {
	g.products = append(g.products, p)
}

func (g *Group) Size() int {
	return len(g.products)
}

func (g *Group) Get(i int) MaterialProduct {
	return g.products[i]
}

func (g *Group) Products() []MaterialProduct {
	return slices.Clone(g.products)
}

// All iterates the products in insertion order.
func (g *Group) All() iter.Seq2[int, MaterialProduct] {
	return func(yield func(int, MaterialProduct) bool) {
		for i, p := range g.products {
			if !yield(i, p) {
				return
			}
		}
	}
}

// Clone returns an independent copy that processors may modify.
func (g *Group) Clone() *Group {
	c := *g
	c.sortKeys = slices.Clone(g.sortKeys)
	c.products = slices.Clone(g.products)
	return &c
}

// NewGroupFrom returns a group with g's settings and no products, for
// processors that rebuild the product list.
func NewGroupFrom(g *Group) *Group {
	c := g.Clone()
	c.products = nil
	return c
}

// CountWarnings counts products whose diff ratio is strictly greater than
// threshold. Products without a computed ratio never count.
func (g *Group) CountWarnings(threshold float64) int {
	n := 0
	for _, p := range g.products {
		if p.Exceeds(threshold) {
			n++
		}
	}
	return n
}

func (g *Group) CountWarning() int {
	return g.CountWarnings(g.threshold)
}

func (g *Group) NumberOfBachelors() int {
	n := 0
	for _, p := range g.products {
		if p.IsBachelor() {
			n++
		}
	}
	return n
}

func (g *Group) CountTotal() int {
	return len(g.products)
}

// Errors combines the diff failures recorded on individual products.
func (g *Group) Errors() error {
	var errs error
	for _, p := range g.products {
		errs = multierr.Append(errs, p.Err())
	}
	return errs
}

func (g *Group) Summary() string {
	return fmt.Sprintf("%s %s(%s) vs %s(%s): total=%d warnings=%d bachelors=%d threshold=%.2f",
		g.jobName,
		g.labelLeft, g.left.JobTimestamp(),
		g.labelRight, g.right.JobTimestamp(),
		g.CountTotal(), g.CountWarning(), g.NumberOfBachelors(), g.threshold,
	)
}

func (g *Group) String() string {
	data, err := json.Marshal(g)
	if err != nil {
		return g.Summary()
	}
	return string(data)
}

func (g *Group) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		JobName         material.JobName        `json:"jobName"`
		ResultTimestamp material.JobTimestamp   `json:"resultTimestamp"`
		LabelLeft       string                  `json:"labelLeft"`
		LabelRight      string                  `json:"labelRight"`
		Left            material.MaterialList   `json:"materialListLeft"`
		Right           material.MaterialList   `json:"materialListRight"`
		IgnoreKeys      metadata.IgnoreKeys     `json:"ignoreMetadataKeys"`
		IdentifyValues  metadata.IdentifyValues `json:"identifyMetadataValues"`
		SortKeys        metadata.SortKeys       `json:"sortKeys"`
		Threshold       float64                 `json:"threshold"`
		Products        []MaterialProduct       `json:"materialProducts"`
	}{
		g.jobName, g.resultTimestamp, g.labelLeft, g.labelRight, g.left, g.right,
		g.ignoreKeys, g.identifyValues, g.sortKeys, g.threshold, g.Products(),
	})
}
