package reduce

import (
	"fmt"
)

// Processor is one pipeline stage. It must not modify its input; stages
// that annotate products work on g.Clone().
type Processor func(g *Group) (*Group, error)

// Pipeline applies ps left to right and stops at the first error.
func Pipeline(ps ...Processor) Processor {
	return func(g *Group) (*Group, error) {
		var err error
		for i, p := range ps {
			g, err = p(g)
			if err != nil {
				return nil, fmt.Errorf("pipeline stage %d: %w", i, err)
			}
		}
		return g, nil
	}
}

// Resort reorders the products by keys, keeping the order of equal ones.
func Resort(keys []string) Processor {
	return func(g *Group) (*Group, error) {
		out := g.Clone()
		out.sortKeys = append(out.sortKeys[:0:0], keys...)
		sortProducts(out.products, out.sortKeys)
		return out, nil
	}
}
