package reduce

import (
	"maps"
	"slices"

	"github.com/alexeynavarkin/materialstore/internal/material"
	"github.com/alexeynavarkin/materialstore/internal/metadata"
)

// Build pairs cfg.Left with cfg.Right.
//
// Each left material, in list order, takes the first not yet consumed right
// material with equal effective metadata; a left material without one is a
// bachelor. Right materials left over afterwards follow as bachelors in list
// order. The products are then stably sorted by cfg.SortKeys.
//
// Matching is a linear scan per left material, O(len(left) * len(right)).
func Build(cfg Config) (*Group, error) {
	g, err := NewGroup(cfg)
	if err != nil {
		return nil, err
	}

	left := cfg.Left.Materials()
	right := cfg.Right.Materials()

	rightKeys := make([]map[string]string, len(right))
	for i, r := range right {
		rightKeys[i] = metadata.Effective(r.Metadata(), cfg.IgnoreKeys, cfg.IdentifyValues)
	}
	consumed := make([]bool, len(right))

	for _, l := range left {
		key := metadata.Effective(l.Metadata(), cfg.IgnoreKeys, cfg.IdentifyValues)
		query := metadata.PairingQuery(l.Metadata(), cfg.IgnoreKeys, cfg.IdentifyValues)

		match := material.NullMaterial
		for i, r := range right {
			if consumed[i] || !maps.Equal(key, rightKeys[i]) {
				continue
			}
			consumed[i] = true
			match = r
			break
		}
		g.Add(NewMaterialProduct(l, match, query))
	}

	for i, r := range right {
		if consumed[i] {
			continue
		}
		query := metadata.PairingQuery(r.Metadata(), cfg.IgnoreKeys, cfg.IdentifyValues)
		g.Add(NewMaterialProduct(material.NullMaterial, r, query))
	}

	sortProducts(g.products, g.sortKeys)

	return g, nil
}

// sortProducts orders by the primary side's metadata; an empty key list
// keeps the emission order.
func sortProducts(products []MaterialProduct, keys metadata.SortKeys) {
	if len(keys) == 0 {
		return
	}
	slices.SortStableFunc(products, func(a, b MaterialProduct) int {
		return keys.Compare(a.Primary().Metadata(), b.Primary().Metadata())
	})
}
