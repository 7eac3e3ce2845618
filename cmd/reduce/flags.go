package main

import (
	"fmt"
	"strings"

	"github.com/alexeynavarkin/materialstore/internal/metadata"
)

// parseList splits "a,b" into its trimmed, non-empty items.
func parseList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// parseQuery reads "k=v;k2~=regex": '=' is an exact match, '~=' a regular
// expression. Items are separated by semicolons like identify rules, so
// patterns may contain commas. An empty string selects everything.
func parseQuery(s string) (metadata.Query, error) {
	b := metadata.NewQueryBuilder()
	for _, item := range strings.Split(s, ";") {
		if strings.TrimSpace(item) == "" {
			continue
		}
		if k, re, ok := strings.Cut(item, "~="); ok {
			b.Regex(strings.TrimSpace(k), re)
			continue
		}
		k, v, ok := strings.Cut(item, "=")
		if !ok {
			return metadata.NullQuery, fmt.Errorf("query item %q: expected key=value or key~=regex", item)
		}
		b.Exact(strings.TrimSpace(k), v)
	}
	return b.Build()
}

// parseIdentify reads "k=regex;k2=regex". Semicolons separate rules since
// patterns commonly contain commas.
func parseIdentify(s string) (metadata.IdentifyValues, error) {
	rules := make(map[string]string)
	for _, item := range strings.Split(s, ";") {
		if strings.TrimSpace(item) == "" {
			continue
		}
		k, re, ok := strings.Cut(item, "=")
		if !ok {
			return metadata.NullIdentifyValues, fmt.Errorf("identify rule %q: expected key=regex", item)
		}
		rules[strings.TrimSpace(k)] = re
	}
	return metadata.NewIdentifyValues(rules)
}
