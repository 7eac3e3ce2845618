package metadata

import (
	"cmp"
	"encoding/json"
	"maps"
	"regexp"
	"slices"
	"strconv"
)

// IgnoreKeys lists metadata keys left out when two materials are tested
// for pairing equivalence.
type IgnoreKeys struct {
	keys map[string]struct{}
}

var NullIgnoreKeys = IgnoreKeys{}

func NewIgnoreKeys(keys ...string) IgnoreKeys {
	if len(keys) == 0 {
		return NullIgnoreKeys
	}
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return IgnoreKeys{keys: set}
}

func (ik IgnoreKeys) ShouldIgnore(key string) bool {
	_, ok := ik.keys[key]
	return ok
}

func (ik IgnoreKeys) Keys() []string {
	return slices.Sorted(maps.Keys(ik.keys))
}

func (ik IgnoreKeys) Len() int {
	return len(ik.keys)
}

func (ik IgnoreKeys) MarshalJSON() ([]byte, error) {
	return json.Marshal(ik.Keys())
}

// IdentifyValues maps keys to regular expressions. While pairing, the value
// of a listed key is reduced to whether it matches, so that values which
// vary from run to run (session tokens, cache busters) compare equal. Like
// Query patterns, the expressions are unanchored.
type IdentifyValues struct {
	rules map[string]*regexp.Regexp
}

var NullIdentifyValues = IdentifyValues{}

func NewIdentifyValues(rules map[string]string) (IdentifyValues, error) {
	if len(rules) == 0 {
		return NullIdentifyValues, nil
	}
	compiled := make(map[string]*regexp.Regexp, len(rules))
	for _, k := range slices.Sorted(maps.Keys(rules)) {
		re, err := regexp.Compile(rules[k])
		if err != nil {
			return NullIdentifyValues, &QueryError{Key: k, Pattern: rules[k], Err: err}
		}
		compiled[k] = re
	}
	return IdentifyValues{rules: compiled}, nil
}

// Identify returns the normalized value for key. ok is false when key has
// no rule, in which case value is returned unchanged.
func (iv IdentifyValues) Identify(key, value string) (normalized string, ok bool) {
	re, ok := iv.rules[key]
	if !ok {
		return value, false
	}
	return strconv.FormatBool(re.MatchString(value)), true
}

func (iv IdentifyValues) Pattern(key string) (string, bool) {
	re, ok := iv.rules[key]
	if !ok {
		return "", false
	}
	return re.String(), true
}

func (iv IdentifyValues) Keys() []string {
	return slices.Sorted(maps.Keys(iv.rules))
}

func (iv IdentifyValues) Len() int {
	return len(iv.rules)
}

// Rules returns the key to pattern mapping.
func (iv IdentifyValues) Rules() map[string]string {
	out := make(map[string]string, len(iv.rules))
	for k, re := range iv.rules {
		out[k] = re.String()
	}
	return out
}

func (iv IdentifyValues) Equal(other IdentifyValues) bool {
	return maps.Equal(iv.Rules(), other.Rules())
}

func (iv IdentifyValues) MarshalJSON() ([]byte, error) {
	return json.Marshal(iv.Rules())
}

// Effective is md with ignored keys removed and identified values
// normalized. Two materials pair when their effective metadata are equal.
func Effective(md Metadata, ignore IgnoreKeys, identify IdentifyValues) map[string]string {
	out := make(map[string]string, md.Len())
	for k, v := range md.m {
		if ignore.ShouldIgnore(k) {
			continue
		}
		out[k], _ = identify.Identify(k, v)
	}
	return out
}

// EquivalentUnder reports whether a and b have equal effective metadata.
func EquivalentUnder(a, b Metadata, ignore IgnoreKeys, identify IdentifyValues) bool {
	return maps.Equal(Effective(a, ignore, identify), Effective(b, ignore, identify))
}

// PairingQuery describes, as a Query, what an equivalent counterpart of md
// must look like: ignored keys are dropped and identified keys become
// their regex.
func PairingQuery(md Metadata, ignore IgnoreKeys, identify IdentifyValues) Query {
	b := NewQueryBuilder()
	for k, v := range md.m {
		if ignore.ShouldIgnore(k) {
			continue
		}
		if re, ok := identify.rules[k]; ok && re.MatchString(v) {
			b.criteria[k] = criterion{re: re}
			continue
		}
		b.Exact(k, v)
	}
	q, _ := b.Build()
	return q
}

// SortKeys orders metadata lexicographically over the listed keys. A
// material lacking a key sorts after those that have it.
type SortKeys []string

func (sk SortKeys) Compare(a, b Metadata) int {
	for _, k := range sk {
		av, aok := a.Get(k)
		bv, bok := b.Get(k)
		switch {
		case aok && !bok:
			return -1
		case !aok && bok:
			return 1
		case !aok && !bok:
			continue
		}
		if c := cmp.Compare(av, bv); c != 0 {
			return c
		}
	}
	return 0
}
