package metadata

import (
	"encoding/json"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strings"
)

// QueryError reports a pattern that failed to compile. It is raised when a
// Query or IdentifyValues is constructed, never while scanning.
type QueryError struct {
	Key     string
	Pattern string
	Err     error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("invalid pattern %q for key %q: %v", e.Pattern, e.Key, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

type criterion struct {
	value string
	re    *regexp.Regexp
}

func (c criterion) matches(v string) bool {
	if c.re != nil {
		return c.re.MatchString(v)
	}
	return c.value == v
}

func (c criterion) pattern() string {
	if c.re != nil {
		return c.re.String()
	}
	return c.value
}

// Query selects Metadata by per-key criteria. A key is matched either
// verbatim or by a regular expression, decided when the key is added.
// Regular expressions match anywhere in the value; anchor them with ^ and $
// to require the whole value. Keys absent from the query are wildcards.
type Query struct {
	criteria map[string]criterion
}

// NullQuery matches every Metadata.
var NullQuery = Query{}

// NewQuery builds a query with exact-match criteria only.
func NewQuery(exact map[string]string) Query {
	b := NewQueryBuilder()
	for k, v := range exact {
		b.Exact(k, v)
	}
	q, _ := b.Build()
	return q
}

func (q Query) Matches(md Metadata) bool {
	for k, c := range q.criteria {
		v, ok := md.Get(k)
		if !ok || !c.matches(v) {
			return false
		}
	}
	return true
}

func (q Query) Len() int {
	return len(q.criteria)
}

func (q Query) IsNull() bool {
	return len(q.criteria) == 0
}

func (q Query) Keys() []string {
	return slices.Sorted(maps.Keys(q.criteria))
}

// Pattern returns the literal value or the regex source for key.
func (q Query) Pattern(key string) (pattern string, isRegex bool, ok bool) {
	c, ok := q.criteria[key]
	if !ok {
		return "", false, false
	}
	return c.pattern(), c.re != nil, true
}

// Equal compares keys, patterns and match modes.
func (q Query) Equal(other Query) bool {
	if len(q.criteria) != len(other.criteria) {
		return false
	}
	for k, c := range q.criteria {
		o, ok := other.criteria[k]
		if !ok || (c.re != nil) != (o.re != nil) || c.pattern() != o.pattern() {
			return false
		}
	}
	return true
}

func (q Query) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, k := range q.Keys() {
		if i > 0 {
			sb.WriteString(", ")
		}
		c := q.criteria[k]
		sb.WriteString(quote(k))
		sb.WriteByte(':')
		if c.re != nil {
			sb.WriteString("re:")
		}
		sb.WriteString(quote(c.pattern()))
	}
	sb.WriteByte('}')
	return sb.String()
}

// QueryCriterion is the serialized form of one key of a Query.
type QueryCriterion struct {
	Key     string `json:"key"`
	Pattern string `json:"pattern"`
	Regex   bool   `json:"regex"`
}

// Criteria lists the criteria ordered by key.
func (q Query) Criteria() []QueryCriterion {
	out := make([]QueryCriterion, 0, len(q.criteria))
	for _, k := range q.Keys() {
		c := q.criteria[k]
		out = append(out, QueryCriterion{Key: k, Pattern: c.pattern(), Regex: c.re != nil})
	}
	return out
}

func (q Query) MarshalJSON() ([]byte, error) {
	return json.Marshal(q.Criteria())
}

type QueryBuilder struct {
	criteria map[string]criterion
	err      error
}

func NewQueryBuilder() *QueryBuilder {
	return &QueryBuilder{criteria: make(map[string]criterion)}
}

func (b *QueryBuilder) Exact(key, value string) *QueryBuilder {
	b.criteria[key] = criterion{value: value}
	return b
}

// Regex adds a criterion matched with regexp.MatchString. A pattern that
// does not compile is reported by Build.
func (b *QueryBuilder) Regex(key, pattern string) *QueryBuilder {
	re, err := regexp.Compile(pattern)
	if err != nil {
		if b.err == nil {
			b.err = &QueryError{Key: key, Pattern: pattern, Err: err}
		}
		return b
	}
	b.criteria[key] = criterion{re: re}
	return b
}

func (b *QueryBuilder) Build() (Query, error) {
	if b.err != nil {
		return NullQuery, b.err
	}
	if len(b.criteria) == 0 {
		return NullQuery, nil
	}
	return Query{criteria: maps.Clone(b.criteria)}, nil
}
