// Package metadata holds the key/value descriptions attached to stored
// materials together with the predicates and normalization rules used to
// select and pair them.
package metadata

import (
	"encoding/json"
	"maps"
	"net/url"
	"slices"
	"strings"
)

// Well-known keys produced by Builder.PutURL.
const (
	KeyURLProtocol = "URL.protocol"
	KeyURLHost     = "URL.host"
	KeyURLPort     = "URL.port"
	KeyURLPath     = "URL.path"
	KeyURLQuery    = "URL.query"
	KeyURLFragment = "URL.fragment"
)

// Metadata is an immutable string to string mapping. Keys are always
// iterated in ascending order so that every rendering is deterministic.
type Metadata struct {
	m map[string]string
}

// NullMetadata carries no keys.
var NullMetadata = Metadata{}

// New copies m into a Metadata.
func New(m map[string]string) Metadata {
	if len(m) == 0 {
		return NullMetadata
	}
	return Metadata{m: maps.Clone(m)}
}

func (md Metadata) Len() int {
	return len(md.m)
}

func (md Metadata) Get(key string) (string, bool) {
	v, ok := md.m[key]
	return v, ok
}

// Keys returns the keys in ascending order.
func (md Metadata) Keys() []string {
	return slices.Sorted(maps.Keys(md.m))
}

// ToMap returns a copy of the underlying mapping.
func (md Metadata) ToMap() map[string]string {
	out := make(map[string]string, len(md.m))
	maps.Copy(out, md.m)
	return out
}

func (md Metadata) Equal(other Metadata) bool {
	return maps.Equal(md.m, other.m)
}

func (md Metadata) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, k := range md.Keys() {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(quote(k))
		sb.WriteByte(':')
		sb.WriteString(quote(md.m[k]))
	}
	sb.WriteByte('}')
	return sb.String()
}

func (md Metadata) MarshalJSON() ([]byte, error) {
	if md.m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(md.m)
}

func (md *Metadata) UnmarshalJSON(data []byte) error {
	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*md = New(m)
	return nil
}

// Builder accumulates key/value pairs before producing an immutable
// Metadata.
type Builder struct {
	m map[string]string
}

func NewBuilder() *Builder {
	return &Builder{m: make(map[string]string)}
}

func (b *Builder) Put(key, value string) *Builder {
	b.m[key] = value
	return b
}

func (b *Builder) PutAll(m map[string]string) *Builder {
	maps.Copy(b.m, m)
	return b
}

// PutURL splits u into the URL.* keys. Empty components are omitted,
// except URL.path which defaults to "/".
func (b *Builder) PutURL(u *url.URL) *Builder {
	if u == nil {
		return b
	}
	if u.Scheme != "" {
		b.m[KeyURLProtocol] = u.Scheme
	}
	if host := u.Hostname(); host != "" {
		b.m[KeyURLHost] = host
	}
	if port := u.Port(); port != "" {
		b.m[KeyURLPort] = port
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	b.m[KeyURLPath] = path
	if u.RawQuery != "" {
		b.m[KeyURLQuery] = u.RawQuery
	}
	if u.Fragment != "" {
		b.m[KeyURLFragment] = u.Fragment
	}
	return b
}

func (b *Builder) Build() Metadata {
	return New(b.m)
}

func quote(s string) string {
	data, _ := json.Marshal(s)
	return string(data)
}
