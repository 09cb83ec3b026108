package ir

import "github.com/pkg/errors"

// Mapping is a value substitution map. A key is mapped at most once; mapping
// it again to a different value is an error. Child mappings overlay their
// parent: lookups fall through, writes stay local.
type Mapping struct {
	m      map[*Value]*Value
	order  []*Value
	parent *Mapping
}

// NewMapping returns an empty mapping.
func NewMapping() *Mapping {
	return &Mapping{m: make(map[*Value]*Value)}
}

// Child returns an overlay whose writes do not reach m.
func (m *Mapping) Child() *Mapping {
	c := NewMapping()
	c.parent = m
	return c
}

// Map records from -> to.
func (m *Mapping) Map(from, to *Value) error {
	if prev, ok := m.Get(from); ok && prev != to {
		return errors.Errorf("value %s already mapped to %s, cannot remap to %s", from, prev, to)
	}
	if _, local := m.m[from]; !local {
		m.order = append(m.order, from)
	}
	m.m[from] = to
	return nil
}

// Get returns the replacement for v, if any.
func (m *Mapping) Get(v *Value) (*Value, bool) {
	for cur := m; cur != nil; cur = cur.parent {
		if to, ok := cur.m[v]; ok {
			return to, true
		}
	}
	return nil, false
}

// Lookup returns the replacement for v, or v itself when unmapped.
func (m *Mapping) Lookup(v *Value) *Value {
	if to, ok := m.Get(v); ok {
		return to
	}
	return v
}

// Contains reports whether v has a replacement.
func (m *Mapping) Contains(v *Value) bool {
	_, ok := m.Get(v)
	return ok
}

// Len returns the number of local entries.
func (m *Mapping) Len() int { return len(m.order) }

// Keys returns the local keys in insertion order.
func (m *Mapping) Keys() []*Value {
	out := make([]*Value, len(m.order))
	copy(out, m.order)
	return out
}
