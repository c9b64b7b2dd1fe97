// Package rangemap provides point-addressable interval containers used to
// index symbol tables: RangeMap for disjoint ranges and ContainedRangeMap
// for properly nested ones.
package rangemap

import "sort"

// RangeMap maps half-open address ranges [base, base+size) to values.
// Stored ranges never overlap; conflicting stores are rejected.
type RangeMap[V any] struct {
	entries []rangeEntry[V]
}

type rangeEntry[V any] struct {
	base  uint64
	size  uint64
	value V
}

// Store inserts value for [base, base+size). It returns false and leaves
// the map unchanged if size is zero, base+size overflows, or the range
// overlaps an already stored one.
func (m *RangeMap[V]) Store(base, size uint64, value V) bool {
	if size == 0 || base+size-1 < base {
		return false
	}
	i := sort.Search(len(m.entries), func(i int) bool {
		return m.entries[i].base >= base
	})
	if i > 0 {
		prev := &m.entries[i-1]
		if prev.base+prev.size-1 >= base {
			return false
		}
	}
	if i < len(m.entries) && m.entries[i].base <= base+size-1 {
		return false
	}
	m.entries = append(m.entries, rangeEntry[V]{})
	copy(m.entries[i+1:], m.entries[i:])
	m.entries[i] = rangeEntry[V]{base: base, size: size, value: value}
	return true
}

// Retrieve returns the value whose range contains addr.
func (m *RangeMap[V]) Retrieve(addr uint64) (V, bool) {
	var zero V
	i := sort.Search(len(m.entries), func(i int) bool {
		return m.entries[i].base > addr
	})
	if i == 0 {
		return zero, false
	}
	e := &m.entries[i-1]
	// Compare against the inclusive high address so a range ending at the
	// top of the address space does not wrap.
	if addr > e.base+e.size-1 {
		return zero, false
	}
	return e.value, true
}

// Len returns the number of stored ranges.
func (m *RangeMap[V]) Len() int {
	return len(m.entries)
}
