package rangemap

import "sort"

// ContainedRangeMap maps half-open address ranges to values like RangeMap,
// but allows a range to be properly nested inside another. Ranges at the
// same nesting level stay disjoint; a store that would partially overlap a
// sibling is rejected. Retrieve returns the innermost match.
//
// Nesting is kept as a plain tree with a sorted child list per node. Symbol
// loading dominates the cost for realistic inputs, so no rebalancing is done.
type ContainedRangeMap[V any] struct {
	children []*containedEntry[V]
	count    int
}

type containedEntry[V any] struct {
	base     uint64
	size     uint64
	value    V
	children []*containedEntry[V]
}

// Store inserts value for [base, base+size). The range becomes a child of
// the innermost existing range that fully contains it, and adopts any
// existing siblings it fully contains. Returns false without mutating the
// map if size is zero, base+size overflows, or the range partially overlaps
// an existing one.
func (m *ContainedRangeMap[V]) Store(base, size uint64, value V) bool {
	if size == 0 || base+size-1 < base {
		return false
	}
	if !storeIn(&m.children, base, base+size-1, value) {
		return false
	}
	m.count++
	return true
}

func storeIn[V any](children *[]*containedEntry[V], base, high uint64, value V) bool {
	cs := *children
	// First child whose range ends beyond base: the only candidates for
	// overlap start here, as siblings are sorted and disjoint.
	lo := sort.Search(len(cs), func(i int) bool {
		return cs[i].base+cs[i].size-1 >= base
	})
	if lo < len(cs) && cs[lo].base <= base && high <= cs[lo].base+cs[lo].size-1 {
		return storeIn(&cs[lo].children, base, high, value)
	}
	// Children fully inside the new range are re-parented under it. Anything
	// else intersecting it is a partial overlap.
	hi := lo
	for hi < len(cs) && cs[hi].base <= high {
		if cs[hi].base < base || cs[hi].base+cs[hi].size-1 > high {
			return false
		}
		hi++
	}
	e := &containedEntry[V]{base: base, size: high - base + 1, value: value}
	if hi > lo {
		e.children = append([]*containedEntry[V]{}, cs[lo:hi]...)
	}
	updated := make([]*containedEntry[V], 0, len(cs)-(hi-lo)+1)
	updated = append(updated, cs[:lo]...)
	updated = append(updated, e)
	updated = append(updated, cs[hi:]...)
	*children = updated
	return true
}

// Retrieve returns the value of the innermost range containing addr.
func (m *ContainedRangeMap[V]) Retrieve(addr uint64) (V, bool) {
	var zero V
	cs := m.children
	var found *containedEntry[V]
	for {
		i := sort.Search(len(cs), func(i int) bool {
			return cs[i].base > addr
		})
		if i == 0 || addr > cs[i-1].base+cs[i-1].size-1 {
			break
		}
		found = cs[i-1]
		cs = found.children
	}
	if found == nil {
		return zero, false
	}
	return found.value, true
}

// Len returns the number of stored ranges at all nesting levels.
func (m *ContainedRangeMap[V]) Len() int {
	return m.count
}
