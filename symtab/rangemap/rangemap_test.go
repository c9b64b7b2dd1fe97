package rangemap

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRangeMapBoundaries(t *testing.T) {
	var m RangeMap[string]
	require.True(t, m.Store(0x1000, 0x10, "f"))

	expect := func(addr uint64, want string, found bool) {
		got, ok := m.Retrieve(addr)
		require.Equal(t, found, ok, "addr 0x%x", addr)
		require.Equal(t, want, got, "addr 0x%x", addr)
	}
	expect(0xfff, "", false)
	expect(0x1000, "f", true)
	expect(0x1008, "f", true)
	expect(0x100f, "f", true)
	expect(0x1010, "", false)
}

func TestRangeMapRejectsOverlap(t *testing.T) {
	var m RangeMap[int]
	require.True(t, m.Store(0x1000, 0x100, 1))
	require.True(t, m.Store(0x1100, 0x100, 2))

	overlapping := []struct {
		base, size uint64
	}{
		{0x1000, 0x100}, // identical
		{0x1080, 0x10},  // inside
		{0xf80, 0x100},  // straddles left edge
		{0x10f0, 0x20},  // straddles two entries
		{0xf00, 0x400},  // covers everything
		{0x11ff, 0x10},  // overlaps last byte
	}
	for _, r := range overlapping {
		require.False(t, m.Store(r.base, r.size, 99), "store [0x%x, 0x%x)", r.base, r.base+r.size)
	}

	// The failed stores must not have disturbed existing entries.
	require.Equal(t, 2, m.Len())
	v, ok := m.Retrieve(0x1080)
	require.True(t, ok)
	require.Equal(t, 1, v)
	v, ok = m.Retrieve(0x11ff)
	require.True(t, ok)
	require.Equal(t, 2, v)
}

func TestRangeMapRejectsDegenerate(t *testing.T) {
	var m RangeMap[int]
	require.False(t, m.Store(0x1000, 0, 1))
	require.False(t, m.Store(^uint64(0), 2, 1)) // base+size wraps
	require.Equal(t, 0, m.Len())
}

func TestRangeMapAdjacentRanges(t *testing.T) {
	var m RangeMap[string]
	require.True(t, m.Store(0x2000, 0x10, "b"))
	require.True(t, m.Store(0x1000, 0x1000, "a")) // ends exactly at 0x2000
	require.True(t, m.Store(0x2010, 0x10, "c"))

	for addr, want := range map[uint64]string{
		0x1000: "a",
		0x1fff: "a",
		0x2000: "b",
		0x200f: "b",
		0x2010: "c",
	} {
		got, ok := m.Retrieve(addr)
		require.True(t, ok, "addr 0x%x", addr)
		require.Equal(t, want, got, "addr 0x%x", addr)
	}
	_, ok := m.Retrieve(0x2020)
	require.False(t, ok)
}

func TestRangeMapTopOfAddressSpace(t *testing.T) {
	var m RangeMap[string]
	base := ^uint64(0) - 0xf // range ends exactly at the top of the space
	require.True(t, m.Store(base, 0x10, "top"))

	got, ok := m.Retrieve(^uint64(0))
	require.True(t, ok)
	require.Equal(t, "top", got)

	require.False(t, m.Store(base+8, 8, "clash"))
}

func TestRangeMapOutOfOrderInsertion(t *testing.T) {
	var m RangeMap[uint64]
	bases := []uint64{0x5000, 0x1000, 0x3000, 0x2000, 0x4000}
	for _, base := range bases {
		require.True(t, m.Store(base, 0x100, base))
	}
	for _, base := range bases {
		got, ok := m.Retrieve(base + 0x80)
		require.True(t, ok)
		require.Equal(t, base, got)
	}
}
