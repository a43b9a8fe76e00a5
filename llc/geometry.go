package llc

import (
	"math/bits"
)

// Geometry describes the shape of the cache and how addresses split into
// tag, set index, and byte offset.
type Geometry struct {
	CapacityBytes uint64
	LineSize      int
	Associativity int
	AddressWidth  int

	numSets    int
	offsetBits int
	indexBits  int
	tagBits    int
}

// MakeGeometry derives and validates a cache geometry. Capacity, line size,
// associativity, and the derived number of sets must all be positive powers
// of two, and the tag field must be non-empty under the given address
// width.
func MakeGeometry(
	capacityBytes uint64,
	lineSize, associativity, addressWidth int,
) (Geometry, error) {
	g := Geometry{
		CapacityBytes: capacityBytes,
		LineSize:      lineSize,
		Associativity: associativity,
		AddressWidth:  addressWidth,
	}

	if capacityBytes == 0 || bits.OnesCount64(capacityBytes) != 1 {
		return Geometry{}, configErrorf(
			"capacity %d bytes is not a positive power of two", capacityBytes)
	}
	if lineSize <= 0 || bits.OnesCount(uint(lineSize)) != 1 {
		return Geometry{}, configErrorf(
			"line size %d is not a positive power of two", lineSize)
	}
	if associativity <= 0 || bits.OnesCount(uint(associativity)) != 1 {
		return Geometry{}, configErrorf(
			"associativity %d is not a positive power of two", associativity)
	}
	if addressWidth < 1 || addressWidth > 64 {
		return Geometry{}, configErrorf(
			"address width %d is not in [1, 64]", addressWidth)
	}

	lineBytes := uint64(lineSize) * uint64(associativity)
	if capacityBytes%lineBytes != 0 {
		return Geometry{}, configErrorf(
			"capacity %d is not a multiple of line size %d x associativity %d",
			capacityBytes, lineSize, associativity)
	}

	numSets := capacityBytes / lineBytes
	if numSets == 0 || bits.OnesCount64(numSets) != 1 {
		return Geometry{}, configErrorf(
			"number of sets %d is not a positive power of two", numSets)
	}

	g.numSets = int(numSets)
	g.offsetBits = bits.Len(uint(lineSize)) - 1
	g.indexBits = bits.Len64(numSets) - 1
	g.tagBits = addressWidth - g.offsetBits - g.indexBits
	if g.tagBits <= 0 {
		return Geometry{}, configErrorf(
			"%d-bit addresses leave no tag bits after %d offset and %d index bits",
			addressWidth, g.offsetBits, g.indexBits)
	}

	return g, nil
}

// NumSets returns the number of sets in the cache.
func (g Geometry) NumSets() int {
	return g.numSets
}

// Decode splits an address into its tag, set index, and byte offset.
func (g Geometry) Decode(addr uint64) (tag uint64, index int, offset uint64) {
	offset = addr & (1<<g.offsetBits - 1)
	index = int(addr >> g.offsetBits & (1<<g.indexBits - 1))
	tag = addr >> (g.offsetBits + g.indexBits)

	return tag, index, offset
}

// LineAddr reconstructs the line-aligned address of a line from its tag and
// set index. Used to address write-backs and eviction hints for victims.
func (g Geometry) LineAddr(tag uint64, index int) uint64 {
	return tag<<(g.offsetBits+g.indexBits) | uint64(index)<<g.offsetBits
}

// AddressBound returns the exclusive upper bound of representable
// addresses, 2^AddressWidth. For 64-bit addresses, where 2^64 does not fit
// in a uint64, it returns 2^64-1.
func (g Geometry) AddressBound() uint64 {
	if g.AddressWidth >= 64 {
		return ^uint64(0)
	}

	return 1 << g.AddressWidth
}
