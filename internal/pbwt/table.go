package pbwt

import (
	"fmt"

	"github.com/hupe1980/condset/internal/conv"
)

// None marks a table slot without a neighbor.
const None int32 = -1

// Table maps (rank, haplotype, group) to a neighbor haplotype id.
//
// Slots are laid out rank-major:
//
//	rank*(groups*haplotypes) + haplotype*groups + group
type Table struct {
	depth   int
	nHap    int
	nGroups int
	data    []int32
}

// NewTable allocates a table with every slot set to None.
func NewTable(depth, nHap, nGroups int) (*Table, error) {
	if depth <= 0 || nHap <= 0 || nGroups <= 0 {
		return nil, fmt.Errorf("pbwt: invalid table shape depth=%d haplotypes=%d groups=%d", depth, nHap, nGroups)
	}
	n, err := tableLen(depth, nHap, nGroups)
	if err != nil {
		return nil, err
	}
	data := make([]int32, n)
	for i := range data {
		data[i] = None
	}
	return &Table{depth: depth, nHap: nHap, nGroups: nGroups, data: data}, nil
}

// TableFromSlots wraps previously serialized slots.
func TableFromSlots(depth, nHap, nGroups int, data []int32) (*Table, error) {
	if depth <= 0 || nHap <= 0 || nGroups <= 0 {
		return nil, fmt.Errorf("pbwt: invalid table shape depth=%d haplotypes=%d groups=%d", depth, nHap, nGroups)
	}
	n, err := tableLen(depth, nHap, nGroups)
	if err != nil {
		return nil, err
	}
	if len(data) != n {
		return nil, fmt.Errorf("pbwt: %d slots for shape %dx%dx%d", len(data), depth, nHap, nGroups)
	}
	for i, v := range data {
		if v < None || int(v) >= nHap {
			return nil, fmt.Errorf("pbwt: slot %d holds haplotype %d outside [0,%d)", i, v, nHap)
		}
	}
	return &Table{depth: depth, nHap: nHap, nGroups: nGroups, data: data}, nil
}

// SizeBytes returns the memory needed for a table of the given shape.
func SizeBytes(depth, nHap, nGroups int) (int64, error) {
	n, err := tableLen(depth, nHap, nGroups)
	if err != nil {
		return 0, err
	}
	return int64(n) * 4, nil
}

func tableLen(depth, nHap, nGroups int) (int, error) {
	n, err := conv.MulInt(depth, nHap, nGroups)
	if err != nil {
		return 0, fmt.Errorf("pbwt: table shape %dx%dx%d: %w", depth, nHap, nGroups, err)
	}
	return n, nil
}

// Depth returns the number of ranks per (haplotype, group).
func (t *Table) Depth() int { return t.depth }

// NumHaplotypes returns the number of haplotypes.
func (t *Table) NumHaplotypes() int { return t.nHap }

// NumGroups returns the number of groups.
func (t *Table) NumGroups() int { return t.nGroups }

// Index returns the slot of (rank, hap, group). It panics on an address
// outside the table: that is a builder or lookup bug, not bad input.
func (t *Table) Index(rank, hap, group int) int {
	if rank < 0 || rank >= t.depth || hap < 0 || hap >= t.nHap || group < 0 || group >= t.nGroups {
		panic(&AddressError{Rank: rank, Haplotype: hap, Group: group, Depth: t.depth, Haplotypes: t.nHap, Groups: t.nGroups})
	}
	return rank*t.nGroups*t.nHap + hap*t.nGroups + group
}

// At returns the rank-th neighbor of hap at group, or None.
func (t *Table) At(rank, hap, group int) int32 {
	return t.data[t.Index(rank, hap, group)]
}

// Neighbors appends the depth neighbors of hap at group to dst, None
// included, and returns the extended slice.
func (t *Table) Neighbors(dst []int32, hap, group int) []int32 {
	for r := range t.depth {
		dst = append(dst, t.At(r, hap, group))
	}
	return dst
}

// Slots exposes the backing array for serialization. Callers must not
// modify it.
func (t *Table) Slots() []int32 { return t.data }

func (t *Table) set(rank, hap, group int, v int32) {
	t.data[t.Index(rank, hap, group)] = v
}

// AddressError reports a table address outside its shape.
type AddressError struct {
	Rank, Haplotype, Group int

	Depth, Haplotypes, Groups int
}

func (e *AddressError) Error() string {
	return fmt.Sprintf("pbwt: address (rank=%d, haplotype=%d, group=%d) outside table %dx%dx%d",
		e.Rank, e.Haplotype, e.Group, e.Depth, e.Haplotypes, e.Groups)
}
