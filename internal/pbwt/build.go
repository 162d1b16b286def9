package pbwt

import (
	"errors"
	"fmt"
)

// ErrUnorderedGroups is returned when plan groups decrease along the sweep.
var ErrUnorderedGroups = errors.New("pbwt: group ids are not non-decreasing")

// Panel is the haplotype matrix swept by Build.
type Panel interface {
	NumHaplotypes() int
	Allele(h, l int) bool
}

// Plan lists the sites to sweep, in genomic order, and the group of each.
type Plan struct {
	// Sites are site indices into the panel.
	Sites []int
	// Groups[i] is the group of Sites[i].
	Groups []int
	// NumGroups bounds every group id.
	NumGroups int
}

// Validate checks that groups are in range and non-decreasing.
func (p Plan) Validate() error {
	if len(p.Sites) != len(p.Groups) {
		return fmt.Errorf("pbwt: %d sites but %d group ids", len(p.Sites), len(p.Groups))
	}
	for i, g := range p.Groups {
		if g < 0 || g >= p.NumGroups {
			return fmt.Errorf("pbwt: group %d of site %d outside [0,%d)", g, p.Sites[i], p.NumGroups)
		}
		if i > 0 && g < p.Groups[i-1] {
			return fmt.Errorf("%w: site %d has group %d after group %d", ErrUnorderedGroups, p.Sites[i], g, p.Groups[i-1])
		}
		if i > 0 && p.Sites[i] <= p.Sites[i-1] {
			return fmt.Errorf("pbwt: site %d follows site %d", p.Sites[i], p.Sites[i-1])
		}
	}
	return nil
}

// IsSnapshot reports whether the i-th swept site closes its group.
func (p Plan) IsSnapshot(i int) bool {
	return i == len(p.Sites)-1 || p.Groups[i+1] != p.Groups[i]
}

// Build sweeps panel along plan and returns the depth-nearest neighbor table.
func Build(panel Panel, plan Plan, depth int) (*Table, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	t, err := NewTable(depth, panel.NumHaplotypes(), plan.NumGroups)
	if err != nil {
		return nil, err
	}
	s := newSweep(panel.NumHaplotypes())
	for k, l := range plan.Sites {
		s.advance(panel, k, l)
		if plan.IsSnapshot(k) {
			s.snapshot(t, plan.Groups[k])
		}
	}
	return t, nil
}

// sweep holds the prefix and divergence arrays.
//
// After step k, a is sorted by reversed prefix over steps [0, k] and d[i] is
// the first step of the match between a[i-1] and a[i] ending at k; a larger
// value means a shorter match, k+1 means none.
type sweep struct {
	a, d   []int32
	a1, d1 []int32 // scratch for the allele-1 partition
}

func newSweep(n int) *sweep {
	s := &sweep{
		a:  make([]int32, n),
		d:  make([]int32, n),
		a1: make([]int32, n),
		d1: make([]int32, n),
	}
	for i := range s.a {
		s.a[i] = int32(i)
	}
	return s
}

// advance performs step k over site l (Durbin's algorithm 2). The allele-0
// partition is compacted in place since it never overtakes the read cursor.
func (s *sweep) advance(panel Panel, k, l int) {
	p, q := int32(k+1), int32(k+1)
	n0, n1 := 0, 0
	for i, h := range s.a {
		div := s.d[i]
		p = max(p, div)
		q = max(q, div)
		if panel.Allele(int(h), l) {
			s.a1[n1], s.d1[n1] = h, q
			n1++
			q = 0
		} else {
			s.a[n0], s.d[n0] = h, p
			n0++
			p = 0
		}
	}
	copy(s.a[n0:], s.a1[:n1])
	copy(s.d[n0:], s.d1[:n1])
}

// snapshot records the neighbors of every haplotype at group g.
//
// For a[i], walking up accumulates max(d[j+1..i]) and walking down
// max(d[i+1..j]): each side yields candidates in non-increasing match
// length. The two sides are merged by smaller divergence, the upper side
// winning ties.
func (s *sweep) snapshot(t *Table, g int) {
	n := len(s.a)
	for i, h := range s.a {
		self := h / 2
		u, v := i-1, i+1
		var du, dv int32
		if u >= 0 {
			du = s.d[i]
		}
		if v < n {
			dv = s.d[v]
		}
		for r := 0; r < t.depth && (u >= 0 || v < n); {
			var c int32
			if u >= 0 && (v >= n || du <= dv) {
				c = s.a[u]
				u--
				if u >= 0 {
					du = max(du, s.d[u+1])
				}
			} else {
				c = s.a[v]
				v++
				if v < n {
					dv = max(dv, s.d[v])
				}
			}
			if c/2 == self {
				continue
			}
			t.set(r, int(h), g, c)
			r++
		}
	}
}
