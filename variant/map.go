package variant

import (
	"errors"
	"fmt"
)

// ErrUnsorted is returned when sites are not in genomic order.
var ErrUnsorted = errors.New("variant: sites are not in genomic order")

// Site is the metadata of one variant site.
type Site struct {
	Chrom string
	Pos   int
	// CM is the genetic position in centimorgans.
	CM float64
	// MAC is the minor allele count over called haplotypes.
	MAC int
	// MDR is the fraction of haplotypes with a missing call.
	MDR float64
}

// Map is an in-memory, read-only variant map.
type Map struct {
	sites []Site
}

// New returns a Map over sites. Positions and genetic positions must be
// non-decreasing.
func New(sites []Site) (*Map, error) {
	for l := 1; l < len(sites); l++ {
		prev, cur := sites[l-1], sites[l]
		if cur.Pos < prev.Pos || cur.CM < prev.CM {
			return nil, fmt.Errorf("%w: site %d (pos=%d cm=%g) after pos=%d cm=%g",
				ErrUnsorted, l, cur.Pos, cur.CM, prev.Pos, prev.CM)
		}
	}
	out := make([]Site, len(sites))
	copy(out, sites)
	return &Map{sites: out}, nil
}

// Size returns the number of sites.
func (m *Map) Size() int { return len(m.sites) }

// MAC returns the minor allele count of site l.
func (m *Map) MAC(l int) int { return m.sites[l].MAC }

// MDR returns the missing data rate of site l.
func (m *Map) MDR(l int) float64 { return m.sites[l].MDR }

// CM returns the genetic position of site l.
func (m *Map) CM(l int) float64 { return m.sites[l].CM }

// Site returns a copy of site l.
func (m *Map) Site(l int) Site { return m.sites[l] }

// Span returns the genetic distance covered by sites [start, stop].
func (m *Map) Span(start, stop int) float64 {
	return m.sites[stop].CM - m.sites[start].CM
}
