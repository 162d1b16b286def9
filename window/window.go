// Package window partitions a chromosome into per-individual windows.
//
// A window is an inclusive range of site indices spanning at least a minimum
// genetic length. Boundaries are placed at the individual's heterozygous
// sites, so every window starts at a het (or at site 0) and each phasing
// decision falls into exactly one window.
package window

import (
	"errors"
	"fmt"
)

// ErrNoSites is returned when the variant map is empty.
var ErrNoSites = errors.New("window: no sites")

// Window is an inclusive range of site indices.
type Window struct {
	Start int
	Stop  int
}

// Len returns the number of sites in the window.
func (w Window) Len() int { return w.Stop - w.Start + 1 }

// Contains reports whether site l falls inside the window.
func (w Window) Contains(l int) bool { return l >= w.Start && l <= w.Stop }

// Sites is the genetic map view needed to size windows.
type Sites interface {
	Size() int
	CM(l int) float64
}

// Hets lists the heterozygous sites of an individual in genomic order.
type Hets interface {
	HetSites(i int) []int
}

// Builder builds windows for individuals of one panel.
type Builder struct {
	sites Sites
	hets  Hets
}

// NewBuilder returns a Builder over sites, cutting at the hets of each
// individual.
func NewBuilder(sites Sites, hets Hets) *Builder {
	return &Builder{sites: sites, hets: hets}
}

// Build returns the windows of individual ind. Windows are contiguous,
// cover every site and, unless the whole chromosome is shorter, each spans
// at least minSize centimorgans.
func (b *Builder) Build(ind int, minSize float64) ([]Window, error) {
	n := b.sites.Size()
	if n == 0 {
		return nil, ErrNoSites
	}
	if minSize < 0 {
		return nil, fmt.Errorf("window: negative minimum size %g", minSize)
	}

	last := b.sites.CM(n - 1)
	var out []Window
	start := 0
	for _, c := range b.hets.HetSites(ind) {
		if c <= start || c >= n {
			continue
		}
		if b.sites.CM(c-1)-b.sites.CM(start) < minSize {
			continue
		}
		if last-b.sites.CM(c) < minSize {
			break
		}
		out = append(out, Window{Start: start, Stop: c - 1})
		start = c
	}
	return append(out, Window{Start: start, Stop: n - 1}), nil
}
