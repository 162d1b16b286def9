package variant

import "fmt"

// Calls is the view of a haplotype panel needed to derive MAC and MDR.
type Calls interface {
	NumHaplotypes() int
	NumSites() int
	Allele(h, l int) bool
	Missing(h, l int) bool
}

// FromPanel builds a Map whose MAC and MDR are computed from panel calls.
// positions and cms give the physical and genetic coordinates of each site.
func FromPanel(chrom string, positions []int, cms []float64, panel Calls) (*Map, error) {
	n := panel.NumSites()
	if len(positions) != n || len(cms) != n {
		return nil, fmt.Errorf("variant: %d sites in panel, %d positions, %d genetic positions",
			n, len(positions), len(cms))
	}

	nHap := panel.NumHaplotypes()
	sites := make([]Site, n)
	for l := range n {
		var alt, missing int
		for h := range nHap {
			switch {
			case panel.Missing(h, l):
				missing++
			case panel.Allele(h, l):
				alt++
			}
		}
		called := nHap - missing
		mac := min(alt, called-alt)
		mdr := 0.0
		if nHap > 0 {
			mdr = float64(missing) / float64(nHap)
		}
		sites[l] = Site{Chrom: chrom, Pos: positions[l], CM: cms[l], MAC: mac, MDR: mdr}
	}
	return New(sites)
}
