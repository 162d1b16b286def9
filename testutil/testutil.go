package testutil

import (
	"fmt"
	"math/rand"
	"slices"
	"sync"

	"github.com/hupe1980/condset/genotype"
	"github.com/hupe1980/condset/variant"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Float64 returns a pseudo-random number in [0.0,1.0).
func (r *RNG) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float64()
}

// PanelConfig shapes a simulated panel.
type PanelConfig struct {
	Individuals int
	Sites       int
	// Founders is the number of ancestral haplotypes copied from.
	// Defaults to max(4, Individuals/4).
	Founders int
	// SwitchRate is the per-site probability of switching founder.
	// Defaults to 0.02.
	SwitchRate float64
	// MutationRate is the per-site probability of flipping the copied allele.
	// Defaults to 0.005.
	MutationRate float64
	// CMPerSite is the mean genetic distance between adjacent sites.
	// Defaults to 0.01.
	CMPerSite float64
	// MissingRate is the per-genotype probability of a missing call.
	MissingRate float64
	// Haploid lists individuals to mark haploid (their haplotypes are identical).
	Haploid []int
	// Chrom names the simulated chromosome. Defaults to "1".
	Chrom string
}

func (c PanelConfig) withDefaults() PanelConfig {
	if c.Founders <= 0 {
		c.Founders = max(4, c.Individuals/4)
	}
	if c.SwitchRate <= 0 {
		c.SwitchRate = 0.02
	}
	if c.MutationRate <= 0 {
		c.MutationRate = 0.005
	}
	if c.CMPerSite <= 0 {
		c.CMPerSite = 0.01
	}
	if c.Chrom == "" {
		c.Chrom = "1"
	}
	return c
}

// Panel is a simulated haplotype panel with its variant map.
type Panel struct {
	Genotypes *genotype.Set
	Variants  *variant.Map
}

// MosaicPanel simulates haplotypes as mosaics of a small founder pool, so
// haplotypes share long segments the way related samples do.
func (r *RNG) MosaicPanel(cfg PanelConfig) (*Panel, error) {
	cfg = cfg.withDefaults()
	if cfg.Individuals <= 0 || cfg.Sites <= 0 {
		return nil, fmt.Errorf("testutil: invalid panel shape %d individuals x %d sites", cfg.Individuals, cfg.Sites)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	freq := make([]float64, cfg.Sites)
	for l := range freq {
		// skewed towards rare alleles
		u := r.rand.Float64()
		freq[l] = 0.02 + 0.48*u*u
	}
	founders := make([][]bool, cfg.Founders)
	for f := range founders {
		founders[f] = make([]bool, cfg.Sites)
		for l := range founders[f] {
			founders[f][l] = r.rand.Float64() < freq[l]
		}
	}

	haploid := make(map[int]bool, len(cfg.Haploid))
	for _, i := range cfg.Haploid {
		haploid[i] = true
	}
	records := make([]genotype.Record, cfg.Individuals)
	for i := range records {
		records[i] = genotype.Record{Name: fmt.Sprintf("SAMPLE%04d", i), Haploid: haploid[i]}
	}

	rows := make([][]bool, 2*cfg.Individuals)
	for h := range rows {
		if h%2 == 1 && haploid[h/2] {
			rows[h] = slices.Clone(rows[h-1])
			continue
		}
		rows[h] = make([]bool, cfg.Sites)
		src := r.rand.Intn(cfg.Founders)
		for l := range rows[h] {
			if r.rand.Float64() < cfg.SwitchRate {
				src = r.rand.Intn(cfg.Founders)
			}
			a := founders[src][l]
			if r.rand.Float64() < cfg.MutationRate {
				a = !a
			}
			rows[h][l] = a
		}
	}

	g, err := genotype.FromHaplotypes(records, rows)
	if err != nil {
		return nil, err
	}
	if cfg.MissingRate > 0 {
		for i := range cfg.Individuals {
			for l := range cfg.Sites {
				if r.rand.Float64() < cfg.MissingRate {
					g.SetMissing(i, l)
				}
			}
		}
	}

	positions := make([]int, cfg.Sites)
	cms := make([]float64, cfg.Sites)
	pos, cm := 10000, 0.0
	for l := range cfg.Sites {
		pos += 1 + r.rand.Intn(2000)
		cm += 2 * cfg.CMPerSite * r.rand.Float64()
		positions[l], cms[l] = pos, cm
	}

	v, err := variant.FromPanel(cfg.Chrom, positions, cms, g)
	if err != nil {
		return nil, err
	}
	return &Panel{Genotypes: g, Variants: v}, nil
}

// Alleles is the haplotype view needed by MatchLengths.
type Alleles interface {
	NumHaplotypes() int
	Allele(h, l int) bool
}

// MatchLengths returns, for every haplotype, the length of its common
// suffix with hap over sites[0..k]. The entry for hap itself is k+1.
func MatchLengths(panel Alleles, sites []int, k, hap int) []int {
	out := make([]int, panel.NumHaplotypes())
	for h := range out {
		n := 0
		for j := k; j >= 0; j-- {
			if panel.Allele(h, sites[j]) != panel.Allele(hap, sites[j]) {
				break
			}
			n++
		}
		out[h] = n
	}
	return out
}

// TopMatchLengths returns the depth largest match lengths of hap against
// haplotypes of other individuals, in non-increasing order.
func TopMatchLengths(panel Alleles, sites []int, k, hap, depth int) []int {
	lengths := MatchLengths(panel, sites, k, hap)
	var cand []int
	for h, n := range lengths {
		if h/2 != hap/2 {
			cand = append(cand, n)
		}
	}
	slices.SortFunc(cand, func(a, b int) int { return b - a })
	return cand[:min(depth, len(cand))]
}

// IsStrictlyIncreasing reports whether ids are sorted ascending without
// duplicates.
func IsStrictlyIncreasing(ids []int32) bool {
	for i := 1; i < len(ids); i++ {
		if ids[i] <= ids[i-1] {
			return false
		}
	}
	return true
}
