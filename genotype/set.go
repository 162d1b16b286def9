package genotype

import (
	"errors"
	"fmt"

	"github.com/bits-and-blooms/bitset"
)

var (
	// ErrNoIndividuals is returned when a panel has no individuals.
	ErrNoIndividuals = errors.New("genotype: panel has no individuals")

	// ErrShape is returned when allele data does not match the panel shape.
	ErrShape = errors.New("genotype: allele data does not match panel shape")
)

// Record describes one individual.
type Record struct {
	Name    string
	Haploid bool
}

// Set is an in-memory haplotype panel.
//
// Writes (SetAllele, SetMissing) must complete before the set is shared;
// afterwards all methods are safe for concurrent readers.
type Set struct {
	records []Record
	nSites  int
	alleles []*bitset.BitSet // one per haplotype, nSites bits
	missing []*bitset.BitSet // one per individual, nil when fully called
}

// New returns an all-reference panel of len(records) individuals over nSites.
func New(nSites int, records []Record) (*Set, error) {
	if len(records) == 0 {
		return nil, ErrNoIndividuals
	}
	if nSites < 0 {
		return nil, fmt.Errorf("%w: negative site count %d", ErrShape, nSites)
	}
	s := &Set{
		records: append([]Record(nil), records...),
		nSites:  nSites,
		alleles: make([]*bitset.BitSet, 2*len(records)),
		missing: make([]*bitset.BitSet, len(records)),
	}
	for h := range s.alleles {
		s.alleles[h] = bitset.New(uint(nSites))
	}
	return s, nil
}

// FromHaplotypes builds a fully called panel from haplotype rows, two per
// record. rows[h][l] is the allele of haplotype h at site l.
func FromHaplotypes(records []Record, rows [][]bool) (*Set, error) {
	if len(rows) != 2*len(records) {
		return nil, fmt.Errorf("%w: %d rows for %d individuals", ErrShape, len(rows), len(records))
	}
	nSites := 0
	if len(rows) > 0 {
		nSites = len(rows[0])
	}
	s, err := New(nSites, records)
	if err != nil {
		return nil, err
	}
	for h, row := range rows {
		if len(row) != nSites {
			return nil, fmt.Errorf("%w: haplotype %d has %d sites, want %d", ErrShape, h, len(row), nSites)
		}
		for l, alt := range row {
			if alt {
				s.alleles[h].Set(uint(l))
			}
		}
	}
	return s, nil
}

// SetAllele sets the allele of haplotype h at site l.
func (s *Set) SetAllele(h, l int, alt bool) {
	s.alleles[h].SetTo(uint(l), alt)
}

// SetMissing marks the genotype of individual i at site l as missing.
func (s *Set) SetMissing(i, l int) {
	if s.missing[i] == nil {
		s.missing[i] = bitset.New(uint(s.nSites))
	}
	s.missing[i].Set(uint(l))
}

// NumIndividuals returns the number of individuals.
func (s *Set) NumIndividuals() int { return len(s.records) }

// NumHaplotypes returns the number of haplotypes, two per individual.
func (s *Set) NumHaplotypes() int { return len(s.alleles) }

// NumSites returns the number of sites.
func (s *Set) NumSites() int { return s.nSites }

// Record returns the record of individual i.
func (s *Set) Record(i int) Record { return s.records[i] }

// Name returns the sample name of individual i.
func (s *Set) Name(i int) string { return s.records[i].Name }

// Haploid reports whether individual i is haploid.
func (s *Set) Haploid(i int) bool { return s.records[i].Haploid }

// Allele reports whether haplotype h carries the alternate allele at site l.
func (s *Set) Allele(h, l int) bool {
	return s.alleles[h].Test(uint(l))
}

// Missing reports whether haplotype h has a missing call at site l.
func (s *Set) Missing(h, l int) bool {
	m := s.missing[h/2]
	return m != nil && m.Test(uint(l))
}

func (s *Set) called(i, l int) bool {
	m := s.missing[i]
	return m == nil || !m.Test(uint(l))
}

// Heterozygous reports whether individual i is heterozygous at site l.
func (s *Set) Heterozygous(i, l int) bool {
	if s.records[i].Haploid || !s.called(i, l) {
		return false
	}
	return s.alleles[2*i].Test(uint(l)) != s.alleles[2*i+1].Test(uint(l))
}

// HetSites returns the sites where individual i is heterozygous, in order.
func (s *Set) HetSites(i int) []int {
	if s.records[i].Haploid {
		return nil
	}
	het := s.alleles[2*i].SymmetricDifference(s.alleles[2*i+1])
	if m := s.missing[i]; m != nil {
		het.InPlaceDifference(m)
	}
	out := make([]int, 0, het.Count())
	for l, ok := het.NextSet(0); ok; l, ok = het.NextSet(l + 1) {
		out = append(out, int(l))
	}
	return out
}

// MatchHets returns the heterozygote overlap between target and other over
// sites [start, stop]: among sites where both are called and at least one
// is heterozygous, the fraction where both are. It returns 0 when no such
// site exists.
func (s *Set) MatchHets(target, other, start, stop int) float64 {
	var n, both int
	for l := start; l <= stop; l++ {
		if !s.called(target, l) || !s.called(other, l) {
			continue
		}
		h0 := s.Heterozygous(target, l)
		h1 := s.Heterozygous(other, l)
		if h0 || h1 {
			n++
			if h0 && h1 {
				both++
			}
		}
	}
	if n == 0 {
		return 0
	}
	return float64(both) / float64(n)
}
