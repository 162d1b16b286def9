package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMosaicPanel(t *testing.T) {
	rng := NewRNG(4711)

	p, err := rng.MosaicPanel(PanelConfig{Individuals: 20, Sites: 150, Haploid: []int{3}, MissingRate: 0.01})
	require.NoError(t, err)

	assert.Equal(t, 20, p.Genotypes.NumIndividuals())
	assert.Equal(t, 40, p.Genotypes.NumHaplotypes())
	assert.Equal(t, 150, p.Variants.Size())
	assert.True(t, p.Genotypes.Haploid(3))
	assert.Empty(t, p.Genotypes.HetSites(3))

	for l := 1; l < p.Variants.Size(); l++ {
		assert.GreaterOrEqual(t, p.Variants.CM(l), p.Variants.CM(l-1))
	}
}

func TestMosaicPanelDeterministic(t *testing.T) {
	a, err := NewRNG(7).MosaicPanel(PanelConfig{Individuals: 5, Sites: 30})
	require.NoError(t, err)
	b, err := NewRNG(7).MosaicPanel(PanelConfig{Individuals: 5, Sites: 30})
	require.NoError(t, err)

	for h := range 10 {
		for l := range 30 {
			assert.Equal(t, a.Genotypes.Allele(h, l), b.Genotypes.Allele(h, l))
		}
	}
}

func TestMosaicPanelInvalid(t *testing.T) {
	_, err := NewRNG(1).MosaicPanel(PanelConfig{})
	assert.Error(t, err)
}

type boolPanel [][]bool

func (p boolPanel) NumHaplotypes() int   { return len(p) }
func (p boolPanel) Allele(h, l int) bool { return p[h][l] }

func TestMatchLengths(t *testing.T) {
	p := boolPanel{
		{false, true, true},
		{true, true, true},
		{false, false, true},
		{true, true, false},
	}
	sites := []int{0, 1, 2}

	assert.Equal(t, []int{3, 2, 1, 0}, MatchLengths(p, sites, 2, 0))
	assert.Equal(t, []int{1, 2, 0, 2}, MatchLengths(p, sites, 1, 1))
	// haplotype 1 shares individual 0 with haplotype 0
	assert.Equal(t, []int{1, 0}, TopMatchLengths(p, sites, 2, 0, 4))
}

func TestIsStrictlyIncreasing(t *testing.T) {
	assert.True(t, IsStrictlyIncreasing(nil))
	assert.True(t, IsStrictlyIncreasing([]int32{1, 4, 9}))
	assert.False(t, IsStrictlyIncreasing([]int32{1, 4, 4}))
	assert.False(t, IsStrictlyIncreasing([]int32{5, 4}))
}

func TestReset(t *testing.T) {
	rng := NewRNG(4711)
	v1 := rng.Intn(1 << 30)
	rng.Reset()
	v2 := rng.Intn(1 << 30)
	assert.Equal(t, v1, v2)
	assert.Equal(t, int64(4711), rng.Seed())
}
