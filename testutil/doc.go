// Package testutil provides testing utilities for condset.
//
// This package is intended for use in tests, benchmarks and the simulate
// command. It provides a deterministic RNG, a mosaic haplotype panel
// simulator, and a brute-force match-length oracle to check PBWT neighbors
// against.
//
// # Simulated Panels
//
//	rng := testutil.NewRNG(seed)
//	panel := rng.MosaicPanel(testutil.PanelConfig{Individuals: 50, Sites: 400})
//	panel.Genotypes // *genotype.Set
//	panel.Variants  // *variant.Map
//
// # Ground Truth
//
//	lengths := testutil.MatchLengths(panel.Genotypes, sites, k, hap)
package testutil
