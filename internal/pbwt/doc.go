// Package pbwt builds nearest-neighbor tables with the positional
// Burrows-Wheeler transform.
//
// A single forward sweep over the selected sites maintains the prefix array
// (haplotypes sorted by reversed prefix) and the divergence array (for each
// adjacent pair, the first sweep step of their current match). At the last
// site of every group the sweep snapshots, for every haplotype, its depth
// closest haplotypes in that order: the neighbors above and below it, merged
// by match length, skipping the other haplotype of the same individual.
//
// Architecture:
//   - Plan: the ordered sites to sweep and their group ids
//   - Table: dense (rank, haplotype, group) -> haplotype id, None when empty
//   - Build: the sweep itself, O(sites x haplotypes + groups x haplotypes x depth)
//
// The table is written once by Build and read-only afterwards.
package pbwt
