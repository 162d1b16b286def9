// Package genotype stores a phased haplotype panel.
//
// Each individual owns two haplotypes, h=2i and h=2i+1. Alleles are kept as
// one bitset per haplotype over all sites; missing calls are tracked per
// individual. Haploid individuals still occupy two haplotype slots and are
// never reported as heterozygous.
//
// Set also implements the heterozygote-overlap statistic used to detect
// individuals sharing both chromosome copies identical-by-descent (IBD2)
// with a target.
package genotype
