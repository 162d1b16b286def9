// Package variant holds per-site metadata for one chromosome: physical
// position, genetic position in centimorgans, minor allele count and missing
// data rate.
//
// Sites are kept in genomic order. The conditioning set reads them through a
// small accessor interface, so any store exposing Size/MAC/MDR/CM works; Map
// is the in-memory implementation used by tests and the CLI.
package variant
