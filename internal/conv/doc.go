// Package conv provides checked integer conversions.
//
// Haplotype ids are stored as int32 in the neighbor table (with -1 meaning
// "no neighbor"), and snapshot headers carry uint32 dimensions. Both cross
// Go's platform-dependent int, so conversions at those boundaries go through
// this package.
//
// For conversions that are provably safe by domain constraints (loop
// indices bounded by an already-validated count), use direct casts instead.
package conv
