// Package bitset provides a reusable position mask for filtering slices.
//
// Jobs mark the candidate states of a window that belong to an IBD2 pair
// and drop them in one pass once the scan is done.
package bitset
