package condset

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/condset/internal/conv"
	"github.com/hupe1980/condset/internal/pbwt"
	"github.com/hupe1980/condset/internal/resource"
)

// None marks a neighbor slot without a haplotype.
const None = pbwt.None

// VariantMap is the per-site metadata read by site selection.
type VariantMap interface {
	Size() int
	MAC(l int) int
	MDR(l int) float64
	CM(l int) float64
}

// Panel is the haplotype matrix the neighbor table is built over. It also
// provides the heterozygote-overlap statistic used by the IBD2 guard.
type Panel interface {
	NumHaplotypes() int
	NumSites() int
	Allele(h, l int) bool
	MatchHets(target, other, start, stop int) float64
}

// ConditioningSet selects the sites used for haplotype matching, groups
// them by genetic distance, and holds for every haplotype and group its
// nearest PBWT neighbors.
//
// A ConditioningSet is immutable once New returns and is safe for
// concurrent use by any number of jobs.
type ConditioningSet struct {
	depth   int
	nHap    int
	nSites  int
	nGroups int

	eligible *roaring.Bitmap
	selected *roaring.Bitmap
	groups   []int

	table *pbwt.Table
	panel Panel

	rc *resource.Controller

	logger  *Logger
	metrics MetricsCollector
}

// selection is the output of site selection.
type selection struct {
	eligible *roaring.Bitmap
	selected *roaring.Bitmap
	groups   []int
	nGroups  int
	plan     pbwt.Plan
}

// New selects sites from variants, then sweeps panel to build the neighbor
// table. Configuration errors are reported before any table is allocated.
func New(variants VariantMap, panel Panel, optFns ...Option) (*ConditioningSet, error) {
	o := applyOptions(optFns)
	cs, sel, err := initialize(variants, panel, o)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	err = cs.reserveTable()
	if err == nil {
		cs.table, err = pbwt.Build(panel, sel.plan, cs.depth)
		if err != nil {
			cs.rc.ReleaseMemory(cs.tableBytes())
			err = invariantf("build", err, "PBWT sweep rejected the site plan")
		}
	}
	elapsed := time.Since(start)
	cs.logger.LogBuild(context.Background(), cs.nGroups, cs.depth, elapsed, err)
	cs.metrics.RecordBuild(cs.nGroups, elapsed, err)
	if err != nil {
		return nil, err
	}
	return cs, nil
}

// initialize validates the configuration and runs site selection.
func initialize(variants VariantMap, panel Panel, o options) (*ConditioningSet, *selection, error) {
	start := time.Now()

	if o.depth <= 0 {
		return nil, nil, fmt.Errorf("%w: %d", ErrInvalidDepth, o.depth)
	}
	if !(o.moduloSelection > 0) {
		return nil, nil, fmt.Errorf("%w: %g", ErrInvalidModulo, o.moduloSelection)
	}
	if variants.Size() == 0 {
		return nil, nil, ErrNoSites
	}
	nHap := panel.NumHaplotypes()
	if nHap == 0 || nHap%2 != 0 {
		return nil, nil, fmt.Errorf("%w: %d haplotypes", ErrPanelMismatch, nHap)
	}
	if panel.NumSites() != variants.Size() {
		return nil, nil, fmt.Errorf("%w: panel has %d sites, variant map %d", ErrPanelMismatch, panel.NumSites(), variants.Size())
	}
	if _, err := conv.IntToInt32(nHap); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrPanelMismatch, err)
	}

	sel, err := selectSites(variants, o.moduloSelection, o.mac, o.mdr)
	if err != nil {
		return nil, nil, err
	}

	cs := &ConditioningSet{
		depth:    o.depth,
		nHap:     nHap,
		nSites:   variants.Size(),
		nGroups:  sel.nGroups,
		eligible: sel.eligible,
		selected: sel.selected,
		groups:   sel.groups,
		panel:    panel,
		rc:       resource.NewController(resource.Config{MemoryLimitBytes: o.memoryLimit}),
		logger:   o.logger,
		metrics:  o.metricsCollector,
	}
	cs.logger.LogInitialize(context.Background(), int(sel.eligible.GetCardinality()), sel.nGroups,
		int(sel.selected.GetCardinality()), time.Since(start))
	return cs, sel, nil
}

// selectSites flags the sites passing the MAC/MDR filter and assigns every
// site to a dense, 0-based genetic-distance group.
func selectSites(variants VariantMap, modulo float64, mac int, mdr float64) (*selection, error) {
	n := variants.Size()
	sel := &selection{
		eligible: roaring.New(),
		selected: roaring.New(),
		groups:   make([]int, n),
	}

	prevRaw, group := math.MinInt, -1
	for l := range n {
		if variants.MAC(l) >= mac && variants.MDR(l) <= mdr {
			sel.eligible.Add(uint32(l))
		}
		raw := int(math.Round(variants.CM(l) / modulo))
		if raw < prevRaw {
			return nil, invariantf("initialize", nil,
				"site %d rounds to bucket %d after bucket %d: genetic positions are not sorted", l, raw, prevRaw)
		}
		if raw != prevRaw {
			group++
			prevRaw = raw
		}
		sel.groups[l] = group
	}
	sel.nGroups = group + 1

	if sel.eligible.IsEmpty() {
		return nil, fmt.Errorf("%w: %d sites, mac>=%d, mdr<=%g", ErrNoEligibleSites, n, mac, mdr)
	}

	sel.plan.NumGroups = sel.nGroups
	it := sel.eligible.Iterator()
	for it.HasNext() {
		l := int(it.Next())
		sel.plan.Sites = append(sel.plan.Sites, l)
		sel.plan.Groups = append(sel.plan.Groups, sel.groups[l])
	}
	for k, l := range sel.plan.Sites {
		if sel.plan.IsSnapshot(k) {
			sel.selected.Add(uint32(l))
		}
	}
	return sel, nil
}

func (cs *ConditioningSet) tableBytes() int64 {
	n, _ := pbwt.SizeBytes(cs.depth, cs.nHap, cs.nGroups)
	return n
}

func (cs *ConditioningSet) reserveTable() error {
	n, err := pbwt.SizeBytes(cs.depth, cs.nHap, cs.nGroups)
	if err != nil {
		return err
	}
	if err := cs.rc.AcquireMemory(n); err != nil {
		return fmt.Errorf("neighbor table of %d bytes: %w", n, err)
	}
	return nil
}

// Size returns the number of sites.
func (cs *ConditioningSet) Size() int { return cs.nSites }

// Depth returns the number of neighbors kept per haplotype and group.
func (cs *ConditioningSet) Depth() int { return cs.depth }

// NumGroups returns the number of genetic-distance groups.
func (cs *ConditioningSet) NumGroups() int { return cs.nGroups }

// NumHaplotypes returns the number of haplotypes.
func (cs *ConditioningSet) NumHaplotypes() int { return cs.nHap }

// NumIndividuals returns the number of individuals.
func (cs *ConditioningSet) NumIndividuals() int { return cs.nHap / 2 }

// NumEvaluated returns the number of sites swept by the PBWT.
func (cs *ConditioningSet) NumEvaluated() int { return int(cs.eligible.GetCardinality()) }

// NumSelected returns the number of sites holding a neighbor snapshot.
func (cs *ConditioningSet) NumSelected() int { return int(cs.selected.GetCardinality()) }

// Eligible reports whether site l passes the MAC/MDR filter.
func (cs *ConditioningSet) Eligible(l int) bool { return cs.eligible.Contains(uint32(l)) }

// Selected reports whether site l closes its group in the sweep. Neighbor
// lookups for a window are taken at its selected sites.
func (cs *ConditioningSet) Selected(l int) bool { return cs.selected.Contains(uint32(l)) }

// Group returns the genetic-distance group of site l.
func (cs *ConditioningSet) Group(l int) int { return cs.groups[l] }

// Neighbor returns the rank-th nearest neighbor of haplotype h in group g,
// or None. It panics with a *pbwt.AddressError outside the table.
func (cs *ConditioningSet) Neighbor(rank, h, g int) int32 {
	return cs.table.At(rank, h, g)
}

// Neighbors returns the Depth neighbors of haplotype h in group g, None
// included.
func (cs *ConditioningSet) Neighbors(h, g int) []int32 {
	return cs.table.Neighbors(make([]int32, 0, cs.depth), h, g)
}

// MatchHets returns the heterozygote overlap between two individuals over
// sites [start, stop].
func (cs *ConditioningSet) MatchHets(target, other, start, stop int) float64 {
	return cs.panel.MatchHets(target, other, start, stop)
}

// MemoryUsage returns the bytes reserved by the neighbor table and live jobs.
func (cs *ConditioningSet) MemoryUsage() int64 { return cs.rc.MemoryUsage() }
