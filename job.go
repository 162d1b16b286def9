package condset

import (
	"context"
	"fmt"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/hupe1980/condset/internal/bitset"
	"github.com/hupe1980/condset/window"
)

// Genotypes is the per-individual view a job needs.
type Genotypes interface {
	NumIndividuals() int
	Haploid(i int) bool
	Name(i int) string
}

// WindowBuilder cuts the sites of one individual into windows.
type WindowBuilder interface {
	Build(ind int, minSize float64) ([]window.Window, error)
}

// BannedRange records an individual excluded from a window as an IBD2
// partner of the target.
type BannedRange struct {
	Individual int
	Start      int
	Stop       int
}

// Job assembles the conditioning states of one target individual at a
// time. A job owns its scratch state and must not be shared between
// goroutines; any number of jobs may read the same ConditioningSet.
//
// The random ordering and its cursor live as long as the job, so fallback
// draws keep walking the ordering across Make calls.
type Job struct {
	set       *ConditioningSet
	genotypes Genotypes
	windows   WindowBuilder
	opts      jobOptions

	ind    int
	wins   []window.Window
	states [][]int32
	banned []BannedRange

	transitions []float64
	missing     []float32

	ordering []int32
	cursor   int

	prev     []int32
	mask     *bitset.Mask
	reserved int64
	freed    bool
}

// NewJob creates a job over set. maxTransitions and maxMissing size the
// scratch buffers handed to the downstream model.
func NewJob(set *ConditioningSet, genotypes Genotypes, windows WindowBuilder, maxTransitions, maxMissing int, optFns ...JobOption) (*Job, error) {
	if 2*genotypes.NumIndividuals() != set.NumHaplotypes() {
		return nil, fmt.Errorf("%w: %d individuals for %d haplotypes", ErrPanelMismatch, genotypes.NumIndividuals(), set.NumHaplotypes())
	}
	if maxTransitions < 0 || maxMissing < 0 {
		return nil, fmt.Errorf("condset: negative buffer size (transitions=%d, missing=%d)", maxTransitions, maxMissing)
	}

	nHap := set.NumHaplotypes()
	if nHap <= 2 {
		return nil, fmt.Errorf("%w: %d haplotypes", ErrDegenerateUniverse, nHap)
	}
	o := applyJobOptions(optFns)
	if o.randomStates < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidRandomStates, o.randomStates)
	}
	if o.minStates < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMinStates, o.minStates)
	}
	reserved := int64(maxTransitions)*8 + int64(maxMissing)*4 + int64(nHap)*4
	if err := set.rc.AcquireMemory(reserved); err != nil {
		return nil, fmt.Errorf("job buffers of %d bytes: %w", reserved, err)
	}

	rng := rand.New(rand.NewPCG(o.seed, o.seed^0x9e3779b97f4a7c15))
	ordering := make([]int32, nHap)
	for i, h := range rng.Perm(nHap) {
		ordering[i] = int32(h)
	}

	return &Job{
		set:         set,
		genotypes:   genotypes,
		windows:     windows,
		opts:        o,
		ind:         -1,
		transitions: make([]float64, maxTransitions),
		missing:     make([]float32, maxMissing),
		ordering:    ordering,
		prev:        make([]int32, 2*set.Depth()),
		mask:        bitset.NewMask(64),
		reserved:    reserved,
	}, nil
}

// Make builds the windows of individual ind and their state lists. It
// replaces the result of the previous call; after an error the job holds no
// windows and Individual returns -1.
func (j *Job) Make(ind int, minWindowSize float64) (err error) {
	if j.freed {
		return ErrJobFreed
	}
	if ind < 0 || ind >= j.genotypes.NumIndividuals() {
		j.reset()
		return fmt.Errorf("%w: %d", ErrIndividualOutOfRange, ind)
	}

	start := time.Now()
	ctx := context.Background()
	logger := j.opts.logger.WithIndividual(ind, j.genotypes.Name(ind))
	var pairs, fallbacks int
	defer func() {
		j.opts.metricsCollector.RecordJob(len(j.wins), j.totalStates(), time.Since(start), err)
		j.opts.metricsCollector.RecordIBD2(pairs)
		j.opts.metricsCollector.RecordFallback(fallbacks)
	}()

	wins, err := j.windows.Build(ind, minWindowSize)
	if err != nil {
		j.reset()
		return fmt.Errorf("windows of individual %d: %w", ind, err)
	}
	for w, win := range wins {
		if win.Start < 0 || win.Stop >= j.set.Size() || win.Start > win.Stop {
			j.reset()
			return invariantf("make", nil, "window %d [%d, %d] outside %d sites", w, win.Start, win.Stop, j.set.Size())
		}
	}

	j.ind, j.wins = ind, wins
	j.banned = j.banned[:0]
	j.states = slices.Grow(j.states[:0], len(wins))[:len(wins)]
	for w, win := range wins {
		j.states[w] = j.collect(j.states[w][:0], win)
	}

	for w := range j.wins {
		pairs += j.removeIBD2(ctx, logger, w)
	}

	for w := range j.wins {
		if len(j.states[w]) >= j.opts.minStates {
			continue
		}
		j.fill(w)
		fallbacks++
		logger.WithWindow(w).LogFallback(ctx, len(j.states[w]))
	}
	return nil
}

// collect gathers the neighbors of both target haplotypes at the selected
// sites of win. A neighbor is skipped only when it repeats the previous
// value of its rank and haplotype, the global dedup comes after.
func (j *Job) collect(dst []int32, win window.Window) []int32 {
	for i := range j.prev {
		j.prev[i] = None
	}
	h0, h1 := 2*j.ind, 2*j.ind+1
	depth := j.set.Depth()

	it := j.set.selected.Iterator()
	it.AdvanceIfNeeded(uint32(win.Start))
	for it.HasNext() {
		l := int(it.Next())
		if l > win.Stop {
			break
		}
		g := j.set.Group(l)
		for s := range depth {
			c0 := j.set.Neighbor(s, h0, g)
			c1 := j.set.Neighbor(s, h1, g)
			if c0 != None && c0 != j.prev[2*s] {
				dst = append(dst, c0)
				j.prev[2*s] = c0
			}
			if c1 != None && c1 != j.prev[2*s+1] {
				dst = append(dst, c1)
				j.prev[2*s+1] = c1
			}
		}
	}
	slices.Sort(dst)
	return slices.Compact(dst)
}

// removeIBD2 drops both haplotypes of any other diploid individual that
// sits next to itself in the sorted states of window w and shares too many
// heterozygous sites with the target. It returns the number of pairs removed.
func (j *Job) removeIBD2(ctx context.Context, logger *Logger, w int) int {
	states := j.states[w]
	win := j.wins[w]
	j.mask.Reset()
	pairs := 0
	for k := 1; k < len(states); k++ {
		other := int(states[k] / 2)
		if int(states[k-1]/2) != other || other == j.ind || j.genotypes.Haploid(other) {
			continue
		}
		overlap := j.set.MatchHets(j.ind, other, win.Start, win.Stop)
		if overlap <= j.opts.ibd2Threshold {
			continue
		}
		j.mask.Set(k - 1)
		j.mask.Set(k)
		j.banned = append(j.banned, BannedRange{Individual: other, Start: win.Start, Stop: win.Stop})
		logger.WithWindow(w).LogIBD2(ctx, j.genotypes.Name(other), overlap)
		pairs++
	}
	j.states[w] = bitset.Drop(states, j.mask)
	return pairs
}

// fill draws from the job ordering into window w. Every draw advances the
// cursor, including draws of the target's own haplotypes which are skipped.
func (j *Job) fill(w int) {
	nHap := len(j.ordering)
	states := j.states[w]
	for range j.opts.randomStates {
		h := j.ordering[j.cursor]
		if int(h/2) != j.ind {
			states = append(states, h)
		}
		j.cursor++
		if j.cursor == nHap {
			j.cursor = 0
		}
	}
	slices.Sort(states)
	j.states[w] = slices.Compact(states)
}

// reset clears the result of the previous Make after a failed one.
func (j *Job) reset() {
	j.ind, j.wins = -1, nil
	j.states, j.banned = j.states[:0], j.banned[:0]
}

func (j *Job) totalStates() int {
	n := 0
	for w := range j.wins {
		n += len(j.states[w])
	}
	return n
}

// Individual returns the target of the last Make, or -1.
func (j *Job) Individual() int { return j.ind }

// NumWindows returns the number of windows built by the last Make.
func (j *Job) NumWindows() int { return len(j.wins) }

// Window returns window w.
func (j *Job) Window(w int) window.Window { return j.wins[w] }

// States returns the sorted haplotype ids of window w. The slice is owned
// by the job and is overwritten by the next Make.
func (j *Job) States(w int) []int32 { return j.states[w] }

// Banned returns the IBD2 exclusions of the last Make.
func (j *Job) Banned() []BannedRange { return j.banned }

// Transitions returns the transition score buffer.
func (j *Job) Transitions() []float64 { return j.transitions }

// Missing returns the missing-site buffer.
func (j *Job) Missing() []float32 { return j.missing }

// Cursor returns the position of the next fallback draw in the ordering.
func (j *Job) Cursor() int { return j.cursor }

// Free releases the job buffers and its memory reservation. Make fails
// afterwards. Free is idempotent.
func (j *Job) Free() {
	if j == nil || j.freed {
		return
	}
	j.freed = true
	j.set.rc.ReleaseMemory(j.reserved)
	j.transitions, j.missing = nil, nil
	j.states, j.banned, j.wins = nil, nil, nil
}
