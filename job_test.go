package condset

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/condset/genotype"
	"github.com/hupe1980/condset/testutil"
	"github.com/hupe1980/condset/variant"
	"github.com/hupe1980/condset/window"
)

type fakeGenotypes struct {
	n       int
	haploid map[int]bool
}

func (g fakeGenotypes) NumIndividuals() int { return g.n }
func (g fakeGenotypes) Haploid(i int) bool  { return g.haploid[i] }
func (g fakeGenotypes) Name(i int) string   { return fmt.Sprintf("S%d", i) }

type fakeWindows struct {
	wins []window.Window
	err  error
}

func (f fakeWindows) Build(int, float64) ([]window.Window, error) {
	return slices.Clone(f.wins), f.err
}

// seqWindows returns calls[i] on the i-th Build and repeats the last entry.
type seqWindows struct {
	calls [][]window.Window
	n     int
}

func (s *seqWindows) Build(int, float64) ([]window.Window, error) {
	wins := s.calls[min(s.n, len(s.calls)-1)]
	s.n++
	return slices.Clone(wins), nil
}

// perSite returns windows holding one site each.
func perSite(n int) fakeWindows {
	var f fakeWindows
	for l := range n {
		f.wins = append(f.wins, window.Window{Start: l, Stop: l})
	}
	return f
}

func newTestJob(t *testing.T, cs *ConditioningSet, g Genotypes, w WindowBuilder, opts ...JobOption) *Job {
	t.Helper()
	job, err := NewJob(cs, g, w, 0, 0, opts...)
	require.NoError(t, err)
	t.Cleanup(job.Free)
	return job
}

func TestJobCollect(t *testing.T) {
	t.Run("RepeatedAndMissingNeighbors", func(t *testing.T) {
		cs := newTestSet(t, 4, 20, []int{0}, []uint32{0}, map[[2]int][]int32{
			{0, 0}: {5, 5, 7, None},
		}, nil)
		job := newTestJob(t, cs, fakeGenotypes{n: 10}, perSite(1))

		require.NoError(t, job.Make(0, 0))
		require.Equal(t, 1, job.NumWindows())
		assert.Equal(t, []int32{5, 7}, job.States(0))
		assert.Empty(t, job.Banned())
	})

	t.Run("OnlySelectedSitesInWindow", func(t *testing.T) {
		cs := newTestSet(t, 2, 20, []int{0, 0, 1, 1, 2}, []uint32{1, 3, 4}, map[[2]int][]int32{
			{0, 0}: {6, 8},
			{0, 1}: {6, 10},
			{1, 2}: {3, 12},
			{2, 0}: {14, 16}, // another haplotype, never read
		}, nil)
		windows := fakeWindows{wins: []window.Window{{Start: 0, Stop: 1}, {Start: 2, Stop: 4}}}
		job := newTestJob(t, cs, fakeGenotypes{n: 10}, windows)

		require.NoError(t, job.Make(0, 0))
		assert.Equal(t, []int32{6, 8}, job.States(0))
		assert.Equal(t, []int32{3, 6, 10, 12}, job.States(1))
		assert.Equal(t, window.Window{Start: 2, Stop: 4}, job.Window(1))
	})

	t.Run("BothTargetHaplotypes", func(t *testing.T) {
		cs := newTestSet(t, 2, 20, []int{0}, []uint32{0}, map[[2]int][]int32{
			{6, 0}: {9, 2},
			{7, 0}: {2, 11},
		}, nil)
		job := newTestJob(t, cs, fakeGenotypes{n: 10}, perSite(1))

		require.NoError(t, job.Make(3, 0))
		assert.Equal(t, 3, job.Individual())
		assert.Equal(t, []int32{2, 9, 11}, job.States(0))
	})
}

func TestJobIBD2(t *testing.T) {
	pairInWindow3 := map[[2]int][]int32{
		{0, 0}: {8, 10},
		{0, 1}: {8, 10},
		{0, 2}: {8, 10},
		{0, 3}: {4, 5, 8, 10},
	}

	t.Run("PairRemovedAndBanned", func(t *testing.T) {
		cs := newTestSet(t, 4, 20, []int{0, 1, 2, 3}, []uint32{0, 1, 2, 3}, pairInWindow3, map[int]float64{2: 0.82})
		mc := &BasicMetricsCollector{}
		job := newTestJob(t, cs, fakeGenotypes{n: 10}, perSite(4), WithJobMetrics(mc))

		require.NoError(t, job.Make(0, 0))
		assert.Equal(t, []int32{8, 10}, job.States(3))
		assert.Equal(t, []BannedRange{{Individual: 2, Start: 3, Stop: 3}}, job.Banned())
		for w := range 3 {
			assert.Equal(t, []int32{8, 10}, job.States(w))
		}
		assert.Equal(t, int64(1), mc.GetStats().IBD2Pairs)
		assert.Equal(t, int64(0), mc.GetStats().FallbackWindows)
	})

	t.Run("AtThresholdKept", func(t *testing.T) {
		cs := newTestSet(t, 4, 20, []int{0, 1, 2, 3}, []uint32{0, 1, 2, 3}, pairInWindow3, map[int]float64{2: 0.75})
		job := newTestJob(t, cs, fakeGenotypes{n: 10}, perSite(4))

		require.NoError(t, job.Make(0, 0))
		assert.Equal(t, []int32{4, 5, 8, 10}, job.States(3))
		assert.Empty(t, job.Banned())
	})

	t.Run("CustomThreshold", func(t *testing.T) {
		cs := newTestSet(t, 4, 20, []int{0, 1, 2, 3}, []uint32{0, 1, 2, 3}, pairInWindow3, map[int]float64{2: 0.75})
		job := newTestJob(t, cs, fakeGenotypes{n: 10}, perSite(4), WithIBD2Threshold(0.5))

		require.NoError(t, job.Make(0, 0))
		assert.Equal(t, []int32{8, 10}, job.States(3))
	})

	t.Run("HaploidKept", func(t *testing.T) {
		cs := newTestSet(t, 4, 20, []int{0, 1, 2, 3}, []uint32{0, 1, 2, 3}, pairInWindow3, map[int]float64{2: 0.99})
		job := newTestJob(t, cs, fakeGenotypes{n: 10, haploid: map[int]bool{2: true}}, perSite(4))

		require.NoError(t, job.Make(0, 0))
		assert.Equal(t, []int32{4, 5, 8, 10}, job.States(3))
	})

	t.Run("PairAmongOtherIndividuals", func(t *testing.T) {
		cs := newTestSet(t, 4, 20, []int{0}, []uint32{0}, map[[2]int][]int32{
			{0, 0}: {3, 5, 6, 4},
		}, map[int]float64{1: 0.9, 2: 0.9, 3: 0.9})
		job := newTestJob(t, cs, fakeGenotypes{n: 10}, perSite(1))

		require.NoError(t, job.Make(0, 0))
		assert.Equal(t, []int32{3, 6}, job.States(0))
		assert.Equal(t, []BannedRange{{Individual: 2, Start: 0, Stop: 0}}, job.Banned())
	})

	t.Run("TwoPairs", func(t *testing.T) {
		cs := newTestSet(t, 4, 20, []int{0}, []uint32{0}, map[[2]int][]int32{
			{0, 0}: {4, 5, 6, 7},
			{1, 0}: {8, 10},
		}, map[int]float64{2: 0.9, 3: 0.8})
		job := newTestJob(t, cs, fakeGenotypes{n: 10}, perSite(1))

		require.NoError(t, job.Make(0, 0))
		assert.Equal(t, []int32{8, 10}, job.States(0))
		assert.Equal(t, []BannedRange{
			{Individual: 2, Start: 0, Stop: 0},
			{Individual: 3, Start: 0, Stop: 0},
		}, job.Banned())
	})

	t.Run("BannedResetPerMake", func(t *testing.T) {
		cs := newTestSet(t, 4, 20, []int{0}, []uint32{0}, map[[2]int][]int32{
			{0, 0}: {4, 5, 8, 10},
			{2, 0}: {8, 10},
		}, map[int]float64{2: 0.9})
		job := newTestJob(t, cs, fakeGenotypes{n: 10}, perSite(1))

		require.NoError(t, job.Make(0, 0))
		require.Len(t, job.Banned(), 1)
		require.NoError(t, job.Make(1, 0))
		assert.Empty(t, job.Banned())
	})
}

func TestJobFallback(t *testing.T) {
	t.Run("EmptyWindow", func(t *testing.T) {
		cs := newTestSet(t, 4, 40, []int{0}, []uint32{0}, nil, nil)
		mc := &BasicMetricsCollector{}
		job := newTestJob(t, cs, fakeGenotypes{n: 20}, perSite(1), WithJobMetrics(mc))

		require.NoError(t, job.Make(9, 0))
		states := job.States(0)
		assert.GreaterOrEqual(t, len(states), 1)
		assert.LessOrEqual(t, len(states), DefaultRandomStates)
		assert.NotContains(t, states, int32(18))
		assert.NotContains(t, states, int32(19))
		assert.True(t, testutil.IsStrictlyIncreasing(states))
		// 100 draws wrap around 40 haplotypes, so every other one shows up
		assert.Len(t, states, 38)
		assert.Equal(t, 20, job.Cursor())
		assert.Equal(t, int64(1), mc.GetStats().FallbackWindows)
	})

	t.Run("CursorPersistsAcrossMake", func(t *testing.T) {
		cs := newTestSet(t, 4, 40, []int{0}, []uint32{0}, nil, nil)
		job := newTestJob(t, cs, fakeGenotypes{n: 20}, perSite(1), WithRandomStates(5), WithSeed(7))

		expect := func(from, to, ind int) []int32 {
			var out []int32
			for _, h := range job.ordering[from:to] {
				if int(h/2) != ind {
					out = append(out, h)
				}
			}
			slices.Sort(out)
			return out
		}

		require.NoError(t, job.Make(9, 0))
		assert.Equal(t, expect(0, 5, 9), job.States(0))
		assert.Equal(t, 5, job.Cursor())

		require.NoError(t, job.Make(3, 0))
		assert.Equal(t, expect(5, 10, 3), job.States(0))
		assert.Equal(t, 10, job.Cursor())
	})

	t.Run("CursorAdvancesPerWindow", func(t *testing.T) {
		cs := newTestSet(t, 4, 40, []int{0, 1, 2}, []uint32{0, 1, 2}, nil, nil)
		job := newTestJob(t, cs, fakeGenotypes{n: 20}, perSite(3), WithRandomStates(30))

		require.NoError(t, job.Make(0, 0))
		assert.Equal(t, 10, job.Cursor()) // 90 draws modulo 40
		for w := range 3 {
			assert.NotEmpty(t, job.States(w))
			assert.NotContains(t, job.States(w), int32(0))
			assert.NotContains(t, job.States(w), int32(1))
		}
	})

	t.Run("SingleStateTopsUp", func(t *testing.T) {
		cs := newTestSet(t, 4, 40, []int{0, 1}, []uint32{0, 1}, map[[2]int][]int32{
			{0, 0}: {7},
			{0, 1}: {7, 9},
		}, nil)
		job := newTestJob(t, cs, fakeGenotypes{n: 20}, perSite(2), WithRandomStates(10))

		require.NoError(t, job.Make(0, 0))
		assert.Contains(t, job.States(0), int32(7))
		assert.Greater(t, len(job.States(0)), 1)
		assert.Equal(t, []int32{7, 9}, job.States(1))
		assert.Equal(t, 10, job.Cursor())
	})

	t.Run("IBD2RemovalTriggersFallback", func(t *testing.T) {
		cs := newTestSet(t, 4, 40, []int{0}, []uint32{0}, map[[2]int][]int32{
			{0, 0}: {4, 5},
		}, map[int]float64{2: 1})
		job := newTestJob(t, cs, fakeGenotypes{n: 20}, perSite(1))

		require.NoError(t, job.Make(0, 0))
		assert.Len(t, job.Banned(), 1)
		assert.Len(t, job.States(0), 38)
	})

	t.Run("MinStates", func(t *testing.T) {
		cs := newTestSet(t, 4, 40, []int{0}, []uint32{0}, map[[2]int][]int32{
			{0, 0}: {7, 9},
		}, nil)
		job := newTestJob(t, cs, fakeGenotypes{n: 20}, perSite(1), WithMinStates(3), WithRandomStates(1))

		require.NoError(t, job.Make(0, 0))
		assert.Equal(t, 1, job.Cursor())
	})

	t.Run("DegenerateUniverse", func(t *testing.T) {
		cs := newTestSet(t, 1, 2, []int{0}, []uint32{0}, nil, nil)

		_, err := NewJob(cs, fakeGenotypes{n: 1}, perSite(1), 0, 0)
		assert.ErrorIs(t, err, ErrDegenerateUniverse)
	})

	t.Run("SeededOrdering", func(t *testing.T) {
		cs := newTestSet(t, 4, 40, []int{0}, []uint32{0}, nil, nil)
		a := newTestJob(t, cs, fakeGenotypes{n: 20}, perSite(1), WithSeed(3))
		b := newTestJob(t, cs, fakeGenotypes{n: 20}, perSite(1), WithSeed(3))
		c := newTestJob(t, cs, fakeGenotypes{n: 20}, perSite(1), WithSeed(4))

		assert.Equal(t, a.ordering, b.ordering)
		assert.NotEqual(t, a.ordering, c.ordering)

		sorted := slices.Clone(a.ordering)
		slices.Sort(sorted)
		for i, h := range sorted {
			require.Equal(t, int32(i), h)
		}
	})
}

func TestJobErrors(t *testing.T) {
	cs := newTestSet(t, 2, 20, []int{0, 0, 1}, []uint32{1, 2}, nil, nil)

	t.Run("GenotypeMismatch", func(t *testing.T) {
		_, err := NewJob(cs, fakeGenotypes{n: 9}, perSite(3), 0, 0)
		assert.ErrorIs(t, err, ErrPanelMismatch)
	})

	t.Run("IndividualOutOfRange", func(t *testing.T) {
		job := newTestJob(t, cs, fakeGenotypes{n: 10}, perSite(3))
		assert.ErrorIs(t, job.Make(10, 0), ErrIndividualOutOfRange)
		assert.ErrorIs(t, job.Make(-1, 0), ErrIndividualOutOfRange)
	})

	t.Run("WindowOutsideSites", func(t *testing.T) {
		job := newTestJob(t, cs, fakeGenotypes{n: 10}, fakeWindows{wins: []window.Window{{Start: 0, Stop: 3}}})
		err := job.Make(0, 0)
		assert.ErrorIs(t, err, ErrInvariant)
	})

	t.Run("FallbackOptions", func(t *testing.T) {
		tests := []struct {
			name string
			opt  JobOption
			want error
		}{
			{"ZeroRandomStates", WithRandomStates(0), ErrInvalidRandomStates},
			{"NegativeRandomStates", WithRandomStates(-3), ErrInvalidRandomStates},
			{"ZeroMinStates", WithMinStates(0), ErrInvalidMinStates},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				before := cs.MemoryUsage()
				_, err := NewJob(cs, fakeGenotypes{n: 10}, perSite(3), 0, 0, tt.opt)
				assert.ErrorIs(t, err, tt.want)
				assert.Equal(t, before, cs.MemoryUsage())
			})
		}
	})

	t.Run("FailedMakeClearsResult", func(t *testing.T) {
		cs := newTestSet(t, 2, 20, []int{0, 1}, []uint32{0, 1}, map[[2]int][]int32{
			{0, 1}: {11, 13},
		}, nil)
		good := []window.Window{{Start: 0, Stop: 0}, {Start: 1, Stop: 1}}
		windows := &seqWindows{calls: [][]window.Window{
			good,
			{{Start: 0, Stop: 0}, {Start: 5, Stop: 99}},
			good,
		}}
		job := newTestJob(t, cs, fakeGenotypes{n: 10}, windows)

		require.NoError(t, job.Make(0, 0))
		require.Equal(t, 2, job.NumWindows())
		assert.Equal(t, []int32{11, 13}, job.States(1))

		err := job.Make(0, 0)
		require.ErrorIs(t, err, ErrInvariant)
		assert.Zero(t, job.NumWindows())
		assert.Equal(t, -1, job.Individual())
		assert.Empty(t, job.Banned())

		require.NoError(t, job.Make(0, 0))
		assert.Equal(t, good, []window.Window{job.Window(0), job.Window(1)})
		assert.Equal(t, []int32{11, 13}, job.States(1))

		assert.ErrorIs(t, job.Make(10, 0), ErrIndividualOutOfRange)
		assert.Zero(t, job.NumWindows())
	})

	t.Run("WindowBuilderFails", func(t *testing.T) {
		boom := errors.New("boom")
		job := newTestJob(t, cs, fakeGenotypes{n: 10}, fakeWindows{err: boom})
		err := job.Make(0, 0)
		assert.ErrorIs(t, err, boom)
		assert.Zero(t, job.NumWindows())
	})
}

func TestJobLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	// both haplotypes of individual 2 are the only states of window 0
	cs := newTestSet(t, 2, 20, []int{0}, []uint32{0}, map[[2]int][]int32{
		{0, 0}: {4, 5},
	}, map[int]float64{2: 0.9})
	job := newTestJob(t, cs, fakeGenotypes{n: 10}, perSite(1), WithJobLogger(logger))
	require.NoError(t, job.Make(0, 0))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var ibd2, fallback map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &ibd2))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &fallback))

	assert.Equal(t, "IBD2 pair removed", ibd2["msg"])
	assert.Equal(t, "S0", ibd2["sample"])
	assert.Equal(t, "S2", ibd2["other"])
	assert.InDelta(t, 0.0, ibd2["window"], 0)
	assert.InDelta(t, 0.9, ibd2["het_overlap"], 1e-9)

	assert.Equal(t, "WARN", fallback["level"])
	assert.InDelta(t, 0.0, fallback["individual"], 0)
	assert.InDelta(t, 0.0, fallback["window"], 0)
	assert.InDelta(t, float64(len(job.States(0))), fallback["states"], 0)
}

func TestJobBuffers(t *testing.T) {
	cs := newTestSet(t, 2, 20, []int{0}, []uint32{0}, nil, nil)
	before := cs.MemoryUsage()

	job, err := NewJob(cs, fakeGenotypes{n: 10}, perSite(1), 128, 64)
	require.NoError(t, err)
	assert.Len(t, job.Transitions(), 128)
	assert.Len(t, job.Missing(), 64)
	assert.Equal(t, before+128*8+64*4+20*4, cs.MemoryUsage())

	job.Free()
	job.Free()
	assert.Equal(t, before, cs.MemoryUsage())
	assert.Nil(t, job.Transitions())
	assert.ErrorIs(t, job.Make(0, 0), ErrJobFreed)
}

// panelWithTwin copies individual 0 onto individual 1.
func panelWithTwin(t *testing.T) (*genotype.Set, *variant.Map) {
	t.Helper()
	src := mosaic(t, testutil.PanelConfig{Individuals: 20, Sites: 200})

	g := src.Genotypes
	records := make([]genotype.Record, g.NumIndividuals())
	for i := range records {
		records[i] = g.Record(i)
	}
	rows := make([][]bool, g.NumHaplotypes())
	for h := range rows {
		from := h
		if h/2 == 1 {
			from = h - 2
		}
		rows[h] = make([]bool, g.NumSites())
		for l := range rows[h] {
			rows[h][l] = g.Allele(from, l)
		}
	}
	twin, err := genotype.FromHaplotypes(records, rows)
	require.NoError(t, err)

	positions := make([]int, g.NumSites())
	cms := make([]float64, g.NumSites())
	for l := range positions {
		s := src.Variants.Site(l)
		positions[l], cms[l] = s.Pos, s.CM
	}
	v, err := variant.FromPanel("1", positions, cms, twin)
	require.NoError(t, err)
	return twin, v
}

func TestJobEndToEnd(t *testing.T) {
	panel := mosaic(t, testutil.PanelConfig{Individuals: 30, Sites: 400, MissingRate: 0.01, Haploid: []int{7}})
	cs, err := New(panel.Variants, panel.Genotypes, WithMAC(2), WithModuloSelection(0.05))
	require.NoError(t, err)

	windows := window.NewBuilder(panel.Variants, panel.Genotypes)
	job := newTestJob(t, cs, panel.Genotypes, windows)

	for ind := range panel.Genotypes.NumIndividuals() {
		require.NoError(t, job.Make(ind, 0.5))
		require.Positive(t, job.NumWindows())

		assert.Equal(t, 0, job.Window(0).Start)
		assert.Equal(t, cs.Size()-1, job.Window(job.NumWindows()-1).Stop)
		for w := range job.NumWindows() {
			states := job.States(w)
			require.NotEmpty(t, states, "individual %d window %d", ind, w)
			require.True(t, testutil.IsStrictlyIncreasing(states))
			for _, h := range states {
				require.NotEqual(t, ind, int(h)/2, "individual %d conditions on itself", ind)
			}
		}
	}
}

func TestJobEndToEndIBD2Twin(t *testing.T) {
	g, v := panelWithTwin(t)
	cs, err := New(v, g, WithMAC(2))
	require.NoError(t, err)

	// one window over the whole chromosome
	job := newTestJob(t, cs, g, window.NewBuilder(v, g))
	require.NoError(t, job.Make(0, 1e9))
	require.Equal(t, 1, job.NumWindows())

	assert.Equal(t, 1.0, g.MatchHets(0, 1, 0, cs.Size()-1))
	assert.Contains(t, job.Banned(), BannedRange{Individual: 1, Start: 0, Stop: cs.Size() - 1})
	assert.NotContains(t, job.States(0), int32(2))
	assert.NotContains(t, job.States(0), int32(3))
}
