package condset

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/condset/internal/resource"
)

// RunnerConfig configures a Runner.
type RunnerConfig struct {
	// Workers is the number of concurrent jobs, and of jobs allocated.
	// Defaults to 1.
	Workers int

	// MinWindowSize is the minimum genetic span of a window, in cM.
	MinWindowSize float64

	// MaxTransitions and MaxMissing size the buffers of every job.
	MaxTransitions int
	MaxMissing     int

	// Seed seeds the ordering of the first worker's job; worker w uses
	// Seed+w.
	Seed uint64

	// ProgressInterval throttles progress logging. Zero logs after every
	// individual.
	ProgressInterval time.Duration

	// JobOptions are applied to every job.
	JobOptions []JobOption

	// Logger receives progress logs. Defaults to NoopLogger.
	Logger *Logger
}

// Runner assembles the states of many individuals in parallel over one
// ConditioningSet. Each worker owns a single Job for its whole run.
type Runner struct {
	set       *ConditioningSet
	genotypes Genotypes
	windows   WindowBuilder
	cfg       RunnerConfig
	rc        *resource.Controller
}

// NewRunner creates a Runner.
func NewRunner(set *ConditioningSet, genotypes Genotypes, windows WindowBuilder, cfg RunnerConfig) *Runner {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = NoopLogger()
	}
	return &Runner{
		set:       set,
		genotypes: genotypes,
		windows:   windows,
		cfg:       cfg,
		rc: resource.NewController(resource.Config{
			ProgressInterval: cfg.ProgressInterval,
		}),
	}
}

// Run calls Make for every individual in individuals, or for all of them
// when individuals is nil, and hands the job to fn. fn runs on the worker
// goroutine and must not keep the job or its slices after returning.
//
// Cancellation is checked between individuals. The first error stops all
// workers and is returned.
func (r *Runner) Run(ctx context.Context, individuals []int, fn func(*Job) error) error {
	if individuals == nil {
		individuals = make([]int, r.genotypes.NumIndividuals())
		for i := range individuals {
			individuals[i] = i
		}
	}
	total := len(individuals)
	if total == 0 {
		return nil
	}

	start := time.Now()
	var next, done atomic.Int64
	g, ctx := errgroup.WithContext(ctx)

	for w := range min(r.cfg.Workers, total) {
		g.Go(func() error {
			opts := append(append([]JobOption(nil), r.cfg.JobOptions...), WithSeed(r.cfg.Seed+uint64(w)))
			job, err := NewJob(r.set, r.genotypes, r.windows, r.cfg.MaxTransitions, r.cfg.MaxMissing, opts...)
			if err != nil {
				return err
			}
			defer job.Free()

			for {
				k := int(next.Add(1) - 1)
				if k >= total {
					return nil
				}
				if err := ctx.Err(); err != nil {
					return err
				}
				ind := individuals[k]
				if err := job.Make(ind, r.cfg.MinWindowSize); err != nil {
					return fmt.Errorf("individual %d: %w", ind, err)
				}
				if fn != nil {
					if err := fn(job); err != nil {
						return err
					}
				}
				n := int(done.Add(1))
				r.rc.Progress(func() {
					r.cfg.Logger.LogProgress(ctx, n, total, time.Since(start))
				})
			}
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	r.cfg.Logger.LogProgress(ctx, total, total, time.Since(start))
	return nil
}
