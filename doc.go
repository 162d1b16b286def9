// Package condset picks the conditioning haplotypes a phasing model
// compares each target individual against.
//
// A ConditioningSet is built once per chromosome. It filters sites on
// minor allele count and missing data rate, bins them by genetic position,
// and sweeps a positional Burrows-Wheeler transform over the eligible
// sites. At the last eligible site of every bin it records, for each
// haplotype, the Depth haplotypes sharing the longest match with it.
//
// # Quick Start
//
//	cs, err := condset.New(variants, panel,
//	    condset.WithDepth(8),
//	    condset.WithModuloSelection(0.1),
//	)
//	if err != nil {
//	    return err
//	}
//
//	job, _ := condset.NewJob(cs, genotypes, window.NewBuilder(variants, genotypes), 0, 0)
//	defer job.Free()
//
//	if err := job.Make(ind, 2.0); err != nil {
//	    return err
//	}
//	for w := range job.NumWindows() {
//	    fmt.Println(job.Window(w), job.States(w))
//	}
//
// # State Assembly
//
// Job.Make cuts the target into windows and collects the neighbors of both
// target haplotypes at every selected site inside each window. Lists are
// sorted by haplotype id, so the two haplotypes of one individual end up
// next to each other. When such a pair shares more than the IBD2 threshold
// of heterozygous sites with the target, both haplotypes are dropped and a
// BannedRange is recorded.
//
// A window left with fewer than two states is filled from a random
// ordering of all haplotypes owned by the job. The ordering cursor keeps
// advancing across Make calls, so consecutive fallbacks draw different
// haplotypes.
//
// # Concurrency
//
// A ConditioningSet is read-only after New and may be shared. A Job is not
// safe for concurrent use; Runner gives each worker its own Job:
//
//	r := condset.NewRunner(cs, genotypes, windows, condset.RunnerConfig{Workers: 8, MinWindowSize: 2})
//	err := r.Run(ctx, nil, func(job *condset.Job) error {
//	    // consume job.States(w) here
//	    return nil
//	})
//
// # Snapshots
//
// WriteSnapshot stores the neighbor table in zstd or lz4 compressed blocks.
// Restore loads it back against the same variant map without sweeping.
package condset
