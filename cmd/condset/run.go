package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/hupe1980/condset"
	"github.com/hupe1980/condset/testutil"
	"github.com/hupe1980/condset/window"
)

// Summary is printed as JSON at the end of a run.
type Summary struct {
	Individuals     int     `json:"individuals"`
	Sites           int     `json:"sites"`
	Evaluated       int     `json:"evaluated_sites"`
	Groups          int     `json:"groups"`
	Selected        int     `json:"selected_sites"`
	Windows         int     `json:"windows"`
	States          int     `json:"states"`
	MeanStates      float64 `json:"mean_states_per_window"`
	MaxStates       int     `json:"max_states_per_window"`
	IBD2Pairs       int64   `json:"ibd2_pairs"`
	FallbackWindows int64   `json:"fallback_windows"`
	SnapshotBytes   int64   `json:"snapshot_bytes,omitempty"`
	BuildSeconds    float64 `json:"build_seconds"`
	RunSeconds      float64 `json:"run_seconds"`
}

func run(ctx context.Context, cfg Config, out io.Writer) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := cfg.logger()
	basic := &condset.BasicMetricsCollector{}
	prom := NewPrometheusCollector()
	metrics := teeCollector{basic, prom}

	panel, err := testutil.NewRNG(cfg.Panel.Seed).MosaicPanel(testutil.PanelConfig{
		Individuals: cfg.Panel.Individuals,
		Sites:       cfg.Panel.Sites,
		MissingRate: cfg.Panel.MissingRate,
		CMPerSite:   cfg.Panel.CMPerSite,
	})
	if err != nil {
		return err
	}

	opts := []condset.Option{
		condset.WithDepth(cfg.Index.Depth),
		condset.WithModuloSelection(cfg.Index.ModuloSelection),
		condset.WithMAC(cfg.Index.MAC),
		condset.WithMDR(cfg.Index.MDR),
		condset.WithMemoryLimit(cfg.Index.MemoryLimit),
		condset.WithLogger(logger),
		condset.WithMetricsCollector(metrics),
	}
	start := time.Now()
	var cs *condset.ConditioningSet
	if cfg.Index.Snapshot != "" {
		cs, err = readSnapshot(ctx, cfg, panel.Variants, panel.Genotypes, opts...)
	} else {
		cs, err = condset.New(panel.Variants, panel.Genotypes, opts...)
	}
	if err != nil {
		return err
	}
	sum := Summary{
		Individuals:  cs.NumIndividuals(),
		Sites:        cs.Size(),
		Evaluated:    cs.NumEvaluated(),
		Groups:       cs.NumGroups(),
		Selected:     cs.NumSelected(),
		BuildSeconds: time.Since(start).Seconds(),
	}

	if cfg.Output.Snapshot != "" {
		if sum.SnapshotBytes, err = writeSnapshot(ctx, cs, cfg); err != nil {
			return err
		}
	}

	start = time.Now()
	runner := condset.NewRunner(cs, panel.Genotypes, window.NewBuilder(panel.Variants, panel.Genotypes), condset.RunnerConfig{
		Workers:          cfg.Jobs.Workers,
		MinWindowSize:    cfg.Jobs.MinWindowSize,
		MaxTransitions:   cfg.Jobs.MaxTransitions,
		MaxMissing:       cfg.Jobs.MaxMissing,
		Seed:             cfg.Jobs.Seed,
		ProgressInterval: cfg.Jobs.ProgressInterval,
		Logger:           logger,
		JobOptions: []condset.JobOption{
			condset.WithIBD2Threshold(cfg.Jobs.IBD2Threshold),
			condset.WithRandomStates(cfg.Jobs.RandomStates),
			condset.WithMinStates(cfg.Jobs.MinStates),
			condset.WithJobLogger(logger),
			condset.WithJobMetrics(metrics),
		},
	})
	var mu sync.Mutex
	err = runner.Run(ctx, nil, func(job *condset.Job) error {
		mu.Lock()
		defer mu.Unlock()
		for w := range job.NumWindows() {
			n := len(job.States(w))
			sum.States += n
			sum.MaxStates = max(sum.MaxStates, n)
		}
		sum.Windows += job.NumWindows()
		return nil
	})
	if err != nil {
		return err
	}
	sum.RunSeconds = time.Since(start).Seconds()
	if sum.Windows > 0 {
		sum.MeanStates = float64(sum.States) / float64(sum.Windows)
	}
	stats := basic.GetStats()
	sum.IBD2Pairs = stats.IBD2Pairs
	sum.FallbackWindows = stats.FallbackWindows

	if cfg.Output.Metrics != "" {
		if err := prom.WriteTextfile(cfg.Output.Metrics); err != nil {
			return fmt.Errorf("metrics textfile: %w", err)
		}
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(sum)
}
