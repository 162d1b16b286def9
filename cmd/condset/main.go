// Command condset simulates a haplotype panel, builds its PBWT
// conditioning set and assembles the conditioning states of every
// individual.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	configPath  string
	individuals int
	sites       int
	depth       int
	workers     int
	snapshot    string
	restore     string
	compression string
	metricsPath string
	logLevel    string
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "condset",
		Short:         "Build PBWT conditioning sets for haplotype phasing",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Simulate a panel, build the index and assemble states for every individual",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := LoadConfig(configPath)
			if err != nil {
				return err
			}
			applyFlags(cmd, &cfg)
			return run(cmd.Context(), cfg, cmd.OutOrStdout())
		},
	}
	f := runCmd.Flags()
	f.StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	f.IntVar(&individuals, "individuals", 0, "number of simulated individuals")
	f.IntVar(&sites, "sites", 0, "number of simulated sites")
	f.IntVar(&depth, "depth", 0, "neighbors kept per haplotype and group")
	f.IntVarP(&workers, "workers", "w", 0, "concurrent jobs")
	f.StringVar(&snapshot, "dump", "", "write the neighbor table snapshot to a file, s3://bucket/key or minio://bucket/key")
	f.StringVar(&restore, "restore", "", "load the neighbor table from a snapshot instead of building it")
	f.StringVar(&compression, "compression", "", "snapshot compression: none, lz4 or zstd")
	f.StringVar(&metricsPath, "metrics", "", "write Prometheus metrics to this textfile")
	f.StringVar(&logLevel, "log-level", "", "debug, info, warn or error")

	configCmd := &cobra.Command{
		Use:   "default-config",
		Short: "Print the default configuration as YAML",
		RunE: func(cmd *cobra.Command, _ []string) error {
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(DefaultConfig()); err != nil {
				return err
			}
			return enc.Close()
		},
	}

	root.AddCommand(runCmd, configCmd)
	return root
}

// applyFlags overrides cfg with the flags set on the command line.
func applyFlags(cmd *cobra.Command, cfg *Config) {
	f := cmd.Flags()
	if f.Changed("individuals") {
		cfg.Panel.Individuals = individuals
	}
	if f.Changed("sites") {
		cfg.Panel.Sites = sites
	}
	if f.Changed("depth") {
		cfg.Index.Depth = depth
	}
	if f.Changed("workers") {
		cfg.Jobs.Workers = workers
	}
	if f.Changed("dump") {
		cfg.Output.Snapshot = snapshot
	}
	if f.Changed("restore") {
		cfg.Index.Snapshot = restore
	}
	if f.Changed("compression") {
		cfg.Output.Compression = compression
	}
	if f.Changed("metrics") {
		cfg.Output.Metrics = metricsPath
	}
	if f.Changed("log-level") {
		cfg.Output.LogLevel = logLevel
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
