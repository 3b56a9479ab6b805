package main

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"time"

	"github.com/armon/go-metrics"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tamirms/tapesort"
	"github.com/tamirms/tapesort/internal/gen"
	"github.com/tamirms/tapesort/internal/schedule"
)

func newSortCmd(a *app) *cobra.Command {
	cfg := defaultSortConfig()
	var (
		configPath string
		stats      bool
	)
	cmd := &cobra.Command{
		Use:   "sort FILE",
		Short: "Sort a file of integers in place",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			run := cfg
			if configPath != "" {
				var err error
				if run, err = loadSortConfig(configPath, cfg, cmd.Flags()); err != nil {
					return err
				}
			}
			strategy, opts, err := run.options()
			if err != nil {
				return err
			}
			sorter, err := tapesort.New(strategy, append(opts, tapesort.WithLogger(a.logger))...)
			if err != nil {
				return err
			}

			var sink *metrics.InmemSink
			if stats {
				sink = metrics.NewInmemSink(time.Minute, time.Minute)
				mc := metrics.DefaultConfig("")
				mc.EnableHostname = false
				mc.EnableRuntimeMetrics = false
				if _, err := metrics.NewGlobal(mc, sink); err != nil {
					return fmt.Errorf("install metrics: %w", err)
				}
			}

			start := time.Now()
			if err := sorter.SortFile(cmd.Context(), args[0]); err != nil {
				return err
			}
			a.logger.Debug("sorted", zap.String("file", args[0]), zap.Duration("elapsed", time.Since(start)))
			if sink != nil {
				printMetrics(cmd.OutOrStdout(), sink)
			}
			return nil
		},
	}
	cfg.bindFlags(cmd.Flags())
	cmd.Flags().StringVar(&configPath, "config", "", "YAML file with sort settings")
	cmd.Flags().BoolVar(&stats, "stats", false, "print counters and timings after the sort")
	return cmd
}

// printMetrics writes every counter and sample of the sink, sorted by name.
func printMetrics(w io.Writer, sink *metrics.InmemSink) {
	for _, interval := range sink.Data() {
		for _, name := range slices.Sorted(maps.Keys(interval.Counters)) {
			c := interval.Counters[name]
			fmt.Fprintf(w, "%s\tcount=%d\tsum=%.0f\n", name, c.Count, c.Sum)
		}
		for _, name := range slices.Sorted(maps.Keys(interval.Samples)) {
			s := interval.Samples[name]
			fmt.Fprintf(w, "%s\tcount=%d\tmean=%.3fms\tmax=%.3fms\n", name, s.Count, s.AggregateSample.Mean(), s.Max)
		}
	}
}

func newGenCmd(a *app) *cobra.Command {
	spec := gen.Spec{Count: 1000, Min: -1 << 31, Max: 1<<31 - 1}
	cmd := &cobra.Command{
		Use:   "gen FILE",
		Short: "Write deterministic pseudo-random integers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := gen.WriteFile(args[0], spec); err != nil {
				return err
			}
			a.logger.Debug("generated", zap.String("file", args[0]), zap.Int64("count", spec.Count))
			return nil
		},
	}
	cmd.Flags().Int64Var(&spec.Count, "count", spec.Count, "number of values")
	cmd.Flags().Uint32Var(&spec.Seed, "seed", spec.Seed, "hash seed")
	cmd.Flags().Int32Var(&spec.Min, "min", spec.Min, "smallest value")
	cmd.Flags().Int32Var(&spec.Max, "max", spec.Max, "largest value")
	return cmd
}

func newVerifyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "verify FILE",
		Short: "Check that a file is sorted and print its statistics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := tapesort.Verify(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "values=%d runs=%d checksum=%016x digest=%016x%016x\n",
				st.Count, st.Runs, st.Checksum, st.Digest.Sum, st.Digest.Xor)
			return nil
		},
	}
}

func newScheduleCmd(a *app) *cobra.Command {
	var (
		runs  int64
		tapes int
		order int
	)
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Print the polyphase run distribution for a run count",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Same bounds as a real polyphase sort.
			if _, err := tapesort.New(tapesort.StrategyPolyphase,
				tapesort.WithTapes(tapes), tapesort.WithOrder(order)); err != nil {
				return err
			}
			if order == 0 {
				order = tapes
			}
			dist := schedule.FibonacciDistribution(runs, tapes-1, order)
			w := cmd.OutOrStdout()
			for i, n := range dist {
				fmt.Fprintf(w, "fileB%d\t%d\n", i, n)
			}
			fmt.Fprintf(w, "total\t%d\n", schedule.Sum(dist))
			fmt.Fprintf(w, "dummy\t%d\n", max(schedule.Sum(dist)-runs, 0))
			return nil
		},
	}
	cmd.Flags().Int64Var(&runs, "runs", 1, "number of real runs")
	cmd.Flags().IntVar(&tapes, "tapes", 3, "total tape count m")
	cmd.Flags().IntVar(&order, "order", 0, "fibonacci order (0 = tape count)")
	return cmd
}
