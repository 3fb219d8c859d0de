package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/yourorg/commune-insights/internal/app"
	"github.com/yourorg/commune-insights/internal/batch"
	"github.com/yourorg/commune-insights/internal/events"
	"github.com/yourorg/commune-insights/internal/export"
)

func batchCmd() *cobra.Command {
	var (
		codes    []string
		once     bool
		interval time.Duration
		workers  int
		outDir   string
	)

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Analyze a list of communes and export each as CSV",
		Long: `Runs the full analysis for every commune code in --codes (or BATCH_CODES)
and writes the four CSV tables per commune. Repeats every --interval unless --once.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			job, closeFn, err := buildBatch(ctx, cmd, codes, once, interval, workers, outDir)
			if err != nil {
				return err
			}
			defer closeFn()

			if err := job.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&codes, "codes", nil, "commune codes to analyze (default BATCH_CODES)")
	cmd.Flags().BoolVar(&once, "once", false, "run a single pass and exit")
	cmd.Flags().DurationVar(&interval, "interval", 0, "time between passes (default BATCH_INTERVAL)")
	cmd.Flags().IntVar(&workers, "workers", 0, "concurrent analyses (default BATCH_WORKERS)")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "output directory (default BATCH_OUT_DIR)")
	return cmd
}

func buildBatch(ctx context.Context, cmd *cobra.Command, codes []string, once bool, interval time.Duration, workers int, outDir string) (*batch.Job, func(), error) {
	conf := batchConfig(cmd, codes, once, interval, workers)
	if outDir == "" {
		outDir = cfg.Batch.OutDir
	}

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}
	go events.Drain(ctx, a.Events, log)

	job := &batch.Job{
		Analyzer: a.Analyzer,
		Sink:     &export.CSVSink{Dir: outDir},
		Logger:   log,
		Config:   conf,
	}
	return job, a.Close, nil
}

// batchConfig layers explicitly set flags over the environment.
func batchConfig(cmd *cobra.Command, codes []string, once bool, interval time.Duration, workers int) batch.Config {
	conf := batch.Config{
		Codes:       cfg.Batch.Codes,
		Interval:    cfg.Batch.Interval,
		Workers:     cfg.Batch.Workers,
		Pause:       cfg.Batch.Pause,
		LateTimeout: cfg.Batch.LateTimeout,
	}
	if cmd.Flags().Changed("codes") {
		conf.Codes = codes
	}
	if cmd.Flags().Changed("interval") {
		conf.Interval = interval
	}
	if cmd.Flags().Changed("workers") {
		conf.Workers = workers
	}
	if once {
		conf.Interval = 0
	}
	return conf
}
