package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/yourorg/commune-insights/internal/app"
	"github.com/yourorg/commune-insights/internal/events"
	"github.com/yourorg/commune-insights/internal/export"
	"github.com/yourorg/commune-insights/internal/pipeline"
)

func analyzeCmd() *cobra.Command {
	var (
		wait   time.Duration
		outDir string
	)

	cmd := &cobra.Command{
		Use:   "analyze <commune name or code>",
		Short: "Analyze one commune and print its summary",
		Example: `  communectl analyze Lyon
  communectl analyze 2A004 --out ./exports`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := app.New(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()
			go events.Drain(ctx, a.Events, log)

			run, err := a.Analyzer.Start(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			if wait > 0 {
				waitCtx, cancel := context.WithTimeout(ctx, wait)
				err := run.Wait(waitCtx)
				cancel()
				if err != nil && !errors.Is(err, context.DeadlineExceeded) {
					return err
				}
			}

			printSummary(cmd.OutOrStdout(), run.Session)
			if outDir == "" {
				return nil
			}
			files, err := (&export.CSVSink{Dir: outDir}).Write(export.Project(run.Session))
			if err != nil {
				return fmt.Errorf("export: %w", err)
			}
			for _, f := range files {
				fmt.Fprintln(cmd.OutOrStdout(), "wrote", f)
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&wait, "wait", 30*time.Second, "how long to wait for price estimates and housing figures (0 skips them)")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "directory to write the CSV tables to")
	return cmd
}

func printSummary(w io.Writer, s *pipeline.Session) {
	t, _ := export.Project(s).Table(export.SheetSummary)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, row := range t.Rows {
		fmt.Fprintf(tw, "%s\t%s\n", row[0], row[1])
	}
	tw.Flush()

	for _, c := range []pipeline.Category{pipeline.CategoryTransactions, pipeline.CategoryPrices, pipeline.CategoryDemographics} {
		line := fmt.Sprintf("%s: %s", c, s.Outcomes[c])
		if msg := s.Failures[c]; msg != "" {
			line += " (" + msg + ")"
		}
		fmt.Fprintln(w, line)
	}
}
