// Package batch runs analyses over a list of communes and exports each one
// as CSV tables, once or on an interval.
package batch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourorg/commune-insights/internal/canon"
	"github.com/yourorg/commune-insights/internal/export"
	"github.com/yourorg/commune-insights/internal/pipeline"
	"github.com/yourorg/commune-insights/internal/refresh"
)

type Config struct {
	Codes []string
	// Interval <= 0 runs once.
	Interval time.Duration
	Workers  int
	// Pause is slept by a worker after each commune, to spare upstreams.
	Pause       time.Duration
	LateTimeout time.Duration
	JobTimeout  time.Duration
}

type Starter interface {
	Start(ctx context.Context, query string) (*pipeline.Run, error)
}

type Sink interface {
	Write(wb export.Workbook) ([]string, error)
}

type Job struct {
	Analyzer Starter
	Sink     Sink
	Logger   *logrus.Logger
	Config   Config
}

func (j *Job) validate() error {
	if j == nil {
		return errors.New("nil batch job")
	}
	if j.Analyzer == nil {
		return errors.New("batch job missing analyzer")
	}
	if j.Sink == nil {
		return errors.New("batch job missing sink")
	}
	if len(codes(j.Config.Codes)) == 0 {
		return errors.New("batch job requires at least one commune code")
	}
	if j.Logger == nil {
		j.Logger = logrus.New()
	}
	return nil
}

func (j *Job) Run(ctx context.Context) error {
	if err := j.validate(); err != nil {
		return err
	}
	interval := j.Config.Interval
	if interval <= 0 {
		return j.RunOnce(ctx)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	j.Logger.WithFields(logrus.Fields{"interval": interval.String(), "communes": len(j.Config.Codes)}).Info("batch job starting")
	if err := j.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
		j.Logger.WithError(err).Warn("batch job initial run error")
	}
	for {
		select {
		case <-ctx.Done():
			j.Logger.WithError(ctx.Err()).Info("batch job stopping")
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
			if err := j.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
				j.Logger.WithError(err).Warn("batch job iteration error")
			}
		}
	}
}

// RunOnce analyses every code with a bounded pool and returns the joined
// per-commune errors.
func (j *Job) RunOnce(ctx context.Context) error {
	if err := j.validate(); err != nil {
		return err
	}
	var mu sync.Mutex
	var joined error
	pool := refresh.New(ctx, len(j.Config.Codes), j.Config.Workers, func(ctx context.Context, job refresh.Job) {
		if err := j.process(ctx, job.Code); err != nil {
			mu.Lock()
			joined = errors.Join(joined, err)
			mu.Unlock()
		}
		j.pause(ctx)
	})
	if j.Config.JobTimeout > 0 {
		pool.Timeout = j.Config.JobTimeout
	}
	for _, code := range codes(j.Config.Codes) {
		if _, err := pool.Enqueue(refresh.Job{Code: code}); err != nil {
			break
		}
	}
	if err := pool.Close(); err != nil {
		return err
	}
	return joined
}

func (j *Job) process(ctx context.Context, code string) error {
	log := j.Logger.WithField("commune", code)
	run, err := j.Analyzer.Start(ctx, code)
	if err != nil {
		log.WithError(err).Warn("batch commune not resolved")
		return fmt.Errorf("commune %s: %w", code, err)
	}
	wait := j.Config.LateTimeout
	if wait <= 0 {
		wait = 30 * time.Second
	}
	lateCtx, cancel := context.WithTimeout(ctx, wait)
	err = run.Wait(lateCtx)
	cancel()
	if err != nil {
		log.WithError(err).Info("late categories incomplete, exporting without them")
	}
	paths, err := j.Sink.Write(export.Project(run.Session))
	if err != nil {
		return fmt.Errorf("commune %s export: %w", code, err)
	}
	log.WithFields(logrus.Fields{
		"transactions": len(run.Session.Transactions),
		"files":        len(paths),
	}).Info("batch commune exported")
	return nil
}

func (j *Job) pause(ctx context.Context) {
	if j.Config.Pause <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(j.Config.Pause):
	}
}

// codes trims, upper-cases and de-duplicates, dropping anything that is
// not a commune code.
func codes(raw []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(raw))
	for _, c := range raw {
		c = strings.ToUpper(strings.TrimSpace(c))
		if !canon.IsCommuneCode(c) || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}
