// Package cli turns validated command-line options into load tests, then
// displays, exports and records their results.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"ccload/internal/distributed"
	"ccload/internal/export"
	"ccload/internal/logging"
	"ccload/internal/runner"
	"ccload/internal/script"
	"ccload/internal/spawn"
	"ccload/internal/stats"
	"ccload/internal/storage"
	"ccload/internal/tui"
)

// App runs one invocation of the root command.
type App struct {
	Opts Options

	// Out receives the result display and stdout exports.
	Out io.Writer
	// ProgressOut receives the live progress view.
	ProgressOut io.Writer
	Log         *zap.SugaredLogger

	// SpawnOptions configure locally spawned workers.
	SpawnOptions spawn.Options

	now func() time.Time
}

func NewApp(opts Options, out io.Writer, log *zap.SugaredLogger) *App {
	return &App{
		Opts:        opts,
		Out:         out,
		ProgressOut: os.Stderr,
		Log:         logging.OrNop(log),
		now:         time.Now,
	}
}

// Run validates the options, runs the selected mode and handles its results.
func (a *App) Run(ctx context.Context) error {
	if err := a.Opts.Validate(); err != nil {
		return err
	}

	var (
		mode    string
		reports []export.Report
		err     error
	)
	switch {
	case a.Opts.Distributed:
		mode = "distributed"
		reports, err = a.runDistributed(ctx)
	case a.Opts.Script != "":
		mode = "script"
		reports, err = a.runScript(ctx)
	case a.Opts.File != "":
		mode = "file"
		reports, err = a.runFile(ctx)
	default:
		mode = "single"
		reports, err = a.runSingle(ctx)
	}
	if err != nil {
		return err
	}

	if err := a.export(reports); err != nil {
		return err
	}
	a.record(mode, reports)
	return nil
}

func (a *App) runnerOptions() runner.Options {
	opts := runner.DefaultOptions()
	opts.Timeout = a.Opts.Timeout
	opts.InsecureSkipVerify = !a.Opts.VerifyTLS
	return opts
}

// spec builds the WorkSpec shared by single, file and distributed runs.
func (a *App) spec(url string) runner.WorkSpec {
	// Run has already validated headers and body.
	headers, _ := a.Opts.headers()
	body, _ := a.Opts.body()
	return runner.WorkSpec{
		URL:         url,
		Requests:    a.Opts.Number,
		Concurrency: a.Opts.Concurrency,
		Method:      a.Opts.method(),
		Headers:     headers,
		JSON:        body,
	}
}

func (a *App) runSingle(ctx context.Context) ([]export.Report, error) {
	spec := a.spec(a.Opts.URL)
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}

	var s stats.Statistics
	err := a.withProgress(func(r *runner.Runner) error {
		var err error
		s, err = r.LoadTest(ctx, spec)
		return err
	})
	if err != nil {
		return nil, err
	}

	Display(a.Out, spec.URL, s)
	return []export.Report{{Target: spec.URL, Statistics: s}}, nil
}

func (a *App) runFile(ctx context.Context) ([]export.Report, error) {
	urls, err := script.ReadURLFile(a.Opts.File)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	specs := make([]runner.WorkSpec, 0, len(urls))
	for _, u := range urls {
		specs = append(specs, a.spec(u))
	}
	return a.runSequence(ctx, specs)
}

func (a *App) runScript(ctx context.Context) ([]export.Report, error) {
	specs, err := script.LoadFile(a.Opts.Script)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	return a.runSequence(ctx, specs)
}

func (a *App) runSequence(ctx context.Context, specs []runner.WorkSpec) ([]export.Report, error) {
	for i, spec := range specs {
		if err := spec.Validate(); err != nil {
			return nil, fmt.Errorf("%w: target %d: %v", ErrConfig, i, err)
		}
	}

	type shown struct {
		target string
		stats  stats.Statistics
	}
	var (
		displayed []shown
		results   map[string]stats.Statistics
	)
	err := a.withProgress(func(r *runner.Runner) error {
		seq := &script.Sequencer{
			Runner: r,
			Logger: a.Log,
			OnResult: func(spec runner.WorkSpec, s stats.Statistics) {
				displayed = append(displayed, shown{spec.URL, s})
			},
		}
		var err error
		results, err = seq.Run(ctx, specs)
		return err
	})
	if err != nil {
		return nil, err
	}

	for _, d := range displayed {
		Display(a.Out, d.target, d.stats)
	}
	return orderedReports(specs, results), nil
}

// orderedReports lists each target once, in order of first appearance.
func orderedReports(specs []runner.WorkSpec, results map[string]stats.Statistics) []export.Report {
	seen := make(map[string]bool, len(results))
	reports := make([]export.Report, 0, len(results))
	for _, spec := range specs {
		if seen[spec.URL] {
			continue
		}
		seen[spec.URL] = true
		if s, ok := results[spec.URL]; ok {
			reports = append(reports, export.Report{Target: spec.URL, Statistics: s})
		}
	}
	return reports
}

func (a *App) runDistributed(ctx context.Context) ([]export.Report, error) {
	spec := a.spec(a.Opts.URL)
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}

	workers := a.Opts.workerURLs()
	if a.Opts.DistributedWorkers > 0 {
		opts := a.SpawnOptions
		if opts.Args == nil {
			opts.Args = a.workerArgs()
		}
		if opts.Logger == nil {
			opts.Logger = a.Log
		}
		pool, err := spawn.Start(ctx, a.Opts.DistributedWorkers, opts)
		if err != nil {
			return nil, fmt.Errorf("start local workers: %w", err)
		}
		defer func() {
			if err := pool.Close(); err != nil {
				a.Log.Warnw("stopping local workers", "error", err)
			}
		}()
		workers = pool.URLs
	}

	results := distributed.NewCoordinator(a.Log).Run(ctx, spec, workers)
	if len(results) == 0 {
		a.Log.Warnw("no worker returned results", "workers", len(workers))
	}

	reports := make([]export.Report, 0, len(results)+1)
	for i, s := range results {
		target := fmt.Sprintf("%s (worker #%d)", spec.URL, i+1)
		Display(a.Out, target, s)
		reports = append(reports, export.Report{Target: target, Statistics: s})
	}

	combined := stats.Combine(results)
	target := spec.URL + " (combined)"
	Display(a.Out, target, combined)
	reports = append(reports, export.Report{Target: target, Statistics: combined})
	return reports, nil
}

// workerArgs passes the transport options of this run on to spawned workers.
func (a *App) workerArgs() []string {
	args := []string{
		"worker",
		"--timeout", a.Opts.Timeout.String(),
		"--verify-tls=" + strconv.FormatBool(a.Opts.VerifyTLS),
	}
	if a.Opts.LogLevel != "" {
		args = append(args, "--log-level", a.Opts.LogLevel)
	}
	return args
}

// withProgress runs job on a fresh Runner, showing live progress when enabled.
func (a *App) withProgress(job func(r *runner.Runner) error) error {
	if !a.Opts.Progress {
		return job(runner.NewRunner(a.runnerOptions(), nil))
	}

	updates := make(runner.StatsUpdateChan, 64)
	r := runner.NewRunner(a.runnerOptions(), updates)

	done := make(chan struct{})
	var jobErr error
	go func() {
		defer close(done)
		jobErr = job(r)
	}()

	aborted, err := tui.Run(a.ProgressOut, updates, done)
	if err != nil {
		a.Log.Warnw("progress display failed", "error", err)
	}
	if aborted {
		return ErrAborted
	}
	<-done
	return jobErr
}

func (a *App) export(reports []export.Report) error {
	if a.Opts.Export == "" {
		return nil
	}

	ts := a.now()
	if a.Opts.Output == "" {
		return export.Write(a.Out, a.Opts.Export, ts, reports)
	}

	f, err := os.Create(a.Opts.Output)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	if err := export.Write(f, a.Opts.Export, ts, reports); err != nil {
		f.Close()
		return fmt.Errorf("export: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("export: %w", err)
	}

	fmt.Fprintf(a.Out, "Metrics exported to %s in %s format\n", a.Opts.Output, a.Opts.Export)
	return nil
}

// record saves the run to history. Failures are logged, never returned.
func (a *App) record(mode string, reports []export.Report) {
	if !a.Opts.History || a.Opts.HistoryDB == "" {
		return
	}

	store, err := storage.Open(a.Opts.HistoryDB)
	if err != nil {
		a.Log.Warnw("history unavailable", "error", err)
		return
	}
	defer store.Close()

	target := a.Opts.URL
	switch {
	case a.Opts.File != "":
		target = a.Opts.File
	case a.Opts.Script != "":
		target = a.Opts.Script
	}
	item := &storage.HistoryItem{
		Timestamp: a.now().UTC(),
		Mode:      mode,
		Spec: storage.RunSpec{
			Target:      target,
			Requests:    a.Opts.Number,
			Concurrency: a.Opts.Concurrency,
			Method:      a.Opts.method(),
			Workers:     a.Opts.workerURLs(),
		},
		Reports: reports,
	}
	if err := store.Save(item); err != nil {
		a.Log.Warnw("saving history", "error", err)
		return
	}
	a.Log.Debugw("run saved", "id", item.ID)
}
