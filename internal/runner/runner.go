// Package runner drives a bounded number of concurrent probes against one target.
package runner

import (
	"context"
	"crypto/tls"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"ccload/internal/probe"
	"ccload/internal/stats"
)

type Runner struct {
	Opts Options

	// Event Channel, optional
	Updates StatsUpdateChan

	templates *TemplateEngine
	inflight  int64
}

func NewRunner(opts Options, updates StatsUpdateChan) *Runner {
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultOptions().TickInterval
	}
	return &Runner{
		Opts:      opts,
		Updates:   updates,
		templates: NewTemplateEngine(),
	}
}

// newClient builds the connection pool owned by a single run. The pool never
// holds more than concurrency connections to the target.
func (r *Runner) newClient(concurrency int) *http.Client {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConns = concurrency
	t.MaxConnsPerHost = concurrency
	t.MaxIdleConnsPerHost = concurrency
	t.TLSClientConfig = &tls.Config{InsecureSkipVerify: r.Opts.InsecureSkipVerify}

	return &http.Client{
		Timeout:   r.Opts.Timeout,
		Transport: t,
	}
}

// Run issues spec.Requests probes with at most spec.Concurrency in flight and
// waits for all of them. Cancelling ctx does not stop a run; the only error
// returned is an invalid spec, reported before any request is sent.
func (r *Runner) Run(ctx context.Context, spec WorkSpec) (Result, error) {
	if err := spec.Validate(); err != nil {
		return Result{}, err
	}
	build, err := newRequestBuilder(spec, r.templates)
	if err != nil {
		return Result{}, err
	}

	client := r.newClient(spec.Concurrency)
	defer client.CloseIdleConnections()

	ctx = context.WithoutCancel(ctx)
	live := stats.NewLive()
	stopTicks := r.startTickLoop(spec, live)

	outcomes := make([]probe.Outcome, spec.Requests)
	jobs := make(chan int)

	var g errgroup.Group
	start := time.Now()
	for range min(spec.Concurrency, spec.Requests) {
		g.Go(func() error {
			for i := range jobs {
				out := r.probe(ctx, client, build, i)
				outcomes[i] = out
				live.Record(out)
			}
			return nil
		})
	}
	for i := range spec.Requests {
		jobs <- i
	}
	close(jobs)
	g.Wait()
	elapsed := time.Since(start)

	stopTicks()
	r.sendUpdate(spec, live, true)

	return Result{Outcomes: outcomes, Elapsed: elapsed}, nil
}

// LoadTest runs spec and aggregates the outcomes.
func (r *Runner) LoadTest(ctx context.Context, spec WorkSpec) (stats.Statistics, error) {
	res, err := r.Run(ctx, spec)
	if err != nil {
		return stats.Statistics{}, err
	}
	return stats.Calculate(res.Outcomes, res.Elapsed), nil
}

func (r *Runner) probe(ctx context.Context, client *http.Client, build *requestBuilder, seq int) probe.Outcome {
	req, err := build.request(seq)
	if err != nil {
		return probe.Outcome{Err: err}
	}

	atomic.AddInt64(&r.inflight, 1)
	defer atomic.AddInt64(&r.inflight, -1)

	return probe.Do(ctx, client, req)
}

// startTickLoop publishes snapshots until the returned stop func is called.
func (r *Runner) startTickLoop(spec WorkSpec, live *stats.Live) (stop func()) {
	if r.Updates == nil {
		return func() {}
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(r.Opts.TickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				r.sendUpdate(spec, live, false)
			}
		}
	}()

	return func() {
		close(done)
		wg.Wait()
	}
}

func (r *Runner) sendUpdate(spec WorkSpec, live *stats.Live, final bool) {
	if r.Updates == nil {
		return
	}

	reqs, success, fail := live.Counts()
	s := Snapshot{
		Target:   spec.URL,
		Total:    spec.Requests,
		Requests: reqs,
		Success:  success,
		Fail:     fail,
		Inflight: r.GetInflight(),
		P99:      live.P99(),
		Done:     final,
	}

	// Non-blocking send
	select {
	case r.Updates <- s:
	default:
		// Drop update if channel full, UI acts as backpressure
	}
}

func (r *Runner) GetInflight() int64 {
	return atomic.LoadInt64(&r.inflight)
}
