package distributed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ccload/internal/logging"
	"ccload/internal/runner"
	"ccload/internal/stats"
)

const DefaultDispatchTimeout = 60 * time.Second

// Coordinator fans one WorkSpec out to a list of workers.
type Coordinator struct {
	Client *http.Client
	// Timeout bounds each worker round-trip.
	Timeout time.Duration
	Logger  *zap.SugaredLogger
}

func NewCoordinator(logger *zap.SugaredLogger) *Coordinator {
	return &Coordinator{
		Client:  &http.Client{},
		Timeout: DefaultDispatchTimeout,
		Logger:  logging.OrNop(logger),
	}
}

// Run dispatches one partition of spec to every worker in parallel and returns
// the statistics of the workers that answered, in completion order. Workers
// that fail, time out or answer non-2xx are left out. Results are not merged.
func (c *Coordinator) Run(ctx context.Context, spec runner.WorkSpec, workers []string) []stats.Statistics {
	results := make([]stats.Statistics, 0, len(workers))
	if len(workers) == 0 {
		c.log().Warnw("no workers specified")
		return results
	}

	sizes := Partition(spec.Requests, len(workers))

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	for i, worker := range workers {
		g.Go(func() error {
			s, err := c.dispatch(ctx, worker, NewPayload(spec, sizes[i]))
			if err != nil {
				c.log().Warnw("dropping worker",
					"worker", worker,
					"error", err,
				)
				return nil
			}

			mu.Lock()
			results = append(results, s)
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	return results
}

func (c *Coordinator) dispatch(ctx context.Context, worker string, p Payload) (stats.Statistics, error) {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultDispatchTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := json.Marshal(p)
	if err != nil {
		return stats.Statistics{}, fmt.Errorf("encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, RunTestURL(worker), bytes.NewReader(body))
	if err != nil {
		return stats.Statistics{}, err
	}
	id := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(DispatchIDHeader, id)

	c.log().Infow("sending partition",
		"worker", worker,
		"requests", *p.NRequest,
		"dispatch_id", id,
	)

	resp, err := c.client().Do(req)
	if err != nil {
		return stats.Statistics{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return stats.Statistics{}, fmt.Errorf("worker answered %s", resp.Status)
	}

	var s stats.Statistics
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return stats.Statistics{}, fmt.Errorf("decode statistics: %w", err)
	}
	return s, nil
}

func (c *Coordinator) client() *http.Client {
	if c.Client == nil {
		return http.DefaultClient
	}
	return c.Client
}

func (c *Coordinator) log() *zap.SugaredLogger {
	return logging.OrNop(c.Logger)
}
