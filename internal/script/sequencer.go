package script

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"ccload/internal/logging"
	"ccload/internal/runner"
	"ccload/internal/stats"
)

// Sequencer runs specs strictly one after another on a shared Runner.
type Sequencer struct {
	Runner *runner.Runner
	Logger *zap.SugaredLogger

	// OnResult, if set, is called after each spec in order.
	OnResult func(spec runner.WorkSpec, s stats.Statistics)
}

// Run returns the statistics of every spec keyed by target URL. When two
// specs share a URL the later result replaces the earlier one.
func (s *Sequencer) Run(ctx context.Context, specs []runner.WorkSpec) (map[string]stats.Statistics, error) {
	for i, spec := range specs {
		if err := spec.Validate(); err != nil {
			return nil, fmt.Errorf("spec %d: %w", i, err)
		}
	}

	log := logging.OrNop(s.Logger)
	results := make(map[string]stats.Statistics, len(specs))
	for i, spec := range specs {
		log.Infow("testing target",
			"index", i,
			"url", spec.URL,
			"method", spec.Method,
			"requests", spec.Requests,
			"concurrency", spec.Concurrency,
		)

		st, err := s.Runner.LoadTest(ctx, spec)
		if err != nil {
			return nil, fmt.Errorf("spec %d: %w", i, err)
		}
		results[spec.URL] = st

		if s.OnResult != nil {
			s.OnResult(spec, st)
		}
	}
	return results, nil
}
