// Package worker serves the run-test operation so a coordinator can hand it a
// share of a distributed load test.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"ccload/internal/distributed"
	"ccload/internal/logging"
	"ccload/internal/runner"
	"ccload/internal/stats"
)

type Server struct {
	opts    runner.Options
	log     *zap.SugaredLogger
	metrics *metrics
	router  *mux.Router
}

func NewServer(opts runner.Options, logger *zap.SugaredLogger) *Server {
	s := &Server{
		opts:    opts,
		log:     logging.OrNop(logger),
		metrics: newMetrics(),
		router:  mux.NewRouter(),
	}

	s.router.HandleFunc(distributed.RunTestPath, s.handleRunTest).Methods(http.MethodPost)
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Infow("worker listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.log.Infow("worker shutting down", "addr", addr)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleRunTest(w http.ResponseWriter, r *http.Request) {
	dispatchID := r.Header.Get(distributed.DispatchIDHeader)

	var p distributed.Payload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		s.reject(w, dispatchID, err)
		return
	}
	spec, err := p.WorkSpec()
	if err != nil {
		s.reject(w, dispatchID, err)
		return
	}

	s.log.Infow("running test",
		"dispatch_id", dispatchID,
		"url", spec.URL,
		"requests", spec.Requests,
		"concurrency", spec.Concurrency,
	)

	res, err := runner.NewRunner(s.opts, nil).Run(r.Context(), spec)
	if err != nil {
		s.reject(w, dispatchID, err)
		return
	}
	st := stats.Calculate(res.Outcomes, res.Elapsed)
	s.metrics.observe(st, res.Elapsed.Seconds())

	s.log.Infow("test finished",
		"dispatch_id", dispatchID,
		"elapsed", res.Elapsed,
		"successful", st.SuccessfulRequests,
		"failed", st.FailedRequests,
	)

	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) reject(w http.ResponseWriter, dispatchID string, err error) {
	s.metrics.rejected.Inc()
	s.log.Warnw("rejected run-test",
		"dispatch_id", dispatchID,
		"error", err,
	)
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
