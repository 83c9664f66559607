// Package spawn starts local worker processes for distributed runs and makes
// sure they are stopped again.
package spawn

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"ccload/internal/logging"
)

// Options control how workers are launched.
type Options struct {
	// Executable defaults to the running binary.
	Executable string
	// Args are placed before the port flag. Defaults to ["worker"].
	Args []string
	// Host the workers bind to. Defaults to 127.0.0.1.
	Host string
	// ReadyTimeout bounds the wait for every worker's /healthz.
	ReadyTimeout time.Duration
	// Env is appended to the current environment.
	Env []string

	Logger *zap.SugaredLogger
}

func (o Options) withDefaults() (Options, error) {
	if o.Executable == "" {
		exe, err := os.Executable()
		if err != nil {
			return o, err
		}
		o.Executable = exe
	}
	if o.Args == nil {
		o.Args = []string{"worker"}
	}
	if o.Host == "" {
		o.Host = "127.0.0.1"
	}
	if o.ReadyTimeout <= 0 {
		o.ReadyTimeout = 10 * time.Second
	}
	o.Logger = logging.OrNop(o.Logger)
	return o, nil
}

// Pool is a set of running worker processes. Close must be called on every
// path once the pool is no longer needed.
type Pool struct {
	URLs []string

	log   *zap.SugaredLogger
	cmds  []*exec.Cmd
	once  sync.Once
	errMu sync.Mutex
	err   error
}

// Start launches n workers on free ports and waits until all of them answer
// /healthz. On failure every process already started is stopped.
func Start(ctx context.Context, n int, opts Options) (*Pool, error) {
	if n <= 0 {
		return nil, fmt.Errorf("need at least one worker, got %d", n)
	}
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}

	p := &Pool{log: opts.Logger}
	for i := 0; i < n; i++ {
		port, err := freePort(opts.Host)
		if err != nil {
			p.Close()
			return nil, err
		}

		args := append(append([]string{}, opts.Args...), "--host", opts.Host, "--port", strconv.Itoa(port))
		cmd := exec.Command(opts.Executable, args...)
		cmd.Env = append(os.Environ(), opts.Env...)
		cmd.Stderr = os.Stderr
		if err := cmd.Start(); err != nil {
			p.Close()
			return nil, fmt.Errorf("start worker %d: %w", i, err)
		}

		url := fmt.Sprintf("http://%s", net.JoinHostPort(opts.Host, strconv.Itoa(port)))
		p.cmds = append(p.cmds, cmd)
		p.URLs = append(p.URLs, url)
		p.log.Infow("spawned worker", "url", url, "pid", cmd.Process.Pid)
	}

	readyCtx, cancel := context.WithTimeout(ctx, opts.ReadyTimeout)
	defer cancel()
	for _, url := range p.URLs {
		if err := waitReady(readyCtx, url); err != nil {
			p.Close()
			return nil, err
		}
	}
	return p, nil
}

// Close kills and reaps every worker. It is safe to call more than once.
func (p *Pool) Close() error {
	p.once.Do(func() {
		var errs []error
		for _, cmd := range p.cmds {
			if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
				errs = append(errs, err)
			}
			// Wait reports the kill signal; only reaping matters here.
			cmd.Wait()
		}
		logging.OrNop(p.log).Infow("stopped workers", "count", len(p.cmds))

		p.errMu.Lock()
		p.err = errors.Join(errs...)
		p.errMu.Unlock()
	})

	p.errMu.Lock()
	defer p.errMu.Unlock()
	return p.err
}

func freePort(host string) (int, error) {
	l, err := net.Listen("tcp", net.JoinHostPort(host, "0"))
	if err != nil {
		return 0, fmt.Errorf("find free port: %w", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// waitReady polls url/healthz until it answers 200 or ctx expires.
func waitReady(ctx context.Context, url string) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url+"/healthz", nil)
		if err != nil {
			return err
		}
		resp, err := http.DefaultClient.Do(req)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("worker %s not ready: %w", url, ctx.Err())
		case <-ticker.C:
		}
	}
}
