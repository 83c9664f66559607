package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"ccload/internal/export"
)

var (
	ErrConfig  = errors.New("configuration error")
	ErrAborted = errors.New("aborted")
)

func configErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfig, fmt.Sprintf(format, args...))
}

// Options is everything the root command collects from flags and config.
type Options struct {
	URL    string
	File   string
	Script string

	Number      int
	Concurrency int
	Method      string
	Headers     string
	JSON        string
	Timeout     time.Duration
	VerifyTLS   bool

	Export string
	Output string

	Distributed        bool
	DistributedWorkers int
	Workers            []string

	Progress  bool
	History   bool
	HistoryDB string

	// LogLevel is handed to spawned workers.
	LogLevel string
}

// Validate rejects every malformed or conflicting option before any network
// activity.
func (o Options) Validate() error {
	targets := 0
	for _, t := range []string{o.URL, o.File, o.Script} {
		if t != "" {
			targets++
		}
	}
	switch {
	case targets == 0:
		return configErr("URL or file must be provided")
	case targets > 1:
		return configErr("only one of URL, file or script can be provided")
	}

	if o.Number < 0 {
		return configErr("--number must be >= 0, got %d", o.Number)
	}
	if o.Concurrency < 1 {
		return configErr("--concurrency must be >= 1, got %d", o.Concurrency)
	}
	if _, err := o.headers(); err != nil {
		return err
	}
	if _, err := o.body(); err != nil {
		return err
	}

	if o.Export != "" && !export.Supported(o.Export) {
		return configErr("--export must be one of %s, got %q", strings.Join(export.Formats, ", "), o.Export)
	}
	if o.Output != "" && o.Export == "" {
		return configErr("--output requires --export")
	}

	if o.Distributed {
		if o.URL == "" {
			return configErr("--distributed needs a single URL target")
		}
		workers := o.workerURLs()
		switch {
		case len(workers) > 0 && o.DistributedWorkers > 0:
			return configErr("use either --workers or --distributed-workers, not both")
		case len(workers) == 0 && o.DistributedWorkers <= 0:
			return configErr("no workers specified: pass --workers or --distributed-workers")
		}
	} else if len(o.workerURLs()) > 0 || o.DistributedWorkers > 0 {
		return configErr("--workers and --distributed-workers require --distributed")
	}
	return nil
}

func (o Options) headers() (map[string]string, error) {
	if strings.TrimSpace(o.Headers) == "" {
		return nil, nil
	}
	var h map[string]string
	if err := json.Unmarshal([]byte(o.Headers), &h); err != nil {
		return nil, configErr("--headers must be a JSON object of strings: %v", err)
	}
	return h, nil
}

func (o Options) body() (any, error) {
	if strings.TrimSpace(o.JSON) == "" {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal([]byte(o.JSON), &v); err != nil {
		return nil, configErr("--json is not valid JSON: %v", err)
	}
	return v, nil
}

func (o Options) workerURLs() []string {
	var urls []string
	for _, w := range o.Workers {
		for _, part := range strings.Split(w, ",") {
			if part = strings.TrimSpace(part); part != "" {
				urls = append(urls, part)
			}
		}
	}
	return urls
}

func (o Options) method() string {
	if o.Method == "" {
		return "GET"
	}
	return strings.ToUpper(o.Method)
}
