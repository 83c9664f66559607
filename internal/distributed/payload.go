package distributed

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"ccload/internal/runner"
)

// RunTestPath is the single operation every worker exposes.
const RunTestPath = "/run-test"

// DispatchIDHeader tags each dispatch so worker logs can be matched with the
// coordinator's.
const DispatchIDHeader = "X-Ccload-Dispatch-Id"

var ErrInvalidPayload = errors.New("invalid run-test payload")

// Payload is the JSON body of a run-test request. The counts are pointers so a
// missing field can be told apart from zero.
type Payload struct {
	URL          string            `json:"url"`
	NRequest     *int              `json:"n_request"`
	NConcurrency *int              `json:"n_concurrency"`
	Method       string            `json:"method,omitempty"`
	Headers      map[string]string `json:"headers,omitempty"`
	JSONData     any               `json:"json_data,omitempty"`
}

// NewPayload carries spec with its request count replaced by n.
func NewPayload(spec runner.WorkSpec, n int) Payload {
	c := spec.Concurrency
	return Payload{
		URL:          spec.URL,
		NRequest:     &n,
		NConcurrency: &c,
		Method:       spec.Method,
		Headers:      spec.Headers,
		JSONData:     spec.JSON,
	}
}

// WorkSpec converts a decoded payload, applying the GET default.
func (p Payload) WorkSpec() (runner.WorkSpec, error) {
	switch {
	case strings.TrimSpace(p.URL) == "":
		return runner.WorkSpec{}, fmt.Errorf("%w: url is required", ErrInvalidPayload)
	case p.NRequest == nil:
		return runner.WorkSpec{}, fmt.Errorf("%w: n_request is required", ErrInvalidPayload)
	case p.NConcurrency == nil:
		return runner.WorkSpec{}, fmt.Errorf("%w: n_concurrency is required", ErrInvalidPayload)
	}

	method := p.Method
	if method == "" {
		method = http.MethodGet
	}
	return runner.WorkSpec{
		URL:         p.URL,
		Requests:    *p.NRequest,
		Concurrency: *p.NConcurrency,
		Method:      method,
		Headers:     p.Headers,
		JSON:        p.JSONData,
	}, nil
}

// RunTestURL joins a worker base URL with RunTestPath.
func RunTestURL(worker string) string {
	return strings.TrimRight(worker, "/") + RunTestPath
}
