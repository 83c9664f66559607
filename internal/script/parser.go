// Package script loads request scripts and URL lists and runs them in sequence.
package script

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"ccload/internal/runner"
)

var ErrInvalidScript = errors.New("invalid script")

// Entry is one request of a script file. Only url is required.
type Entry struct {
	URL         string            `json:"url" yaml:"url"`
	Method      string            `json:"method" yaml:"method"`
	Headers     map[string]string `json:"headers" yaml:"headers"`
	Data        string            `json:"data" yaml:"data"`
	JSON        any               `json:"json" yaml:"json"`
	Number      *int              `json:"number" yaml:"number"`
	Concurrency *int              `json:"concurrency" yaml:"concurrency"`
}

// WorkSpec applies the defaults: GET, one request, concurrency one.
func (e Entry) WorkSpec() runner.WorkSpec {
	spec := runner.WorkSpec{
		URL:         e.URL,
		Method:      e.Method,
		Headers:     e.Headers,
		JSON:        e.JSON,
		Requests:    1,
		Concurrency: 1,
	}
	if spec.Method == "" {
		spec.Method = "GET"
	}
	if spec.Headers == nil {
		spec.Headers = map[string]string{}
	}
	if e.Data != "" {
		spec.Body = []byte(e.Data)
	}
	if e.Number != nil {
		spec.Requests = *e.Number
	}
	if e.Concurrency != nil {
		spec.Concurrency = *e.Concurrency
	}
	return spec
}

// LoadFile parses a script file. Files ending in .yaml or .yml are read as
// YAML, anything else as JSON.
func LoadFile(path string) ([]runner.WorkSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAML(data)
	default:
		return ParseJSON(data)
	}
}

// ParseJSON parses a JSON list of entries.
func ParseJSON(data []byte) ([]runner.WorkSpec, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScript, err)
	}
	if _, ok := raw.([]any); !ok {
		return nil, fmt.Errorf("%w: script must be a list of requests", ErrInvalidScript)
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScript, err)
	}
	return toSpecs(entries)
}

// ParseYAML parses a YAML sequence of entries.
func ParseYAML(data []byte) ([]runner.WorkSpec, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScript, err)
	}
	if len(doc.Content) == 0 || doc.Content[0].Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("%w: script must be a list of requests", ErrInvalidScript)
	}

	var entries []Entry
	if err := doc.Decode(&entries); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScript, err)
	}
	return toSpecs(entries)
}

func toSpecs(entries []Entry) ([]runner.WorkSpec, error) {
	specs := make([]runner.WorkSpec, 0, len(entries))
	for i, e := range entries {
		if strings.TrimSpace(e.URL) == "" {
			return nil, fmt.Errorf("%w: request %d is missing \"url\"", ErrInvalidScript, i)
		}
		spec := e.WorkSpec()
		if err := spec.Validate(); err != nil {
			return nil, fmt.Errorf("%w: request %d: %v", ErrInvalidScript, i, err)
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// ReadURLs reads one URL per line, skipping blank lines and # comments.
func ReadURLs(r io.Reader) ([]string, error) {
	var urls []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(urls) == 0 {
		return nil, errors.New("no URLs found")
	}
	return urls, nil
}

// ReadURLFile is ReadURLs over a file.
func ReadURLFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read url file: %w", err)
	}
	defer f.Close()
	return ReadURLs(f)
}
