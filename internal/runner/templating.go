package runner

import (
	"bufio"
	"bytes"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"strings"
	"sync"
	"text/template"

	"github.com/google/uuid"

	"ccload/internal/probe"
)

// TemplateEngine handles parsing and executing templates
type TemplateEngine struct {
	fileCache map[string][]string
	mu        sync.RWMutex
	funcMap   template.FuncMap
}

// TemplateData is passed to the execution context
type TemplateData struct {
	Seq  int
	UUID string
}

func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{
		fileCache: make(map[string][]string),
	}

	e.funcMap = template.FuncMap{
		"randomInt":    e.randomInt,
		"randomUUID":   e.randomUUID,
		"randomChoice": e.randomChoice,
		"randomLine":   e.randomLine,
	}

	return e
}

// Preprocess converts shorthand variables like {{seq}} to {{.Seq}}
func (e *TemplateEngine) Preprocess(input string) string {
	s := input
	s = strings.ReplaceAll(s, "{{seq}}", "{{.Seq}}")
	s = strings.ReplaceAll(s, "{{uuid}}", "{{.UUID}}")
	s = strings.ReplaceAll(s, "{{requestID}}", "{{.UUID}}")
	return s
}

func (e *TemplateEngine) Parse(name, text string) (*template.Template, error) {
	return template.New(name).Funcs(e.funcMap).Parse(e.Preprocess(text))
}

func (e *TemplateEngine) Execute(t *template.Template, data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// --- Functions ---

// randomInt returns a value in [min, max).
func (e *TemplateEngine) randomInt(min, max int) int {
	if max <= min {
		return min
	}
	return rand.Intn(max-min) + min
}

func (e *TemplateEngine) randomUUID() string {
	return uuid.NewString()
}

func (e *TemplateEngine) randomChoice(choices ...string) string {
	if len(choices) == 0 {
		return ""
	}
	return choices[rand.Intn(len(choices))]
}

func (e *TemplateEngine) randomLine(filename string) (string, error) {
	e.mu.RLock()
	lines, ok := e.fileCache[filename]
	e.mu.RUnlock()

	if !ok {
		var err error
		if lines, err = e.loadLines(filename); err != nil {
			return "", err
		}
	}
	if len(lines) == 0 {
		return "", nil
	}
	return lines[rand.Intn(len(lines))], nil
}

func (e *TemplateEngine) loadLines(filename string) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if lines, ok := e.fileCache[filename]; ok {
		return lines, nil
	}

	content, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read file '%s': %w", filename, err)
	}

	scanner := bufio.NewScanner(bytes.NewReader(content))
	var loaded []string
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			loaded = append(loaded, line)
		}
	}

	e.fileCache[filename] = loaded
	return loaded, nil
}

func isTemplate(s string) bool {
	return strings.Contains(s, "{{")
}

// requestBuilder renders the probe request for each sequence number. Parts
// without template markers are built once and shared.
type requestBuilder struct {
	base    probe.Request
	engine  *TemplateEngine
	url     *template.Template
	body    *template.Template
	headers map[string]*template.Template
}

func newRequestBuilder(spec WorkSpec, engine *TemplateEngine) (*requestBuilder, error) {
	body, err := spec.encodeBody()
	if err != nil {
		return nil, err
	}

	header := make(http.Header, len(spec.Headers)+1)
	for k, v := range spec.Headers {
		header.Set(k, v)
	}
	if spec.JSON != nil && header.Get("Content-Type") == "" {
		header.Set("Content-Type", "application/json")
	}

	b := &requestBuilder{
		base: probe.Request{
			Method: spec.method(),
			URL:    spec.URL,
			Header: header,
			Body:   body,
		},
		engine: engine,
	}

	if isTemplate(spec.URL) {
		if b.url, err = engine.Parse("url", spec.URL); err != nil {
			return nil, fmt.Errorf("%w: url template: %v", ErrInvalidSpec, err)
		}
	}
	if isTemplate(string(body)) {
		if b.body, err = engine.Parse("body", string(body)); err != nil {
			return nil, fmt.Errorf("%w: body template: %v", ErrInvalidSpec, err)
		}
	}
	for k, v := range spec.Headers {
		if !isTemplate(v) {
			continue
		}
		t, err := engine.Parse("header "+k, v)
		if err != nil {
			return nil, fmt.Errorf("%w: header %s template: %v", ErrInvalidSpec, k, err)
		}
		if b.headers == nil {
			b.headers = make(map[string]*template.Template)
		}
		b.headers[k] = t
	}
	return b, nil
}

func (b *requestBuilder) templated() bool {
	return b.url != nil || b.body != nil || len(b.headers) > 0
}

func (b *requestBuilder) request(seq int) (probe.Request, error) {
	if !b.templated() {
		return b.base, nil
	}

	req := b.base
	data := TemplateData{Seq: seq, UUID: uuid.NewString()}

	if b.url != nil {
		u, err := b.engine.Execute(b.url, data)
		if err != nil {
			return probe.Request{}, fmt.Errorf("render url: %w", err)
		}
		req.URL = u
	}
	if b.body != nil {
		s, err := b.engine.Execute(b.body, data)
		if err != nil {
			return probe.Request{}, fmt.Errorf("render body: %w", err)
		}
		req.Body = []byte(s)
	}
	if len(b.headers) > 0 {
		req.Header = b.base.Header.Clone()
		for k, t := range b.headers {
			v, err := b.engine.Execute(t, data)
			if err != nil {
				return probe.Request{}, fmt.Errorf("render header %s: %w", k, err)
			}
			req.Header.Set(k, v)
		}
	}
	return req, nil
}
