// Package shadow replays read requests against the legacy Express backend and this
// service and reports where their responses diverge.
package shadow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"reflect"
	"strings"
	"time"
)

// Target is one endpoint to compare.
type Target struct {
	Method   string `json:"method"`
	Path     string `json:"path"`
	Critical bool   `json:"critical"`
	// Ignore lists top-level or dotted JSON fields dropped before comparing, e.g. "meta.processing_time_ms".
	Ignore []string `json:"ignore"`
}

type targetsFile struct {
	Targets []Target `json:"targets"`
}

// Endpoint is a base URL plus the bearer token sent with every request.
type Endpoint struct {
	BaseURL string
	Token   string
}

// Result is the outcome of comparing one target.
type Result struct {
	Target         Target
	LegacyStatus   int
	GoStatus       int
	StatusMatch    bool
	BodyMatch      bool
	Err            error
	LegacyDuration time.Duration
	GoDuration     time.Duration
}

// Diverged reports whether the target produced an error or a mismatch.
func (r Result) Diverged() bool {
	return r.Err != nil || !r.StatusMatch || !r.BodyMatch
}

// Summary counts divergences by severity.
type Summary struct {
	Breaking int
	Optional int
}

// LoadTargets reads a targets file of the form {"targets": [...]}.
func LoadTargets(path string) ([]Target, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file targetsFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(file.Targets) == 0 {
		return nil, fmt.Errorf("no targets defined in %s", path)
	}
	return file.Targets, nil
}

// Comparer sends each target to both endpoints.
type Comparer struct {
	client *http.Client
	legacy Endpoint
	next   Endpoint
}

// NewComparer builds a comparer. A nil client uses a 5s timeout client.
func NewComparer(client *http.Client, legacy, next Endpoint) *Comparer {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &Comparer{client: client, legacy: legacy, next: next}
}

// Run compares every target in order.
func (c *Comparer) Run(ctx context.Context, targets []Target) ([]Result, Summary) {
	results := make([]Result, 0, len(targets))
	var summary Summary
	for _, t := range targets {
		res := c.compare(ctx, t)
		if res.Diverged() {
			if t.Critical {
				summary.Breaking++
			} else {
				summary.Optional++
			}
		}
		results = append(results, res)
	}
	return results, summary
}

func (c *Comparer) compare(ctx context.Context, t Target) Result {
	res := Result{Target: t}

	goStatus, goBody, goDur, err := c.fetch(ctx, c.next, t)
	res.GoDuration = goDur
	if err != nil {
		res.Err = fmt.Errorf("go request failed: %w", err)
		return res
	}
	legacyStatus, legacyBody, legacyDur, err := c.fetch(ctx, c.legacy, t)
	res.LegacyDuration = legacyDur
	if err != nil {
		res.Err = fmt.Errorf("legacy request failed: %w", err)
		return res
	}

	res.GoStatus = goStatus
	res.LegacyStatus = legacyStatus
	res.StatusMatch = goStatus == legacyStatus
	res.BodyMatch = bodiesEqual(goBody, legacyBody, t.Ignore)
	return res
}

func (c *Comparer) fetch(ctx context.Context, ep Endpoint, t Target) (int, []byte, time.Duration, error) {
	method := strings.ToUpper(strings.TrimSpace(t.Method))
	if method == "" {
		method = http.MethodGet
	}
	path := t.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(ep.BaseURL, "/")+path, nil)
	if err != nil {
		return 0, nil, 0, err
	}
	if ep.Token != "" {
		req.Header.Set("Authorization", "Bearer "+ep.Token)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, 0, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	elapsed := time.Since(start)
	if err != nil {
		return 0, nil, elapsed, fmt.Errorf("read body: %w", err)
	}
	return resp.StatusCode, body, elapsed, nil
}

func bodiesEqual(a, b []byte, ignore []string) bool {
	if len(ignore) == 0 && bytes.Equal(bytes.TrimSpace(a), bytes.TrimSpace(b)) {
		return true
	}

	var aj, bj interface{}
	if err := json.Unmarshal(a, &aj); err != nil {
		return false
	}
	if err := json.Unmarshal(b, &bj); err != nil {
		return false
	}
	for _, field := range ignore {
		drop(aj, strings.Split(field, "."))
		drop(bj, strings.Split(field, "."))
	}
	return reflect.DeepEqual(normalize(aj), normalize(bj))
}

func drop(v interface{}, path []string) {
	obj, ok := v.(map[string]interface{})
	if !ok || len(path) == 0 {
		return
	}
	if len(path) == 1 {
		delete(obj, path[0])
		return
	}
	drop(obj[path[0]], path[1:])
}

// normalize folds whole floats into int64 so 3 and 3.0 compare equal.
func normalize(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		for k, item := range val {
			val[k] = normalize(item)
		}
		return val
	case []interface{}:
		for i, item := range val {
			val[i] = normalize(item)
		}
		return val
	case float64:
		if val == float64(int64(val)) {
			return int64(val)
		}
		return val
	default:
		return v
	}
}

// WriteReport prints a human readable report.
func WriteReport(w io.Writer, results []Result, summary Summary) {
	fmt.Fprintln(w, "Shadow Compare Report")
	fmt.Fprintln(w, "=====================")
	for _, res := range results {
		status := "OK"
		switch {
		case res.Err != nil:
			status = "ERROR"
		case res.Diverged():
			status = "DIFF"
		}
		fmt.Fprintf(w, "[%s] %s %s\n", status, res.Target.Method, res.Target.Path)
		fmt.Fprintf(w, "  Go Status: %d (%s)\n", res.GoStatus, res.GoDuration)
		fmt.Fprintf(w, "  Legacy Status: %d (%s)\n", res.LegacyStatus, res.LegacyDuration)
		if res.Err != nil {
			fmt.Fprintf(w, "  Error: %v\n", res.Err)
			continue
		}
		fmt.Fprintf(w, "  Status match: %t | Body match: %t | Critical: %t\n", res.StatusMatch, res.BodyMatch, res.Target.Critical)
	}
	fmt.Fprintf(w, "Breaking diffs: %d, Optional diffs: %d\n", summary.Breaking, summary.Optional)
}
