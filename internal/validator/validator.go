// Package validator holds the three schema validators used by the pipeline:
// DTO, envelope, and output representation. Each is constructed once at
// startup, never mutated afterwards, and safe for concurrent use.
package validator

import (
	"fmt"
	"math"
	"time"
)

// Issue is a single validation finding, addressed by field path.
type Issue struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// Result collects the findings of one validation call. A nil or empty issue
// list means the input passed.
type Result struct {
	Issues []Issue
}

// OK reports whether validation passed.
func (r *Result) OK() bool {
	return r == nil || len(r.Issues) == 0
}

// Error renders the issue list as a single error, or nil when valid.
func (r *Result) Error() error {
	if r.OK() {
		return nil
	}
	return fmt.Errorf("validation failed: %d issue(s), first: %s: %s",
		len(r.Issues), r.Issues[0].Path, r.Issues[0].Message)
}

func (r *Result) add(path, message string) {
	r.Issues = append(r.Issues, Issue{Path: path, Message: message})
}

func (r *Result) requireString(path, value string) {
	if value == "" {
		r.add(path, "must be a non-empty string")
	}
}

func (r *Result) requireFinite(path string, value float64) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		r.add(path, "must be a finite number")
	}
}

func (r *Result) requireRFC3339(path, value string) {
	if value == "" {
		r.add(path, "must be a non-empty ISO-8601 datetime")
		return
	}
	if _, err := time.Parse(time.RFC3339, value); err != nil {
		r.add(path, "must be a valid ISO-8601 datetime")
	}
}
