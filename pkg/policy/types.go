// Package policy gates the destructive half of a reset behind Rego
// policies. Built-in policies protect well-known system roots; user
// policies are loaded from the manifest and hot-reloaded on change.
package policy

import (
	"fmt"
	"strings"
	"time"
)

// Severity of a policy violation.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Policy is a single Rego policy evaluated against a purge request.
type Policy struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Rego        string                 `json:"rego"`
	Severity    Severity               `json:"severity"`
	Enabled     bool                   `json:"enabled"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
}

// Violation is one policy objection to a purge request.
type Violation struct {
	Policy   string `json:"policy"`
	Severity string `json:"severity"`
	Path     string `json:"path,omitempty"`
	Message  string `json:"message"`
}

// Result is the outcome of evaluating all policies against a request.
type Result struct {
	Allowed     bool        `json:"allowed"`
	Violations  []Violation `json:"violations,omitempty"`
	Warnings    []string    `json:"warnings,omitempty"`
	EvaluatedAt time.Time   `json:"evaluated_at"`
}

// Input is the document policies evaluate. Paths are the state paths
// the reset intends to delete.
type Input struct {
	Environment  string                 `json:"environment"`
	Paths        []string               `json:"paths"`
	AllowedRoots []string               `json:"allowed_roots,omitempty"`
	Context      map[string]interface{} `json:"context,omitempty"`
}

// DeniedError is returned when a purge request violates a blocking
// policy.
type DeniedError struct {
	Violations []Violation
}

func (e *DeniedError) Error() string {
	if len(e.Violations) == 0 {
		return "purge denied by policy"
	}
	msgs := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		if v.Path != "" {
			msgs[i] = fmt.Sprintf("%s: %s (%s)", v.Policy, v.Message, v.Path)
		} else {
			msgs[i] = fmt.Sprintf("%s: %s", v.Policy, v.Message)
		}
	}
	return "purge denied by policy: " + strings.Join(msgs, "; ")
}

// blocking reports whether a violation severity stops the reset.
func blocking(severity string) bool {
	return severity == string(SeverityError) || severity == string(SeverityCritical)
}
