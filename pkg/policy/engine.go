package policy

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/open-policy-agent/opa/ast"
	"github.com/open-policy-agent/opa/rego"
	"github.com/rs/zerolog"
)

// Gate evaluates Rego policies against purge requests. It satisfies
// the orchestrator's PurgeGate interface.
type Gate struct {
	mu           sync.RWMutex
	policies     map[string]*compiledPolicy
	allowedRoots []string
	userPaths    []string
	logger       zerolog.Logger
}

// compiledPolicy is a parsed policy ready for evaluation.
type compiledPolicy struct {
	policy   *Policy
	module   *ast.Module
	compiled time.Time
}

// NewGate creates a policy gate with the built-in policies loaded.
// allowedRoots, when non-empty, restricts purge targets to paths under
// one of the roots.
func NewGate(logger zerolog.Logger, allowedRoots []string) (*Gate, error) {
	g := &Gate{
		policies:     make(map[string]*compiledPolicy),
		allowedRoots: allowedRoots,
		logger:       logger.With().Str("component", "policy-gate").Logger(),
	}

	builtin := GetBuiltinPolicies()
	for i := range builtin {
		if err := g.compileAndStore(&builtin[i]); err != nil {
			return nil, fmt.Errorf("failed to compile built-in policy %s: %w", builtin[i].Name, err)
		}
	}

	g.logger.Debug().Int("count", len(builtin)).Msg("Built-in policies loaded")
	return g, nil
}

// LoadPolicies loads user policies from files or directories and
// remembers the paths so Reload can pick up changes.
func (g *Gate) LoadPolicies(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return nil
	}

	loader := NewLoader(g.logger)
	policies, err := loader.LoadFromPaths(ctx, paths)
	if err != nil {
		return fmt.Errorf("failed to load policies: %w", err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	for i := range policies {
		if err := g.compileAndStore(&policies[i]); err != nil {
			return fmt.Errorf("failed to compile policy %s: %w", policies[i].Name, err)
		}
	}
	g.userPaths = paths

	g.logger.Info().Int("count", len(policies)).Msg("Policies loaded")
	return nil
}

// Reload replaces user policies with a fresh load, keeping built-ins.
// Used by the loader's file watcher.
func (g *Gate) Reload(policies []Policy) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	fresh := make(map[string]*compiledPolicy)
	for i := range g.policies {
		cp := g.policies[i]
		if isBuiltinName(cp.policy.Name) {
			fresh[cp.policy.Name] = cp
		}
	}
	g.policies = fresh

	for i := range policies {
		if err := g.compileAndStore(&policies[i]); err != nil {
			return fmt.Errorf("failed to compile policy %s: %w", policies[i].Name, err)
		}
	}

	g.logger.Info().Int("count", len(policies)).Msg("Policies reloaded")
	return nil
}

// CheckPurge evaluates all policies against the purge request and
// returns a DeniedError when any blocking violation fires. Warnings
// are logged and do not block.
func (g *Gate) CheckPurge(ctx context.Context, environmentID string, paths []string) error {
	input := &Input{
		Environment:  environmentID,
		Paths:        paths,
		AllowedRoots: g.allowedRoots,
		Context: map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
			"operation": "purge",
		},
	}

	result, err := g.Evaluate(ctx, input)
	if err != nil {
		return fmt.Errorf("policy evaluation failed: %w", err)
	}

	var denials []Violation
	for _, v := range result.Violations {
		if blocking(v.Severity) {
			denials = append(denials, v)
			continue
		}
		g.logger.Warn().
			Str("policy", v.Policy).
			Str("path", v.Path).
			Msg(v.Message)
	}

	if len(denials) > 0 {
		return &DeniedError{Violations: denials}
	}
	return nil
}

// Evaluate runs every enabled policy against the input and collects
// violations.
func (g *Gate) Evaluate(ctx context.Context, input *Input) (*Result, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var violations []Violation
	var warnings []string

	for _, cp := range g.policies {
		if !cp.policy.Enabled {
			continue
		}

		found, err := g.evaluatePolicy(ctx, cp, input)
		if err != nil {
			g.logger.Error().Err(err).
				Str("policy", cp.policy.Name).
				Msg("Policy evaluation failed")
			warnings = append(warnings, fmt.Sprintf("policy %s evaluation failed: %v", cp.policy.Name, err))
			continue
		}
		violations = append(violations, found...)
	}

	allowed := true
	for i := range violations {
		if blocking(violations[i].Severity) {
			allowed = false
			break
		}
	}

	return &Result{
		Allowed:     allowed,
		Violations:  violations,
		Warnings:    warnings,
		EvaluatedAt: time.Now(),
	}, nil
}

// ListPolicies returns all loaded policies.
func (g *Gate) ListPolicies() []Policy {
	g.mu.RLock()
	defer g.mu.RUnlock()

	policies := make([]Policy, 0, len(g.policies))
	for _, cp := range g.policies {
		policies = append(policies, *cp.policy)
	}
	return policies
}

// evaluatePolicy queries the deny set of a single policy.
func (g *Gate) evaluatePolicy(ctx context.Context, cp *compiledPolicy, input *Input) ([]Violation, error) {
	query := fmt.Sprintf("data.%s.deny", extractPackageName(cp.policy.Rego))

	r := rego.New(
		rego.Module(cp.policy.Name, cp.policy.Rego),
		rego.Query(query),
		rego.Input(input),
	)

	results, err := r.Eval(ctx)
	if err != nil {
		return nil, fmt.Errorf("policy evaluation error: %w", err)
	}

	var violations []Violation
	for _, result := range results {
		if len(result.Expressions) == 0 {
			continue
		}
		denySet, ok := result.Expressions[0].Value.([]interface{})
		if !ok {
			continue
		}
		for _, d := range denySet {
			violations = append(violations, g.makeViolation(cp.policy, d))
		}
	}
	return violations, nil
}

// makeViolation converts a deny result into a Violation.
func (g *Gate) makeViolation(policy *Policy, result interface{}) Violation {
	violation := Violation{
		Policy:   policy.Name,
		Severity: string(policy.Severity),
	}

	switch v := result.(type) {
	case string:
		violation.Message = v
	case map[string]interface{}:
		if msg, ok := v["message"].(string); ok {
			violation.Message = msg
		}
		if sev, ok := v["severity"].(string); ok {
			violation.Severity = sev
		}
		if path, ok := v["path"].(string); ok {
			violation.Path = path
		}
	default:
		violation.Message = fmt.Sprintf("%v", result)
	}
	return violation
}

// compileAndStore parses a policy and registers it. Callers hold the
// write lock.
func (g *Gate) compileAndStore(policy *Policy) error {
	module, err := ast.ParseModule(policy.Name, policy.Rego)
	if err != nil {
		return fmt.Errorf("failed to parse policy: %w", err)
	}

	g.policies[policy.Name] = &compiledPolicy{
		policy:   policy,
		module:   module,
		compiled: time.Now(),
	}

	g.logger.Debug().Str("policy", policy.Name).Msg("Policy compiled")
	return nil
}

// extractPackageName extracts the package name from Rego source.
func extractPackageName(src string) string {
	for _, line := range strings.Split(src, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "package ") {
			parts := strings.Fields(trimmed)
			if len(parts) >= 2 {
				return parts[1]
			}
		}
	}
	return "stackreset.policies"
}

// isBuiltinName reports whether name belongs to a built-in policy.
func isBuiltinName(name string) bool {
	for _, p := range GetBuiltinPolicies() {
		if p.Name == name {
			return true
		}
	}
	return false
}
