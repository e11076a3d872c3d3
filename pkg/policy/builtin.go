package policy

import "time"

// GetBuiltinPolicies returns the policies compiled into the binary.
// They cannot be disabled from a manifest; they exist so a typo in a
// state path never deletes a system directory.
func GetBuiltinPolicies() []Policy {
	now := time.Now()
	return []Policy{
		{
			Name:        "protected-roots",
			Description: "Deny purging well-known system directories",
			Severity:    SeverityCritical,
			Enabled:     true,
			CreatedAt:   now,
			UpdatedAt:   now,
			Rego: `package stackreset.protected

# Purge targets must never be a system root or live under one
# shallowly enough to take the root with them.

protected := {"/", "/home", "/etc", "/usr", "/bin", "/sbin", "/var", "/root", "/boot"}

deny[msg] {
	some i
	path := input.paths[i]
	protected[path]
	msg := {
		"message": "path is a protected system directory",
		"path": path,
		"severity": "critical",
	}
}

deny[msg] {
	some i
	path := input.paths[i]
	path == ""
	msg := {
		"message": "empty state path",
		"path": path,
		"severity": "critical",
	}
}
`,
		},
		{
			Name:        "allowed-roots",
			Description: "Deny purge paths outside the allowed roots, when roots are configured",
			Severity:    SeverityError,
			Enabled:     true,
			CreatedAt:   now,
			UpdatedAt:   now,
			Rego: `package stackreset.scope

deny[msg] {
	count(input.allowed_roots) > 0
	some i
	path := input.paths[i]
	not under_allowed_root(path)
	msg := {
		"message": "path is outside the allowed purge roots",
		"path": path,
		"severity": "error",
	}
}

under_allowed_root(path) {
	some j
	root := input.allowed_roots[j]
	startswith(path, root)
}
`,
		},
		{
			Name:        "relative-paths",
			Description: "Warn about relative purge paths",
			Severity:    SeverityWarning,
			Enabled:     true,
			CreatedAt:   now,
			UpdatedAt:   now,
			Rego: `package stackreset.relative

deny[msg] {
	some i
	path := input.paths[i]
	not startswith(path, "/")
	msg := {
		"message": "state path is relative; resolution depends on the working directory",
		"path": path,
		"severity": "warning",
	}
}
`,
		},
	}
}
