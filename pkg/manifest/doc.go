// Package manifest loads and validates environment manifests. A
// manifest declares the compose project, the state directories a reset
// purges, and optional hooks, policies, and a remote state host. CUE
// manifests are validated against an embedded schema; YAML manifests
// are supported for the common case. Both decode into the same
// Manifest struct and pass the same field validation.
package manifest
