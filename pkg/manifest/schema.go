package manifest

// manifestSchema is the CUE schema every .cue manifest must satisfy.
// YAML manifests skip CUE and rely on struct validation only.
const manifestSchema = `
#Manifest: {
	// Compose project name. Lowercase, as compose requires.
	environment: string & =~"^[a-z0-9][a-z0-9_-]*$"

	compose_file?: string

	// State directories purged on reset, in order.
	state_paths: [...string]

	// Re-create services after purge. Defaults to true.
	rebuild?: bool

	remote?: {
		host:  string
		port?: int & >0 & <65536
		user:  string
		private_key_path?:   string
		known_hosts_path?:   string
		connection_timeout?: int
	}

	hooks?: {
		pre_teardown?: string
		post_purge?:   string
		post_rebuild?: string
	}

	policy_paths?: [...string]

	history_db?: string
}
`
