// Package config handles loading and validating the quad configuration file.
//
// # Configuration Discovery
//
// The Load function follows this resolution order:
//
//  1. If a path is explicitly provided, use it
//  2. Otherwise, use ~/.config/quad/config.toml (default)
//  3. If the config file doesn't exist, fall back to Default()
//  4. If the file exists but fields are missing/empty, use defaults
//
// A file that exists but fails to parse is an error; callers treat it as
// fatal.
//
// # Default Values
//
//   - Backend mode: simulated
//   - Simulator latency scale: 1 (contract latencies)
//   - Push interval: 5s, startup delay: 1s
//   - Storage: file driver under ~/.local/share/quad/state
//   - Log directory: ~/.local/share/quad/logs
//   - Metrics endpoint: disabled
//
// # TOML Format
//
//	[backend]
//	mode = "http"                  # or "simulated"
//	url = "portal.example.ac.id"
//	student_id = "2106701234"
//	token_secret = "..."           # or QUAD_TOKEN_SECRET
//
//	[simulator]
//	seed = 42
//	latency_scale = 0.5
//	success_rates = { checkout_book = 0.5 }
//
//	[push]
//	interval = "5s"
//	startup_delay = "1s"
//
//	[storage]
//	driver = "sqlite"              # file, sqlite or memory
//	path = "~/.local/share/quad/state.db"
//
//	[metrics]
//	listen = "127.0.0.1:9464"
//
//	[log]
//	dir = "~/.local/share/quad/logs"
//
// Durations use Go syntax ("750ms", "2s"). Tilde expansion is performed for
// storage.path and log.dir.
//
// # Validation
//
// Validate rejects an unknown backend mode or storage driver, probabilities
// outside [0, 1] and non-positive push intervals. Selecting the http backend
// without url, student_id and token_secret returns ErrMissingCredentials:
// the application refuses to start rather than run against an undefined
// backend.
package config
