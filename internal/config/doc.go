// Package config loads and validates the server configuration from YAML
// and supports hot reload through fsnotify. Secrets (the API key) are
// resolved from the environment, never stored in the file.
package config
