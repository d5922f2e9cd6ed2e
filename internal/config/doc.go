// Package config loads service configuration from JSON or YAML files with
// HERALD_* environment variable overlays. Defaults are safe for local use.
package config
