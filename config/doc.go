// Package config loads bookmind settings from an optional YAML, TOML or JSON
// file and BOOKMIND_* environment variables, over built-in defaults.
package config
