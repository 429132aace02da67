// Package config provides configuration loading and validation for the
// voice concierge relay. It handles YAML-based configuration with
// per-section validation; secrets are resolved from the environment.
package config
