// Package config handles configuration loading, parsing, and validation
// from various sources (environment variables, files). It provides type-safe
// access to the generation defaults, task tuning, storage backend and host
// settings while keeping configuration details separate from the core.
package config
