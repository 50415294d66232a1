// Package config loads application configuration from CREWSYNC_* environment
// variables with sensible defaults for local development.
package config
