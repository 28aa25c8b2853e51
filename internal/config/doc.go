// Package config loads, normalizes, and validates beacon configuration.
//
// A single TOML file configures both the field agent daemon and the
// coordination server; each binary reads only the sections it needs. Path
// fields support ~ expansion and are resolved to absolute paths during Load.
// Missing values fall back to the defaults in defaults.go so a partial config
// file stays usable.
package config
