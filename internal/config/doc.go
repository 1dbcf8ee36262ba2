// Package config loads the runtime configuration of the storeconf process from
// multiple sources (YAML files, environment variables, CLI flags) with
// precedence: CLI flags > YAML config > Environment variables > Defaults.
// The connection settings it serves are resolved by package settings.
package config
