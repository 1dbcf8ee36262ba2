// Package application provides application initialization and dependency wiring.
// It resolves the connection settings once at startup, builds the HTTP API
// around them and runs connectivity checks through the cache and object store
// client factories, keeping the main package focused on CLI parsing and
// orchestration.
package application
