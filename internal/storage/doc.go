// Package storage holds the resolved settings served by the API. Every
// replacement produces a new numbered snapshot so readers can tell reloads apart.
package storage
