// Package settings resolves the cache and object-store connection fragments
// into an immutable, validated Settings value. Sources (files, raw bytes,
// in-memory maps and environment variables) are deep-merged in order and
// validated once; failures are reported as *ConfigError naming the offending
// key.
package settings
