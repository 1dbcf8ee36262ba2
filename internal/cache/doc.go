// Package cache turns validated cache settings into go-redis client options,
// including the TLS client configuration described by the ssl_context section.
package cache
