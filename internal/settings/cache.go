package settings

import (
	"fmt"
	"math"
	"net"
	"strconv"
	"strings"
	"time"
)

// Transport schemes accepted in the cache host.
const (
	SchemeTCP  = "tcp"
	SchemeTLS  = "tls"
	SchemeUnix = "unix"
)

var cacheSchemes = map[string]string{
	"":       SchemeTCP,
	"tcp":    SchemeTCP,
	"redis":  SchemeTCP,
	"tls":    SchemeTLS,
	"ssl":    SchemeTLS,
	"rediss": SchemeTLS,
	"unix":   SchemeUnix,
}

// CacheConnectionSettings is the validated redis section.
type CacheConnectionSettings struct {
	// Host as configured, optionally prefixed with a scheme such as tls://.
	Host     string
	Port     int
	Password string
	DBIndex  int
	Timeout  time.Duration
	// TLS is nil when no ssl_context was configured.
	TLS *TLSSettings
}

// TLSSettings carries the client side of the TLS handshake.
type TLSSettings struct {
	CertFile       string
	KeyFile        string
	CAFile         string
	VerifyPeerName bool
}

// Scheme returns the normalized transport: tcp, tls or unix.
func (c CacheConnectionSettings) Scheme() string {
	scheme, _ := splitHost(c.Host)
	if normalized, ok := cacheSchemes[scheme]; ok {
		return normalized
	}
	return scheme
}

// Secure reports whether the connection must use TLS.
func (c CacheConnectionSettings) Secure() bool {
	return c.Scheme() == SchemeTLS
}

// Hostname returns the host without scheme. IPv6 brackets are removed.
func (c CacheConnectionSettings) Hostname() string {
	_, host := splitHost(c.Host)
	if c.Scheme() == SchemeUnix {
		return host
	}
	return strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
}

// Address returns host:port for network transports and the socket path for unix.
func (c CacheConnectionSettings) Address() string {
	if c.Scheme() == SchemeUnix {
		return c.Hostname()
	}
	return net.JoinHostPort(c.Hostname(), strconv.Itoa(c.Port))
}

// Equal compares field by field, including the TLS settings behind the pointer.
func (c CacheConnectionSettings) Equal(other CacheConnectionSettings) bool {
	left, right := c, other
	left.TLS, right.TLS = nil, nil
	if left != right {
		return false
	}
	if c.TLS == nil || other.TLS == nil {
		return c.TLS == other.TLS
	}
	return *c.TLS == *other.TLS
}

func (c CacheConnectionSettings) clone() CacheConnectionSettings {
	out := c
	if c.TLS != nil {
		tlsCopy := *c.TLS
		out.TLS = &tlsCopy
	}
	return out
}

// maxTimeoutSeconds is the largest timeout representable as a time.Duration.
var maxTimeoutSeconds = math.Floor(float64(math.MaxInt64) / float64(time.Second))

// checkHostAddress accepts a host name, an IPv4 address or an IPv6 address
// with or without brackets. The port belongs in its own key.
func checkHostAddress(address string) error {
	if strings.ContainsAny(address, "/?#") {
		return fmt.Errorf("%q is not a host name or address", address)
	}
	if inner, ok := strings.CutPrefix(address, "["); ok {
		inner, ok = strings.CutSuffix(inner, "]")
		if !ok || net.ParseIP(inner) == nil {
			return fmt.Errorf("%q is not a bracketed IPv6 address; set the port under port", address)
		}
		return nil
	}
	if strings.Contains(address, ":") && net.ParseIP(address) == nil {
		return fmt.Errorf("%q includes a port; set it under port", address)
	}
	return nil
}

func splitHost(host string) (string, string) {
	scheme, rest, ok := strings.Cut(host, "://")
	if !ok {
		return "", host
	}
	return strings.ToLower(scheme), rest
}

func parseCache(s section) (CacheConnectionSettings, error) {
	var out CacheConnectionSettings

	host, err := s.requireStr("host")
	if err != nil {
		return out, err
	}
	out.Host = host

	scheme, address := splitHost(host)
	normalized, known := cacheSchemes[scheme]
	if !known {
		return out, s.fail(ErrInvalidValue, "host", "unsupported transport scheme %q", scheme)
	}
	if address == "" {
		return out, s.fail(ErrInvalidValue, "host", "no address after scheme %q", scheme)
	}
	if normalized != SchemeUnix {
		if err := checkHostAddress(address); err != nil {
			return out, s.fail(ErrInvalidValue, "host", "%v", err)
		}
	}

	port, hasPort, err := s.integer("port")
	if err != nil {
		return out, err
	}
	switch {
	case normalized == SchemeUnix:
		if hasPort && (port < 0 || port > 65535) {
			return out, s.fail(ErrInvalidRange, "port", "must be between 0 and 65535; got %d", port)
		}
	case !hasPort:
		return out, s.fail(ErrMissingField, "port", "required for %s transport", normalized)
	case port < 1 || port > 65535:
		return out, s.fail(ErrInvalidRange, "port", "must be between 1 and 65535; got %d", port)
	}
	out.Port = port

	if out.Password, _, err = s.str("password"); err != nil {
		return out, err
	}

	dbIndex, _, err := s.integer("dbindex")
	if err != nil {
		return out, err
	}
	if dbIndex < 0 {
		return out, s.fail(ErrInvalidRange, "dbindex", "must be >= 0; got %d", dbIndex)
	}
	out.DBIndex = dbIndex

	timeout, _, err := s.number("timeout")
	if err != nil {
		return out, err
	}
	if timeout < 0 || timeout > maxTimeoutSeconds {
		return out, s.fail(ErrInvalidRange, "timeout", "must be between 0 and %.0f seconds; got %v", maxTimeoutSeconds, timeout)
	}
	out.Timeout = time.Duration(timeout * float64(time.Second))

	tlsSection, hasTLS, err := s.child("ssl_context")
	if err != nil {
		return out, err
	}
	if hasTLS {
		tlsSettings, present, err := parseTLS(tlsSection)
		if err != nil {
			return out, err
		}
		if present {
			if normalized != SchemeTLS {
				return out, s.fail(ErrInvalidValue, "host", "ssl_context is set but %q does not use a secure transport", host)
			}
			out.TLS = tlsSettings
		}
	}

	return out, nil
}

func parseTLS(s section) (*TLSSettings, bool, error) {
	out := &TLSSettings{VerifyPeerName: true}
	var present, ok bool
	var err error

	if out.CertFile, ok, err = s.str("local_cert"); err != nil {
		return nil, false, err
	}
	present = present || ok
	if out.KeyFile, ok, err = s.str("local_pk"); err != nil {
		return nil, false, err
	}
	present = present || ok
	if out.CAFile, ok, err = s.str("cafile"); err != nil {
		return nil, false, err
	}
	present = present || ok

	verify, ok, err := s.boolean("verify_peer_name")
	if err != nil {
		return nil, false, err
	}
	if ok {
		out.VerifyPeerName = verify
		present = true
	}

	if out.CertFile != "" && out.KeyFile == "" {
		return nil, false, s.fail(ErrMissingField, "local_pk", "required when local_cert is set")
	}
	if out.KeyFile != "" && out.CertFile == "" {
		return nil, false, s.fail(ErrMissingField, "local_cert", "required when local_pk is set")
	}

	return out, present, nil
}
