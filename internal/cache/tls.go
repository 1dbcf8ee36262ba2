package cache

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"

	"github.com/eugenenazirov/storeconf/internal/settings"
)

// ErrNoPeerCertificate is returned when the server completes a handshake
// without presenting a certificate.
var ErrNoPeerCertificate = errors.New("server presented no certificate")

// NewTLSConfig builds the client TLS configuration for a secure cache host.
// With verify_peer_name disabled the chain is still verified against the CA
// pool, only the host name check is skipped.
func NewTLSConfig(cfg settings.CacheConnectionSettings) (*tls.Config, error) {
	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS12,
		ServerName: cfg.Hostname(),
	}

	tlsSettings := cfg.TLS
	if tlsSettings == nil {
		return tlsConfig, nil
	}

	if tlsSettings.CertFile != "" {
		pair, err := tls.LoadX509KeyPair(tlsSettings.CertFile, tlsSettings.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("load client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{pair}
	}

	if tlsSettings.CAFile != "" {
		pool, err := loadCertPool(tlsSettings.CAFile)
		if err != nil {
			return nil, err
		}
		tlsConfig.RootCAs = pool
	}

	if !tlsSettings.VerifyPeerName {
		tlsConfig.InsecureSkipVerify = true
		tlsConfig.VerifyConnection = verifyChain(tlsConfig.RootCAs)
	}

	return tlsConfig, nil
}

func loadCertPool(path string) (*x509.CertPool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read CA file: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(data) {
		return nil, fmt.Errorf("no PEM certificates found in %s", path)
	}
	return pool, nil
}

// verifyChain checks the presented chain against roots without matching the
// server name. A nil pool falls back to the system roots.
func verifyChain(roots *x509.CertPool) func(tls.ConnectionState) error {
	return func(state tls.ConnectionState) error {
		if len(state.PeerCertificates) == 0 {
			return ErrNoPeerCertificate
		}
		opts := x509.VerifyOptions{
			Roots:         roots,
			Intermediates: x509.NewCertPool(),
		}
		for _, cert := range state.PeerCertificates[1:] {
			opts.Intermediates.AddCert(cert)
		}
		if _, err := state.PeerCertificates[0].Verify(opts); err != nil {
			return fmt.Errorf("verify redis server certificate: %w", err)
		}
		return nil
	}
}
