// Package transport builds the HTTP client used for every request against
// the quiz-program administration API.
package transport

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"golang.org/x/net/http2"
)

// BuildHTTPClient creates the shared HTTP client. HTTP/2 is negotiated on
// TLS targets; plain-HTTP targets (local development, tests) stay on
// HTTP/1.1. caPath may be empty, in which case the system pool verifies the
// server.
func BuildHTTPClient(timeout time.Duration, caPath string) (*http.Client, error) {
	if timeout <= 0 {
		return nil, fmt.Errorf("timeout required (must be positive)")
	}

	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS12,
	}

	// Pinned CA for self-hosted deployments behind private certificates.
	if caPath != "" {
		caCert, err := os.ReadFile(caPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate: %w", err)
		}
		caCertPool := x509.NewCertPool()
		if !caCertPool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to parse CA certificate %s", caPath)
		}
		tlsConfig.RootCAs = caCertPool
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSClientConfig:       tlsConfig,
		TLSHandshakeTimeout:   10 * time.Second,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	if err := http2.ConfigureTransport(transport); err != nil {
		return nil, fmt.Errorf("failed to enable HTTP/2: %w", err)
	}

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}, nil
}
