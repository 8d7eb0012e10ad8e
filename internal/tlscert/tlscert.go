// Package tlscert supplies server certificates, either loaded from PEM files
// or generated on the fly for local development.
package tlscert

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"os"
)

// MinTLSVersion is the minimum supported TLS version for the server.
const MinTLSVersion = tls.VersionTLS13

// CertMode selects how the server obtains its certificate.
type CertMode string

const (
	// CertModeFile loads a certificate and key from PEM files on disk.
	CertModeFile CertMode = "file"
	// CertModeSelfSigned generates an ephemeral certificate at startup.
	CertModeSelfSigned CertMode = "selfsigned"
)

// Config holds TLS certificate configuration.
type Config struct {
	Mode CertMode

	// File mode
	CertFile string
	KeyFile  string

	// Self-signed mode
	SelfSignedCertDir string
	SelfSignedHosts   []string // "localhost", "127.0.0.1", etc.
}

// Manager produces the tls.Config an HTTP server listens with.
type Manager interface {
	// GetTLSConfig returns a tls.Config ready for use with http.Server
	GetTLSConfig() (*tls.Config, error)

	// Description returns a human-readable description of the cert source
	Description() string

	// Shutdown performs cleanup (if needed)
	Shutdown() error
}

// NewManager returns the certificate manager for the configured mode.
func NewManager(cfg Config, logger *slog.Logger) (Manager, error) {
	switch cfg.Mode {
	case CertModeFile:
		return newFileManager(cfg, logger)
	case CertModeSelfSigned:
		return newSelfSignedManager(cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported TLS certificate mode: %s (valid modes: file, selfsigned)", cfg.Mode)
	}
}

// checkPEMFile verifies that a certificate or key file exists, is a regular
// file, and is non-empty.
func checkPEMFile(kind, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%s file not accessible: %w", kind, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s path %s is a directory", kind, path)
	}
	if info.Size() == 0 {
		return fmt.Errorf("%s file %s is empty", kind, path)
	}
	return nil
}
