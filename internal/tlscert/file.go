package tlscert

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"os"
)

// diskCerts serves a certificate pair from operator-provided files. The pair
// is re-read on every handshake so rotated files take effect without a
// restart.
type diskCerts struct {
	certPath string
	keyPath  string
	logger   *slog.Logger
}

func newFileManager(cfg Config, logger *slog.Logger) (Manager, error) {
	if cfg.CertFile == "" {
		return nil, fmt.Errorf("tls_cert_file is required when tls_cert_mode=file")
	}
	if cfg.KeyFile == "" {
		return nil, fmt.Errorf("tls_key_file is required when tls_cert_mode=file")
	}

	if err := checkPEMFile("certificate", cfg.CertFile); err != nil {
		return nil, fmt.Errorf("invalid certificate file: %w", err)
	}
	if err := checkPEMFile("key", cfg.KeyFile); err != nil {
		return nil, fmt.Errorf("invalid key file: %w", err)
	}
	if err := requirePrivateKeyPerms(cfg.KeyFile); err != nil {
		return nil, fmt.Errorf("insecure key file permissions: %w", err)
	}

	// Parse once up front so a broken pair fails at startup, not on the
	// first handshake.
	if _, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile); err != nil {
		return nil, fmt.Errorf("failed to load certificate: %w", err)
	}

	return &diskCerts{certPath: cfg.CertFile, keyPath: cfg.KeyFile, logger: logger}, nil
}

func (d *diskCerts) GetTLSConfig() (*tls.Config, error) {
	return &tls.Config{
		MinVersion: MinTLSVersion,
		GetCertificate: func(_ *tls.ClientHelloInfo) (*tls.Certificate, error) {
			pair, err := tls.LoadX509KeyPair(d.certPath, d.keyPath)
			if err != nil {
				d.logger.Error("failed to reload certificate",
					slog.String("cert_file", d.certPath),
					slog.String("error", err.Error()))
				return nil, err
			}
			return &pair, nil
		},
	}, nil
}

func (d *diskCerts) Description() string {
	return fmt.Sprintf("file-based (cert=%s, key=%s)", d.certPath, d.keyPath)
}

func (d *diskCerts) Shutdown() error { return nil }

// requirePrivateKeyPerms rejects key files readable by group or others.
func requirePrivateKeyPerms(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if perm := info.Mode().Perm(); perm&0077 != 0 {
		return fmt.Errorf("key file has insecure permissions %o (should be 0600 or 0400)", perm)
	}
	return nil
}
