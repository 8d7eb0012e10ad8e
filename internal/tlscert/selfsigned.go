package tlscert

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"log/slog"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"slices"
	"time"
)

const (
	selfSignedCertName = "server.crt"
	selfSignedKeyName  = "server.key"
	selfSignedLifetime = 365 * 24 * time.Hour
)

// devCerts generates and serves a self-signed certificate for local
// development. The pair is persisted under the configured directory and
// regenerated when missing, expired, or no longer covering the configured
// hosts.
type devCerts struct {
	certPath string
	keyPath  string
	logger   *slog.Logger
}

func newSelfSignedManager(cfg Config, logger *slog.Logger) (Manager, error) {
	hosts := cfg.SelfSignedHosts
	if len(hosts) == 0 {
		hosts = []string{"localhost", "127.0.0.1", "::1"}
	}

	if err := os.MkdirAll(cfg.SelfSignedCertDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create certificate directory: %w", err)
	}

	m := &devCerts{
		certPath: filepath.Join(cfg.SelfSignedCertDir, selfSignedCertName),
		keyPath:  filepath.Join(cfg.SelfSignedCertDir, selfSignedKeyName),
		logger:   logger,
	}

	reusable, err := m.existingPairUsable(hosts)
	if err != nil {
		return nil, err
	}
	if reusable {
		logger.Info("using existing self-signed certificate",
			slog.String("cert_path", m.certPath))
		return m, nil
	}

	logger.Info("generating self-signed certificate",
		slog.String("cert_path", m.certPath),
		slog.String("key_path", m.keyPath),
		slog.Any("hosts", hosts))
	if err := m.generate(hosts); err != nil {
		return nil, fmt.Errorf("failed to generate self-signed certificate: %w", err)
	}
	logger.Warn("self-signed certificate generated - not suitable for production",
		slog.String("cert_path", m.certPath))

	return m, nil
}

func (m *devCerts) GetTLSConfig() (*tls.Config, error) {
	pair, err := tls.LoadX509KeyPair(m.certPath, m.keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load self-signed certificate: %w", err)
	}
	return &tls.Config{
		MinVersion:   MinTLSVersion,
		Certificates: []tls.Certificate{pair},
	}, nil
}

func (m *devCerts) Description() string {
	return fmt.Sprintf("self-signed (cert=%s) - DEV ONLY", m.certPath)
}

func (m *devCerts) Shutdown() error { return nil }

// existingPairUsable reports whether the on-disk pair exists, parses, is
// within its validity window, and names exactly the configured hosts.
func (m *devCerts) existingPairUsable(hosts []string) (bool, error) {
	for _, p := range []string{m.certPath, m.keyPath} {
		info, err := os.Stat(p)
		if err != nil || info.IsDir() {
			return false, nil
		}
	}

	certPEM, err := os.ReadFile(m.certPath)
	if err != nil {
		return false, fmt.Errorf("failed to read self-signed certificate: %w", err)
	}
	block, _ := pem.Decode(certPEM)
	if block == nil || block.Type != "CERTIFICATE" {
		return false, fmt.Errorf("invalid certificate PEM in %s", m.certPath)
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return false, fmt.Errorf("failed to parse self-signed certificate: %w", err)
	}

	now := time.Now()
	if now.Before(cert.NotBefore) || now.After(cert.NotAfter) {
		return false, nil
	}
	if !certCoversHosts(cert, hosts) {
		return false, nil
	}
	if _, err := tls.LoadX509KeyPair(m.certPath, m.keyPath); err != nil {
		return false, nil
	}
	return true, nil
}

func (m *devCerts) generate(hosts []string) error {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return fmt.Errorf("failed to generate ECDSA key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return fmt.Errorf("failed to generate serial number: %w", err)
	}

	now := time.Now()
	template := x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			Organization: []string{"MySQL GraphQL (Self-Signed)"},
			CommonName:   "localhost",
		},
		// Backdate NotBefore to tolerate clock skew between the server
		// and its clients.
		NotBefore:             now.Add(-5 * time.Minute),
		NotAfter:              now.Add(selfSignedLifetime),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}
	for _, host := range hosts {
		if ip := net.ParseIP(host); ip != nil {
			template.IPAddresses = append(template.IPAddresses, ip)
		} else {
			template.DNSNames = append(template.DNSNames, host)
		}
	}

	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return fmt.Errorf("failed to create certificate: %w", err)
	}

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	if err := os.WriteFile(m.certPath, certPEM, 0644); err != nil {
		return fmt.Errorf("failed to write certificate: %w", err)
	}

	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return fmt.Errorf("failed to marshal private key: %w", err)
	}
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})
	if err := os.WriteFile(m.keyPath, keyPEM, 0600); err != nil {
		return fmt.Errorf("failed to write private key: %w", err)
	}
	return nil
}

// certCoversHosts compares the certificate's SANs against the configured
// hosts as sets, so a host removed from config also forces regeneration.
func certCoversHosts(cert *x509.Certificate, hosts []string) bool {
	var wantDNS, wantIPs []string
	for _, host := range hosts {
		if ip := net.ParseIP(host); ip != nil {
			wantIPs = append(wantIPs, ip.String())
		} else {
			wantDNS = append(wantDNS, host)
		}
	}

	haveDNS := slices.Clone(cert.DNSNames)
	haveIPs := make([]string, 0, len(cert.IPAddresses))
	for _, ip := range cert.IPAddresses {
		haveIPs = append(haveIPs, ip.String())
	}

	slices.Sort(wantDNS)
	slices.Sort(wantIPs)
	slices.Sort(haveDNS)
	slices.Sort(haveIPs)
	return slices.Equal(wantDNS, haveDNS) && slices.Equal(wantIPs, haveIPs)
}
