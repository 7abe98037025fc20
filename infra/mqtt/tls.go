package mqtt

import (
	"crypto/sha256"
	"crypto/subtle"
	"crypto/tls"
	"crypto/x509"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Trust policies for the broker certificate.
const (
	// TLSStrict verifies the chain against the system roots or CABundle.
	TLSStrict = "strict"
	// TLSPinned accepts exactly the leaf certificate matching PinSHA256.
	TLSPinned = "pinned"
	// TLSInsecure skips every verification. It must be chosen explicitly.
	TLSInsecure = "insecure"
	// TLSDisabled uses plain TCP.
	TLSDisabled = "disabled"
)

// TLSConfig selects the trust policy and optional client certificate.
type TLSConfig struct {
	Mode       string `json:"mode"`
	CABundle   string `json:"ca_bundle"`
	ClientCert string `json:"client_cert"`
	ClientKey  string `json:"client_key"`
	// PinSHA256 is the hex SHA-256 of the broker leaf certificate (DER).
	// Colons are ignored.
	PinSHA256  string `json:"pin_sha256"`
	ServerName string `json:"server_name"`
}

// Validate checks the policy is complete.
func (t TLSConfig) Validate() error {
	switch t.Mode {
	case TLSStrict, TLSInsecure, TLSDisabled:
	case TLSPinned:
		if _, err := parsePin(t.PinSHA256); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown tls mode %q", t.Mode)
	}
	if (t.ClientCert == "") != (t.ClientKey == "") {
		return errors.New("tls client_cert and client_key must be set together")
	}
	return nil
}

// LoadTLSConfig builds the crypto/tls configuration for the trust policy.
// It returns nil when TLS is disabled.
func (c Config) LoadTLSConfig() (*tls.Config, error) {
	if c.TLSConfig != nil {
		return c.TLSConfig, nil
	}
	t := c.TLS
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if t.Mode == TLSDisabled {
		return nil, nil
	}
	serverName := t.ServerName
	if serverName == "" {
		serverName = c.Host
	}
	cfg := &tls.Config{ServerName: serverName, MinVersion: tls.VersionTLS12}

	if t.ClientCert != "" {
		cert, err := tls.LoadX509KeyPair(t.ClientCert, t.ClientKey)
		if err != nil {
			return nil, fmt.Errorf("load cert: %w", err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	}

	switch t.Mode {
	case TLSStrict:
		if t.CABundle != "" {
			caBytes, err := os.ReadFile(t.CABundle)
			if err != nil {
				return nil, fmt.Errorf("read ca: %w", err)
			}
			pool := x509.NewCertPool()
			if !pool.AppendCertsFromPEM(caBytes) {
				return nil, fmt.Errorf("no certificates in %s", t.CABundle)
			}
			cfg.RootCAs = pool
		}
	case TLSPinned:
		pin, _ := parsePin(t.PinSHA256)
		// Chain verification is replaced by the fingerprint check.
		cfg.InsecureSkipVerify = true //nolint:gosec
		cfg.VerifyPeerCertificate = verifyPin(pin)
	case TLSInsecure:
		cfg.InsecureSkipVerify = true //nolint:gosec
	}
	return cfg, nil
}

// Fingerprint returns the hex SHA-256 of a DER certificate, the format
// expected by PinSHA256.
func Fingerprint(der []byte) string {
	sum := sha256.Sum256(der)
	return hex.EncodeToString(sum[:])
}

func parsePin(s string) ([]byte, error) {
	s = strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), ":", ""))
	if s == "" {
		return nil, errors.New("tls pin_sha256 is required in pinned mode")
	}
	pin, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("tls pin_sha256: %w", err)
	}
	if len(pin) != sha256.Size {
		return nil, fmt.Errorf("tls pin_sha256: want %d bytes, got %d", sha256.Size, len(pin))
	}
	return pin, nil
}

func verifyPin(pin []byte) func([][]byte, [][]*x509.Certificate) error {
	return func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
		if len(rawCerts) == 0 {
			return fmt.Errorf("%w: no certificate presented", ErrPinMismatch)
		}
		sum := sha256.Sum256(rawCerts[0])
		if subtle.ConstantTimeCompare(sum[:], pin) != 1 {
			return fmt.Errorf("%w: got %s", ErrPinMismatch, hex.EncodeToString(sum[:]))
		}
		return nil
	}
}
