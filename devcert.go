// Copyright 2025 The Rivaas Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package wayfare

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"
)

// devCertLifetime mirrors the teacher's own test fixtures: short-lived,
// regenerated on every cold cache miss rather than renewed in place.
const devCertLifetime = 90 * 24 * time.Hour

// devCertDir returns the directory self-signed development credentials are
// cached under (§4.10 step 6): $XDG_CACHE_HOME/wayfare/devcert, falling
// back to os.UserCacheDir.
func devCertDir() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("wayfare: resolving cache dir: %w", err)
	}
	return filepath.Join(base, "wayfare", "devcert"), nil
}

// ensureDevCredentials returns a cert/key pair suitable for HTTP/2 TLS in
// development: a cached pair reused while still within its validity window,
// or a freshly generated self-signed leaf otherwise. Production never calls
// this; WithTLSCredentials is mandatory there (config.validate).
func ensureDevCredentials() (certFile, keyFile string, err error) {
	dir, err := devCertDir()
	if err != nil {
		return "", "", err
	}
	certFile = filepath.Join(dir, "cert.pem")
	keyFile = filepath.Join(dir, "key.pem")

	if devCredentialsValid(certFile) {
		return certFile, keyFile, nil
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", "", fmt.Errorf("wayfare: creating devcert dir: %w", err)
	}
	if err := generateDevCredentials(certFile, keyFile); err != nil {
		return "", "", err
	}
	return certFile, keyFile, nil
}

// devCredentialsValid reports whether certFile exists, parses, and has more
// than a day of validity left.
func devCredentialsValid(certFile string) bool {
	raw, err := os.ReadFile(certFile)
	if err != nil {
		return false
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return false
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return false
	}
	return time.Now().Add(24 * time.Hour).Before(cert.NotAfter)
}

// generateDevCredentials writes a fresh self-signed ECDSA P-256 leaf
// certificate valid for "localhost" and loopback addresses to certFile and
// keyFile, the same ecdsa.GenerateKey/x509.CreateCertificate pairing the
// donor's own TLS test fixtures use.
func generateDevCredentials(certFile, keyFile string) error {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return fmt.Errorf("wayfare: generating devcert key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return fmt.Errorf("wayfare: generating devcert serial: %w", err)
	}

	template := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: "wayfare-dev", Organization: []string{"wayfare development"}},
		NotBefore:    time.Now(),
		NotAfter:     time.Now().Add(devCertLifetime),
		KeyUsage:     x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		DNSNames:     []string{"localhost"},
		IPAddresses:  []net.IP{net.IPv4(127, 0, 0, 1), net.IPv6loopback},
		BasicConstraintsValid: true,
	}

	certDER, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return fmt.Errorf("wayfare: creating devcert: %w", err)
	}

	if err := writePEM(certFile, "CERTIFICATE", certDER, 0o644); err != nil {
		return err
	}

	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return fmt.Errorf("wayfare: marshaling devcert key: %w", err)
	}
	if err := writePEM(keyFile, "EC PRIVATE KEY", keyDER, 0o600); err != nil {
		return err
	}

	return nil
}

func writePEM(path, blockType string, der []byte, perm os.FileMode) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("wayfare: writing %s: %w", path, err)
	}
	defer f.Close()
	return pem.Encode(f, &pem.Block{Type: blockType, Bytes: der})
}
