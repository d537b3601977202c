package adb

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"

	"github.com/FluidXR/adbinfo/internal/keystore"
)

// DefaultKeyName is the name given to a generated key.
const DefaultKeyName = "adbkey"

const keyBits = 2048

// PrivateKey is a named RSA key offered to devices during authentication.
type PrivateKey struct {
	Name string
	Key  *rsa.PrivateKey
}

// PEM encodes the key as PKCS#8, the format adb reads from vendor key files.
func (k PrivateKey) PEM() ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(k.Key)
	if err != nil {
		return nil, fmt.Errorf("marshal key %s: %w", k.Name, err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), nil
}

// Fingerprint is the colon-separated SHA-256 of the public key.
func (k PrivateKey) Fingerprint() string {
	der, err := x509.MarshalPKIXPublicKey(&k.Key.PublicKey)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(der)
	parts := make([]string, len(sum))
	for i, b := range sum {
		parts[i] = hex.EncodeToString([]byte{b})
	}
	return strings.ToUpper(strings.Join(parts, ":"))
}

// CredentialManager supplies the keys used to authenticate with devices.
type CredentialManager interface {
	// PrivateKeys returns every usable key, generating one if there is none.
	PrivateKeys() ([]PrivateKey, error)
}

// RSACredentialManager keeps RSA keys in a keystore.Storage.
type RSACredentialManager struct {
	storage keystore.Storage
}

// NewCredentialManager returns a credential manager bound to storage.
func NewCredentialManager(storage keystore.Storage) *RSACredentialManager {
	return &RSACredentialManager{storage: storage}
}

// PrivateKeys loads the stored keys. Entries that do not parse are skipped.
// When storage holds no usable key a new one is generated and saved under
// DefaultKeyName.
func (m *RSACredentialManager) PrivateKeys() ([]PrivateKey, error) {
	var keys []PrivateKey
	for name, der := range m.storage.Load() {
		key, err := ParsePrivateKey(der)
		if err != nil {
			continue
		}
		keys = append(keys, PrivateKey{Name: name, Key: key})
	}
	if len(keys) > 0 {
		return keys, nil
	}
	key, err := m.Generate(DefaultKeyName)
	if err != nil {
		return nil, err
	}
	return []PrivateKey{key}, nil
}

// Generate creates a new RSA key and saves it under name.
func (m *RSACredentialManager) Generate(name string) (PrivateKey, error) {
	key, err := rsa.GenerateKey(rand.Reader, keyBits)
	if err != nil {
		return PrivateKey{}, fmt.Errorf("generate key: %w", err)
	}
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return PrivateKey{}, fmt.Errorf("marshal key: %w", err)
	}
	if err := m.storage.Save(der, name); err != nil {
		return PrivateKey{}, fmt.Errorf("save key %s: %w", name, err)
	}
	return PrivateKey{Name: name, Key: key}, nil
}

// ParsePrivateKey parses a DER-encoded RSA key in PKCS#8 or PKCS#1 form.
func ParsePrivateKey(der []byte) (*rsa.PrivateKey, error) {
	if k, err := x509.ParsePKCS8PrivateKey(der); err == nil {
		rk, ok := k.(*rsa.PrivateKey)
		if !ok {
			return nil, errors.New("not an RSA key")
		}
		return rk, nil
	}
	k, err := x509.ParsePKCS1PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return k, nil
}
